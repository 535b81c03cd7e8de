package realtime

import (
	"fmt"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/grocerly/internal/model"
)

type recordingPub struct {
	got     []model.Change
	resyncs int
}

func (r *recordingPub) Publish(c model.Change) { r.got = append(r.got, c) }
func (r *recordingPub) ResyncAll()             { r.resyncs++ }

func TestDecode(t *testing.T) {
	list, item := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	c, err := Decode(fmt.Sprintf(`{"list_id":%q,"item_id":%q,"op":"toggle","rev":7}`, list, item))
	require.NoError(t, err)
	require.Equal(t, model.Change{ListID: list, ItemID: item, Op: "toggle", Rev: 7}, c)

	_, err = Decode(`{"op":"add"}`)
	require.Error(t, err)
	_, err = Decode(`not json`)
	require.Error(t, err)
}

func TestListener_HandleForwardsValidPayloads(t *testing.T) {
	pub := &recordingPub{}
	l := NewListener("postgres://unused", pub, zaptest.NewLogger(t))

	list, item := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	l.handle(fmt.Sprintf(`{"list_id":%q,"item_id":%q,"op":"add","rev":1}`, list, item))
	l.handle(`{broken`)

	require.Len(t, pub.got, 1)
	require.Equal(t, list, pub.got[0].ListID)
}

func TestListener_ResyncsAfterRelisten(t *testing.T) {
	pub := &recordingPub{}
	l := NewListener("postgres://unused", pub, zaptest.NewLogger(t))

	l.listening()
	require.Zero(t, pub.resyncs, "first session has nothing to catch up on")

	l.listening()
	l.listening()
	require.Equal(t, 2, pub.resyncs)
}
