package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/grocerly/internal/model"
)

func TestQueue_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "queue.json")
	list, item := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	q, err := OpenQueue(path)
	require.NoError(t, err)
	require.Equal(t, 0, q.Len())
	require.NoError(t, q.Push(list, model.SyncOp{Kind: model.OpAdd, ItemID: item, Add: model.NewItem{ID: item, Name: "milk"}}))
	rev := int64(3)
	require.NoError(t, q.Push(list, model.SyncOp{Kind: model.OpDelete, ItemID: item, Patch: model.ItemPatch{BaseRev: &rev}}))

	q2, err := OpenQueue(path)
	require.NoError(t, err)
	ops := q2.ForList(list)
	require.Len(t, ops, 2)
	require.Equal(t, model.OpAdd, ops[0].Kind)
	require.Equal(t, "milk", ops[0].Add.Name)
	require.Equal(t, model.OpDelete, ops[1].Kind)
	require.Equal(t, int64(3), *ops[1].Patch.BaseRev)
	require.True(t, q2.Pending(item))
}

func TestQueue_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o600))
	_, err := OpenQueue(path)
	require.Error(t, err)
}

func TestQueue_SuccessiveTogglesCancel(t *testing.T) {
	q, err := OpenQueue(filepath.Join(t.TempDir(), "q.json"))
	require.NoError(t, err)
	list, a, b := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	toggle := func(id uuid.UUID) model.SyncOp { return model.SyncOp{Kind: model.OpToggle, ItemID: id} }

	require.NoError(t, q.Push(list, toggle(a)))
	require.NoError(t, q.Push(list, toggle(b)))
	require.NoError(t, q.Push(list, toggle(a)))
	ops := q.ForList(list)
	require.Len(t, ops, 1)
	require.Equal(t, b, ops[0].ItemID)

	// a toggle after a different op on the same item is kept
	require.NoError(t, q.Push(list, model.SyncOp{Kind: model.OpUpdate, ItemID: b}))
	require.NoError(t, q.Push(list, toggle(b)))
	require.Len(t, q.ForList(list), 3)

	// other lists are independent
	other := uuid.Must(uuid.NewV4())
	require.NoError(t, q.Push(other, toggle(a)))
	require.Len(t, q.ForList(other), 1)
	require.Equal(t, []uuid.UUID{list, other}, q.Lists())
}

func TestQueue_TakeAckRelease(t *testing.T) {
	q, err := OpenQueue(filepath.Join(t.TempDir(), "q.json"))
	require.NoError(t, err)
	list, item := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	toggle := model.SyncOp{Kind: model.OpToggle, ItemID: item}

	require.NoError(t, q.Push(list, toggle))
	require.Len(t, q.Take(list), 1)

	// an in-flight toggle is not cancelled
	require.NoError(t, q.Push(list, toggle))
	require.Equal(t, 2, q.Len())
	require.Len(t, q.Take(list), 1, "second take only returns fresh ops")

	q.Release(list)
	require.Len(t, q.Take(list), 2)
	require.NoError(t, q.Ack(list))
	require.Equal(t, 0, q.Len())
	require.False(t, q.Pending(item))
}
