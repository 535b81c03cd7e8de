package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/grocerly/internal/auth"
	"github.com/and161185/grocerly/internal/errs"
	"github.com/and161185/grocerly/internal/limiter"
	"github.com/and161185/grocerly/internal/model"
	"github.com/and161185/grocerly/internal/realtime"
	"github.com/and161185/grocerly/internal/service"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeLists struct {
	service.ListService
	mu    sync.Mutex
	lists map[uuid.UUID]model.List
	err   error
}

func (f *fakeLists) List(_ context.Context, user uuid.UUID) ([]model.List, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.List{}
	for _, l := range f.lists {
		if l.OwnerID == user {
			out = append(out, l)
		}
	}
	return out, f.err
}

func (f *fakeLists) Create(_ context.Context, user uuid.UUID, name string) (*model.List, error) {
	if f.err != nil {
		return nil, f.err
	}
	if strings.TrimSpace(name) == "" {
		return nil, errors.Join(errs.ErrValidation, errors.New("empty name"))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC().Truncate(time.Microsecond)
	l := model.List{ID: uuid.Must(uuid.NewV4()), OwnerID: user, Name: name, CreatedAt: now, UpdatedAt: now}
	f.lists[l.ID] = l
	return &l, nil
}

func (f *fakeLists) Get(_ context.Context, user, id uuid.UUID) (*model.List, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.lists[id]
	if !ok || l.OwnerID != user {
		return nil, errs.ErrNotFound
	}
	return &l, nil
}

func (f *fakeLists) Delete(_ context.Context, user, id uuid.UUID) error {
	if _, err := f.Get(context.Background(), user, id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lists, id)
	return nil
}

// fakeItems records the arguments of the last call.
type fakeItems struct {
	service.ItemService
	err error

	lastBaseRev *int64
	lastSince   int64
	lastOps     []model.SyncOp
	lastBulk    []model.NewItem
	lastPatch   model.ItemPatch
}

func (f *fakeItems) item(listID, id uuid.UUID) *model.Item {
	return &model.Item{ID: id, ListID: listID, Name: "milk", Rev: 3}
}

func (f *fakeItems) Add(_ context.Context, _, listID uuid.UUID, in model.NewItem) (*model.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	it := f.item(listID, uuid.Must(uuid.NewV4()))
	it.Name = in.Name
	return it, nil
}

func (f *fakeItems) AddBulk(_ context.Context, _, listID uuid.UUID, in []model.NewItem) ([]model.Item, error) {
	f.lastBulk = in
	out := make([]model.Item, len(in))
	for i := range in {
		out[i] = *f.item(listID, uuid.Must(uuid.NewV4()))
	}
	return out, f.err
}

func (f *fakeItems) Update(_ context.Context, _, listID, id uuid.UUID, p model.ItemPatch) (*model.Item, error) {
	f.lastPatch = p
	if f.err != nil {
		return nil, f.err
	}
	return f.item(listID, id), nil
}

func (f *fakeItems) Toggle(_ context.Context, _, listID, id uuid.UUID, baseRev *int64) (*model.Item, error) {
	f.lastBaseRev = baseRev
	if f.err != nil {
		return nil, f.err
	}
	it := f.item(listID, id)
	it.Checked = true
	return it, nil
}

func (f *fakeItems) Delete(_ context.Context, _, listID, id uuid.UUID, baseRev *int64) (*model.Item, error) {
	f.lastBaseRev = baseRev
	if f.err != nil {
		return nil, f.err
	}
	it := f.item(listID, id)
	it.Deleted = true
	return it, nil
}

func (f *fakeItems) Changes(_ context.Context, _, listID uuid.UUID, since int64) (model.Changes, error) {
	f.lastSince = since
	return model.Changes{ListRev: since + 1, Items: []model.Item{*f.item(listID, uuid.Must(uuid.NewV4()))}}, f.err
}

func (f *fakeItems) Sync(_ context.Context, _, _ uuid.UUID, ops []model.SyncOp) ([]model.SyncResult, error) {
	f.lastOps = ops
	out := make([]model.SyncResult, len(ops))
	for i, op := range ops {
		out[i] = model.SyncResult{ItemID: op.ItemID, Status: model.SyncApplied}
	}
	return out, f.err
}

type fakeMembers struct {
	service.MemberService
	err      error
	lastRole model.Role
}

func (f *fakeMembers) Add(_ context.Context, _, listID, member uuid.UUID, role model.Role) (*model.ListMember, error) {
	f.lastRole = role
	if f.err != nil {
		return nil, f.err
	}
	return &model.ListMember{ListID: listID, UserID: member, Role: role}, nil
}

func (f *fakeMembers) SetRole(_ context.Context, _, _, _ uuid.UUID, role model.Role) error {
	f.lastRole = role
	return f.err
}

func (f *fakeMembers) Remove(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) error { return f.err }

type pingFunc func(context.Context) error

func (p pingFunc) Ping(ctx context.Context) error { return p(ctx) }

type fixture struct {
	srv     *httptest.Server
	lists   *fakeLists
	items   *fakeItems
	members *fakeMembers
	hub     *realtime.Hub
	user    uuid.UUID
	token   string
	dbErr   error
}

func newFixture(t *testing.T, lim limiter.Limiter) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	f := &fixture{
		lists:   &fakeLists{lists: map[uuid.UUID]model.List{}},
		items:   &fakeItems{},
		members: &fakeMembers{},
		hub:     realtime.NewHub(log),
		user:    uuid.Must(uuid.NewV4()),
	}
	tok, err := auth.Issue(testSecret, f.user, "", time.Hour)
	require.NoError(t, err)
	f.token = tok

	h := NewRouter(Options{
		Lists:     f.lists,
		Items:     f.items,
		Members:   f.members,
		Hub:       f.hub,
		DB:        pingFunc(func(context.Context) error { return f.dbErr }),
		Verifier:  auth.NewVerifier(testSecret),
		Limiter:   lim,
		Origins:   []string{"http://localhost:5173"},
		Log:       log,
		Heartbeat: 20 * time.Millisecond,
	})
	f.srv = httptest.NewServer(h)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var rd *strings.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	var req *http.Request
	var err error
	if rd != nil {
		req, err = http.NewRequest(method, f.srv.URL+path, rd)
	} else {
		req, err = http.NewRequest(method, f.srv.URL+path, nil)
	}
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+f.token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
