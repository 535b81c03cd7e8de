package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/grocerly/internal/model"
)

var errOffline = errors.New("dial tcp 127.0.0.1:8080: connect: connection refused")

// fakeBackend is an in-memory server with the same rev rules as the API.
type fakeBackend struct {
	mu      sync.Mutex
	rev     int64
	items   map[uuid.UUID]model.Item
	lists   []model.List
	offline bool
	reject  error

	changesCalls int
	changesGate  chan struct{}
	synced       [][]model.SyncOp
	events       chan model.Change
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{items: map[uuid.UUID]model.Item{}, events: make(chan model.Change, 8)}
}

func (f *fakeBackend) fail() error {
	if f.offline {
		return errOffline
	}
	return f.reject
}

func (f *fakeBackend) live(listID, id uuid.UUID, base *int64) (model.Item, error) {
	it, ok := f.items[id]
	if !ok || it.Deleted || it.ListID != listID {
		return model.Item{}, &APIError{Status: http.StatusNotFound, Message: "not found"}
	}
	if base != nil && *base != it.Rev {
		return model.Item{}, &APIError{Status: http.StatusConflict, Message: "version conflict"}
	}
	return it, nil
}

func (f *fakeBackend) Lists(context.Context) ([]model.List, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.lists, nil
}

func (f *fakeBackend) addLocked(listID uuid.UUID, in model.NewItem) *model.Item {
	if it, ok := f.items[in.ID]; ok {
		return &it
	}
	f.rev++
	now := time.Now().UTC()
	it := model.Item{ID: in.ID, ListID: listID, Name: in.Name, Category: in.Category, Position: len(f.items), Rev: f.rev, CreatedAt: now, UpdatedAt: now}
	f.items[it.ID] = it
	return &it
}

func (f *fakeBackend) AddItem(_ context.Context, listID uuid.UUID, in model.NewItem) (*model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.addLocked(listID, in), nil
}

func (f *fakeBackend) UpdateItem(_ context.Context, listID, itemID uuid.UUID, p model.ItemPatch) (*model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.updateLocked(listID, itemID, p)
}

func (f *fakeBackend) updateLocked(listID, itemID uuid.UUID, p model.ItemPatch) (*model.Item, error) {
	it, err := f.live(listID, itemID, p.BaseRev)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		it.Name = *p.Name
	}
	f.rev++
	it.Rev = f.rev
	f.items[itemID] = it
	return &it, nil
}

func (f *fakeBackend) toggleLocked(listID, itemID uuid.UUID, base *int64) (*model.Item, error) {
	it, err := f.live(listID, itemID, base)
	if err != nil {
		return nil, err
	}
	f.rev++
	it.Checked, it.Rev = !it.Checked, f.rev
	f.items[itemID] = it
	return &it, nil
}

func (f *fakeBackend) ToggleItem(_ context.Context, listID, itemID uuid.UUID, base *int64) (*model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.toggleLocked(listID, itemID, base)
}

func (f *fakeBackend) DeleteItem(_ context.Context, listID, itemID uuid.UUID, base *int64) (*model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.deleteLocked(listID, itemID, base)
}

func (f *fakeBackend) deleteLocked(listID, itemID uuid.UUID, base *int64) (*model.Item, error) {
	it, err := f.live(listID, itemID, base)
	if err != nil {
		return nil, err
	}
	f.rev++
	it.Deleted, it.Rev = true, f.rev
	f.items[itemID] = it
	return &it, nil
}

func (f *fakeBackend) Changes(ctx context.Context, listID uuid.UUID, since int64) (model.Changes, error) {
	f.mu.Lock()
	f.changesCalls++
	gate := f.changesGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return model.Changes{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return model.Changes{}, err
	}
	ch := model.Changes{ListRev: f.rev}
	for _, it := range f.items {
		if it.ListID == listID && it.Rev > since {
			ch.Items = append(ch.Items, it)
		}
	}
	sort.Slice(ch.Items, func(i, j int) bool { return ch.Items[i].Rev < ch.Items[j].Rev })
	return ch, nil
}

func (f *fakeBackend) Sync(_ context.Context, listID uuid.UUID, ops []model.SyncOp) ([]model.SyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, errOffline
	}
	f.synced = append(f.synced, ops)
	out := make([]model.SyncResult, 0, len(ops))
	for _, op := range ops {
		r := model.SyncResult{ItemID: op.ItemID, Status: model.SyncApplied}
		var it *model.Item
		var err error
		switch op.Kind {
		case model.OpAdd:
			if op.Add.Name == "" {
				r.Status, r.Error = model.SyncInvalid, "empty name"
				out = append(out, r)
				continue
			}
			it = f.addLocked(listID, op.Add)
		case model.OpToggle:
			it, err = f.toggleLocked(listID, op.ItemID, op.Patch.BaseRev)
		case model.OpUpdate:
			it, err = f.updateLocked(listID, op.ItemID, op.Patch)
		case model.OpDelete:
			it, err = f.deleteLocked(listID, op.ItemID, op.Patch.BaseRev)
		}
		var ae *APIError
		if errors.As(err, &ae) {
			if ae.Status == http.StatusConflict {
				cur := f.items[op.ItemID]
				r.Status, r.Item = model.SyncConflict, &cur
			} else {
				r.Status = model.SyncNotFound
			}
		} else {
			r.Item = it
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeBackend) Events(ctx context.Context, _ uuid.UUID, fn func(model.Change)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-f.events:
			if !ok {
				return io.ErrUnexpectedEOF
			}
			fn(c)
		}
	}
}

// serverSideToggle simulates another device's write.
func (f *fakeBackend) serverSideToggle(listID, itemID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, _ = f.toggleLocked(listID, itemID, nil)
}

func (f *fakeBackend) setOffline(v bool) {
	f.mu.Lock()
	f.offline = v
	f.mu.Unlock()
}
