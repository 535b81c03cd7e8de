package client

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/grocerly/internal/errs"
	"github.com/and161185/grocerly/internal/model"
)

// ErrQueued is returned when a write could not reach the server and was
// queued for the next Reconcile. The local state already reflects it.
var ErrQueued = errors.New("offline: change queued for sync")

// Backend is the part of the API the store drives.
type Backend interface {
	Lists(ctx context.Context) ([]model.List, error)
	AddItem(ctx context.Context, listID uuid.UUID, in model.NewItem) (*model.Item, error)
	UpdateItem(ctx context.Context, listID, itemID uuid.UUID, p model.ItemPatch) (*model.Item, error)
	ToggleItem(ctx context.Context, listID, itemID uuid.UUID, baseRev *int64) (*model.Item, error)
	DeleteItem(ctx context.Context, listID, itemID uuid.UUID, baseRev *int64) (*model.Item, error)
	Changes(ctx context.Context, listID uuid.UUID, since int64) (model.Changes, error)
	Sync(ctx context.Context, listID uuid.UUID, ops []model.SyncOp) ([]model.SyncResult, error)
	Events(ctx context.Context, listID uuid.UUID, fn func(model.Change)) error
}

var _ Backend = (*API)(nil)

// Snapshot is an immutable copy of store state handed to subscribers.
type Snapshot struct {
	Lists   []model.List
	Items   map[uuid.UUID][]model.Item // live items per list, by position
	Revs    map[uuid.UUID]int64
	Pending map[uuid.UUID]bool // item ids with queued writes
	Online  bool
}

type refreshState struct {
	running bool
	again   bool
}

// Store owns the client's view of lists and items.
type Store struct {
	api   Backend
	queue *Queue
	log   *zap.Logger

	// RetryMin and RetryMax bound the Watch reconnect backoff.
	RetryMin time.Duration
	RetryMax time.Duration

	mu      sync.Mutex
	lists   []model.List
	items   map[uuid.UUID]map[uuid.UUID]model.Item
	revs    map[uuid.UUID]int64
	online  bool
	subs    map[int]func(Snapshot)
	nextSub int
	refresh map[uuid.UUID]*refreshState
}

// NewStore wires a store to a backend and an offline queue.
func NewStore(api Backend, queue *Queue, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	if queue == nil {
		queue = &Queue{}
	}
	return &Store{
		api:      api,
		queue:    queue,
		log:      log,
		RetryMin: time.Second,
		RetryMax: 30 * time.Second,
		items:    make(map[uuid.UUID]map[uuid.UUID]model.Item),
		revs:     make(map[uuid.UUID]int64),
		subs:     make(map[int]func(Snapshot)),
		refresh:  make(map[uuid.UUID]*refreshState),
	}
}

// Subscribe registers fn for snapshots after every change.
// The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Lists:   append([]model.List(nil), s.lists...),
		Items:   make(map[uuid.UUID][]model.Item, len(s.items)),
		Revs:    make(map[uuid.UUID]int64, len(s.revs)),
		Pending: make(map[uuid.UUID]bool),
		Online:  s.online,
	}
	for listID, m := range s.items {
		out := make([]model.Item, 0, len(m))
		for _, it := range m {
			out = append(out, it)
			if s.queue.Pending(it.ID) {
				snap.Pending[it.ID] = true
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Position != out[j].Position {
				return out[i].Position < out[j].Position
			}
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		})
		snap.Items[listID] = out
	}
	for k, v := range s.revs {
		snap.Revs[k] = v
	}
	return snap
}

func (s *Store) notify() {
	s.mu.Lock()
	snap := s.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) setOnline(v bool) {
	s.mu.Lock()
	changed := s.online != v
	s.online = v
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

func (s *Store) item(listID, itemID uuid.UUID) (model.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[listID][itemID]
	return it, ok
}

func (s *Store) put(it model.Item) {
	s.mu.Lock()
	m, ok := s.items[it.ListID]
	if !ok {
		m = make(map[uuid.UUID]model.Item)
		s.items[it.ListID] = m
	}
	if it.Deleted {
		delete(m, it.ID)
	} else {
		m[it.ID] = it
	}
	s.mu.Unlock()
}

func (s *Store) remove(listID, itemID uuid.UUID) {
	s.mu.Lock()
	delete(s.items[listID], itemID)
	s.mu.Unlock()
}

// LoadLists fetches the caller's lists.
func (s *Store) LoadLists(ctx context.Context) ([]model.List, error) {
	lists, err := s.api.Lists(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.lists = lists
	s.mu.Unlock()
	s.notify()
	return lists, nil
}

// Seed loads previously cached state for listID. Items with queued writes
// keep their cached local version.
func (s *Store) Seed(listID uuid.UUID, rev int64, items []model.Item) {
	s.mu.Lock()
	m := make(map[uuid.UUID]model.Item, len(items))
	for _, it := range items {
		if !it.Deleted {
			m[it.ID] = it
		}
	}
	s.items[listID] = m
	s.revs[listID] = rev
	s.mu.Unlock()
	s.notify()
}

// Items returns the live items of listID from local state.
func (s *Store) Items(listID uuid.UUID) []model.Item {
	return s.Snapshot().Items[listID]
}

// Refresh pulls changes since the known rev. Concurrent calls for the same
// list coalesce into one in-flight pull plus at most one follow-up.
func (s *Store) Refresh(ctx context.Context, listID uuid.UUID) error {
	s.mu.Lock()
	st, ok := s.refresh[listID]
	if !ok {
		st = &refreshState{}
		s.refresh[listID] = st
	}
	if st.running {
		st.again = true
		s.mu.Unlock()
		return nil
	}
	st.running = true
	s.mu.Unlock()

	for {
		err := s.pull(ctx, listID)
		s.mu.Lock()
		if err != nil || !st.again {
			st.running, st.again = false, false
			s.mu.Unlock()
			return err
		}
		st.again = false
		s.mu.Unlock()
	}
}

func (s *Store) pull(ctx context.Context, listID uuid.UUID) error {
	s.mu.Lock()
	since := s.revs[listID]
	s.mu.Unlock()

	ch, err := s.api.Changes(ctx, listID, since)
	if err != nil {
		return err
	}
	for _, it := range ch.Items {
		// local optimistic state wins until its queued write is replayed
		if s.queue.Pending(it.ID) {
			continue
		}
		s.put(it)
	}
	s.mu.Lock()
	if _, ok := s.items[listID]; !ok {
		s.items[listID] = make(map[uuid.UUID]model.Item)
	}
	if ch.ListRev > s.revs[listID] {
		s.revs[listID] = ch.ListRev
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// settle finishes a local-first write. prev is the state to roll back to;
// nil means the item did not exist.
func (s *Store) settle(ctx context.Context, listID uuid.UUID, prev *model.Item, op model.SyncOp, got *model.Item, err error) error {
	switch {
	case err == nil:
		s.put(*got)
		s.notify()
		return nil
	case Transient(err):
		s.log.Debug("write queued", zap.String("op", string(op.Kind)), zap.Error(err))
		if qerr := s.queue.Push(listID, op); qerr != nil {
			return qerr
		}
		s.setOnline(false)
		s.notify()
		return ErrQueued
	}

	if prev == nil {
		s.remove(listID, op.ItemID)
	} else {
		s.put(*prev)
	}
	s.notify()
	if errors.Is(err, errs.ErrVersionConflict) || errors.Is(err, errs.ErrNotFound) {
		if rerr := s.Refresh(ctx, listID); rerr != nil {
			s.log.Debug("refresh after rejected write", zap.Error(rerr))
		}
	}
	return err
}

// queueOnly appends op without calling the server. Used while earlier
// writes for the same item are still queued so ordering is preserved.
func (s *Store) queueOnly(listID uuid.UUID, op model.SyncOp) error {
	if err := s.queue.Push(listID, op); err != nil {
		return err
	}
	s.notify()
	return ErrQueued
}

func baseRev(it model.Item) *int64 {
	if it.Rev == 0 {
		return nil
	}
	r := it.Rev
	return &r
}

// guard is the base rev for a write on it. Only the first queued op of an item
// carries one; later ops replay after it and would always see a newer rev.
func (s *Store) guard(it model.Item) *int64 {
	if s.queue.Pending(it.ID) {
		return nil
	}
	return baseRev(it)
}

// AddItem creates an item locally under a client-generated id, then on the server.
func (s *Store) AddItem(ctx context.Context, listID uuid.UUID, name string, category *string) (model.Item, error) {
	now := time.Now().UTC()
	local := model.Item{
		ID:        uuid.Must(uuid.NewV4()),
		ListID:    listID,
		Name:      name,
		Category:  category,
		Position:  s.nextPosition(listID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.put(local)
	s.notify()

	in := model.NewItem{ID: local.ID, Name: name, Category: category}
	op := model.SyncOp{Kind: model.OpAdd, ItemID: local.ID, Add: in}
	got, err := s.api.AddItem(ctx, listID, in)
	if err := s.settle(ctx, listID, nil, op, got, err); err != nil {
		return local, err
	}
	return *got, nil
}

func (s *Store) nextPosition(listID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := 0
	for _, it := range s.items[listID] {
		if it.Position >= next {
			next = it.Position + 1
		}
	}
	return next
}

// Toggle flips the checked flag of a known item.
func (s *Store) Toggle(ctx context.Context, listID, itemID uuid.UUID) (model.Item, error) {
	prev, ok := s.item(listID, itemID)
	if !ok {
		return model.Item{}, errs.ErrNotFound
	}
	local := prev
	local.Checked = !prev.Checked
	local.CheckedAt = nil
	if local.Checked {
		now := time.Now().UTC()
		local.CheckedAt = &now
	}
	s.put(local)

	op := model.SyncOp{Kind: model.OpToggle, ItemID: itemID, Patch: model.ItemPatch{BaseRev: s.guard(prev)}}
	if s.queue.Pending(itemID) {
		return local, s.queueOnly(listID, op)
	}
	s.notify()
	got, err := s.api.ToggleItem(ctx, listID, itemID, op.Patch.BaseRev)
	if err := s.settle(ctx, listID, &prev, op, got, err); err != nil {
		return local, err
	}
	return *got, nil
}

// Update applies a patch to a known item. p.BaseRev is filled from local state.
func (s *Store) Update(ctx context.Context, listID, itemID uuid.UUID, p model.ItemPatch) (model.Item, error) {
	prev, ok := s.item(listID, itemID)
	if !ok {
		return model.Item{}, errs.ErrNotFound
	}
	local := prev
	if p.Name != nil {
		local.Name = *p.Name
	}
	if p.Category != nil {
		local.Category = nil
		if *p.Category != "" {
			c := *p.Category
			local.Category = &c
		}
	}
	if p.Position != nil {
		local.Position = *p.Position
	}
	if p.Checked != nil && *p.Checked != local.Checked {
		local.Checked = *p.Checked
		local.CheckedAt = nil
		if local.Checked {
			now := time.Now().UTC()
			local.CheckedAt = &now
		}
	}
	s.put(local)

	p.BaseRev = s.guard(prev)
	op := model.SyncOp{Kind: model.OpUpdate, ItemID: itemID, Patch: p}
	if s.queue.Pending(itemID) {
		return local, s.queueOnly(listID, op)
	}
	s.notify()
	got, err := s.api.UpdateItem(ctx, listID, itemID, p)
	if err := s.settle(ctx, listID, &prev, op, got, err); err != nil {
		return local, err
	}
	return *got, nil
}

// Delete removes a known item locally and tombstones it on the server.
func (s *Store) Delete(ctx context.Context, listID, itemID uuid.UUID) error {
	prev, ok := s.item(listID, itemID)
	if !ok {
		return errs.ErrNotFound
	}
	s.remove(listID, itemID)

	op := model.SyncOp{Kind: model.OpDelete, ItemID: itemID, Patch: model.ItemPatch{BaseRev: s.guard(prev)}}
	if s.queue.Pending(itemID) {
		return s.queueOnly(listID, op)
	}
	s.notify()
	got, err := s.api.DeleteItem(ctx, listID, itemID, op.Patch.BaseRev)
	return s.settle(ctx, listID, &prev, op, got, err)
}

// Reconcile replays queued writes for listID, adopts the server's version of
// anything that conflicted, then pulls changes since the known rev.
func (s *Store) Reconcile(ctx context.Context, listID uuid.UUID) error {
	if ops := s.queue.Take(listID); len(ops) > 0 {
		res, err := s.api.Sync(ctx, listID, ops)
		if err != nil {
			s.queue.Release(listID)
			return err
		}
		if err := s.queue.Ack(listID); err != nil {
			return err
		}
		for _, r := range res {
			switch {
			case r.Item != nil:
				s.put(*r.Item)
			case r.Status == model.SyncNotFound:
				s.remove(listID, r.ItemID)
			case r.Status == model.SyncInvalid:
				s.log.Warn("queued write rejected", zap.Stringer("item", r.ItemID), zap.String("error", r.Error))
				if it, ok := s.item(listID, r.ItemID); ok && it.Rev == 0 {
					s.remove(listID, r.ItemID)
				}
			}
		}
		s.notify()
	}
	if err := s.Refresh(ctx, listID); err != nil {
		return err
	}
	s.setOnline(true)
	return nil
}

// ReconcileAll reconciles every list with queued writes.
func (s *Store) ReconcileAll(ctx context.Context) error {
	var errList []error
	for _, id := range s.queue.Lists() {
		if err := s.Reconcile(ctx, id); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

// Watch keeps listID fresh: it reconciles, follows the event stream and
// refreshes on every change, reconnecting with backoff until ctx ends.
func (s *Store) Watch(ctx context.Context, listID uuid.UUID) error {
	backoff := s.RetryMin
	for {
		err := s.Reconcile(ctx, listID)
		if err == nil {
			backoff = s.RetryMin
			err = s.api.Events(ctx, listID, func(model.Change) {
				go func() {
					if rerr := s.Refresh(ctx, listID); rerr != nil && ctx.Err() == nil {
						s.log.Debug("refresh on event", zap.Error(rerr))
					}
				}()
			})
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !Transient(err) {
			return err
		}
		s.log.Debug("watch reconnecting", zap.Duration("in", backoff), zap.Error(err))
		s.setOnline(false)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, s.RetryMax)
	}
}
