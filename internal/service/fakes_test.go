package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/grocerly/internal/errs"
	"github.com/and161185/grocerly/internal/model"
	"github.com/and161185/grocerly/internal/repository"
)

type memberKey struct{ list, user uuid.UUID }

type fakeMemberRepo struct {
	roles   map[memberKey]model.Role
	roleErr error
}

var _ repository.MemberRepository = (*fakeMemberRepo)(nil)

func newFakeMembers() *fakeMemberRepo {
	return &fakeMemberRepo{roles: map[memberKey]model.Role{}}
}

func (f *fakeMemberRepo) grant(list, user uuid.UUID, r model.Role) { f.roles[memberKey{list, user}] = r }

func (f *fakeMemberRepo) Role(_ context.Context, list, user uuid.UUID) (model.Role, error) {
	if f.roleErr != nil {
		return "", f.roleErr
	}
	r, ok := f.roles[memberKey{list, user}]
	if !ok {
		return "", errs.ErrNotFound
	}
	return r, nil
}
func (f *fakeMemberRepo) List(_ context.Context, list uuid.UUID) ([]model.ListMember, error) {
	var out []model.ListMember
	for k, r := range f.roles {
		if k.list == list {
			out = append(out, model.ListMember{ListID: list, UserID: k.user, Role: r})
		}
	}
	return out, nil
}
func (f *fakeMemberRepo) Add(_ context.Context, m *model.ListMember) error {
	k := memberKey{m.ListID, m.UserID}
	if _, ok := f.roles[k]; ok {
		return errs.ErrAlreadyExists
	}
	f.roles[k] = m.Role
	m.CreatedAt = time.Now()
	return nil
}
func (f *fakeMemberRepo) SetRole(_ context.Context, list, user uuid.UUID, r model.Role) error {
	k := memberKey{list, user}
	if _, ok := f.roles[k]; !ok {
		return errs.ErrNotFound
	}
	if r != model.RoleOwner && f.onlyOwner(list, user) {
		return errs.ErrLastOwner
	}
	f.roles[k] = r
	return nil
}
func (f *fakeMemberRepo) Remove(_ context.Context, list, user uuid.UUID) error {
	k := memberKey{list, user}
	if _, ok := f.roles[k]; !ok {
		return errs.ErrNotFound
	}
	if f.onlyOwner(list, user) {
		return errs.ErrLastOwner
	}
	delete(f.roles, k)
	return nil
}
func (f *fakeMemberRepo) onlyOwner(list, user uuid.UUID) bool {
	n := 0
	for k, r := range f.roles {
		if k.list == list && r == model.RoleOwner {
			n++
		}
	}
	return n == 1 && f.roles[memberKey{list, user}] == model.RoleOwner
}

type fakeListRepo struct {
	members *fakeMemberRepo
	lists   map[uuid.UUID]model.List

	createErr error
	deleted   []uuid.UUID
}

var _ repository.ListRepository = (*fakeListRepo)(nil)

func (f *fakeListRepo) Create(_ context.Context, l *model.List) error {
	if f.createErr != nil {
		return f.createErr
	}
	l.CreatedAt, l.UpdatedAt = time.Now(), time.Now()
	f.lists[l.ID] = *l
	f.members.grant(l.ID, l.OwnerID, model.RoleOwner)
	return nil
}
func (f *fakeListRepo) Get(_ context.Context, id uuid.UUID) (*model.List, error) {
	l, ok := f.lists[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &l, nil
}
func (f *fakeListRepo) ListForUser(_ context.Context, user uuid.UUID) ([]model.List, error) {
	var out []model.List
	for id, l := range f.lists {
		if _, ok := f.members.roles[memberKey{id, user}]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}
func (f *fakeListRepo) Rename(_ context.Context, id uuid.UUID, name string) (*model.List, error) {
	l, ok := f.lists[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	l.Name = name
	f.lists[id] = l
	return &l, nil
}
func (f *fakeListRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	delete(f.lists, id)
	return nil
}

// fakeItemRepo keeps rev semantics close to the Postgres implementation.
type fakeItemRepo struct {
	mu    sync.Mutex
	rev   int64
	items map[uuid.UUID]model.Item

	addCalls int
	addIn    []model.NewItem
	failWith error
}

var _ repository.ItemRepository = (*fakeItemRepo)(nil)

func newFakeItems() *fakeItemRepo { return &fakeItemRepo{items: map[uuid.UUID]model.Item{}} }

func (f *fakeItemRepo) live(listID, id uuid.UUID, baseRev *int64) (model.Item, error) {
	it, ok := f.items[id]
	if !ok || it.Deleted || it.ListID != listID {
		return model.Item{}, errs.ErrNotFound
	}
	if baseRev != nil && *baseRev != it.Rev {
		return model.Item{}, errs.ErrVersionConflict
	}
	return it, nil
}

func (f *fakeItemRepo) List(_ context.Context, listID uuid.UUID) ([]model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Item{}
	for _, it := range f.items {
		if it.ListID == listID && !it.Deleted {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}
func (f *fakeItemRepo) Get(_ context.Context, listID, id uuid.UUID) (*model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, err := f.live(listID, id, nil)
	if err != nil {
		return nil, err
	}
	return &it, nil
}
func (f *fakeItemRepo) Add(_ context.Context, listID uuid.UUID, in []model.NewItem) ([]model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	f.addIn = append([]model.NewItem(nil), in...)
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.rev++
	out := make([]model.Item, 0, len(in))
	for _, ni := range in {
		if ni.ID == uuid.Nil {
			ni.ID = uuid.Must(uuid.NewV4())
		}
		if _, ok := f.items[ni.ID]; ok {
			return nil, errs.ErrAlreadyExists
		}
		it := model.Item{ID: ni.ID, ListID: listID, Name: ni.Name, Category: ni.Category, Position: len(f.items), Rev: f.rev}
		f.items[it.ID] = it
		out = append(out, it)
	}
	return out, nil
}
func (f *fakeItemRepo) Update(_ context.Context, listID, id uuid.UUID, p model.ItemPatch) (*model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, err := f.live(listID, id, p.BaseRev)
	if err != nil {
		return nil, err
	}
	f.rev++
	if p.Name != nil {
		it.Name = *p.Name
	}
	if p.Category != nil {
		if *p.Category == "" {
			it.Category = nil
		} else {
			c := *p.Category
			it.Category = &c
		}
	}
	if p.Checked != nil {
		if *p.Checked && !it.Checked {
			now := time.Now()
			it.CheckedAt = &now
		}
		if !*p.Checked {
			it.CheckedAt = nil
		}
		it.Checked = *p.Checked
	}
	it.Rev = f.rev
	f.items[id] = it
	return &it, nil
}
func (f *fakeItemRepo) Toggle(_ context.Context, listID, id uuid.UUID, baseRev *int64) (*model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, err := f.live(listID, id, baseRev)
	if err != nil {
		return nil, err
	}
	f.rev++
	it.Checked = !it.Checked
	if it.Checked {
		now := time.Now()
		it.CheckedAt = &now
	} else {
		it.CheckedAt = nil
	}
	it.Rev = f.rev
	f.items[id] = it
	return &it, nil
}
func (f *fakeItemRepo) Delete(_ context.Context, listID, id uuid.UUID, baseRev *int64) (*model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, err := f.live(listID, id, baseRev)
	if err != nil {
		return nil, err
	}
	f.rev++
	it.Deleted, it.Rev = true, f.rev
	f.items[id] = it
	return &it, nil
}
func (f *fakeItemRepo) ChangesSince(_ context.Context, listID uuid.UUID, since int64) (model.Changes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := model.Changes{ListRev: f.rev, Items: []model.Item{}}
	for _, it := range f.items {
		if it.ListID == listID && it.Rev > since {
			ch.Items = append(ch.Items, it)
		}
	}
	sort.Slice(ch.Items, func(i, j int) bool { return ch.Items[i].Rev < ch.Items[j].Rev })
	return ch, nil
}
