package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/grocerly/internal/errs"
	"github.com/and161185/grocerly/internal/model"
	"github.com/and161185/grocerly/internal/repository"
	"github.com/and161185/grocerly/internal/sanitize"
)

// ItemService defines rev-tracked item operations.
type ItemService interface {
	// List returns live items of a list.
	List(ctx context.Context, userID, listID uuid.UUID) ([]model.Item, error)
	// Add appends one item.
	Add(ctx context.Context, userID, listID uuid.UUID, in model.NewItem) (*model.Item, error)
	// AddBulk appends many items in one transaction.
	AddBulk(ctx context.Context, userID, listID uuid.UUID, in []model.NewItem) ([]model.Item, error)
	// Update applies a partial patch with optional optimistic concurrency.
	Update(ctx context.Context, userID, listID, itemID uuid.UUID, p model.ItemPatch) (*model.Item, error)
	// Toggle flips the checked flag.
	Toggle(ctx context.Context, userID, listID, itemID uuid.UUID, baseRev *int64) (*model.Item, error)
	// Delete tombstones an item.
	Delete(ctx context.Context, userID, listID, itemID uuid.UUID, baseRev *int64) (*model.Item, error)
	// Changes returns the change feed after since.
	Changes(ctx context.Context, userID, listID uuid.UUID, since int64) (model.Changes, error)
	// Sync replays queued offline ops; conflicts resolve to the server state.
	Sync(ctx context.Context, userID, listID uuid.UUID, ops []model.SyncOp) ([]model.SyncResult, error)
}

type ItemServiceImpl struct {
	repo     repository.ItemRepository
	acl      access
	maxBatch int
}

// NewItemService constructs ItemService with batch limits.
func NewItemService(repo repository.ItemRepository, members repository.MemberRepository, maxBatch int) *ItemServiceImpl {
	if maxBatch <= 0 {
		maxBatch = 500
	}
	return &ItemServiceImpl{repo: repo, acl: access{members: members}, maxBatch: maxBatch}
}

func (s *ItemServiceImpl) List(ctx context.Context, userID, listID uuid.UUID) ([]model.Item, error) {
	if _, err := s.acl.require(ctx, userID, listID, model.RoleViewer); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, listID)
}

func (s *ItemServiceImpl) Add(ctx context.Context, userID, listID uuid.UUID, in model.NewItem) (*model.Item, error) {
	out, err := s.AddBulk(ctx, userID, listID, []model.NewItem{in})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// AddBulk validates every item before touching storage.
// Validation rules:
// - 1 <= len(in) <= maxBatch
// - name 1..100 runes after markup stripping
// - category <= 50 runes, blank means none
// - position >= 0 when given
func (s *ItemServiceImpl) AddBulk(ctx context.Context, userID, listID uuid.UUID, in []model.NewItem) ([]model.Item, error) {
	if len(in) == 0 {
		return nil, invalid("no items")
	}
	if len(in) > s.maxBatch {
		return nil, invalid("batch too large (%d > %d)", len(in), s.maxBatch)
	}
	clean := make([]model.NewItem, len(in))
	for i := range in {
		ni, err := cleanNewItem(in[i])
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, err)
		}
		clean[i] = ni
	}
	if _, err := s.acl.require(ctx, userID, listID, model.RoleEditor); err != nil {
		return nil, err
	}
	return s.repo.Add(ctx, listID, clean)
}

func (s *ItemServiceImpl) Update(ctx context.Context, userID, listID, itemID uuid.UUID, p model.ItemPatch) (*model.Item, error) {
	if itemID == uuid.Nil {
		return nil, invalid("empty item id")
	}
	p, err := cleanPatch(p)
	if err != nil {
		return nil, err
	}
	if _, err := s.acl.require(ctx, userID, listID, model.RoleEditor); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, listID, itemID, p)
}

func (s *ItemServiceImpl) Toggle(ctx context.Context, userID, listID, itemID uuid.UUID, baseRev *int64) (*model.Item, error) {
	if itemID == uuid.Nil {
		return nil, invalid("empty item id")
	}
	if _, err := s.acl.require(ctx, userID, listID, model.RoleEditor); err != nil {
		return nil, err
	}
	return s.repo.Toggle(ctx, listID, itemID, baseRev)
}

func (s *ItemServiceImpl) Delete(ctx context.Context, userID, listID, itemID uuid.UUID, baseRev *int64) (*model.Item, error) {
	if itemID == uuid.Nil {
		return nil, invalid("empty item id")
	}
	if _, err := s.acl.require(ctx, userID, listID, model.RoleEditor); err != nil {
		return nil, err
	}
	return s.repo.Delete(ctx, listID, itemID, baseRev)
}

func (s *ItemServiceImpl) Changes(ctx context.Context, userID, listID uuid.UUID, since int64) (model.Changes, error) {
	if since < 0 {
		return model.Changes{}, invalid("negative since")
	}
	if _, err := s.acl.require(ctx, userID, listID, model.RoleViewer); err != nil {
		return model.Changes{}, err
	}
	return s.repo.ChangesSince(ctx, listID, since)
}

// Sync applies ops in order. Each op commits on its own, so a rejected op
// does not undo the ones before it.
func (s *ItemServiceImpl) Sync(ctx context.Context, userID, listID uuid.UUID, ops []model.SyncOp) ([]model.SyncResult, error) {
	if len(ops) > s.maxBatch {
		return nil, invalid("batch too large (%d > %d)", len(ops), s.maxBatch)
	}
	if _, err := s.acl.require(ctx, userID, listID, model.RoleEditor); err != nil {
		return nil, err
	}
	out := make([]model.SyncResult, 0, len(ops))
	for _, op := range ops {
		res, err := s.replay(ctx, listID, op)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// replay runs one op; only infrastructure failures are returned as errors.
func (s *ItemServiceImpl) replay(ctx context.Context, listID uuid.UUID, op model.SyncOp) (model.SyncResult, error) {
	res := model.SyncResult{ItemID: op.ItemID}
	if op.ItemID == uuid.Nil {
		res.Status, res.Error = model.SyncInvalid, "empty item id"
		return res, nil
	}

	var (
		it  *model.Item
		err error
	)
	switch op.Kind {
	case model.OpAdd:
		ni := op.Add
		ni.ID = op.ItemID
		if ni, err = cleanNewItem(ni); err == nil {
			var added []model.Item
			added, err = s.repo.Add(ctx, listID, []model.NewItem{ni})
			if err == nil {
				it = &added[0]
			} else if errors.Is(err, errs.ErrAlreadyExists) {
				// replay of an add whose response was lost
				it, err = s.repo.Get(ctx, listID, op.ItemID)
				if errors.Is(err, errs.ErrNotFound) {
					err = errs.ErrVersionConflict
				}
			}
		}
	case model.OpUpdate:
		var p model.ItemPatch
		if p, err = cleanPatch(op.Patch); err == nil {
			it, err = s.repo.Update(ctx, listID, op.ItemID, p)
		}
	case model.OpToggle:
		it, err = s.repo.Toggle(ctx, listID, op.ItemID, op.Patch.BaseRev)
	case model.OpDelete:
		it, err = s.repo.Delete(ctx, listID, op.ItemID, op.Patch.BaseRev)
	default:
		err = invalid("unknown op %q", op.Kind)
	}

	switch {
	case err == nil:
		res.Status, res.Item = model.SyncApplied, it
	case errors.Is(err, errs.ErrValidation):
		res.Status, res.Error = model.SyncInvalid, err.Error()
	case errors.Is(err, errs.ErrNotFound):
		res.Status = model.SyncNotFound
	case errors.Is(err, errs.ErrVersionConflict):
		res.Status, res.Error = model.SyncConflict, err.Error()
		cur, gerr := s.repo.Get(ctx, listID, op.ItemID)
		switch {
		case gerr == nil:
			res.Item = cur
		case !errors.Is(gerr, errs.ErrNotFound):
			return res, gerr
		}
	default:
		return res, err
	}
	return res, nil
}

func cleanNewItem(in model.NewItem) (model.NewItem, error) {
	name, err := sanitize.Name("name", in.Name, maxNameLen)
	if err != nil {
		return in, err
	}
	cat, err := sanitize.Optional("category", in.Category, maxCategoryLen)
	if err != nil {
		return in, err
	}
	if in.Position != nil && *in.Position < 0 {
		return in, invalid("negative position")
	}
	in.Name, in.Category = name, cat
	return in, nil
}

// cleanPatch validates a patch. A blank category clears it, so the cleaned
// value stays non-nil to keep the intent.
func cleanPatch(p model.ItemPatch) (model.ItemPatch, error) {
	if p.Empty() {
		return p, invalid("empty patch")
	}
	if p.Name != nil {
		name, err := sanitize.Name("name", *p.Name, maxNameLen)
		if err != nil {
			return p, err
		}
		p.Name = &name
	}
	if p.Category != nil {
		cat, err := sanitize.Optional("category", p.Category, maxCategoryLen)
		if err != nil {
			return p, err
		}
		if cat == nil {
			blank := ""
			cat = &blank
		}
		p.Category = cat
	}
	if p.Position != nil && *p.Position < 0 {
		return p, invalid("negative position")
	}
	if p.BaseRev != nil && *p.BaseRev < 0 {
		return p, invalid("negative base_rev")
	}
	return p, nil
}
