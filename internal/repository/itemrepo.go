package repository

import (
	"context"

	"github.com/and161185/grocerly/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ItemRepository provides rev-tracked access to list items.
// Every mutation bumps the owning list's rev and stamps it on the item.
type ItemRepository interface {
	// List returns live (non-deleted) items ordered by position.
	List(ctx context.Context, listID uuid.UUID) ([]model.Item, error)
	// Get returns a single live item.
	Get(ctx context.Context, listID, itemID uuid.UUID) (*model.Item, error)
	// Add inserts items in one transaction and returns them as stored.
	Add(ctx context.Context, listID uuid.UUID, items []model.NewItem) ([]model.Item, error)
	// Update applies a patch with an optional base rev check.
	Update(ctx context.Context, listID, itemID uuid.UUID, p model.ItemPatch) (*model.Item, error)
	// Toggle flips the checked flag and maintains checked_at.
	Toggle(ctx context.Context, listID, itemID uuid.UUID, baseRev *int64) (*model.Item, error)
	// Delete tombstones an item and returns the tombstone.
	Delete(ctx context.Context, listID, itemID uuid.UUID, baseRev *int64) (*model.Item, error)
	// ChangesSince returns items (including tombstones) with rev greater than since.
	ChangesSince(ctx context.Context, listID uuid.UUID, since int64) (model.Changes, error)
}
