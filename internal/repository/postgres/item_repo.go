package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/grocerly/internal/errs"
	"github.com/and161185/grocerly/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// ItemRepo implements ItemRepository using PostgreSQL.
//
// Every mutation first bumps lists.rev (taking the list row lock), then locks
// the item row. The fixed list-then-item order keeps concurrent writers free
// of lock cycles and makes item revs strictly increasing per list.
type ItemRepo struct{ db *DB }

// NewItemRepo constructs an item repository.
func NewItemRepo(db *DB) *ItemRepo { return &ItemRepo{db: db} }

const itemCols = `id, list_id, name, category, checked, position, checked_at, created_at, updated_at, rev, deleted`

func scanItem(row pgx.Row) (*model.Item, error) {
	var it model.Item
	err := row.Scan(&it.ID, &it.ListID, &it.Name, &it.Category, &it.Checked, &it.Position,
		&it.CheckedAt, &it.CreatedAt, &it.UpdatedAt, &it.Rev, &it.Deleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &it, nil
}

func collectItems(rows pgx.Rows) ([]model.Item, error) {
	defer rows.Close()
	out := []model.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

// bumpRev increments the list revision and returns the new value.
func bumpRev(ctx context.Context, tx pgx.Tx, listID uuid.UUID) (int64, error) {
	const q = `UPDATE lists SET rev = rev + 1, updated_at = now() WHERE id=$1 RETURNING rev`
	var rev int64
	if err := tx.QueryRow(ctx, q, listID).Scan(&rev); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errs.ErrNotFound
		}
		return 0, err
	}
	return rev, nil
}

// lockItem locks a live item and checks the optional base rev.
func lockItem(ctx context.Context, tx pgx.Tx, listID, itemID uuid.UUID, baseRev *int64) error {
	const q = `SELECT rev FROM items WHERE id=$1 AND list_id=$2 AND NOT deleted FOR UPDATE`
	var cur int64
	if err := tx.QueryRow(ctx, q, itemID, listID).Scan(&cur); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrNotFound
		}
		return err
	}
	if baseRev != nil && *baseRev != cur {
		return errs.ErrVersionConflict
	}
	return nil
}

// List returns live items ordered by position.
func (r *ItemRepo) List(ctx context.Context, listID uuid.UUID) ([]model.Item, error) {
	const q = `
SELECT ` + itemCols + `
FROM items
WHERE list_id=$1 AND NOT deleted
ORDER BY position ASC, created_at ASC`
	rows, err := r.db.Pool.Query(ctx, q, listID)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

// Get returns a single live item.
func (r *ItemRepo) Get(ctx context.Context, listID, itemID uuid.UUID) (*model.Item, error) {
	const q = `SELECT ` + itemCols + ` FROM items WHERE id=$1 AND list_id=$2 AND NOT deleted`
	return scanItem(r.db.Pool.QueryRow(ctx, q, itemID, listID))
}

// Add inserts a batch of items under a single rev.
func (r *ItemRepo) Add(ctx context.Context, listID uuid.UUID, items []model.NewItem) (out []model.Item, err error) {
	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		rev, err := bumpRev(ctx, tx, listID)
		if err != nil {
			return err
		}

		const maxPos = `SELECT COALESCE(MAX(position), -1) FROM items WHERE list_id=$1 AND NOT deleted`
		var next int
		if err := tx.QueryRow(ctx, maxPos, listID).Scan(&next); err != nil {
			return err
		}

		const ins = `
INSERT INTO items (id, list_id, name, category, position, rev)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + itemCols
		out = make([]model.Item, 0, len(items))
		for i, ni := range items {
			if ni.ID == uuid.Nil {
				ni.ID = uuid.Must(uuid.NewV4())
			}
			pos := next + 1
			if ni.Position != nil {
				pos = *ni.Position
			}
			if pos > next {
				next = pos
			}
			it, err := scanItem(tx.QueryRow(ctx, ins, ni.ID, listID, ni.Name, ni.Category, pos, rev))
			if err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("item[%d]: %w", i, errs.ErrAlreadyExists)
				}
				return fmt.Errorf("item[%d]: %w", i, err)
			}
			out = append(out, *it)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies a partial patch. A nil Checked leaves checked/checked_at untouched;
// setting Checked keeps an existing checked_at and stamps a new one on transition to true.
func (r *ItemRepo) Update(ctx context.Context, listID, itemID uuid.UUID, p model.ItemPatch) (out *model.Item, err error) {
	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		rev, err := bumpRev(ctx, tx, listID)
		if err != nil {
			return err
		}
		if err := lockItem(ctx, tx, listID, itemID, p.BaseRev); err != nil {
			return err
		}

		const upd = `
UPDATE items SET
  name = COALESCE($3, name),
  category = CASE WHEN $4::boolean THEN NULLIF($5, '') ELSE category END,
  position = COALESCE($6, position),
  checked = COALESCE($7::boolean, checked),
  checked_at = CASE
    WHEN $7::boolean IS NULL THEN checked_at
    WHEN $7::boolean THEN COALESCE(checked_at, now())
    ELSE NULL END,
  rev = $8,
  updated_at = now()
WHERE id=$1 AND list_id=$2
RETURNING ` + itemCols
		var category string
		if p.Category != nil {
			category = *p.Category
		}
		out, err = scanItem(tx.QueryRow(ctx, upd, itemID, listID,
			p.Name, p.Category != nil, category, p.Position, p.Checked, rev))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Toggle flips checked; checked_at follows the new value.
func (r *ItemRepo) Toggle(ctx context.Context, listID, itemID uuid.UUID, baseRev *int64) (out *model.Item, err error) {
	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		rev, err := bumpRev(ctx, tx, listID)
		if err != nil {
			return err
		}
		if err := lockItem(ctx, tx, listID, itemID, baseRev); err != nil {
			return err
		}

		const upd = `
UPDATE items SET
  checked = NOT checked,
  checked_at = CASE WHEN checked THEN NULL ELSE now() END,
  rev = $3,
  updated_at = now()
WHERE id=$1 AND list_id=$2
RETURNING ` + itemCols
		out, err = scanItem(tx.QueryRow(ctx, upd, itemID, listID, rev))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete marks an item as deleted (tombstone) under a new rev.
func (r *ItemRepo) Delete(ctx context.Context, listID, itemID uuid.UUID, baseRev *int64) (out *model.Item, err error) {
	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		rev, err := bumpRev(ctx, tx, listID)
		if err != nil {
			return err
		}
		if err := lockItem(ctx, tx, listID, itemID, baseRev); err != nil {
			return err
		}

		const upd = `UPDATE items SET deleted=true, rev=$3, updated_at=now() WHERE id=$1 AND list_id=$2 RETURNING ` + itemCols
		out, err = scanItem(tx.QueryRow(ctx, upd, itemID, listID, rev))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ChangesSince returns changes strictly after the provided rev.
func (r *ItemRepo) ChangesSince(ctx context.Context, listID uuid.UUID, since int64) (model.Changes, error) {
	const cur = `SELECT rev FROM lists WHERE id=$1`
	var ch model.Changes
	if err := r.db.Pool.QueryRow(ctx, cur, listID).Scan(&ch.ListRev); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Changes{}, errs.ErrNotFound
		}
		return model.Changes{}, err
	}

	const q = `
SELECT ` + itemCols + `
FROM items
WHERE list_id=$1 AND rev>$2
ORDER BY rev ASC, position ASC`
	rows, err := r.db.Pool.Query(ctx, q, listID, since)
	if err != nil {
		return model.Changes{}, err
	}
	ch.Items, err = collectItems(rows)
	if err != nil {
		return model.Changes{}, err
	}
	return ch, nil
}
