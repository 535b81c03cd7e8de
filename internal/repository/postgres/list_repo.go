package postgres

import (
	"context"
	"errors"

	"github.com/and161185/grocerly/internal/errs"
	"github.com/and161185/grocerly/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// ListRepo implements ListRepository using PostgreSQL.
type ListRepo struct{ db *DB }

// NewListRepo constructs a list repository.
func NewListRepo(db *DB) *ListRepo { return &ListRepo{db: db} }

const listCols = `id, owner_id, name, rev, created_at, updated_at`

func scanList(row pgx.Row) (*model.List, error) {
	var l model.List
	if err := row.Scan(&l.ID, &l.OwnerID, &l.Name, &l.Rev, &l.CreatedAt, &l.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

// Create inserts the list row and the owner's membership in one transaction.
func (r *ListRepo) Create(ctx context.Context, l *model.List) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		const ins = `
INSERT INTO lists (id, owner_id, name)
VALUES ($1, $2, $3)
RETURNING rev, created_at, updated_at`
		if err := tx.QueryRow(ctx, ins, l.ID, l.OwnerID, l.Name).Scan(&l.Rev, &l.CreatedAt, &l.UpdatedAt); err != nil {
			if isUniqueViolation(err) {
				return errs.ErrAlreadyExists
			}
			return err
		}
		const mem = `INSERT INTO list_members (list_id, user_id, role) VALUES ($1, $2, $3)`
		_, err := tx.Exec(ctx, mem, l.ID, l.OwnerID, string(model.RoleOwner))
		return err
	})
}

// Get selects a list by ID.
func (r *ListRepo) Get(ctx context.Context, id uuid.UUID) (*model.List, error) {
	const q = `SELECT ` + listCols + ` FROM lists WHERE id=$1`
	return scanList(r.db.Pool.QueryRow(ctx, q, id))
}

// ListForUser returns lists the user belongs to, newest first.
func (r *ListRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]model.List, error) {
	const q = `
SELECT l.id, l.owner_id, l.name, l.rev, l.created_at, l.updated_at
FROM lists l
JOIN list_members m ON m.list_id = l.id
WHERE m.user_id=$1
ORDER BY l.created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.List{}
	for rows.Next() {
		var l model.List
		if err = rows.Scan(&l.ID, &l.OwnerID, &l.Name, &l.Rev, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Rename updates the display name.
func (r *ListRepo) Rename(ctx context.Context, id uuid.UUID, name string) (*model.List, error) {
	const q = `UPDATE lists SET name=$2, updated_at=now() WHERE id=$1 RETURNING ` + listCols
	return scanList(r.db.Pool.QueryRow(ctx, q, id, name))
}

// Delete removes the list; items and members go with it via ON DELETE CASCADE.
func (r *ListRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM lists WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
