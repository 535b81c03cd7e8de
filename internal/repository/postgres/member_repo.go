package postgres

import (
	"context"
	"errors"

	"github.com/and161185/grocerly/internal/errs"
	"github.com/and161185/grocerly/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// MemberRepo implements MemberRepository using PostgreSQL.
type MemberRepo struct{ db *DB }

// NewMemberRepo constructs a membership repository.
func NewMemberRepo(db *DB) *MemberRepo { return &MemberRepo{db: db} }

// Role returns the caller's role on a list.
func (r *MemberRepo) Role(ctx context.Context, listID, userID uuid.UUID) (model.Role, error) {
	const q = `SELECT role FROM list_members WHERE list_id=$1 AND user_id=$2`
	var role string
	if err := r.db.Pool.QueryRow(ctx, q, listID, userID).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errs.ErrNotFound
		}
		return "", err
	}
	return model.Role(role), nil
}

// List returns members in join order.
func (r *MemberRepo) List(ctx context.Context, listID uuid.UUID) ([]model.ListMember, error) {
	const q = `
SELECT list_id, user_id, role, created_at
FROM list_members
WHERE list_id=$1
ORDER BY created_at ASC`
	rows, err := r.db.Pool.Query(ctx, q, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ListMember{}
	for rows.Next() {
		var (
			m    model.ListMember
			role string
		)
		if err = rows.Scan(&m.ListID, &m.UserID, &role, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = model.Role(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Add inserts a membership row.
func (r *MemberRepo) Add(ctx context.Context, m *model.ListMember) error {
	const q = `
INSERT INTO list_members (list_id, user_id, role)
VALUES ($1, $2, $3)
RETURNING created_at`
	err := r.db.Pool.QueryRow(ctx, q, m.ListID, m.UserID, string(m.Role)).Scan(&m.CreatedAt)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return errs.ErrAlreadyExists
	case isForeignKeyViolation(err):
		return errs.ErrNotFound
	default:
		return err
	}
}

// SetRole updates an existing member's role.
func (r *MemberRepo) SetRole(ctx context.Context, listID, userID uuid.UUID, role model.Role) error {
	const q = `UPDATE list_members SET role=$3 WHERE list_id=$1 AND user_id=$2`
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		if role != model.RoleOwner {
			if err := keepOwner(ctx, tx, listID, userID); err != nil {
				return err
			}
		}
		tag, err := tx.Exec(ctx, q, listID, userID, string(role))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errs.ErrNotFound
		}
		return nil
	})
}

// Remove deletes a membership row.
func (r *MemberRepo) Remove(ctx context.Context, listID, userID uuid.UUID) error {
	const q = `DELETE FROM list_members WHERE list_id=$1 AND user_id=$2`
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		if err := keepOwner(ctx, tx, listID, userID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, q, listID, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errs.ErrNotFound
		}
		return nil
	})
}

// keepOwner locks the owner rows of a list until the tx ends and fails when
// userID is the only one. Concurrent demotions serialise on these locks.
func keepOwner(ctx context.Context, tx pgx.Tx, listID, userID uuid.UUID) error {
	const q = `SELECT user_id FROM list_members WHERE list_id=$1 AND role='owner' FOR UPDATE`
	rows, err := tx.Query(ctx, q, listID)
	if err != nil {
		return err
	}
	defer rows.Close()

	var owners []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return err
		}
		owners = append(owners, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(owners) == 1 && owners[0] == userID {
		return errs.ErrLastOwner
	}
	return nil
}
