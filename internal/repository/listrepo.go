// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/grocerly/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ListRepository provides access to lists and their memberships.
type ListRepository interface {
	// Create inserts a list and its owner membership atomically.
	Create(ctx context.Context, l *model.List) error
	// Get loads a list by ID.
	Get(ctx context.Context, id uuid.UUID) (*model.List, error)
	// ListForUser returns lists the user is a member of, newest first.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]model.List, error)
	// Rename changes the display name and returns the updated list.
	Rename(ctx context.Context, id uuid.UUID, name string) (*model.List, error)
	// Delete removes a list with its items and members.
	Delete(ctx context.Context, id uuid.UUID) error
}

// MemberRepository manages list sharing.
type MemberRepository interface {
	// Role returns the user's role on a list or errs.ErrNotFound.
	Role(ctx context.Context, listID, userID uuid.UUID) (model.Role, error)
	// List returns all members of a list ordered by creation.
	List(ctx context.Context, listID uuid.UUID) ([]model.ListMember, error)
	// Add inserts a membership; errs.ErrAlreadyExists on duplicates.
	Add(ctx context.Context, m *model.ListMember) error
	// SetRole changes the role of an existing member.
	// Demoting the only owner fails with errs.ErrLastOwner.
	SetRole(ctx context.Context, listID, userID uuid.UUID, role model.Role) error
	// Remove deletes a membership. Removing the only owner fails with errs.ErrLastOwner.
	Remove(ctx context.Context, listID, userID uuid.UUID) error
}
