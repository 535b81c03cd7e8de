// Package service holds the use-case layer: validation, role checks, and repository orchestration.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/grocerly/internal/errs"
	"github.com/and161185/grocerly/internal/model"
	"github.com/and161185/grocerly/internal/repository"
)

const (
	maxNameLen     = 100
	maxCategoryLen = 50
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errs.ErrValidation}, args...)...)
}

// access resolves the caller's role on a list and enforces a minimum.
// Non-members get errs.ErrNotFound so list existence is not disclosed.
type access struct {
	members repository.MemberRepository
}

func (a access) require(ctx context.Context, userID, listID uuid.UUID, need model.Role) (model.Role, error) {
	if userID == uuid.Nil {
		return "", errs.ErrUnauthorized
	}
	if listID == uuid.Nil {
		return "", invalid("empty list id")
	}
	role, err := a.members.Role(ctx, listID, userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return "", errs.ErrNotFound
		}
		return "", err
	}
	if !role.AtLeast(need) {
		return role, fmt.Errorf("%s role required: %w", need, errs.ErrForbidden)
	}
	return role, nil
}
