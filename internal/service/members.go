package service

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/grocerly/internal/model"
	"github.com/and161185/grocerly/internal/repository"
)

// MemberService manages list sharing.
type MemberService interface {
	// List returns the members of a list the caller can read.
	List(ctx context.Context, userID, listID uuid.UUID) ([]model.ListMember, error)
	// Add shares the list with another user (owner only).
	Add(ctx context.Context, userID, listID, memberID uuid.UUID, role model.Role) (*model.ListMember, error)
	// SetRole changes a member's role (owner only).
	SetRole(ctx context.Context, userID, listID, memberID uuid.UUID, role model.Role) error
	// Remove revokes a membership; owners remove anyone, members may leave.
	Remove(ctx context.Context, userID, listID, memberID uuid.UUID) error
}

type MemberServiceImpl struct {
	repo repository.MemberRepository
	acl  access
}

// NewMemberService constructs MemberService.
func NewMemberService(repo repository.MemberRepository) *MemberServiceImpl {
	return &MemberServiceImpl{repo: repo, acl: access{members: repo}}
}

func (s *MemberServiceImpl) List(ctx context.Context, userID, listID uuid.UUID) ([]model.ListMember, error) {
	if _, err := s.acl.require(ctx, userID, listID, model.RoleViewer); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, listID)
}

func (s *MemberServiceImpl) Add(ctx context.Context, userID, listID, memberID uuid.UUID, role model.Role) (*model.ListMember, error) {
	if memberID == uuid.Nil {
		return nil, invalid("empty user_id")
	}
	if !role.Valid() {
		return nil, invalid("unknown role %q", role)
	}
	if _, err := s.acl.require(ctx, userID, listID, model.RoleOwner); err != nil {
		return nil, err
	}
	m := &model.ListMember{ListID: listID, UserID: memberID, Role: role}
	if err := s.repo.Add(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *MemberServiceImpl) SetRole(ctx context.Context, userID, listID, memberID uuid.UUID, role model.Role) error {
	if memberID == uuid.Nil {
		return invalid("empty user_id")
	}
	if !role.Valid() {
		return invalid("unknown role %q", role)
	}
	if _, err := s.acl.require(ctx, userID, listID, model.RoleOwner); err != nil {
		return err
	}
	return s.repo.SetRole(ctx, listID, memberID, role)
}

func (s *MemberServiceImpl) Remove(ctx context.Context, userID, listID, memberID uuid.UUID) error {
	if memberID == uuid.Nil {
		return invalid("empty user_id")
	}
	need := model.RoleOwner
	if memberID == userID {
		need = model.RoleViewer
	}
	if _, err := s.acl.require(ctx, userID, listID, need); err != nil {
		return err
	}
	return s.repo.Remove(ctx, listID, memberID)
}
