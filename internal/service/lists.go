package service

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/grocerly/internal/model"
	"github.com/and161185/grocerly/internal/repository"
	"github.com/and161185/grocerly/internal/sanitize"
)

// ListService defines list lifecycle operations.
type ListService interface {
	// List returns lists the caller belongs to.
	List(ctx context.Context, userID uuid.UUID) ([]model.List, error)
	// Create makes a new list owned by the caller.
	Create(ctx context.Context, userID uuid.UUID, name string) (*model.List, error)
	// Get returns a list the caller can read.
	Get(ctx context.Context, userID, listID uuid.UUID) (*model.List, error)
	// Rename changes a list name (owner only).
	Rename(ctx context.Context, userID, listID uuid.UUID, name string) (*model.List, error)
	// Delete removes a list with its items (owner only).
	Delete(ctx context.Context, userID, listID uuid.UUID) error
}

type ListServiceImpl struct {
	repo repository.ListRepository
	acl  access
}

// NewListService constructs ListService.
func NewListService(repo repository.ListRepository, members repository.MemberRepository) *ListServiceImpl {
	return &ListServiceImpl{repo: repo, acl: access{members: members}}
}

func (s *ListServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]model.List, error) {
	if userID == uuid.Nil {
		return nil, invalid("empty userID")
	}
	return s.repo.ListForUser(ctx, userID)
}

func (s *ListServiceImpl) Create(ctx context.Context, userID uuid.UUID, name string) (*model.List, error) {
	if userID == uuid.Nil {
		return nil, invalid("empty userID")
	}
	clean, err := sanitize.Name("name", name, maxNameLen)
	if err != nil {
		return nil, err
	}
	l := &model.List{ID: uuid.Must(uuid.NewV4()), OwnerID: userID, Name: clean}
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *ListServiceImpl) Get(ctx context.Context, userID, listID uuid.UUID) (*model.List, error) {
	if _, err := s.acl.require(ctx, userID, listID, model.RoleViewer); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, listID)
}

func (s *ListServiceImpl) Rename(ctx context.Context, userID, listID uuid.UUID, name string) (*model.List, error) {
	clean, err := sanitize.Name("name", name, maxNameLen)
	if err != nil {
		return nil, err
	}
	if _, err := s.acl.require(ctx, userID, listID, model.RoleOwner); err != nil {
		return nil, err
	}
	return s.repo.Rename(ctx, listID, clean)
}

func (s *ListServiceImpl) Delete(ctx context.Context, userID, listID uuid.UUID) error {
	if _, err := s.acl.require(ctx, userID, listID, model.RoleOwner); err != nil {
		return err
	}
	return s.repo.Delete(ctx, listID)
}
