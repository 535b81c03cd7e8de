package service

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/grocerly/internal/errs"
	"github.com/and161185/grocerly/internal/model"
)

func TestMemberService_Add(t *testing.T) {
	ctx := context.Background()
	repo := newFakeMembers()
	s := NewMemberService(repo)
	list, owner, friend := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	repo.grant(list, owner, model.RoleOwner)

	if _, err := s.Add(ctx, owner, list, friend, "admin"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("unknown role: want validation, got %v", err)
	}
	if _, err := s.Add(ctx, owner, list, uuid.Nil, model.RoleEditor); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("nil member: want validation, got %v", err)
	}
	m, err := s.Add(ctx, owner, list, friend, model.RoleEditor)
	if err != nil || m.Role != model.RoleEditor {
		t.Fatalf("Add: %+v %v", m, err)
	}
	if _, err := s.Add(ctx, owner, list, friend, model.RoleViewer); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("duplicate: want already exists, got %v", err)
	}
	if _, err := s.Add(ctx, friend, list, uuid.Must(uuid.NewV4()), model.RoleViewer); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("editor sharing: want forbidden, got %v", err)
	}
}

func TestMemberService_LastOwnerProtected(t *testing.T) {
	ctx := context.Background()
	repo := newFakeMembers()
	s := NewMemberService(repo)
	list, owner := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	repo.grant(list, owner, model.RoleOwner)

	if err := s.SetRole(ctx, owner, list, owner, model.RoleViewer); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("demote last owner: want forbidden, got %v", err)
	}
	if err := s.Remove(ctx, owner, list, owner); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("remove last owner: want forbidden, got %v", err)
	}

	second := uuid.Must(uuid.NewV4())
	repo.grant(list, second, model.RoleOwner)
	if err := s.SetRole(ctx, owner, list, second, model.RoleEditor); err != nil {
		t.Fatalf("demote one of two owners: %v", err)
	}
	if repo.roles[memberKey{list, second}] != model.RoleEditor {
		t.Fatalf("role not updated")
	}
}

func TestMemberService_Remove(t *testing.T) {
	ctx := context.Background()
	repo := newFakeMembers()
	s := NewMemberService(repo)
	list := uuid.Must(uuid.NewV4())
	owner, viewer, other := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	repo.grant(list, owner, model.RoleOwner)
	repo.grant(list, viewer, model.RoleViewer)
	repo.grant(list, other, model.RoleEditor)

	if err := s.Remove(ctx, viewer, list, other); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("viewer removing someone else: want forbidden, got %v", err)
	}
	if err := s.Remove(ctx, viewer, list, viewer); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := s.Remove(ctx, owner, list, other); err != nil {
		t.Fatalf("owner remove: %v", err)
	}
	members, err := s.List(ctx, owner, list)
	if err != nil || len(members) != 1 {
		t.Fatalf("want only owner left: %v %v", members, err)
	}
	if _, err := s.List(ctx, viewer, list); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("former member: want not found, got %v", err)
	}
}
