package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/yndnr/wsmesh-go/internal/core/domain"
)

func TestStore_Users(t *testing.T) {
	s := NewStore(openMemEngine(t))
	ctx := context.Background()

	alice := &domain.User{ID: "alice", Name: "Alice", GroupID: "ops", Roles: []string{"admins"}, Key: "00ff"}
	bob := &domain.User{ID: "bob", Key: "abcd"}

	for _, u := range []*domain.User{bob, alice} {
		if err := s.PutUser(ctx, u); err != nil {
			t.Fatalf("PutUser(%s) error = %v", u.ID, err)
		}
	}

	got, err := s.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if got.Name != "Alice" || got.GroupID != "ops" || got.Key != "00ff" || len(got.Roles) != 1 {
		t.Errorf("GetUser() = %+v", got)
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 2 || users[0].ID != "alice" || users[1].ID != "bob" {
		t.Errorf("ListUsers() = %v", users)
	}

	if err := s.DeleteUser(ctx, "bob"); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	if _, err := s.GetUser(ctx, "bob"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("GetUser(deleted) error = %v, want ErrUserNotFound", err)
	}
	if err := s.DeleteUser(ctx, "bob"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("DeleteUser(missing) error = %v, want ErrUserNotFound", err)
	}
}

func TestStore_InvalidID(t *testing.T) {
	s := NewStore(openMemEngine(t))
	err := s.PutUser(context.Background(), &domain.User{ID: "a;b"})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("PutUser(a;b) error = %v, want ErrInvalidArgument", err)
	}
}

func TestStore_Groups(t *testing.T) {
	s := NewStore(openMemEngine(t))
	ctx := context.Background()

	if err := s.PutGroup(ctx, &domain.Group{ID: "ops", Operator: true, Tags: "radio"}); err != nil {
		t.Fatalf("PutGroup() error = %v", err)
	}
	g, err := s.GetGroup(ctx, "ops")
	if err != nil {
		t.Fatalf("GetGroup() error = %v", err)
	}
	if !g.Operator || g.Tags != "radio" {
		t.Errorf("GetGroup() = %+v", g)
	}
	if _, err := s.GetGroup(ctx, "nope"); !errors.Is(err, domain.ErrGroupNotFound) {
		t.Errorf("GetGroup(missing) error = %v", err)
	}

	groups, err := s.ListGroups(ctx)
	if err != nil || len(groups) != 1 {
		t.Errorf("ListGroups() = %v, %v", groups, err)
	}
}
