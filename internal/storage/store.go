package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/yndnr/wsmesh-go/internal/core/domain"
)

const (
	userPrefix  = "user/"
	groupPrefix = "group/"
)

// Store keeps users and groups as JSON records in an Engine.
type Store struct {
	engine *Engine
}

var (
	_ domain.UserStore  = (*Store)(nil)
	_ domain.GroupStore = (*Store)(nil)
)

// NewStore creates a store on top of engine.
func NewStore(engine *Engine) *Store {
	return &Store{engine: engine}
}

// GetUser returns the user with the given id.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	if err := s.get(ctx, userPrefix+id, &u); err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, domain.ErrUserNotFound.WithDetails(id)
		}
		return nil, err
	}
	return &u, nil
}

// PutUser creates or replaces a user.
func (s *Store) PutUser(ctx context.Context, u *domain.User) error {
	if err := domain.ValidateID(u.ID); err != nil {
		return err
	}
	return s.put(ctx, userPrefix+u.ID, u)
}

// DeleteUser removes a user. Unknown ids yield ErrUserNotFound.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if _, err := s.GetUser(ctx, id); err != nil {
		return err
	}
	if err := s.engine.Delete(ctx, []byte(userPrefix+id)); err != nil {
		return domain.ErrStorage.WithCause(err)
	}
	return nil
}

// ListUsers returns all users ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	var users []*domain.User
	err := scan(ctx, s.engine, userPrefix, func(u *domain.User) { users = append(users, u) })
	return users, err
}

// GetGroup returns the group with the given id.
func (s *Store) GetGroup(ctx context.Context, id string) (*domain.Group, error) {
	var g domain.Group
	if err := s.get(ctx, groupPrefix+id, &g); err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, domain.ErrGroupNotFound.WithDetails(id)
		}
		return nil, err
	}
	return &g, nil
}

// PutGroup creates or replaces a group.
func (s *Store) PutGroup(ctx context.Context, g *domain.Group) error {
	if err := domain.ValidateID(g.ID); err != nil {
		return err
	}
	return s.put(ctx, groupPrefix+g.ID, g)
}

// ListGroups returns all groups ordered by id.
func (s *Store) ListGroups(ctx context.Context) ([]*domain.Group, error) {
	var groups []*domain.Group
	err := scan(ctx, s.engine, groupPrefix, func(g *domain.Group) { groups = append(groups, g) })
	return groups, err
}

func (s *Store) get(ctx context.Context, key string, v any) error {
	data, err := s.engine.Get(ctx, []byte(key))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return err
		}
		return domain.ErrStorage.WithCause(err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return domain.ErrStorage.WithDetails("decode " + key).WithCause(err)
	}
	return nil
}

func (s *Store) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return domain.ErrStorage.WithDetails("encode " + key).WithCause(err)
	}
	if err := s.engine.Set(ctx, []byte(key), data); err != nil {
		return domain.ErrStorage.WithCause(err)
	}
	return nil
}

func scan[T any](ctx context.Context, e *Engine, prefix string, add func(*T)) error {
	var decodeErr error
	err := e.Scan(ctx, []byte(prefix), func(key, value []byte) bool {
		v := new(T)
		if err := json.Unmarshal(value, v); err != nil {
			decodeErr = domain.ErrStorage.WithDetails("decode " + strings.Clone(string(key))).WithCause(err)
			return false
		}
		add(v)
		return true
	})
	if err != nil {
		return domain.ErrStorage.WithCause(err)
	}
	return decodeErr
}
