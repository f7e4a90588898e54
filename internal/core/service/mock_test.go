package service

import (
	"context"
	"sort"
	"sync"

	"github.com/yndnr/wsmesh-go/internal/core/domain"
)

// mockStore is an in-memory UserStore and GroupStore.
type mockStore struct {
	mu     sync.Mutex
	users  map[string]*domain.User
	groups map[string]*domain.Group
}

func newMockStore() *mockStore {
	return &mockStore{
		users:  make(map[string]*domain.User),
		groups: make(map[string]*domain.Group),
	}
}

func (m *mockStore) GetUser(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (m *mockStore) PutUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *mockStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

func (m *mockStore) ListUsers(_ context.Context) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.User
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) GetGroup(_ context.Context, id string) (*domain.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, domain.ErrGroupNotFound
	}
	return g, nil
}

func (m *mockStore) PutGroup(_ context.Context, g *domain.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[g.ID] = g
	return nil
}

func (m *mockStore) ListGroups(_ context.Context) ([]*domain.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Group
	for _, g := range m.groups {
		out = append(out, g)
	}
	return out, nil
}
