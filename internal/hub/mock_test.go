package hub

import (
	"context"
	"errors"
	"sync"

	"github.com/yndnr/wsmesh-go/internal/core/domain"
)

type fakeTransport struct {
	mu     sync.Mutex
	sent   []string
	closed int
	fail   error
}

func (f *fakeTransport) Send(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeTransport) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeTransport) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeAuth accepts "<user>;n;sig" for the listed users.
type fakeAuth struct {
	users map[string]*domain.Identity
}

func (a fakeAuth) Authenticate(_ context.Context, query string) (*domain.Identity, error) {
	for q, id := range a.users {
		if q == query {
			return id, nil
		}
	}
	return nil, errors.New("bad credentials")
}

func newFakeAuth() fakeAuth {
	return fakeAuth{users: map[string]*domain.Identity{
		"alice;n;sig": {UserID: "alice"},
		"bob;n;sig":   {UserID: "bob", Operator: true},
	}}
}
