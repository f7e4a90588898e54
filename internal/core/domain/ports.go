package domain

import "context"

// Authenticator turns the authentication part of a connection query string
// ("userid;nonce;signature[;role]") into an Identity.
type Authenticator interface {
	Authenticate(ctx context.Context, query string) (*Identity, error)
}

// Verifier checks a signed nonce for a user. scope is the data covered by
// the signature in addition to the nonce; the connection layer uses "".
type Verifier interface {
	Verify(ctx context.Context, userID, nonce, signature, scope string) (*User, error)
}

// RoleResolver picks the group a user acts in. An empty or not permitted
// roleName yields the user's own group.
type RoleResolver interface {
	ResolveRole(ctx context.Context, u *User, roleName string) (*Group, error)
}

// UserStore persists users.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*User, error)
	PutUser(ctx context.Context, u *User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]*User, error)
}

// GroupStore persists groups.
type GroupStore interface {
	GetGroup(ctx context.Context, id string) (*Group, error)
	PutGroup(ctx context.Context, g *Group) error
	ListGroups(ctx context.Context) ([]*Group, error)
}
