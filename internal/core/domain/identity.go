package domain

import (
	"slices"
	"strings"
)

// User is a persisted account allowed to open authenticated connections.
type User struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	GroupID string `json:"group_id,omitempty"`
	// Roles lists groups the user may assume besides GroupID.
	Roles    []string `json:"roles,omitempty"`
	Admin    bool     `json:"admin,omitempty"`
	Disabled bool     `json:"disabled,omitempty"`
	// Key is the hex-encoded HMAC key shared with the client.
	Key string `json:"key"`
}

// Group is a role carrying authorization flags and tags.
type Group struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Operator bool   `json:"operator,omitempty"`
	Tags     string `json:"tags,omitempty"`
}

// DefaultGroup is used when a user has no group or the group is missing.
var DefaultGroup = Group{ID: "DEFAULT", Name: "No group"}

// MayAssume reports whether the user may act in the given role.
func (u *User) MayAssume(groupID string) bool {
	if groupID == "" || groupID == u.GroupID || u.Admin {
		return true
	}
	return slices.Contains(u.Roles, groupID)
}

// Identity is the authorization context bound to an authenticated
// connection. It is immutable once attached.
type Identity struct {
	UserID   string   `json:"userid"`
	GroupID  string   `json:"groupid"`
	Name     string   `json:"name,omitempty"`
	Operator bool     `json:"operator"`
	Admin    bool     `json:"admin"`
	Tags     string   `json:"tags,omitempty"`
	Services []string `json:"services,omitempty"`
}

// NewIdentity derives an Identity from a user acting in group g.
// A nil g means the DefaultGroup.
func NewIdentity(u *User, g *Group, services []string) *Identity {
	if g == nil {
		g = &DefaultGroup
	}
	return &Identity{
		UserID:   u.ID,
		GroupID:  g.ID,
		Name:     u.Name,
		Operator: g.Operator,
		Admin:    u.Admin,
		Tags:     g.Tags,
		Services: slices.Clone(services),
	}
}

// ValidateID checks a user, group or node identifier. Identifiers end up
// inside the ';', '&', ',' and space separated wire formats, so those
// characters are not allowed.
func ValidateID(id string) error {
	if id == "" {
		return ErrInvalidArgument.WithDetails("empty id")
	}
	if len(id) > 128 {
		return ErrInvalidArgument.WithDetails("id too long")
	}
	if strings.ContainsAny(id, ";&, \t\r\n") {
		return ErrInvalidArgument.WithDetails("id contains a separator character")
	}
	return nil
}
