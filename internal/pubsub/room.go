package pubsub

import (
	"github.com/yndnr/wsmesh-go/internal/core/domain"
	"github.com/yndnr/wsmesh-go/internal/hub"
)

// Room is a broadcast channel.
type Room struct {
	name    string
	policy  domain.AccessPolicy
	kind    string
	owner   string
	members map[string]*hub.Conn
}

func newRoom(name string, policy domain.AccessPolicy, kind, owner string) *Room {
	return &Room{
		name:    name,
		policy:  policy,
		kind:    kind,
		owner:   owner,
		members: make(map[string]*hub.Conn),
	}
}

// authorized evaluates the room policy for c.
func (r *Room) authorized(c *hub.Conn) bool {
	if r.owner != "" && c.UserID() != r.owner {
		return false
	}
	return r.policy.AllowsSubscribe(c.Identity())
}

// RoomInfo describes a room.
type RoomInfo struct {
	Name    string              `json:"name"`
	Kind    string              `json:"kind,omitempty"`
	Owner   string              `json:"owner,omitempty"`
	Policy  domain.AccessPolicy `json:"policy"`
	Members int                 `json:"members"`
}

func (r *Room) info() RoomInfo {
	return RoomInfo{Name: r.name, Kind: r.kind, Owner: r.owner, Policy: r.policy, Members: len(r.members)}
}
