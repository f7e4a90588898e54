package peerlink

import (
	"encoding/json"
	"time"

	"github.com/yndnr/wsmesh-go/internal/core/domain"
)

// Event kinds relayed between nodes.
const (
	EventLogin  = "login"
	EventLogout = "logout"
	EventNotify = "notify"
)

// Event is the payload nodes exchange over peer links.
type Event struct {
	Kind   string    `json:"kind"`
	Node   string    `json:"node"`
	UserID string    `json:"user_id,omitempty"`
	Time   time.Time `json:"time"`
	// Notification is set for EventNotify.
	Notification *domain.Notification `json:"notification,omitempty"`
}

// DecodeEvent parses a relayed payload.
func DecodeEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, domain.ErrInvalidArgument.WithDetails("peer event").WithCause(err)
	}
	if ev.Kind == "" {
		return Event{}, domain.ErrInvalidArgument.WithDetails("peer event without kind")
	}
	return ev, nil
}
