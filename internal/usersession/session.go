// Package usersession aggregates the connections of one user into a single
// user session that outlives short disconnects.
//
// The first authenticated connection of a user opens the session and emits
// a login notification. When the last connection closes, a closing timer
// runs for the grace period; a reconnect within the grace period cancels it
// without any notification. When the timer fires, a logout notification is
// emitted and the session waits in the expiring queue for the expiry
// horizon, so application data attached to it survives a later reconnect.
// A periodic sweep removes sessions whose horizon has passed.
package usersession

import (
	"time"

	"github.com/yndnr/wsmesh-go/internal/infra/scheduler"
)

// State is the lifecycle state of a user session.
type State int

const (
	// Absent means no session exists for the user.
	Absent State = iota
	// Active sessions have at least one open connection.
	Active
	// Closing sessions have no connection and a pending closing timer.
	Closing
	// Expiring sessions are queued for removal.
	Expiring
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Closing:
		return "closing"
	case Expiring:
		return "expiring"
	default:
		return "absent"
	}
}

// Session is the per-user aggregate. UserID and Data never change after
// creation; the rest is guarded by the aggregator lock.
type Session struct {
	UserID string
	// Data is the value returned by the factory hook.
	Data any

	count    int
	state    State
	gen      uint64
	closing  scheduler.Task
	deadline time.Time
}

// expiry is one entry of the expiring queue. It is stale when the session
// generation has moved on.
type expiry struct {
	s        *Session
	gen      uint64
	deadline time.Time
}
