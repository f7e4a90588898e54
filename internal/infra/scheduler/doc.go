// Package scheduler provides the shared timer facility used by the session
// aggregator (closing timers and the expiry sweep), the peer link (retry
// timers) and the peer-link server (heartbeat).
//
// Production code uses New, which runs tasks on runtime timers. Tests use
// Manual, which only fires tasks when its clock is advanced.
package scheduler
