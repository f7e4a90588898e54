// Package shutdown coordinates graceful process termination.
//
// Hooks registered with OnShutdown run in reverse registration order once
// SIGINT or SIGTERM arrives or the parent context is cancelled, bounded by
// a single timeout.
//
//	h := shutdown.NewHandler(15 * time.Second)
//	h.OnShutdown("http", srv.Shutdown)
//	err := h.Wait(ctx)
package shutdown
