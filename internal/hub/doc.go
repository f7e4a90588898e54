// Package hub is the connection registry.
//
// A Hub accepts duplex connections, checks their origin, authenticates them
// from the query string ("[_MOBILE_&]userid;nonce;signature[;role]"), asks a
// subscribe hook whether to keep them, and tracks them until they close.
// Inbound frames are dispatched to a per-connection FrameHandler owned by
// the subsystem that serves the endpoint (the room broker for clients, the
// peer-link server for sibling nodes). Open and close callbacks let other
// subsystems, such as the session aggregator, follow the connection
// lifecycle.
//
// The transport is abstract; websocket.go provides the gorilla/websocket
// implementation mounted by the HTTP server.
package hub
