// Package app assembles a wsmesh node: storage, authentication, the client
// and peer hubs, the room broker, the session aggregator, peer links,
// cluster discovery and the HTTP listener.
//
// Session logins and logouts are relayed to every linked node and
// published in the presence room; notifications arriving over a peer link
// are delivered to the addressed user's private room.
package app
