// Command wsmesh-server runs a wsmesh node and manages its user store.
//
// A node accepts browser WebSocket connections, authenticates them from a
// signed query string, routes room traffic between them and links to
// other nodes to relay presence and notifications.
package main
