// Package httpserver serves the wsmesh HTTP surface.
//
// One listener carries the client WebSocket endpoint, the peer-link
// endpoint, the Prometheus endpoint and the JSON health and statistics
// endpoints. WebSocket routes are wrapped only with RequestID and Recover;
// the JSON routes also get the access log.
package httpserver
