// Package peerlink connects server nodes to each other over WebSocket.
//
// A Client dials a remote node's peer endpoint, authenticating with a
// signed node credential in the query string, and keeps the link up with
// exponential backoff. A Server is the receiving side; it accepts the
// links of other nodes through a hub.Hub. Both sides speak a space
// separated text protocol:
//
//	SUBSCRIBE <node>    (alias SUB)
//	UNSUBSCRIBE <node>  (alias UNSUB)
//	POST <payload>      (alias MSG on the server)
//	PING
//
// Payloads are usually JSON encoded Event values.
package peerlink
