// Package pubsub is the room broker.
//
// Rooms are named broadcast channels created on the server side, each with
// an AccessPolicy checked when a connection subscribes. A user room admits
// only connections of its owner; every authenticated connection gets one
// named "notify:<userid>" for notifications.
//
// Clients speak a comma separated text protocol:
//
//	SUBSCRIBE,<room>
//	UNSUBSCRIBE,<room>
//	PUT,<room>,<message>
//
// Messages are delivered as "<room>,<payload>". Unknown verbs are ignored;
// malformed commands are logged and ignored.
package pubsub
