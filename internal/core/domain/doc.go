// Package domain defines the core types shared by the wsmesh subsystems:
// the authenticated Identity bound to a connection, the persisted User and
// Group records behind it, the room AccessPolicy, user notifications, and
// the collaborator interfaces (authentication, persistence) that the
// connection layer consumes.
//
// The package has no IO dependencies.
package domain
