// Package storage persists users and groups in an embedded Badger
// database.
//
// Engine is a thin key-value layer over Badger (get, set, delete, prefix
// scan, value log GC and Prometheus size gauges). Store builds the
// domain.UserStore and domain.GroupStore on top of it, keeping JSON
// records under "user/<id>" and "group/<id>".
package storage
