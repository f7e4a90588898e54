// Package replay detects reuse of one-time tokens such as authentication
// nonces.
//
// A Checker keeps two cuckoo filters. New tokens go into the primary; when
// the primary is full it becomes the secondary (dropping the previous
// secondary) and a fresh primary takes the token. Lookups consult both, so
// a token is reported as seen until it has aged out through two rotations.
// Cuckoo filters have no false negatives but a small false positive rate:
// a fresh token may occasionally be reported as a replay.
package replay
