// Package tlsroots loads TLS material for the server and its peer links.
//
//   - pool.go: trust pools for dialing wss:// peers
//   - reloader.go: server certificate hot-reload via fsnotify
package tlsroots
