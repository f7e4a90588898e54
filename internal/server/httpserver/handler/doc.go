// Package handler implements the JSON endpoints of the wsmesh server:
// /health, /ready and /stats.
package handler
