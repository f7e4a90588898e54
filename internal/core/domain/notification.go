package domain

import "time"

// Notification is a short message delivered to a user's private room.
type Notification struct {
	Type string    `json:"type"`
	From string    `json:"from"`
	Text string    `json:"text"`
	Time time.Time `json:"time"`
	// TTL is how long, in minutes, a client should keep showing it.
	TTL int `json:"ttl"`
}

// NewNotification creates a notification stamped with now.
func NewNotification(typ, from, text string, ttl int, now time.Time) Notification {
	return Notification{Type: typ, From: from, Text: text, Time: now.UTC(), TTL: ttl}
}
