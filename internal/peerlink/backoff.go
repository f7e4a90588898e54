package peerlink

import "time"

// backoff produces the retry delays of a Client: min, doubling on every
// attempt, capped at max.
type backoff struct {
	min, max time.Duration
	cur      time.Duration
}

func (b *backoff) Next() time.Duration {
	if b.cur == 0 {
		b.cur = b.min
	} else {
		b.cur *= 2
	}
	if b.cur >= b.max {
		b.cur = b.max
	}
	return b.cur
}

// Set makes d the current delay; the next failure doubles it.
func (b *backoff) Set(d time.Duration) { b.cur = d }

func (b *backoff) Reset() { b.cur = 0 }
