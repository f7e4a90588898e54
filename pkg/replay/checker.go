package replay

import "sync"

// Checker remembers recently seen tokens using two rotating filters.
type Checker struct {
	mu        sync.Mutex
	capacity  int
	primary   *Filter
	secondary *Filter
	rotations int
}

// NewChecker creates a checker remembering roughly capacity tokens. Each of
// the two filters holds capacity/2+1 items.
func NewChecker(capacity int) *Checker {
	if capacity < 0 {
		capacity = 0
	}
	return &Checker{
		capacity: capacity,
		primary:  NewFilter(capacity/2 + 1),
	}
}

// Add records token.
func (c *Checker) Add(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.add(token)
}

func (c *Checker) add(token string) {
	if c.primary.Insert(token) {
		return
	}
	c.secondary = c.primary
	c.primary = NewFilter(c.capacity/2 + 1)
	c.rotations++
	c.primary.Insert(token)
}

// Contains reports whether token was (probably) added before.
func (c *Checker) Contains(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contains(token)
}

func (c *Checker) contains(token string) bool {
	return c.primary.Contains(token) || (c.secondary != nil && c.secondary.Contains(token))
}

// CheckAndAdd records token and reports whether it was fresh. A false
// result means the token was seen before and must be rejected.
func (c *Checker) CheckAndAdd(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.contains(token) {
		return false
	}
	c.add(token)
	return true
}

// Rotations returns how many times the primary filter has been retired.
func (c *Checker) Rotations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rotations
}
