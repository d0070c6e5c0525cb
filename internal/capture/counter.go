package capture

import "sync"

// Counter hands out route ids. Ids are pre-incremented, strictly increasing
// and never reused for the lifetime of the counter.
type Counter struct {
	mu   sync.Mutex
	last int64
}

// Next returns the next route id
func (c *Counter) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last++
	return c.last
}

// Seed raises the counter so the next id is above n; it never lowers it
func (c *Counter) Seed(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > c.last {
		c.last = n
	}
}

// Last returns the most recently issued id
func (c *Counter) Last() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
