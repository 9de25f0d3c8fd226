package chain

import (
	"sync"
	"time"
)

// Clock reports the block height and unix timestamp a ledger call executes
// at.
type Clock interface {
	Now() (height uint64, timestamp uint64)
}

// SystemClock derives the height from wall time: one block every interval
// since genesis.
type SystemClock struct {
	genesis  time.Time
	interval time.Duration
	now      func() time.Time
}

// NewSystemClock returns a clock anchored at genesis. A non-positive interval
// falls back to one second.
func NewSystemClock(genesis time.Time, interval time.Duration) *SystemClock {
	if interval <= 0 {
		interval = time.Second
	}
	return &SystemClock{genesis: genesis, interval: interval, now: time.Now}
}

// Now implements Clock.
func (c *SystemClock) Now() (uint64, uint64) {
	current := c.now()
	if current.Before(c.genesis) {
		return 0, uint64(c.genesis.Unix())
	}
	height := uint64(current.Sub(c.genesis) / c.interval)
	return height, uint64(current.Unix())
}

// ManualClock is advanced explicitly. Tests and replay tooling use it.
type ManualClock struct {
	mu        sync.Mutex
	height    uint64
	timestamp uint64
}

// NewManualClock starts at the supplied height and timestamp.
func NewManualClock(height, timestamp uint64) *ManualClock {
	return &ManualClock{height: height, timestamp: timestamp}
}

// Now implements Clock.
func (c *ManualClock) Now() (uint64, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height, c.timestamp
}

// Set moves the clock to an absolute position.
func (c *ManualClock) Set(height, timestamp uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height = height
	c.timestamp = timestamp
}

// Advance moves the clock forward by blocks and seconds.
func (c *ManualClock) Advance(blocks, seconds uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height += blocks
	c.timestamp += seconds
}
