package registry

import (
	"sync/atomic"
	"time"
)

// ManualClock is a logical clock advanced explicitly by its host, such as
// a block height fed in by a ledger runtime or a test.
type ManualClock struct {
	height atomic.Uint64
}

// NewManualClock creates a clock starting at height.
func NewManualClock(height uint64) *ManualClock {
	c := &ManualClock{}
	c.height.Store(height)
	return c
}

// Now returns the current height.
func (c *ManualClock) Now() uint64 {
	return c.height.Load()
}

// Set moves the clock to height. Heights lower than the current one are ignored.
func (c *ManualClock) Set(height uint64) {
	for {
		cur := c.height.Load()
		if height <= cur || c.height.CompareAndSwap(cur, height) {
			return
		}
	}
}

// Advance moves the clock forward by one and returns the new height.
func (c *ManualClock) Advance() uint64 {
	return c.height.Add(1)
}

// UnixClock reports wall-clock seconds since the Unix epoch and never goes
// backwards, even if the system clock does.
type UnixClock struct {
	last atomic.Uint64
	now  func() time.Time
}

// NewUnixClock creates a clock backed by time.Now.
func NewUnixClock() *UnixClock {
	return &UnixClock{now: time.Now}
}

// Now returns the current Unix time in seconds.
func (c *UnixClock) Now() uint64 {
	ts := uint64(c.now().Unix())
	for {
		last := c.last.Load()
		if ts <= last {
			return last
		}
		if c.last.CompareAndSwap(last, ts) {
			return ts
		}
	}
}
