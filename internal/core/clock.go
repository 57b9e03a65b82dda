package core

import (
	"sync/atomic"
	"time"
)

// Clock is the engine's only source of time, in unix seconds. The engine
// reads it once per command and records the value in the envelope.
type Clock interface {
	Now() int64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() int64 { return time.Now().Unix() }

// ManualClock is a settable clock for tests and replays.
type ManualClock struct {
	now atomic.Int64
}

func NewManualClock(now int64) *ManualClock {
	c := &ManualClock{}
	c.now.Store(now)
	return c
}

func (c *ManualClock) Now() int64 { return c.now.Load() }

func (c *ManualClock) Set(now int64) { c.now.Store(now) }

func (c *ManualClock) Advance(seconds int64) { c.now.Add(seconds) }
