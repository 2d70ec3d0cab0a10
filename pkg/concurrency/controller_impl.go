package concurrency

import (
	"sync/atomic"
	"time"
)

// atomicController implements Controller with two atomic flags.
// Atomics are the only shared state, so a single instance can be handed to
// any number of worker goroutines without extra locking.
type atomicController struct {
	paused        atomic.Bool
	exitRequested atomic.Bool
	pollInterval  time.Duration
}

// NewController creates a controller with both flags cleared.
func NewController() Controller {
	return &atomicController{pollInterval: DefaultPollInterval}
}

func (c *atomicController) Pause() {
	c.paused.Store(true)
}

func (c *atomicController) Resume() {
	c.paused.Store(false)
}

func (c *atomicController) IsPaused() bool {
	return c.paused.Load()
}

// CheckPause polls rather than waiting on a single event: RequestExit
// issued while paused must also unblock the worker, and polling keeps the
// two flags independent.
func (c *atomicController) CheckPause() {
	for c.paused.Load() && !c.exitRequested.Load() {
		time.Sleep(c.pollInterval)
	}
}

func (c *atomicController) RequestExit() {
	c.exitRequested.Store(true)
}

func (c *atomicController) IsExitRequested() bool {
	return c.exitRequested.Load()
}

func (c *atomicController) Reset() {
	c.paused.Store(false)
	c.exitRequested.Store(false)
}
