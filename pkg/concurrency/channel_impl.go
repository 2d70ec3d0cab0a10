package concurrency

import (
	"sync"
	"time"
)

// boundedChannel implements Channel on top of a buffered Go channel, which
// already provides the FIFO and capacity invariants.
type boundedChannel struct {
	ch       chan any
	capacity int
}

func newBoundedChannel(capacity int) *boundedChannel {
	return &boundedChannel{
		ch:       make(chan any, capacity),
		capacity: capacity,
	}
}

func (c *boundedChannel) Put(msg any, block bool, timeout time.Duration) error {
	if !block {
		select {
		case c.ch <- msg:
			return nil
		default:
			return ErrChannelFull
		}
	}
	if timeout <= 0 {
		c.ch <- msg
		return nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case c.ch <- msg:
		return nil
	case <-timer.C:
		return ErrChannelFull
	}
}

func (c *boundedChannel) Get(block bool, timeout time.Duration) (any, error) {
	if !block {
		select {
		case msg := <-c.ch:
			return msg, nil
		default:
			return nil, ErrChannelEmpty
		}
	}
	if timeout <= 0 {
		return <-c.ch, nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg := <-c.ch:
		return msg, nil
	case <-timer.C:
		return nil, ErrChannelEmpty
	}
}

func (c *boundedChannel) TryGet() (any, bool) {
	select {
	case msg := <-c.ch:
		return msg, true
	default:
		return nil, false
	}
}

func (c *boundedChannel) IsEmpty() bool {
	return len(c.ch) == 0
}

func (c *boundedChannel) Len() int {
	return len(c.ch)
}

func (c *boundedChannel) Cap() int {
	return c.capacity
}

func (c *boundedChannel) Drain() int {
	n := 0
	for {
		select {
		case <-c.ch:
			n++
		default:
			return n
		}
	}
}

// unboundedChannel implements Channel for capacity <= 0. Put never blocks;
// Get waits on a wake-up token that is re-armed as long as messages remain,
// so concurrent consumers cannot lose a wakeup.
type unboundedChannel struct {
	mu    sync.Mutex
	items []any
	avail chan struct{}
}

func newUnboundedChannel() *unboundedChannel {
	return &unboundedChannel{
		avail: make(chan struct{}, 1),
	}
}

func (c *unboundedChannel) Put(msg any, _ bool, _ time.Duration) error {
	c.mu.Lock()
	c.items = append(c.items, msg)
	c.mu.Unlock()
	c.signal()
	return nil
}

func (c *unboundedChannel) Get(block bool, timeout time.Duration) (any, error) {
	if msg, ok := c.pop(); ok {
		return msg, nil
	}
	if !block {
		return nil, ErrChannelEmpty
	}
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	for {
		select {
		case <-c.avail:
			if msg, ok := c.pop(); ok {
				return msg, nil
			}
		case <-expired:
			return nil, ErrChannelEmpty
		}
	}
}

func (c *unboundedChannel) TryGet() (any, bool) {
	return c.pop()
}

func (c *unboundedChannel) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) == 0
}

func (c *unboundedChannel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *unboundedChannel) Cap() int {
	return 0
}

func (c *unboundedChannel) Drain() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.items)
	c.items = nil
	return n
}

func (c *unboundedChannel) pop() (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) == 0 {
		return nil, false
	}
	msg := c.items[0]
	c.items[0] = nil
	c.items = c.items[1:]
	if len(c.items) > 0 {
		c.signal()
	}
	return msg, true
}

// signal never blocks, so it is safe to call with or without mu held.
func (c *unboundedChannel) signal() {
	select {
	case c.avail <- struct{}{}:
	default:
	}
}
