package mav

import (
	"sync"
	"sync/atomic"
)

// loopbackEnd is one side of an in-memory link pair. Used by unit tests and
// by the drone simulator's self-test mode.
type loopbackEnd struct {
	in      chan Message
	out     chan Message
	dropped atomic.Uint64
	closed  atomic.Bool
	once    sync.Once
}

// NewLoopback creates a connected pair of in-memory links: whatever one
// side sends, the other receives. buffer bounds each direction; a send
// into a full buffer is dropped and counted on the sending end, matching
// the lossy behavior of a real radio link.
func NewLoopback(buffer int) (Link, Link) {
	if buffer <= 0 {
		buffer = 64
	}
	ab := make(chan Message, buffer)
	ba := make(chan Message, buffer)
	a := &loopbackEnd{in: ba, out: ab}
	b := &loopbackEnd{in: ab, out: ba}
	return a, b
}

func (l *loopbackEnd) Recv() (Message, bool) {
	select {
	case msg := <-l.in:
		return msg, true
	default:
		return nil, false
	}
}

func (l *loopbackEnd) Send(msg Message) error {
	if l.closed.Load() {
		return ErrLinkClosed
	}
	select {
	case l.out <- msg:
	default:
		l.dropped.Add(1)
	}
	return nil
}

func (l *loopbackEnd) Dropped() uint64 {
	return l.dropped.Load()
}

func (l *loopbackEnd) Close() {
	l.once.Do(func() {
		l.closed.Store(true)
	})
}
