package concurrency

import (
	"errors"
	"time"
)

var (
	// ErrChannelFull is returned by Put when the channel is at capacity and
	// the call was non-blocking or its timeout elapsed (backpressure).
	ErrChannelFull = errors.New("channel is full")

	// ErrChannelEmpty is returned by Get when no message is available and
	// the call was non-blocking or its timeout elapsed. This is a normal
	// polling signal, not a fault.
	ErrChannelEmpty = errors.New("channel is empty")
)

// Channel is a capacity-limited FIFO queue connecting pipeline stages.
// It preserves per-channel FIFO order; no ordering is implied across
// distinct channels. All operations are safe for concurrent use.
type Channel interface {
	// Put appends msg. With block=false it returns ErrChannelFull
	// immediately when at capacity. With block=true it waits for space up
	// to timeout; timeout <= 0 waits indefinitely.
	Put(msg any, block bool, timeout time.Duration) error

	// Get removes and returns the oldest message. With block=false it
	// returns ErrChannelEmpty immediately when empty. With block=true it
	// waits for a message up to timeout; timeout <= 0 waits indefinitely.
	Get(block bool, timeout time.Duration) (any, error)

	// TryGet is the non-blocking receive used by polling loops.
	TryGet() (any, bool)

	// IsEmpty reports whether the channel currently holds no messages.
	IsEmpty() bool

	// Len returns the current number of queued messages.
	Len() int

	// Cap returns the configured capacity; 0 means unbounded.
	Cap() int

	// Drain removes every queued message and returns how many were
	// discarded. Used during shutdown so no producer stays blocked on a
	// full channel.
	Drain() int
}

// NewChannel creates a channel with the given capacity.
// capacity <= 0 creates an unbounded channel.
func NewChannel(capacity int) Channel {
	if capacity <= 0 {
		return newUnboundedChannel()
	}
	return newBoundedChannel(capacity)
}
