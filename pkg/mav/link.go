package mav

import (
	"errors"
	"time"
)

var (
	// ErrLinkClosed is returned by Send after Close.
	ErrLinkClosed = errors.New("link is closed")

	// ErrNoHeartbeat is returned by WaitHeartbeat when the drone does not
	// announce itself within the wait window.
	ErrNoHeartbeat = errors.New("no heartbeat received from drone")
)

// Link is the bidirectional transport to the drone. Recv is non-blocking by
// contract: worker bodies poll it inside their control loop, so a Link must
// never stall a worker past one poll interval.
type Link interface {
	// Recv returns the next inbound message, or false when none is buffered.
	Recv() (Message, bool)

	// Send transmits a message to the peer.
	Send(msg Message) error

	// Dropped reports how many inbound messages were discarded because the
	// receive buffer was full.
	Dropped() uint64

	// Close tears the link down. Safe to call more than once.
	Close()
}

// linkPollInterval paces the WaitHeartbeat polling loop.
const linkPollInterval = 20 * time.Millisecond

// WaitHeartbeat polls the link until a HEARTBEAT arrives or the timeout
// elapses. Other message kinds received while waiting are discarded; they
// belong to a pipeline that has not started yet.
func WaitHeartbeat(link Link, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		msg, ok := link.Recv()
		if !ok {
			time.Sleep(linkPollInterval)
			continue
		}
		if msg.Kind() == KindHeartbeat {
			return nil
		}
	}
	return ErrNoHeartbeat
}
