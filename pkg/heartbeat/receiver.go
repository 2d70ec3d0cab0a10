package heartbeat

import (
	"log/slog"
	"time"

	"github.com/groundlink-io/groundlink/pkg/mav"
)

// Status is the connection state reported on the receiver's output channel
// once per period.
type Status string

const (
	StatusConnected    Status = "Connected"
	StatusDisconnected Status = "Disconnected"
)

// MaxMissed is the number of silent periods after which the drone is
// declared disconnected.
const MaxMissed = 3

// Receiver tracks drone liveness from the heartbeat downlink.
type Receiver struct {
	link   mav.Link
	period time.Duration
	log    *slog.Logger

	lastBeat time.Time
	missed   int
	status   Status

	now func() time.Time
}

// NewReceiver creates a heartbeat receiver. period is the expected beat
// interval; the receiver starts Disconnected until the first beat arrives.
func NewReceiver(link mav.Link, period time.Duration, log *slog.Logger) (*Receiver, error) {
	if link == nil {
		return nil, ErrNilLink
	}
	if period <= 0 {
		period = time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Receiver{
		link:     link,
		period:   period,
		log:      log,
		lastBeat: time.Now(),
		status:   StatusDisconnected,
		now:      time.Now,
	}, nil
}

// Run performs one receive cycle: it drains the link's buffered messages,
// and updates the miss count and connection status. Called once per period
// by the worker body.
func (r *Receiver) Run() Status {
	seen := false
	for {
		msg, ok := r.link.Recv()
		if !ok {
			break
		}
		if msg.Kind() == mav.KindHeartbeat {
			seen = true
		}
	}

	now := r.now()
	if seen {
		r.lastBeat = now
		r.missed = 0
		if r.status != StatusConnected {
			r.status = StatusConnected
			r.log.Info("connection status", "status", r.status)
		}
		return r.status
	}

	if now.Sub(r.lastBeat) >= r.period {
		r.missed++
		r.log.Warn("missed a heartbeat", "count", r.missed)
	}

	if r.missed >= MaxMissed && r.status != StatusDisconnected {
		r.status = StatusDisconnected
		r.log.Error("connection status", "status", r.status, "missed", r.missed)
	}

	return r.status
}

// Missed returns the current consecutive miss count.
func (r *Receiver) Missed() int {
	return r.missed
}
