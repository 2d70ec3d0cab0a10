// Package heartbeat implements the liveness protocol with the drone: a
// sender that announces the ground station once per period and a receiver
// that declares the drone disconnected after three silent periods.
package heartbeat

import (
	"errors"
	"log/slog"

	"github.com/groundlink-io/groundlink/pkg/mav"
)

// ErrNilLink is returned by the factories when no link is supplied.
var ErrNilLink = errors.New("link cannot be nil")

// Sender transmits one GCS heartbeat per period.
type Sender struct {
	link mav.Link
	log  *slog.Logger
	seq  uint64
}

// NewSender creates a heartbeat sender.
func NewSender(link mav.Link, log *slog.Logger) (*Sender, error) {
	if link == nil {
		return nil, ErrNilLink
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sender{link: link, log: log}, nil
}

// Send transmits one heartbeat and returns its sequence number. A failed
// transmission is transient: it is logged and the sequence does not advance.
func (s *Sender) Send() (uint64, error) {
	if err := s.link.Send(mav.GCSHeartbeat()); err != nil {
		s.log.Error("failed to send heartbeat", "error", err)
		return s.seq, err
	}
	s.seq++
	s.log.Debug("heartbeat sent", "seq", s.seq)
	return s.seq, nil
}
