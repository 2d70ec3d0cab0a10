package mav

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"
)

// Role selects the subject direction of a link endpoint. The ground station
// receives the downlink and transmits on the uplink; the drone (or its
// simulator) is wired the other way around.
type Role string

const (
	RoleGround Role = "ground"
	RoleDrone  Role = "drone"
)

// LinkConfig configures a NATS-backed link.
//
// Subject mapping:
//   - downlink (drone to ground): <prefix>.dl.<kind>
//   - uplink (ground to drone):   <prefix>.ul.<kind>
type LinkConfig struct {
	// URL is the NATS server URL, e.g. "nats://127.0.0.1:4222".
	URL string

	// Prefix is prepended to all subjects. Default: "drone".
	Prefix string

	// Name is an optional NATS connection name.
	Name string

	// Buffer bounds the inbound message buffer. Messages arriving while the
	// buffer is full are dropped and counted. Default: 256.
	Buffer int

	// Role selects which direction this endpoint receives on.
	Role Role
}

type natsLink struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	inbox   chan Message
	pubSubj string
	dropped atomic.Uint64
	once    sync.Once
	closed  atomic.Bool
}

// DialLink connects a link endpoint over NATS.
func DialLink(cfg LinkConfig) (Link, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "drone"
	}
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 256
	}
	role := cfg.Role
	if role == "" {
		role = RoleGround
	}

	var opts []nats.Option
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	recvDir, sendDir := "dl", "ul"
	if role == RoleDrone {
		recvDir, sendDir = "ul", "dl"
	}

	l := &natsLink{
		nc:      nc,
		inbox:   make(chan Message, buffer),
		pubSubj: prefix + "." + sendDir,
	}

	sub, err := nc.Subscribe(prefix+"."+recvDir+".>", l.onMessage)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	l.sub = sub

	return l, nil
}

func (l *natsLink) onMessage(m *nats.Msg) {
	msg, err := Decode(m.Data)
	if err != nil {
		// Malformed frames are counted with the drops; the pipeline treats
		// them as a transient wire fault, not a reason to stop.
		l.dropped.Add(1)
		return
	}
	select {
	case l.inbox <- msg:
	default:
		l.dropped.Add(1)
	}
}

func (l *natsLink) Recv() (Message, bool) {
	select {
	case msg := <-l.inbox:
		return msg, true
	default:
		return nil, false
	}
}

func (l *natsLink) Send(msg Message) error {
	if l.closed.Load() {
		return ErrLinkClosed
	}
	raw, err := Encode(msg)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("%s.%s", l.pubSubj, msg.Kind())
	if err := l.nc.Publish(subject, raw); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.Kind(), err)
	}
	return nil
}

func (l *natsLink) Dropped() uint64 {
	return l.dropped.Load()
}

func (l *natsLink) Close() {
	l.once.Do(func() {
		l.closed.Store(true)
		if l.sub != nil {
			_ = l.sub.Unsubscribe()
		}
		l.nc.Close()
	})
}
