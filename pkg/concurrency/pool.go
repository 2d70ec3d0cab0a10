package concurrency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrEmptySpecs is returned by NewPool when no specifications are given.
	ErrEmptySpecs = errors.New("spec list cannot be empty")

	// ErrNilSpec is returned by NewPool when the spec list contains a nil entry.
	ErrNilSpec = errors.New("spec cannot be nil")

	// ErrAlreadyStarted is returned by StartWorkers on a running pool.
	ErrAlreadyStarted = errors.New("pool already started")

	// ErrNotStarted is returned by JoinAll before StartWorkers.
	ErrNotStarted = errors.New("pool not started")

	// ErrJoinTimeout marks a replica that did not terminate within the
	// bounded per-replica wait of JoinAll.
	ErrJoinTimeout = errors.New("replica did not terminate within the join wait")
)

// DefaultJoinWait is the per-replica wait applied by JoinAll when the
// caller passes a non-positive duration.
const DefaultJoinWait = 5 * time.Second

// ReplicaStatus describes one replica that failed to shut down cleanly:
// either its body panicked, or it was still running when its join wait
// expired.
type ReplicaStatus struct {
	Worker string
	Index  int
	ID     uuid.UUID
	Err    error
}

func (s ReplicaStatus) String() string {
	return fmt.Sprintf("%s[%d] (%s): %v", s.Worker, s.Index, s.ID, s.Err)
}

// replica is one not-yet-started or running instance of a Spec.
// failure is written at most once, before done is closed; the channel
// close orders it for readers.
type replica struct {
	spec    *Spec
	index   int
	id      uuid.UUID
	done    chan struct{}
	failure error
}

// Pool owns the lifecycle of every replica of every specification it was
// created with: spawn, run, request-exit, join. A pool is single-use;
// create a new one after JoinAll.
type Pool struct {
	specs    []*Spec
	replicas []*replica
	log      *slog.Logger
	tracer   trace.Tracer
	started  atomic.Bool
}

// NewPool validates the spec list and allocates per-spec replica handles per
// spec, replica indices 0..N-1 in order. Nothing runs until StartWorkers.
func NewPool(specs []*Spec, log *slog.Logger) (*Pool, error) {
	if len(specs) == 0 {
		return nil, ErrEmptySpecs
	}
	for _, s := range specs {
		if s == nil {
			return nil, ErrNilSpec
		}
	}
	if log == nil {
		log = slog.Default()
	}

	p := &Pool{
		specs:  specs,
		log:    log,
		tracer: otel.Tracer("groundlink/concurrency"),
	}
	for _, s := range specs {
		for i := 0; i < s.replicas; i++ {
			p.replicas = append(p.replicas, &replica{
				spec:  s,
				index: i,
				id:    uuid.New(),
				done:  make(chan struct{}),
			})
		}
	}
	return p, nil
}

// ReplicaCount returns the total number of replicas across all specs.
func (p *Pool) ReplicaCount() int {
	return len(p.replicas)
}

// StartWorkers spawns every replica in its own goroutine. Spawn order
// across specs is unspecified; within one spec replicas start in index
// order.
func (p *Pool) StartWorkers() error {
	if !p.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	for _, r := range p.replicas {
		go p.run(r)
	}
	p.log.Info("pool started", "replicas", len(p.replicas), "specs", len(p.specs))
	return nil
}

func (p *Pool) run(r *replica) {
	_, span := p.tracer.Start(context.Background(), "worker.run",
		trace.WithAttributes(
			attribute.String("worker.name", r.spec.name),
			attribute.Int("worker.replica", r.index),
			attribute.String("worker.id", r.id.String()),
		))
	wc := &WorkerContext{
		ID:         r.id,
		Index:      r.index,
		Args:       r.spec.args,
		Inputs:     r.spec.inputs,
		Outputs:    r.spec.outputs,
		Controller: r.spec.controller,
		Log: p.log.With(
			"worker", r.spec.name,
			"replica", r.index,
			"id", r.id.String(),
		),
	}

	defer close(r.done)
	defer span.End()
	defer func() {
		if v := recover(); v != nil {
			r.failure = fmt.Errorf("worker body panicked: %v", v)
			span.RecordError(r.failure)
			wc.Log.Error("worker body panicked", "panic", v)
		}
	}()

	wc.Log.Info("worker started")
	r.spec.body(wc)
	wc.Log.Info("worker finished")
}

// RequestExitAll latches the exit flag on every distinct controller
// referenced by the pool's specs. Controllers shared across specs are
// signalled once; repeated RequestExit calls would be harmless but the
// de-duplication keeps the operation idempotent by construction.
func (p *Pool) RequestExitAll() {
	seen := make(map[Controller]struct{}, len(p.specs))
	for _, s := range p.specs {
		if _, ok := seen[s.controller]; ok {
			continue
		}
		seen[s.controller] = struct{}{}
		s.controller.RequestExit()
	}
	p.log.Info("exit requested", "controllers", len(seen))
}

// JoinAll waits for every replica with a bounded per-replica wait
// (DefaultJoinWait when perReplicaWait <= 0) and returns the replicas that
// failed to stop cleanly: panicked bodies and join timeouts. An empty
// result is a fully clean shutdown. JoinAll never blocks forever; a hung
// replica is reported, not waited on.
//
// Callers must drain the wired channels between RequestExitAll and JoinAll
// so no replica stays blocked on a put into a full channel.
func (p *Pool) JoinAll(perReplicaWait time.Duration) ([]ReplicaStatus, error) {
	if !p.started.Load() {
		return nil, ErrNotStarted
	}
	if perReplicaWait <= 0 {
		perReplicaWait = DefaultJoinWait
	}

	var failed []ReplicaStatus
	for _, r := range p.replicas {
		timer := time.NewTimer(perReplicaWait)
		select {
		case <-r.done:
			timer.Stop()
			if r.failure != nil {
				failed = append(failed, ReplicaStatus{
					Worker: r.spec.name,
					Index:  r.index,
					ID:     r.id,
					Err:    r.failure,
				})
			}
		case <-timer.C:
			failed = append(failed, ReplicaStatus{
				Worker: r.spec.name,
				Index:  r.index,
				ID:     r.id,
				Err:    ErrJoinTimeout,
			})
		}
	}

	if len(failed) > 0 {
		p.log.Warn("pool joined with failures", "failed", len(failed))
		return failed, nil
	}
	p.log.Info("pool joined")
	return nil, nil
}
