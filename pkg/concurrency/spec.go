package concurrency

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

var (
	// ErrNilBody is returned by NewSpec when no worker body is supplied.
	ErrNilBody = errors.New("worker body cannot be nil")

	// ErrNilController is returned by NewSpec when no controller is supplied.
	ErrNilController = errors.New("controller cannot be nil")

	// ErrInvalidReplicas is returned by NewSpec when replicas < 1.
	ErrInvalidReplicas = errors.New("replica count must be at least 1")
)

// Body is the worker body contract: the domain-specific function run inside
// each replica. A body must loop until wc.Controller.IsExitRequested(),
// call wc.Controller.CheckPause() every iteration, and use non-blocking or
// timeout-bounded channel operations so it can observe the exit flag. A
// body that fails its own setup logs the failure and returns without
// entering the loop.
type Body func(wc *WorkerContext)

// WorkerContext is everything a replica receives from the pool: its
// identity, the spec's static arguments, the wired channels, the shared
// controller, and a logger annotated with the replica's identity.
type WorkerContext struct {
	// ID uniquely identifies this replica across the pool.
	ID uuid.UUID

	// Index is the replica's position within its spec, 0..replicas-1.
	Index int

	// Args are the spec's static arguments, passed through unmodified.
	Args []any

	Inputs  []Channel
	Outputs []Channel

	Controller Controller

	Log *slog.Logger
}

// Spec is an immutable descriptor binding a worker body to its replica
// count, static arguments, channels and controller. Construct via NewSpec;
// the unexported fields keep callers from assembling an unvalidated Spec.
type Spec struct {
	name       string
	body       Body
	replicas   int
	args       []any
	inputs     []Channel
	outputs    []Channel
	controller Controller
}

// NewSpec validates and creates a worker specification. Validation failure
// is a fail-fast setup error: callers log it and abort, they do not retry.
func NewSpec(name string, body Body, replicas int, args []any, inputs, outputs []Channel, controller Controller) (*Spec, error) {
	if body == nil {
		return nil, ErrNilBody
	}
	if controller == nil {
		return nil, ErrNilController
	}
	if replicas < 1 {
		return nil, ErrInvalidReplicas
	}
	if name == "" {
		name = "worker"
	}
	return &Spec{
		name:       name,
		body:       body,
		replicas:   replicas,
		args:       args,
		inputs:     inputs,
		outputs:    outputs,
		controller: controller,
	}, nil
}

// Name returns the spec's worker name, used for logging and reporting.
func (s *Spec) Name() string { return s.name }

// Replicas returns the configured replica count.
func (s *Spec) Replicas() int { return s.replicas }

// Controller returns the controller every replica of this spec observes.
func (s *Spec) Controller() Controller { return s.controller }

// Inputs returns the input channels in wiring order.
func (s *Spec) Inputs() []Channel { return s.inputs }

// Outputs returns the output channels in wiring order.
func (s *Spec) Outputs() []Channel { return s.outputs }
