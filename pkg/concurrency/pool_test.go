package concurrency

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// idleBody loops on the controller without touching any channels.
func idleBody(wc *WorkerContext) {
	for !wc.Controller.IsExitRequested() {
		wc.Controller.CheckPause()
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNewPool_Validation(t *testing.T) {
	if _, err := NewPool(nil, nil); !errors.Is(err, ErrEmptySpecs) {
		t.Errorf("NewPool(nil) error = %v, want ErrEmptySpecs", err)
	}

	c := NewController()
	spec, err := NewSpec("idle", idleBody, 1, nil, nil, nil, c)
	if err != nil {
		t.Fatalf("NewSpec() error = %v", err)
	}
	if _, err := NewPool([]*Spec{spec, nil}, nil); !errors.Is(err, ErrNilSpec) {
		t.Errorf("NewPool() with nil entry error = %v, want ErrNilSpec", err)
	}
}

func TestPool_Lifecycle(t *testing.T) {
	c := NewController()
	spec, err := NewSpec("idle", idleBody, 3, nil, nil, nil, c)
	if err != nil {
		t.Fatalf("NewSpec() error = %v", err)
	}
	pool, err := NewPool([]*Spec{spec}, nil)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}

	if pool.ReplicaCount() != 3 {
		t.Errorf("ReplicaCount() = %d, want 3", pool.ReplicaCount())
	}

	if _, err := pool.JoinAll(time.Second); !errors.Is(err, ErrNotStarted) {
		t.Errorf("JoinAll() before start error = %v, want ErrNotStarted", err)
	}

	if err := pool.StartWorkers(); err != nil {
		t.Fatalf("StartWorkers() error = %v", err)
	}
	if err := pool.StartWorkers(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second StartWorkers() error = %v, want ErrAlreadyStarted", err)
	}

	pool.RequestExitAll()
	failed, err := pool.JoinAll(2 * time.Second)
	if err != nil {
		t.Fatalf("JoinAll() error = %v", err)
	}
	if len(failed) != 0 {
		t.Errorf("JoinAll() reported %d failed replicas, want 0: %v", len(failed), failed)
	}

	// Controller can be reset for reuse once everything is joined.
	c.Reset()
	if c.IsExitRequested() {
		t.Error("Reset() should clear the exit flag after shutdown")
	}
}

func TestPool_DoublingPipeline(t *testing.T) {
	ctrl := NewController()
	q := NewChannel(10)
	r := NewChannel(10)

	producer := func(wc *WorkerContext) {
		for i := 1; i <= 5; i++ {
			if err := wc.Outputs[0].Put(i, true, time.Second); err != nil {
				wc.Log.Error("put failed", "error", err)
				return
			}
		}
		for !wc.Controller.IsExitRequested() {
			wc.Controller.CheckPause()
			time.Sleep(10 * time.Millisecond)
		}
	}

	doubler := func(wc *WorkerContext) {
		for !wc.Controller.IsExitRequested() {
			wc.Controller.CheckPause()
			msg, err := wc.Inputs[0].Get(true, 50*time.Millisecond)
			if err != nil {
				continue
			}
			if err := wc.Outputs[0].Put(msg.(int)*2, true, time.Second); err != nil {
				wc.Log.Error("put failed", "error", err)
			}
		}
	}

	specA, err := NewSpec("producer", producer, 1, nil, nil, []Channel{q}, ctrl)
	if err != nil {
		t.Fatalf("NewSpec(producer) error = %v", err)
	}
	specB, err := NewSpec("doubler", doubler, 1, nil, []Channel{q}, []Channel{r}, ctrl)
	if err != nil {
		t.Fatalf("NewSpec(doubler) error = %v", err)
	}

	pool, err := NewPool([]*Spec{specA, specB}, nil)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	if err := pool.StartWorkers(); err != nil {
		t.Fatalf("StartWorkers() error = %v", err)
	}

	var results []int
	for len(results) < 5 {
		msg, err := r.Get(true, 2*time.Second)
		if err != nil {
			t.Fatalf("drained %d results, then Get() error = %v", len(results), err)
		}
		results = append(results, msg.(int))
	}

	pool.RequestExitAll()
	q.Drain()
	r.Drain()
	failed, err := pool.JoinAll(2 * time.Second)
	if err != nil {
		t.Fatalf("JoinAll() error = %v", err)
	}
	if len(failed) != 0 {
		t.Errorf("JoinAll() reported failures: %v", failed)
	}

	want := []int{2, 4, 6, 8, 10}
	for i, v := range want {
		if results[i] != v {
			t.Errorf("results[%d] = %d, want %d (single consumer preserves input order)", i, results[i], v)
		}
	}
}

func TestPool_PauseResumeWithoutLoss(t *testing.T) {
	ctrl := NewController()
	out := NewChannel(100)

	next := 1
	producer := func(wc *WorkerContext) {
		for !wc.Controller.IsExitRequested() {
			wc.Controller.CheckPause()
			if wc.Controller.IsExitRequested() {
				return
			}
			if err := wc.Outputs[0].Put(next, true, 100*time.Millisecond); err == nil {
				next++
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	spec, err := NewSpec("seq", producer, 1, nil, nil, []Channel{out}, ctrl)
	if err != nil {
		t.Fatalf("NewSpec() error = %v", err)
	}
	pool, err := NewPool([]*Spec{spec}, nil)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	if err := pool.StartWorkers(); err != nil {
		t.Fatalf("StartWorkers() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	ctrl.Pause()
	time.Sleep(200 * time.Millisecond)
	ctrl.Resume()
	time.Sleep(100 * time.Millisecond)

	pool.RequestExitAll()
	if failed, err := pool.JoinAll(2 * time.Second); err != nil || len(failed) != 0 {
		t.Fatalf("JoinAll() = %v, %v", failed, err)
	}

	// The sequence must be contiguous: no message lost or duplicated across
	// the pause/resume cycle.
	want := 1
	for {
		msg, ok := out.TryGet()
		if !ok {
			break
		}
		if msg != want {
			t.Fatalf("received %v, want %d", msg, want)
		}
		want++
	}
	if want < 3 {
		t.Errorf("producer only emitted %d messages, expected it to make progress", want-1)
	}
}

func TestPool_ExitWhilePaused(t *testing.T) {
	ctrl := NewController()
	spec, err := NewSpec("idle", idleBody, 2, nil, nil, nil, ctrl)
	if err != nil {
		t.Fatalf("NewSpec() error = %v", err)
	}
	pool, err := NewPool([]*Spec{spec}, nil)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	if err := pool.StartWorkers(); err != nil {
		t.Fatalf("StartWorkers() error = %v", err)
	}

	ctrl.Pause()
	time.Sleep(100 * time.Millisecond)

	// Workers blocked in CheckPause must observe the exit flag and
	// terminate, not stay paused indefinitely.
	pool.RequestExitAll()
	failed, err := pool.JoinAll(2 * time.Second)
	if err != nil {
		t.Fatalf("JoinAll() error = %v", err)
	}
	if len(failed) != 0 {
		t.Errorf("paused workers did not terminate after exit request: %v", failed)
	}
}

func TestPool_JoinAllReportsHungWorker(t *testing.T) {
	ctrl := NewController()

	hung := func(wc *WorkerContext) {
		// Ignores the controller entirely.
		time.Sleep(time.Hour)
	}

	hungSpec, err := NewSpec("hung", hung, 1, nil, nil, nil, ctrl)
	if err != nil {
		t.Fatalf("NewSpec(hung) error = %v", err)
	}
	goodSpec, err := NewSpec("good", idleBody, 1, nil, nil, nil, ctrl)
	if err != nil {
		t.Fatalf("NewSpec(good) error = %v", err)
	}

	pool, err := NewPool([]*Spec{hungSpec, goodSpec}, nil)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	if err := pool.StartWorkers(); err != nil {
		t.Fatalf("StartWorkers() error = %v", err)
	}

	pool.RequestExitAll()
	start := time.Now()
	failed, err := pool.JoinAll(200 * time.Millisecond)
	if err != nil {
		t.Fatalf("JoinAll() error = %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("JoinAll() with a hung worker should still return within the bounded wait")
	}

	if len(failed) != 1 {
		t.Fatalf("JoinAll() reported %d failures, want 1: %v", len(failed), failed)
	}
	if failed[0].Worker != "hung" {
		t.Errorf("failed replica = %q, want %q", failed[0].Worker, "hung")
	}
	if !errors.Is(failed[0].Err, ErrJoinTimeout) {
		t.Errorf("failed replica error = %v, want ErrJoinTimeout", failed[0].Err)
	}
}

func TestPool_PanickedBodyIsReported(t *testing.T) {
	ctrl := NewController()

	spec, err := NewSpec("crasher", func(wc *WorkerContext) {
		panic("boom")
	}, 1, nil, nil, nil, ctrl)
	if err != nil {
		t.Fatalf("NewSpec() error = %v", err)
	}

	pool, err := NewPool([]*Spec{spec}, nil)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	if err := pool.StartWorkers(); err != nil {
		t.Fatalf("StartWorkers() error = %v", err)
	}

	pool.RequestExitAll()
	failed, err := pool.JoinAll(2 * time.Second)
	if err != nil {
		t.Fatalf("JoinAll() error = %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("JoinAll() reported %d failures, want 1", len(failed))
	}
	if !strings.Contains(failed[0].Err.Error(), "panicked") {
		t.Errorf("failure error = %v, want panic report", failed[0].Err)
	}
}

// countingController records how many times RequestExit is called.
type countingController struct {
	Controller
	exits atomic.Int32
}

func (c *countingController) RequestExit() {
	c.exits.Add(1)
	c.Controller.RequestExit()
}

func TestPool_RequestExitAllDeduplicatesControllers(t *testing.T) {
	shared := &countingController{Controller: NewController()}
	other := &countingController{Controller: NewController()}

	mkSpec := func(name string, ctrl Controller) *Spec {
		spec, err := NewSpec(name, idleBody, 1, nil, nil, nil, ctrl)
		if err != nil {
			t.Fatalf("NewSpec(%s) error = %v", name, err)
		}
		return spec
	}

	pool, err := NewPool([]*Spec{
		mkSpec("a", shared),
		mkSpec("b", shared),
		mkSpec("c", other),
	}, nil)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	if err := pool.StartWorkers(); err != nil {
		t.Fatalf("StartWorkers() error = %v", err)
	}

	pool.RequestExitAll()
	if failed, err := pool.JoinAll(2 * time.Second); err != nil || len(failed) != 0 {
		t.Fatalf("JoinAll() = %v, %v", failed, err)
	}

	if n := shared.exits.Load(); n != 1 {
		t.Errorf("shared controller received %d exit requests, want 1", n)
	}
	if n := other.exits.Load(); n != 1 {
		t.Errorf("other controller received %d exit requests, want 1", n)
	}
}

func TestPool_StaticArgsReachBody(t *testing.T) {
	ctrl := NewController()
	out := NewChannel(2)

	echoArgs := func(wc *WorkerContext) {
		for _, arg := range wc.Args {
			_ = wc.Outputs[0].Put(arg, true, time.Second)
		}
	}

	spec, err := NewSpec("echo", echoArgs, 1, []any{"target", 42}, nil, []Channel{out}, ctrl)
	if err != nil {
		t.Fatalf("NewSpec() error = %v", err)
	}
	pool, err := NewPool([]*Spec{spec}, nil)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	if err := pool.StartWorkers(); err != nil {
		t.Fatalf("StartWorkers() error = %v", err)
	}

	pool.RequestExitAll()
	if failed, err := pool.JoinAll(2 * time.Second); err != nil || len(failed) != 0 {
		t.Fatalf("JoinAll() = %v, %v", failed, err)
	}

	first, _ := out.TryGet()
	second, _ := out.TryGet()
	if first != "target" || second != 42 {
		t.Errorf("body received args (%v, %v), want (target, 42)", first, second)
	}
}
