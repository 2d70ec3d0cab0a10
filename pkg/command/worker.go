package command

import (
	"time"

	"github.com/groundlink-io/groundlink/pkg/concurrency"
	"github.com/groundlink-io/groundlink/pkg/mav"
	prom "github.com/groundlink-io/groundlink/pkg/observability/prometheus"
	"github.com/groundlink-io/groundlink/pkg/telemetry"
)

const (
	// getTimeout bounds the input read so the loop re-checks the exit flag;
	// an indefinite blocking read here would deadlock shutdown.
	getTimeout = 250 * time.Millisecond

	putTimeout = time.Second
)

// Worker returns the command worker body: it reads telemetry samples from
// its input channel, runs the decision rules and reports every issued
// command on its output channels. metrics may be nil.
func Worker(link mav.Link, target Position, altitudeThreshold, yawThresholdDeg float64, metrics *prom.Metrics) concurrency.Body {
	return func(wc *concurrency.WorkerContext) {
		decider, err := NewDecider(link, target, altitudeThreshold, yawThresholdDeg, wc.Log)
		if err != nil {
			wc.Log.Error("failed to create decider", "error", err)
			return
		}

		for !wc.Controller.IsExitRequested() {
			wc.Controller.CheckPause()
			if wc.Controller.IsExitRequested() {
				return
			}

			msg, err := wc.Inputs[0].Get(true, getTimeout)
			if err != nil {
				continue // empty is a polling signal, not a fault
			}
			data, ok := msg.(telemetry.Data)
			if !ok {
				wc.Log.Error("unexpected message on telemetry input", "message", msg)
				metrics.IncWorkerError("command")
				continue
			}

			decision := decider.Decide(data)
			if decision == nil {
				continue
			}

			metrics.IncCommand(decision.Kind)
			wc.Log.Info("command issued", "decision", decision.String())
			for i, out := range wc.Outputs {
				if err := out.Put(*decision, true, putTimeout); err != nil {
					wc.Log.Warn("output channel full, decision dropped",
						"output", i, "error", err)
					metrics.IncWorkerError("command")
				}
			}
			metrics.IncIteration("command")
		}
	}
}
