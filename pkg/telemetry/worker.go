package telemetry

import (
	"time"

	"github.com/groundlink-io/groundlink/pkg/concurrency"
	"github.com/groundlink-io/groundlink/pkg/mav"
	prom "github.com/groundlink-io/groundlink/pkg/observability/prometheus"
)

const (
	// collectBudget bounds one sample-assembly attempt per loop iteration.
	collectBudget = time.Second

	// putTimeout bounds how long a full downstream channel can stall this
	// worker before the sample is dropped; backpressure is preserved up to
	// the timeout, and the drop keeps the worker responsive to exit.
	putTimeout = time.Second
)

// Worker returns the telemetry worker body: it assembles samples from the
// link and fans each one out to every output channel (decision stage,
// flight recorder). metrics may be nil.
func Worker(link mav.Link, metrics *prom.Metrics) concurrency.Body {
	return func(wc *concurrency.WorkerContext) {
		reader, err := NewReader(link)
		if err != nil {
			wc.Log.Error("failed to create telemetry reader", "error", err)
			return
		}

		for !wc.Controller.IsExitRequested() {
			wc.Controller.CheckPause()
			if wc.Controller.IsExitRequested() {
				return
			}

			data, ok := reader.Collect(collectBudget)
			if !ok {
				wc.Log.Warn("no complete telemetry sample within budget")
				continue
			}

			metrics.IncTelemetry()
			wc.Log.Debug("telemetry sample assembled", "sample", data.String())

			for i, out := range wc.Outputs {
				if err := out.Put(data, true, putTimeout); err != nil {
					wc.Log.Warn("output channel full, sample dropped",
						"output", i, "error", err)
					metrics.IncWorkerError("telemetry")
				}
			}
			metrics.IncIteration("telemetry")
		}
	}
}
