package recorder

import (
	"context"
	"time"

	"github.com/groundlink-io/groundlink/pkg/concurrency"
	prom "github.com/groundlink-io/groundlink/pkg/observability/prometheus"
	"github.com/groundlink-io/groundlink/pkg/store"
	"github.com/groundlink-io/groundlink/pkg/telemetry"
)

const (
	getTimeout   = 250 * time.Millisecond
	writeTimeout = time.Second
)

// Worker returns the recorder body: it drains telemetry samples from its
// input channels and persists each one. metrics may be nil.
func Worker(pool *store.Pool, metrics *prom.Metrics) concurrency.Body {
	return func(wc *concurrency.WorkerContext) {
		rec, err := NewRecorder(pool)
		if err != nil {
			wc.Log.Error("failed to create recorder", "error", err)
			return
		}

		for !wc.Controller.IsExitRequested() {
			wc.Controller.CheckPause()
			if wc.Controller.IsExitRequested() {
				return
			}

			for _, in := range wc.Inputs {
				msg, err := in.Get(true, getTimeout)
				if err != nil {
					continue
				}
				data, ok := msg.(telemetry.Data)
				if !ok {
					wc.Log.Warn("unexpected message type", "message", msg)
					continue
				}

				ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
				err = rec.Record(ctx, data)
				cancel()
				if err != nil {
					wc.Log.Error("failed to record telemetry", "error", err)
					metrics.IncRecorderError()
					metrics.IncWorkerError("recorder")
					continue
				}
				metrics.IncRecorderInsert()
			}
			metrics.IncIteration("recorder")
		}
	}
}
