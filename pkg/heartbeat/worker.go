package heartbeat

import (
	"time"

	"github.com/groundlink-io/groundlink/pkg/concurrency"
	"github.com/groundlink-io/groundlink/pkg/mav"
	prom "github.com/groundlink-io/groundlink/pkg/observability/prometheus"
)

const putTimeout = time.Second

// SenderWorker returns the heartbeat sender body: one beat per period, the
// sequence number reported on every output channel. metrics may be nil.
func SenderWorker(link mav.Link, period time.Duration, metrics *prom.Metrics) concurrency.Body {
	if period <= 0 {
		period = time.Second
	}
	return func(wc *concurrency.WorkerContext) {
		sender, err := NewSender(link, wc.Log)
		if err != nil {
			wc.Log.Error("failed to create heartbeat sender", "error", err)
			return
		}

		for !wc.Controller.IsExitRequested() {
			wc.Controller.CheckPause()
			if wc.Controller.IsExitRequested() {
				return
			}

			seq, err := sender.Send()
			if err != nil {
				metrics.IncWorkerError("heartbeat_sender")
			} else {
				metrics.IncHeartbeatSent()
				for i, out := range wc.Outputs {
					if err := out.Put(seq, true, putTimeout); err != nil {
						wc.Log.Warn("output channel full", "output", i, "error", err)
					}
				}
			}
			metrics.IncIteration("heartbeat_sender")

			time.Sleep(period)
		}
	}
}

// ReceiverWorker returns the heartbeat receiver body: one receive cycle per
// period, the connection status reported on every output channel. metrics
// may be nil.
func ReceiverWorker(link mav.Link, period time.Duration, metrics *prom.Metrics) concurrency.Body {
	if period <= 0 {
		period = time.Second
	}
	return func(wc *concurrency.WorkerContext) {
		receiver, err := NewReceiver(link, period, wc.Log)
		if err != nil {
			wc.Log.Error("failed to create heartbeat receiver", "error", err)
			return
		}

		for !wc.Controller.IsExitRequested() {
			wc.Controller.CheckPause()
			if wc.Controller.IsExitRequested() {
				return
			}

			before := receiver.Missed()
			status := receiver.Run()
			if receiver.Missed() > before {
				metrics.IncHeartbeatMissed()
			}
			metrics.SetConnected(status == StatusConnected)

			for i, out := range wc.Outputs {
				if err := out.Put(status, true, putTimeout); err != nil {
					wc.Log.Warn("output channel full", "output", i, "error", err)
				}
			}
			metrics.IncIteration("heartbeat_receiver")

			time.Sleep(period)
		}
	}
}
