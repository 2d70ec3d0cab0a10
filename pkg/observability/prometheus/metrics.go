// Package prometheus exposes the pipeline's operational metrics: channel
// depths, worker progress, heartbeat liveness, command decisions and feed
// activity.
package prometheus

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DefaultRegistry is the registry served by the /metrics endpoint.
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer labels every metric with the service name.
	DefaultRegisterer = prometheus.WrapRegistererWith(
		prometheus.Labels{"service": "groundlink"}, DefaultRegistry)

	metricsOnce sync.Once
	metrics     *Metrics
)

// Metrics holds all pipeline metrics. All helper methods are nil-safe so
// worker bodies can run without metrics wired (unit tests, simulator).
type Metrics struct {
	registerer prometheus.Registerer

	ChannelDepth     *prometheus.GaugeVec
	WorkerIterations *prometheus.CounterVec
	WorkerErrors     *prometheus.CounterVec
	ReplicasRunning  prometheus.Gauge

	TelemetryPackets  prometheus.Counter
	CommandsIssued    *prometheus.CounterVec
	HeartbeatsSent    prometheus.Counter
	HeartbeatConnected prometheus.Gauge
	HeartbeatsMissed  prometheus.Counter
	LinkDropped       prometheus.Gauge

	RecorderInserts prometheus.Counter
	RecorderErrors  prometheus.Counter

	FeedClients        prometheus.Gauge
	FeedMessagesDropped prometheus.Counter
}

// GetMetrics returns the process-wide metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics(DefaultRegisterer)
	})
	return metrics
}

// NewMetrics creates a metrics collection on the given registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = DefaultRegisterer
	}

	return &Metrics{
		registerer: registerer,

		ChannelDepth: promauto.With(registerer).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "groundlink_channel_depth",
				Help: "Current number of queued messages per channel",
			},
			[]string{"channel"},
		),
		WorkerIterations: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "groundlink_worker_iterations_total",
				Help: "Completed work-loop iterations per worker",
			},
			[]string{"worker"},
		),
		WorkerErrors: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "groundlink_worker_errors_total",
				Help: "Transient errors logged and skipped per worker",
			},
			[]string{"worker"},
		),
		ReplicasRunning: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "groundlink_replicas_running",
				Help: "Worker replicas currently running",
			},
		),
		TelemetryPackets: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "groundlink_telemetry_packets_total",
				Help: "Complete telemetry samples assembled from the drone",
			},
		),
		CommandsIssued: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "groundlink_commands_issued_total",
				Help: "Commands sent to the drone by decision kind",
			},
			[]string{"kind"},
		),
		HeartbeatsSent: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "groundlink_heartbeats_sent_total",
				Help: "GCS heartbeats transmitted",
			},
		),
		HeartbeatConnected: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "groundlink_heartbeat_connected",
				Help: "1 while the drone connection is considered alive",
			},
		),
		HeartbeatsMissed: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "groundlink_heartbeats_missed_total",
				Help: "Heartbeat periods that elapsed without a beat",
			},
		),
		LinkDropped: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "groundlink_link_dropped_messages",
				Help: "Inbound link messages dropped due to a full buffer",
			},
		),
		RecorderInserts: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "groundlink_recorder_inserts_total",
				Help: "Telemetry rows persisted by the flight recorder",
			},
		),
		RecorderErrors: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "groundlink_recorder_errors_total",
				Help: "Failed flight recorder inserts",
			},
		),
		FeedClients: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "groundlink_feed_clients",
				Help: "Connected websocket feed clients",
			},
		),
		FeedMessagesDropped: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "groundlink_feed_messages_dropped_total",
				Help: "Feed messages dropped on slow websocket clients",
			},
		),
	}
}

// WatchChannelDepth samples a channel's depth through fn on every scrape.
func (m *Metrics) WatchChannelDepth(name string, fn func() int) {
	if m == nil {
		return
	}
	m.registerer.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        "groundlink_channel_depth_sampled",
			Help:        "Channel depth sampled at scrape time",
			ConstLabels: prometheus.Labels{"channel": name},
		},
		func() float64 { return float64(fn()) },
	))
}

func (m *Metrics) IncIteration(worker string) {
	if m == nil {
		return
	}
	m.WorkerIterations.WithLabelValues(worker).Inc()
}

func (m *Metrics) IncWorkerError(worker string) {
	if m == nil {
		return
	}
	m.WorkerErrors.WithLabelValues(worker).Inc()
}

func (m *Metrics) IncTelemetry() {
	if m == nil {
		return
	}
	m.TelemetryPackets.Inc()
}

func (m *Metrics) IncCommand(kind string) {
	if m == nil {
		return
	}
	m.CommandsIssued.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncHeartbeatSent() {
	if m == nil {
		return
	}
	m.HeartbeatsSent.Inc()
}

func (m *Metrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.HeartbeatConnected.Set(1)
	} else {
		m.HeartbeatConnected.Set(0)
	}
}

func (m *Metrics) IncHeartbeatMissed() {
	if m == nil {
		return
	}
	m.HeartbeatsMissed.Inc()
}

func (m *Metrics) IncRecorderInsert() {
	if m == nil {
		return
	}
	m.RecorderInserts.Inc()
}

func (m *Metrics) IncRecorderError() {
	if m == nil {
		return
	}
	m.RecorderErrors.Inc()
}

func (m *Metrics) SetFeedClients(n int) {
	if m == nil {
		return
	}
	m.FeedClients.Set(float64(n))
}

func (m *Metrics) IncFeedDropped() {
	if m == nil {
		return
	}
	m.FeedMessagesDropped.Inc()
}
