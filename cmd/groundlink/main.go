// Command groundlink runs the ground control station pipeline: it connects
// to the drone over NATS, starts the heartbeat, telemetry, command and
// recorder workers, and serves the operator feed until the mission duration
// elapses or an interrupt arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/groundlink-io/groundlink/pkg/command"
	"github.com/groundlink-io/groundlink/pkg/concurrency"
	"github.com/groundlink-io/groundlink/pkg/config"
	"github.com/groundlink-io/groundlink/pkg/heartbeat"
	"github.com/groundlink-io/groundlink/pkg/logging"
	"github.com/groundlink-io/groundlink/pkg/mav"
	prom "github.com/groundlink-io/groundlink/pkg/observability/prometheus"
	"github.com/groundlink-io/groundlink/pkg/observability/tracing"
	"github.com/groundlink-io/groundlink/pkg/recorder"
	"github.com/groundlink-io/groundlink/pkg/store"
	"github.com/groundlink-io/groundlink/pkg/telemetry"
	"github.com/groundlink-io/groundlink/pkg/web"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to YAML configuration file")
	traceOut := flag.Bool("trace", false, "emit trace spans to stderr")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		if err := config.LoadWithEnv(*configPath, "GROUNDLINK", &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			return 1
		}
	} else if err := config.ApplyEnvOverrides("GROUNDLINK", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to apply environment overrides: %v\n", err)
		return 1
	}
	if err := config.Validate(&cfg, config.Validators()...); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		return 1
	}

	log, err := logging.Setup(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Dir:    cfg.Log.Dir,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		return 1
	}
	slog.SetDefault(log)

	var traceWriter *os.File
	if *traceOut {
		traceWriter = os.Stderr
	}
	shutdownTracing, err := tracing.Setup("groundlink", traceWriter)
	if err != nil {
		log.Error("failed to set up tracing", "error", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Warn("trace shutdown failed", "error", err)
		}
	}()

	metrics := prom.GetMetrics()

	// Optionally run the NATS server in-process for single-host setups.
	linkURL := cfg.Link.URL
	if cfg.Link.Embedded {
		srv, url, err := mav.StartEmbeddedServer(0)
		if err != nil {
			log.Error("failed to start embedded server", "error", err)
			return 1
		}
		defer srv.Shutdown()
		linkURL = url
		log.Info("embedded NATS server running", "url", url)
	}

	// Each pipeline stage gets its own link so every subscription receives
	// its own copy of the downlink traffic.
	dial := func(name string) (mav.Link, error) {
		return mav.DialLink(mav.LinkConfig{
			URL:    linkURL,
			Prefix: cfg.Link.Prefix,
			Name:   cfg.Link.Name + "-" + name,
			Buffer: cfg.Link.Buffer,
			Role:   mav.RoleGround,
		})
	}

	links := make(map[string]mav.Link, 4)
	for _, name := range []string{"hb-sender", "hb-receiver", "telemetry", "command"} {
		link, err := dial(name)
		if err != nil {
			log.Error("failed to connect link", "link", name, "error", err)
			return 1
		}
		defer link.Close()
		links[name] = link
	}

	log.Info("waiting for drone heartbeat", "timeout", cfg.Link.HeartbeatWait.Std())
	if err := mav.WaitHeartbeat(links["hb-receiver"], cfg.Link.HeartbeatWait.Std()); err != nil {
		log.Error("no heartbeat from drone", "error", err)
		return 1
	}
	log.Info("drone connected")

	pool, err := store.NewPool(store.DefaultPoolConfig(cfg.Recorder.DSN))
	if err != nil {
		log.Error("failed to open flight recorder store", "error", err)
		return 1
	}
	defer pool.Close()

	// Pipeline channels, one per edge.
	heartbeatSentQ := concurrency.NewChannel(cfg.Queues.HeartbeatSent)
	heartbeatStatusQ := concurrency.NewChannel(cfg.Queues.HeartbeatStatus)
	telemetryQ := concurrency.NewChannel(cfg.Queues.Telemetry)
	recordQ := concurrency.NewChannel(cfg.Queues.Record)
	commandQ := concurrency.NewChannel(cfg.Queues.Command)

	channels := map[string]concurrency.Channel{
		"heartbeat_sent":   heartbeatSentQ,
		"heartbeat_status": heartbeatStatusQ,
		"telemetry":        telemetryQ,
		"record":           recordQ,
		"command":          commandQ,
	}
	for name, ch := range channels {
		metrics.WatchChannelDepth(name, ch.Len)
	}

	controller := concurrency.NewController()
	period := cfg.Heartbeat.Period.Std()
	target := command.Position{
		X: cfg.Command.Target.X,
		Y: cfg.Command.Target.Y,
		Z: cfg.Command.Target.Z,
	}

	specs, err := buildSpecs(cfg, links, controller, metrics, pool, target, period,
		heartbeatSentQ, heartbeatStatusQ, telemetryQ, recordQ, commandQ)
	if err != nil {
		log.Error("failed to build worker specs", "error", err)
		return 1
	}

	workers, err := concurrency.NewPool(specs, log)
	if err != nil {
		log.Error("failed to create worker pool", "error", err)
		return 1
	}
	if err := workers.StartWorkers(); err != nil {
		log.Error("failed to start workers", "error", err)
		return 1
	}
	replicas := 0
	for _, spec := range specs {
		replicas += spec.Replicas()
	}
	metrics.ReplicasRunning.Set(float64(replicas))
	log.Info("pipeline started", "workers", len(specs), "replicas", replicas)

	feed := web.NewFeed(log, metrics)
	server, err := web.NewServer(web.ServerConfig{
		Addr:      cfg.Web.Addr,
		JWTSecret: cfg.Web.JWTSecret,
	}, feed, log)
	if err != nil {
		log.Error("failed to create operator server", "error", err)
		return 1
	}
	server.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Warn("operator server shutdown failed", "error", err)
		}
	}()

	runMainLoop(cfg, log, feed, links, heartbeatSentQ, heartbeatStatusQ, commandQ)

	// Orderly teardown: stop producing, empty the channels so no worker is
	// stuck on a full Put, then wait out the replicas.
	log.Info("requesting worker exit")
	workers.RequestExitAll()

	for name, ch := range channels {
		if n := ch.Drain(); n > 0 {
			log.Debug("drained channel", "channel", name, "messages", n)
		}
	}

	statuses, err := workers.JoinAll(cfg.Run.JoinWait.Std())
	if err != nil {
		log.Error("join failed", "error", err)
	}
	for _, status := range statuses {
		log.Error("worker replica did not exit cleanly", "status", status.String())
	}

	metrics.ReplicasRunning.Set(0)
	controller.Reset()
	log.Info("pipeline stopped")
	if err != nil || len(statuses) > 0 {
		return 1
	}
	return 0
}

// buildSpecs assembles the five pipeline stages.
func buildSpecs(
	cfg config.Config,
	links map[string]mav.Link,
	controller concurrency.Controller,
	metrics *prom.Metrics,
	pool *store.Pool,
	target command.Position,
	period time.Duration,
	heartbeatSentQ, heartbeatStatusQ, telemetryQ, recordQ, commandQ concurrency.Channel,
) ([]*concurrency.Spec, error) {
	senderSpec, err := concurrency.NewSpec("heartbeat_sender",
		heartbeat.SenderWorker(links["hb-sender"], period, metrics),
		cfg.Workers.HeartbeatSender, nil,
		nil, []concurrency.Channel{heartbeatSentQ}, controller)
	if err != nil {
		return nil, err
	}

	receiverSpec, err := concurrency.NewSpec("heartbeat_receiver",
		heartbeat.ReceiverWorker(links["hb-receiver"], period, metrics),
		cfg.Workers.HeartbeatReceiver, nil,
		nil, []concurrency.Channel{heartbeatStatusQ}, controller)
	if err != nil {
		return nil, err
	}

	telemetrySpec, err := concurrency.NewSpec("telemetry",
		telemetry.Worker(links["telemetry"], metrics),
		cfg.Workers.Telemetry, nil,
		nil, []concurrency.Channel{telemetryQ, recordQ}, controller)
	if err != nil {
		return nil, err
	}

	commandSpec, err := concurrency.NewSpec("command",
		command.Worker(links["command"], target,
			cfg.Command.AltitudeThreshold, cfg.Command.YawThresholdDeg, metrics),
		cfg.Workers.Command, nil,
		[]concurrency.Channel{telemetryQ}, []concurrency.Channel{commandQ}, controller)
	if err != nil {
		return nil, err
	}

	recorderSpec, err := concurrency.NewSpec("recorder",
		recorder.Worker(pool, metrics),
		cfg.Workers.Recorder, nil,
		[]concurrency.Channel{recordQ}, nil, controller)
	if err != nil {
		return nil, err
	}

	return []*concurrency.Spec{
		senderSpec, receiverSpec, telemetrySpec, commandSpec, recorderSpec,
	}, nil
}

// runMainLoop reports pipeline output once per second until the mission
// duration elapses or the process is interrupted.
func runMainLoop(
	cfg config.Config,
	log *slog.Logger,
	feed *web.Feed,
	links map[string]mav.Link,
	heartbeatSentQ, heartbeatStatusQ, commandQ concurrency.Channel,
) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	deadline := time.After(cfg.Run.Duration.Std())
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	metrics := prom.GetMetrics()

	for {
		select {
		case <-stop:
			log.Info("interrupt received")
			return
		case <-deadline:
			log.Info("mission duration elapsed", "duration", cfg.Run.Duration.Std())
			return
		case <-ticker.C:
		}

		for msg, ok := heartbeatSentQ.TryGet(); ok; msg, ok = heartbeatSentQ.TryGet() {
			log.Info("heartbeat", "seq", msg)
			feed.Publish(map[string]any{"event": "heartbeat", "seq": msg})
		}
		for msg, ok := heartbeatStatusQ.TryGet(); ok; msg, ok = heartbeatStatusQ.TryGet() {
			log.Info("connection", "status", msg)
			feed.Publish(map[string]any{"event": "status", "status": msg})
		}
		for msg, ok := commandQ.TryGet(); ok; msg, ok = commandQ.TryGet() {
			decision, isDecision := msg.(command.Decision)
			if !isDecision {
				continue
			}
			log.Info("command issued", "decision", decision.String())
			feed.Publish(map[string]any{
				"event": "command",
				"kind":  decision.Kind,
				"delta": decision.Delta,
			})
		}

		var dropped uint64
		for _, link := range links {
			dropped += link.Dropped()
		}
		metrics.LinkDropped.Set(float64(dropped))
	}
}
