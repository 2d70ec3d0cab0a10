package config

import (
	"fmt"
	"time"
)

// Duration wraps time.Duration so YAML values can be written as "1s",
// "500ms" and so on.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the groundlink application configuration, loaded from YAML with
// optional GROUNDLINK_* environment overrides.
type Config struct {
	Link struct {
		URL           string   `yaml:"url"`
		Prefix        string   `yaml:"prefix"`
		Name          string   `yaml:"name"`
		Buffer        int      `yaml:"buffer"`
		Embedded      bool     `yaml:"embedded"`
		HeartbeatWait Duration `yaml:"heartbeat_wait"`
	} `yaml:"link"`

	Queues struct {
		HeartbeatSent   int `yaml:"heartbeat_sent"`
		HeartbeatStatus int `yaml:"heartbeat_status"`
		Telemetry       int `yaml:"telemetry"`
		Record          int `yaml:"record"`
		Command         int `yaml:"command"`
	} `yaml:"queues"`

	Workers struct {
		HeartbeatSender   int `yaml:"heartbeat_sender"`
		HeartbeatReceiver int `yaml:"heartbeat_receiver"`
		Telemetry         int `yaml:"telemetry"`
		Command           int `yaml:"command"`
		Recorder          int `yaml:"recorder"`
	} `yaml:"workers"`

	Heartbeat struct {
		Period Duration `yaml:"period"`
	} `yaml:"heartbeat"`

	Command struct {
		Target struct {
			X float64 `yaml:"x"`
			Y float64 `yaml:"y"`
			Z float64 `yaml:"z"`
		} `yaml:"target"`
		AltitudeThreshold float64 `yaml:"altitude_threshold"`
		YawThresholdDeg   float64 `yaml:"yaw_threshold_deg"`
	} `yaml:"command"`

	Recorder struct {
		DSN string `yaml:"dsn"`
	} `yaml:"recorder"`

	Web struct {
		Addr      string `yaml:"addr"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"web"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Dir    string `yaml:"dir"`
	} `yaml:"log"`

	Run struct {
		Duration Duration `yaml:"duration"`
		JoinWait Duration `yaml:"join_wait"`
	} `yaml:"run"`
}

// Default returns the configuration used when a field is absent from the
// YAML file. Queue capacities and worker counts match the reference
// deployment: capacity 10 everywhere, one replica per stage.
func Default() Config {
	var cfg Config
	cfg.Link.URL = "nats://127.0.0.1:4222"
	cfg.Link.Prefix = "drone"
	cfg.Link.Name = "groundlink"
	cfg.Link.Buffer = 256
	cfg.Link.HeartbeatWait = Duration(30 * time.Second)

	cfg.Queues.HeartbeatSent = 10
	cfg.Queues.HeartbeatStatus = 10
	cfg.Queues.Telemetry = 10
	cfg.Queues.Record = 10
	cfg.Queues.Command = 10

	cfg.Workers.HeartbeatSender = 1
	cfg.Workers.HeartbeatReceiver = 1
	cfg.Workers.Telemetry = 1
	cfg.Workers.Command = 1
	cfg.Workers.Recorder = 1

	cfg.Heartbeat.Period = Duration(time.Second)

	cfg.Command.Target.X = 10
	cfg.Command.Target.Y = 20
	cfg.Command.Target.Z = 30
	cfg.Command.AltitudeThreshold = 0.5
	cfg.Command.YawThresholdDeg = 5.0

	cfg.Recorder.DSN = "file:groundlink.db?cache=shared"

	cfg.Web.Addr = ":8090"

	cfg.Log.Level = "info"
	cfg.Log.Format = "text"

	cfg.Run.Duration = Duration(100 * time.Second)
	cfg.Run.JoinWait = Duration(5 * time.Second)
	return cfg
}

// Validators returns the validation set applied to a loaded Config.
func Validators() []Validator {
	return []Validator{
		RequiredFields("Link.URL", "Link.Prefix", "Recorder.DSN"),
		RangeValidator("Workers.HeartbeatSender", 1, 64),
		RangeValidator("Workers.HeartbeatReceiver", 1, 64),
		RangeValidator("Workers.Telemetry", 1, 64),
		RangeValidator("Workers.Command", 1, 64),
		RangeValidator("Workers.Recorder", 1, 64),
		RangeValidator("Command.AltitudeThreshold", 0.01, 1000),
		RangeValidator("Command.YawThresholdDeg", 0.1, 180),
	}
}
