// Command dronesim is a minimal drone simulator for exercising the ground
// station without hardware. It flies a simple kinematic model, downlinks
// heartbeats and telemetry, and obeys altitude and yaw commands.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/groundlink-io/groundlink/pkg/logging"
	"github.com/groundlink-io/groundlink/pkg/mav"
)

const (
	telemetryRate = 100 * time.Millisecond
	beatRate      = time.Second

	// How fast the model converges on commanded setpoints, per tick.
	climbRate = 0.2  // meters
	turnRate  = 0.05 // radians
)

// drone is the simulated vehicle state.
type drone struct {
	x, y, z    float64
	vx, vy, vz float64
	yaw        float64

	targetZ   float64
	targetYaw float64

	bootMS uint32
}

func (d *drone) step() {
	d.bootMS += uint32(telemetryRate / time.Millisecond)

	// Climb or descend toward the commanded altitude.
	dz := d.targetZ - d.z
	d.vz = clamp(dz, -climbRate, climbRate)
	d.z += d.vz

	// Turn toward the commanded heading, shortest way.
	dyaw := wrapPi(d.targetYaw - d.yaw)
	d.yaw = wrapPi(d.yaw + clamp(dyaw, -turnRate, turnRate))

	// Drift forward along the current heading.
	d.vx = 0.5 * math.Cos(d.yaw)
	d.vy = 0.5 * math.Sin(d.yaw)
	d.x += d.vx * telemetryRate.Seconds()
	d.y += d.vy * telemetryRate.Seconds()
}

func (d *drone) apply(cmd mav.CommandLong, log *slog.Logger) {
	switch cmd.Command {
	case mav.CmdConditionChangeAlt:
		d.targetZ = cmd.Param7
		log.Info("altitude command accepted", "target_z", d.targetZ)
	case mav.CmdConditionYaw:
		// Param1 carries the signed offset; Param3 only advises the
		// turn direction.
		delta := cmd.Param1 * math.Pi / 180
		d.targetYaw = wrapPi(d.yaw + delta)
		log.Info("yaw command accepted", "target_yaw", d.targetYaw)
	default:
		log.Warn("unknown command ignored", "command", cmd.Command)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func wrapPi(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

func main() {
	os.Exit(run())
}

func run() int {
	url := flag.String("url", "nats://127.0.0.1:4222", "NATS server URL")
	prefix := flag.String("prefix", "drone", "subject prefix")
	embedded := flag.Bool("embedded", false, "run an in-process NATS server")
	level := flag.String("level", "info", "log level")
	flag.Parse()

	log, err := logging.Setup(logging.Options{Level: *level, Format: "text"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		return 1
	}

	serverURL := *url
	if *embedded {
		srv, embeddedURL, err := mav.StartEmbeddedServer(4222)
		if err != nil {
			log.Error("failed to start embedded server", "error", err)
			return 1
		}
		defer srv.Shutdown()
		serverURL = embeddedURL
		log.Info("embedded NATS server running", "url", serverURL)
	}

	link, err := mav.DialLink(mav.LinkConfig{
		URL:    serverURL,
		Prefix: *prefix,
		Name:   "dronesim",
		Buffer: 256,
		Role:   mav.RoleDrone,
	})
	if err != nil {
		log.Error("failed to connect", "error", err)
		return 1
	}
	defer link.Close()
	log.Info("simulator connected", "url", serverURL, "prefix", *prefix)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	vehicle := &drone{z: 25, targetZ: 25}
	telemetryTick := time.NewTicker(telemetryRate)
	defer telemetryTick.Stop()
	beatTick := time.NewTicker(beatRate)
	defer beatTick.Stop()

	for {
		select {
		case <-stop:
			log.Info("simulator stopping")
			return 0

		case <-beatTick.C:
			if err := link.Send(mav.Heartbeat{
				Type:         1, // fixed wing
				Autopilot:    3, // ardupilot
				SystemStatus: mav.StateActive,
			}); err != nil {
				log.Warn("heartbeat send failed", "error", err)
			}

		case <-telemetryTick.C:
			// Uplink commands steer the model.
			for {
				msg, ok := link.Recv()
				if !ok {
					break
				}
				if cmd, isCmd := msg.(mav.CommandLong); isCmd {
					vehicle.apply(cmd, log)
				}
			}

			vehicle.step()
			if err := link.Send(mav.Attitude{
				TimeBootMS: vehicle.bootMS,
				Yaw:        vehicle.yaw,
			}); err != nil {
				log.Warn("attitude send failed", "error", err)
			}
			if err := link.Send(mav.LocalPositionNED{
				TimeBootMS: vehicle.bootMS,
				X:          vehicle.x,
				Y:          vehicle.y,
				Z:          vehicle.z,
				VX:         vehicle.vx,
				VY:         vehicle.vy,
				VZ:         vehicle.vz,
			}); err != nil {
				log.Warn("position send failed", "error", err)
			}
		}
	}
}
