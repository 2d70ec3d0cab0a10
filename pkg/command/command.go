// Package command turns telemetry samples into autopilot commands: climb or
// descend toward the target altitude, then turn toward the target heading.
package command

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/groundlink-io/groundlink/pkg/mav"
	"github.com/groundlink-io/groundlink/pkg/telemetry"
)

var (
	// ErrNilLink is returned by NewDecider when no link is supplied.
	ErrNilLink = errors.New("link cannot be nil")

	// ErrBadThreshold is returned by NewDecider for non-positive thresholds.
	ErrBadThreshold = errors.New("thresholds must be positive")
)

// Decision kinds reported on the command output channel.
const (
	KindChangeAltitude = "CHANGE_ALTITUDE"
	KindChangeYaw      = "CHANGING_YAW"
)

// Position is a point in the local NED frame, meters.
type Position struct {
	X float64
	Y float64
	Z float64
}

// Decision records one command issued to the drone. Delta is the altitude
// error in meters for CHANGE_ALTITUDE and the heading error in degrees for
// CHANGING_YAW.
type Decision struct {
	Kind  string
	Delta float64
}

func (d Decision) String() string {
	return fmt.Sprintf("%s: %.2f", d.Kind, d.Delta)
}

// Decider holds the threshold rules and the per-instance running velocity
// average. The average's accumulators belong to exactly one replica; they
// are never shared.
type Decider struct {
	link              mav.Link
	target            Position
	altitudeThreshold float64
	yawThresholdDeg   float64
	log               *slog.Logger

	inputCount int
	sumVX      float64
	sumVY      float64
	sumVZ      float64
}

// NewDecider creates a decision stage for one worker replica.
func NewDecider(link mav.Link, target Position, altitudeThreshold, yawThresholdDeg float64, log *slog.Logger) (*Decider, error) {
	if link == nil {
		return nil, ErrNilLink
	}
	if altitudeThreshold <= 0 || yawThresholdDeg <= 0 {
		return nil, ErrBadThreshold
	}
	if log == nil {
		log = slog.Default()
	}
	return &Decider{
		link:              link,
		target:            target,
		altitudeThreshold: altitudeThreshold,
		yawThresholdDeg:   yawThresholdDeg,
		log:               log,
	}, nil
}

// Decide evaluates one telemetry sample. It returns the decision made, or
// nil when the drone is within both thresholds. A failed transmission is a
// transient fault: it is logged and the sample simply yields no decision.
func (d *Decider) Decide(data telemetry.Data) *Decision {
	d.inputCount++
	d.sumVX += data.VX
	d.sumVY += data.VY
	d.sumVZ += data.VZ
	d.log.Info("average velocity",
		"vx", d.sumVX/float64(d.inputCount),
		"vy", d.sumVY/float64(d.inputCount),
		"vz", d.sumVZ/float64(d.inputCount),
	)

	errX := d.target.X - data.X
	errY := d.target.Y - data.Y
	errZ := d.target.Z - data.Z

	// Altitude has priority over heading.
	if math.Abs(errZ) > d.altitudeThreshold {
		cmd := mav.CommandLong{
			TargetSystem: 1,
			Command:      mav.CmdConditionChangeAlt,
			Param1:       1, // climb/descend rate, m/s
			Param7:       d.target.Z,
		}
		if err := d.link.Send(cmd); err != nil {
			d.log.Error("failed to send altitude command", "error", err)
		} else {
			return &Decision{Kind: KindChangeAltitude, Delta: errZ}
		}
	}

	targetYaw := math.Atan2(errY, errX)
	deltaYaw := targetYaw - data.Yaw
	// Wrap into (-pi, pi] so the turn takes the short way around.
	deltaYaw = math.Mod(deltaYaw+math.Pi, 2*math.Pi)
	if deltaYaw < 0 {
		deltaYaw += 2 * math.Pi
	}
	deltaYaw -= math.Pi
	deltaDeg := deltaYaw * 180 / math.Pi

	if math.Abs(deltaDeg) > d.yawThresholdDeg {
		direction := 1.0
		if deltaDeg > 0 {
			direction = -1.0
		}
		cmd := mav.CommandLong{
			TargetSystem: 1,
			Command:      mav.CmdConditionYaw,
			Param1:       deltaDeg,
			Param2:       5, // deg/s
			Param3:       direction,
			Param4:       1, // relative offset
		}
		if err := d.link.Send(cmd); err != nil {
			d.log.Error("failed to send yaw command", "error", err)
			return nil
		}
		return &Decision{Kind: KindChangeYaw, Delta: deltaDeg}
	}

	return nil
}
