// Package telemetry assembles position and attitude readings from the
// drone into complete samples for the decision stage.
package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/groundlink-io/groundlink/pkg/mav"
)

// ErrNilLink is returned by NewReader when no link is supplied.
var ErrNilLink = errors.New("link cannot be nil")

// Data is one complete telemetry sample: the most recent position and
// attitude reading combined.
type Data struct {
	TimeBootMS uint32 // ms

	X float64 // m
	Y float64 // m
	Z float64 // m

	VX float64 // m/s
	VY float64 // m/s
	VZ float64 // m/s

	Roll  float64 // rad
	Pitch float64 // rad
	Yaw   float64 // rad

	RollSpeed  float64 // rad/s
	PitchSpeed float64 // rad/s
	YawSpeed   float64 // rad/s
}

func (d Data) String() string {
	return fmt.Sprintf("telemetry{t=%dms pos=(%.2f, %.2f, %.2f) vel=(%.2f, %.2f, %.2f) rpy=(%.3f, %.3f, %.3f)}",
		d.TimeBootMS, d.X, d.Y, d.Z, d.VX, d.VY, d.VZ, d.Roll, d.Pitch, d.Yaw)
}

// Reader combines ATTITUDE and LOCAL_POSITION_NED messages into Data
// samples. It caches the latest half of each pair; a sample is emitted only
// when both halves are present, then the cache is cleared so every sample
// pairs fresh readings.
type Reader struct {
	link         mav.Link
	lastAttitude *mav.Attitude
	lastPosition *mav.LocalPositionNED
}

// NewReader creates a telemetry reader over the given link.
func NewReader(link mav.Link) (*Reader, error) {
	if link == nil {
		return nil, ErrNilLink
	}
	return &Reader{link: link}, nil
}

// pollInterval paces Collect between link polls.
const pollInterval = 10 * time.Millisecond

// Collect polls the link for up to budget and returns the first complete
// sample it can assemble, or false when the budget elapses with a half
// missing. Message kinds other than attitude and position are ignored.
func (r *Reader) Collect(budget time.Duration) (Data, bool) {
	deadline := time.Now().Add(budget)
	for {
		msg, ok := r.link.Recv()
		if ok {
			switch m := msg.(type) {
			case mav.Attitude:
				r.lastAttitude = &m
			case mav.LocalPositionNED:
				r.lastPosition = &m
			}
		}

		if r.lastAttitude != nil && r.lastPosition != nil {
			data := r.combine()
			r.lastAttitude = nil
			r.lastPosition = nil
			return data, true
		}

		if !time.Now().Before(deadline) {
			return Data{}, false
		}
		if !ok {
			time.Sleep(pollInterval)
		}
	}
}

func (r *Reader) combine() Data {
	att, pos := r.lastAttitude, r.lastPosition

	// The sample carries the newer of the two boot timestamps.
	t := att.TimeBootMS
	if pos.TimeBootMS > t {
		t = pos.TimeBootMS
	}

	return Data{
		TimeBootMS: t,
		X:          pos.X,
		Y:          pos.Y,
		Z:          pos.Z,
		VX:         pos.VX,
		VY:         pos.VY,
		VZ:         pos.VZ,
		Roll:       att.Roll,
		Pitch:      att.Pitch,
		Yaw:        att.Yaw,
		RollSpeed:  att.RollSpeed,
		PitchSpeed: att.PitchSpeed,
		YawSpeed:   att.YawSpeed,
	}
}
