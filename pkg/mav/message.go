// Package mav carries the MAVLink-style message types exchanged with the
// drone and the Link transport they travel over. The framework in
// pkg/concurrency never sees these types; only worker bodies do.
package mav

import (
	"encoding/json"
	"fmt"
)

// Kind identifies a message type on the wire.
type Kind string

const (
	KindHeartbeat        Kind = "HEARTBEAT"
	KindAttitude         Kind = "ATTITUDE"
	KindLocalPositionNED Kind = "LOCAL_POSITION_NED"
	KindCommandLong      Kind = "COMMAND_LONG"
)

// MAV_CMD command IDs understood by the autopilot.
const (
	CmdConditionChangeAlt uint16 = 113
	CmdConditionYaw       uint16 = 115
)

// Heartbeat component type and state constants.
const (
	TypeGCS          uint8 = 6
	AutopilotInvalid uint8 = 8
	StateActive      uint8 = 4
)

// Message is any payload that can travel over a Link.
type Message interface {
	Kind() Kind
}

// Heartbeat announces component liveness once per period.
type Heartbeat struct {
	Type         uint8  `json:"type"`
	Autopilot    uint8  `json:"autopilot"`
	BaseMode     uint8  `json:"base_mode"`
	CustomMode   uint32 `json:"custom_mode"`
	SystemStatus uint8  `json:"system_status"`
}

func (Heartbeat) Kind() Kind { return KindHeartbeat }

// GCSHeartbeat is the heartbeat a ground control station sends.
func GCSHeartbeat() Heartbeat {
	return Heartbeat{
		Type:         TypeGCS,
		Autopilot:    AutopilotInvalid,
		SystemStatus: StateActive,
	}
}

// Attitude is the drone's orientation sample.
type Attitude struct {
	TimeBootMS uint32  `json:"time_boot_ms"`
	Roll       float64 `json:"roll"`
	Pitch      float64 `json:"pitch"`
	Yaw        float64 `json:"yaw"`
	RollSpeed  float64 `json:"rollspeed"`
	PitchSpeed float64 `json:"pitchspeed"`
	YawSpeed   float64 `json:"yawspeed"`
}

func (Attitude) Kind() Kind { return KindAttitude }

// LocalPositionNED is the drone's position/velocity sample in the local
// north-east-down frame.
type LocalPositionNED struct {
	TimeBootMS uint32  `json:"time_boot_ms"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	VX         float64 `json:"vx"`
	VY         float64 `json:"vy"`
	VZ         float64 `json:"vz"`
}

func (LocalPositionNED) Kind() Kind { return KindLocalPositionNED }

// CommandLong is a parameterized command sent to the autopilot.
type CommandLong struct {
	TargetSystem    uint8   `json:"target_system"`
	TargetComponent uint8   `json:"target_component"`
	Command         uint16  `json:"command"`
	Confirmation    uint8   `json:"confirmation"`
	Param1          float64 `json:"param1"`
	Param2          float64 `json:"param2"`
	Param3          float64 `json:"param3"`
	Param4          float64 `json:"param4"`
	Param5          float64 `json:"param5"`
	Param6          float64 `json:"param6"`
	Param7          float64 `json:"param7"`
}

func (CommandLong) Kind() Kind { return KindCommandLong }

// envelope is the wire frame: the kind plus the JSON payload.
type envelope struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Encode frames a message for the wire.
func Encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", msg.Kind(), err)
	}
	return json.Marshal(envelope{Type: msg.Kind(), Data: data})
}

// Decode parses a framed message back into its concrete type.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}

	switch env.Type {
	case KindHeartbeat:
		var msg Heartbeat
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", env.Type, err)
		}
		return msg, nil
	case KindAttitude:
		var msg Attitude
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", env.Type, err)
		}
		return msg, nil
	case KindLocalPositionNED:
		var msg LocalPositionNED
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", env.Type, err)
		}
		return msg, nil
	case KindCommandLong:
		var msg CommandLong
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", env.Type, err)
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}
