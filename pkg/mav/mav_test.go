package mav

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	att := Attitude{TimeBootMS: 1234, Roll: 0.1, Pitch: -0.2, Yaw: 1.5, YawSpeed: 0.01}

	raw, err := Encode(att)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, KindAttitude, decoded.Kind())
	assert.Equal(t, att, decoded.(Attitude))
}

func TestDecode_UnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"PARAM_SET","data":{}}`))
	assert.Error(t, err)
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestLoopback(t *testing.T) {
	ground, drone := NewLoopback(8)
	defer ground.Close()
	defer drone.Close()

	require.NoError(t, drone.Send(GCSHeartbeat()))
	msg, ok := ground.Recv()
	require.True(t, ok)
	assert.Equal(t, KindHeartbeat, msg.Kind())

	// Empty direction reports no message without blocking.
	_, ok = drone.Recv()
	assert.False(t, ok)
}

func TestLoopback_DropsWhenFull(t *testing.T) {
	ground, drone := NewLoopback(2)
	defer ground.Close()
	defer drone.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, drone.Send(Heartbeat{}))
	}
	assert.Equal(t, uint64(3), drone.Dropped())
}

func TestLoopback_SendAfterClose(t *testing.T) {
	ground, drone := NewLoopback(2)
	ground.Close()
	drone.Close()
	assert.ErrorIs(t, drone.Send(Heartbeat{}), ErrLinkClosed)
}

func TestWaitHeartbeat(t *testing.T) {
	ground, drone := NewLoopback(8)
	defer ground.Close()
	defer drone.Close()

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = drone.Send(Attitude{}) // discarded while waiting
		_ = drone.Send(Heartbeat{Type: 2})
	}()

	assert.NoError(t, WaitHeartbeat(ground, 2*time.Second))
}

func TestWaitHeartbeat_Timeout(t *testing.T) {
	ground, drone := NewLoopback(8)
	defer ground.Close()
	defer drone.Close()

	assert.ErrorIs(t, WaitHeartbeat(ground, 100*time.Millisecond), ErrNoHeartbeat)
}

func TestNATSLink(t *testing.T) {
	srv, url, err := StartEmbeddedServer(0)
	require.NoError(t, err)
	defer srv.Shutdown()

	ground, err := DialLink(LinkConfig{URL: url, Prefix: "test", Name: "ground", Role: RoleGround})
	require.NoError(t, err)
	defer ground.Close()

	drone, err := DialLink(LinkConfig{URL: url, Prefix: "test", Name: "drone", Role: RoleDrone})
	require.NoError(t, err)
	defer drone.Close()

	// Downlink: drone to ground.
	pos := LocalPositionNED{TimeBootMS: 99, X: 1, Y: 2, Z: -30, VZ: 0.5}
	require.NoError(t, drone.Send(pos))

	var got Message
	require.Eventually(t, func() bool {
		msg, ok := ground.Recv()
		if ok {
			got = msg
		}
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, pos, got.(LocalPositionNED))

	// Uplink: ground to drone.
	cmd := CommandLong{TargetSystem: 1, Command: CmdConditionYaw, Param1: 12.5}
	require.NoError(t, ground.Send(cmd))

	require.Eventually(t, func() bool {
		msg, ok := drone.Recv()
		if ok {
			got = msg
		}
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, cmd, got.(CommandLong))

	// Each endpoint must not hear its own transmissions.
	_, ok := ground.Recv()
	assert.False(t, ok)
}
