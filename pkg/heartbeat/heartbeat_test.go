package heartbeat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundlink-io/groundlink/pkg/concurrency"
	"github.com/groundlink-io/groundlink/pkg/mav"
)

func TestNewSender_NilLink(t *testing.T) {
	_, err := NewSender(nil, nil)
	assert.ErrorIs(t, err, ErrNilLink)
}

func TestSender_Send(t *testing.T) {
	ground, drone := mav.NewLoopback(8)
	defer ground.Close()
	defer drone.Close()

	sender, err := NewSender(ground, nil)
	require.NoError(t, err)

	seq, err := sender.Send()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)

	msg, ok := drone.Recv()
	require.True(t, ok)
	hb := msg.(mav.Heartbeat)
	assert.Equal(t, mav.TypeGCS, hb.Type)
	assert.Equal(t, mav.AutopilotInvalid, hb.Autopilot)
	assert.Equal(t, mav.StateActive, hb.SystemStatus)
}

func TestReceiver_ConnectsOnBeat(t *testing.T) {
	ground, drone := mav.NewLoopback(8)
	defer ground.Close()
	defer drone.Close()

	r, err := NewReceiver(ground, time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusDisconnected, r.Run())

	require.NoError(t, drone.Send(mav.Heartbeat{}))
	assert.Equal(t, StatusConnected, r.Run())
	assert.Equal(t, 0, r.Missed())
}

func TestReceiver_DisconnectsAfterThreeSilentPeriods(t *testing.T) {
	ground, drone := mav.NewLoopback(8)
	defer ground.Close()
	defer drone.Close()

	r, err := NewReceiver(ground, time.Second, nil)
	require.NoError(t, err)

	// Drive the clock instead of sleeping through real periods.
	base := time.Now()
	clock := base
	r.now = func() time.Time { return clock }
	r.lastBeat = base

	require.NoError(t, drone.Send(mav.Heartbeat{}))
	require.Equal(t, StatusConnected, r.Run())

	for i := 1; i <= MaxMissed; i++ {
		clock = clock.Add(time.Second)
		status := r.Run()
		if i < MaxMissed {
			assert.Equal(t, StatusConnected, status, "still connected after %d misses", i)
		} else {
			assert.Equal(t, StatusDisconnected, status)
		}
		assert.Equal(t, i, r.Missed())
	}

	// A beat restores the connection and clears the miss count.
	require.NoError(t, drone.Send(mav.Heartbeat{}))
	assert.Equal(t, StatusConnected, r.Run())
	assert.Equal(t, 0, r.Missed())
}

func TestReceiver_IgnoresOtherKinds(t *testing.T) {
	ground, drone := mav.NewLoopback(8)
	defer ground.Close()
	defer drone.Close()

	r, err := NewReceiver(ground, time.Second, nil)
	require.NoError(t, err)

	require.NoError(t, drone.Send(mav.Attitude{}))
	assert.Equal(t, StatusDisconnected, r.Run())
}

func TestWorkers_EndToEnd(t *testing.T) {
	groundSend, droneRecv := mav.NewLoopback(16)
	groundRecv, droneSend := mav.NewLoopback(16)
	defer groundSend.Close()
	defer droneRecv.Close()
	defer groundRecv.Close()
	defer droneSend.Close()

	ctrl := concurrency.NewController()
	sentQ := concurrency.NewChannel(10)
	statusQ := concurrency.NewChannel(10)

	const period = 50 * time.Millisecond

	senderSpec, err := concurrency.NewSpec("heartbeat_sender",
		SenderWorker(groundSend, period, nil), 1, nil,
		nil, []concurrency.Channel{sentQ}, ctrl)
	require.NoError(t, err)

	receiverSpec, err := concurrency.NewSpec("heartbeat_receiver",
		ReceiverWorker(groundRecv, period, nil), 1, nil,
		nil, []concurrency.Channel{statusQ}, ctrl)
	require.NoError(t, err)

	pool, err := concurrency.NewPool([]*concurrency.Spec{senderSpec, receiverSpec}, nil)
	require.NoError(t, err)
	require.NoError(t, pool.StartWorkers())

	// The drone answers with its own beats.
	stopDrone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-stopDrone:
				return
			case <-ticker.C:
				_ = droneSend.Send(mav.Heartbeat{})
			}
		}
	}()

	// Sender side: sequence numbers flow out.
	seq, err := sentQ.Get(true, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)

	// Receiver side: status converges on Connected.
	require.Eventually(t, func() bool {
		status, err := statusQ.Get(true, time.Second)
		return err == nil && status == StatusConnected
	}, 3*time.Second, 10*time.Millisecond)

	// The drone heard the ground station's beats.
	require.Eventually(t, func() bool {
		msg, ok := droneRecv.Recv()
		return ok && msg.Kind() == mav.KindHeartbeat
	}, 3*time.Second, 10*time.Millisecond)

	close(stopDrone)
	pool.RequestExitAll()
	sentQ.Drain()
	statusQ.Drain()
	failed, err := pool.JoinAll(3 * time.Second)
	require.NoError(t, err)
	assert.Empty(t, failed)
}
