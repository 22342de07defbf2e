package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/p2p2-protocol/p2p2-go/pkg/bootstrap"
	"github.com/p2p2-protocol/p2p2-go/pkg/medium"
	"github.com/p2p2-protocol/p2p2-go/pkg/usd"
	"github.com/p2p2-protocol/p2p2-go/pkg/wire"
)

const (
	testPIN     = "12345670"
	waitTimeout = 3 * time.Second
)

// testNet is a set of started devices sharing an in-memory hub and a mock
// clock.
type testNet struct {
	t     *testing.T
	hub   *medium.Hub
	clock *clock.Mock
	devs  []*Device
}

func newTestNet(t *testing.T, n int, tweak func(i int, cfg *DeviceConfig)) *testNet {
	t.Helper()

	net := &testNet{
		t:     t,
		hub:   medium.NewHub(),
		clock: clock.NewMock(),
	}
	for i := 0; i < n; i++ {
		cfg := testConfig(i, net.clock)
		if tweak != nil {
			tweak(i, &cfg)
		}
		dev, err := NewDevice(cfg, net.hub)
		require.NoError(t, err)
		require.NoError(t, dev.Start(context.Background()))
		net.devs = append(net.devs, dev)
	}

	t.Cleanup(func() {
		for _, dev := range net.devs {
			if err := dev.Stop(); err != nil && !errors.Is(err, ErrNotStarted) {
				t.Errorf("stop %s: %v", dev.Address(), err)
			}
		}
	})
	return net
}

func testAddr(i int) string {
	return fmt.Sprintf("02:00:00:00:00:%02x", i+1)
}

func testConfig(i int, clk clock.Clock) DeviceConfig {
	cfg := DefaultDeviceConfig()
	cfg.Address = testAddr(i)
	cfg.Clock = clk
	return cfg
}

// discoverAll makes every device announce itself and waits until each one
// has heard all the others.
func (n *testNet) discoverAll() {
	n.t.Helper()
	for _, dev := range n.devs {
		_, err := dev.Publish(usd.PublishParams{ServiceName: "p2p2", Unsolicited: true, P2P: true})
		require.NoError(n.t, err)
	}
	require.Eventually(n.t, func() bool {
		for _, dev := range n.devs {
			if len(dev.Peers()) != len(n.devs)-1 {
				return false
			}
		}
		return true
	}, waitTimeout, time.Millisecond)
}

// settle waits until every device has processed what was queued for it.
// Frames are delivered into the receiver's inbox when sent, so two rounds
// cover a request and its answer.
func (n *testNet) settle() {
	n.t.Helper()
	for round := 0; round < 2; round++ {
		for _, dev := range n.devs {
			require.NoError(n.t, dev.call(func() error { return nil }))
		}
	}
}

// advanceUntil moves the clock forward in steps until cond holds.
func (n *testNet) advanceUntil(step time.Duration, cond func() bool) {
	n.t.Helper()
	require.Eventually(n.t, func() bool {
		if cond() {
			return true
		}
		n.clock.Add(step)
		return cond()
	}, waitTimeout, 2*time.Millisecond)
}

func waitEvent(t *testing.T, dev *Device, types ...EventType) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()

	ev, err := dev.Events().Wait(ctx, types...)
	require.NoError(t, err, "waiting for %v on %s", types, dev.Address())
	return ev
}

// pair authorizes initiator on responder and runs a pairing with the given
// method and intents.
func pair(t *testing.T, responder, initiator *Device, method bootstrap.Method, respIntent, initIntent int) {
	t.Helper()
	password := ""
	if method.RequiresPassword() {
		password = testPIN
	}
	require.NoError(t, responder.Connect(ConnectParams{
		Peer:     initiator.Address(),
		Method:   method.Counterpart(),
		Auth:     true,
		Password: password,
		GoIntent: respIntent,
	}))
	require.NoError(t, initiator.Connect(ConnectParams{
		Peer:     responder.Address(),
		Method:   method,
		Password: password,
		GoIntent: initIntent,
	}))
	waitEvent(t, initiator, EventPairingComplete)
	waitEvent(t, responder, EventPairingComplete)
}

func isGroupFrame(frame []byte) bool {
	f, err := wire.Decode(frame)
	if err != nil {
		return false
	}
	switch f.Type {
	case wire.FrameGroupConfirm, wire.FrameGroupAssociated, wire.FrameGroupDeauth, wire.FrameGroupLeave:
		return true
	}
	return false
}
