package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/inputlink/internal/bridge"
	"github.com/zeusync/inputlink/internal/core/engine"
	"github.com/zeusync/inputlink/internal/core/events/bus"
	"github.com/zeusync/inputlink/internal/core/grid"
	"github.com/zeusync/inputlink/internal/core/observability/log"
	"github.com/zeusync/inputlink/internal/core/systems/physics"
	"github.com/zeusync/inputlink/internal/core/world"
)

func serve(t *testing.T) (*engine.Engine, *world.Entity, string) {
	t.Helper()
	b := bus.New()
	w, err := world.New(5, 5, world.DefaultRules())
	require.NoError(t, err)
	e := engine.New(w, engine.Options{Bus: b})
	tank := world.NewEntity("tank", "red", grid.Point{X: 2, Y: 2}, grid.North, w.Rules().Initial)
	require.NoError(t, e.Register(tank))

	srv, err := bridge.NewServer(e, b, bridge.Options{Path: "/ws"}, nil)
	require.NoError(t, err)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		hs.Close()
	})
	return e, tank, "ws" + strings.TrimPrefix(hs.URL, "http") + "/ws"
}

func connect(t *testing.T, url, entity string) *Client {
	t.Helper()
	cfg := DefaultClientConfig()
	cfg.ServerURL = url
	cfg.Entity = entity
	cfg.LogLevel = log.LevelError
	c, err := NewClient(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// next skips frames until one of the given type arrives.
func next(t *testing.T, c *Client, frameType string) bridge.ServerFrame {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case f, ok := <-c.Frames():
			require.True(t, ok, "frames closed")
			if f.Type == frameType {
				return f
			}
		case <-timeout:
			t.Fatalf("no %s frame", frameType)
		}
	}
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{Entity: "tank"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewClient(Config{ServerURL: "ws://x"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConnectBindsEntity(t *testing.T) {
	_, tank, url := serve(t)
	c := connect(t, url, "tank")

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.IsConnected())
	assert.Equal(t, tank.ID, c.EntityID())
	require.NotNil(t, c.Welcome())
	dir, ok := c.Welcome().StringAt("direction")
	require.True(t, ok)
	assert.Equal(t, "north", dir)

	assert.ErrorIs(t, c.Connect(context.Background()), ErrAlreadyConnected)
}

func TestConnectUnknownEntity(t *testing.T) {
	_, _, url := serve(t)
	c := connect(t, url, "ghost")

	err := c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrRejected)
	assert.False(t, c.IsConnected())
}

func TestProposeBeforeConnect(t *testing.T) {
	_, _, url := serve(t)
	c := connect(t, url, "tank")
	assert.ErrorIs(t, c.Propose(world.ProposedAction{Fire: true}), ErrNotConnected)
}

func TestProposeAndReceiveCommit(t *testing.T) {
	e, tank, url := serve(t)
	c := connect(t, url, "tank")

	var commits atomic.Int32
	c.OnFrame(bridge.FrameCommit, func(bridge.ServerFrame) error {
		commits.Add(1)
		return nil
	})
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.Propose(world.ProposedAction{Move: true, MoveDirection: grid.Forward}))
	next(t, c, bridge.FrameAck)

	res := e.Step(context.Background())
	require.True(t, res.Completed)
	assert.Equal(t, grid.Point{X: 2, Y: 1}, tank.Location)

	commit := next(t, c, bridge.FrameCommit)
	assert.Equal(t, tank.ID, commit.Entity)
	assert.NotEmpty(t, commit.Changes)
	tick := next(t, c, bridge.FrameTick)
	assert.Equal(t, res.Tick, tick.Tick)
	assert.Equal(t, uint64(0), tick.Tick)
	assert.Equal(t, tick.Tick+1, e.Tick())
	assert.Equal(t, int32(1), commits.Load())
}

func TestWaypointsAndErrors(t *testing.T) {
	e, tank, url := serve(t)
	c := connect(t, url, "tank")

	errs := make(chan Event, 1)
	c.OnEvent(EventTypeError, func(ev Event) error {
		errs <- ev
		return nil
	})
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.AddWaypoint("home", physics.Vec3{X: 2, Y: 0}))
	next(t, c, bridge.FrameAck)
	e.Step(context.Background())
	snap, ok := e.Snapshot(tank.ID)
	require.True(t, ok)
	name, ok := snap.StringAt("waypoints", "waypoint", "id")
	require.True(t, ok)
	assert.Equal(t, "home", name)

	require.NoError(t, c.RemoveWaypoint("home"))
	next(t, c, bridge.FrameAck)
	e.Step(context.Background())
	snap, _ = e.Snapshot(tank.ID)
	_, ok = snap.Lookup("waypoints", "waypoint")
	assert.False(t, ok)

	require.NoError(t, c.Propose(world.ProposedAction{RadarPower: true, RadarPowerSetting: -1}))
	reply := next(t, c, bridge.FrameError)
	assert.Contains(t, reply.Error, bridge.ErrInvalidFrame.Error())
	select {
	case ev := <-errs:
		assert.ErrorIs(t, ev.Error, ErrRejected)
	case <-time.After(2 * time.Second):
		t.Fatal("no error event")
	}
}

func TestCloseStopsClient(t *testing.T) {
	_, _, url := serve(t)
	c := connect(t, url, "tank")
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.Close())
	assert.True(t, c.IsClosed())
	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.Propose(world.ProposedAction{Fire: true}), ErrClientClosed)
	assert.ErrorIs(t, c.Connect(context.Background()), ErrClientClosed)

	for range c.Frames() {
	}
	require.NoError(t, c.Close())
}
