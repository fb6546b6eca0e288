package realtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nexus-reussite/nexus-realtime/internal/core/observability/log"
	"github.com/nexus-reussite/nexus-realtime/internal/credential"
	"github.com/nexus-reussite/nexus-realtime/internal/realtime"
	"github.com/nexus-reussite/nexus-realtime/internal/realtime/realtimetest"
)

var errNetwork = errors.New("connection refused")

type fixture struct {
	manager *realtime.Manager
	dialer  *realtimetest.FakeDialer
	clock   *realtimetest.FakeClock
	tokens  *credential.MemoryStore
	logs    *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	f := &fixture{
		dialer: &realtimetest.FakeDialer{},
		clock:  realtimetest.NewFakeClock(),
		tokens: credential.NewMemoryStore("student-token"),
		logs:   logs,
	}
	f.manager = realtime.NewManager(realtime.Options{
		URL:     "ws://nexus.test/ws",
		Tokens:  f.tokens,
		Dialer:  f.dialer,
		Clock:   f.clock,
		Backoff: realtime.Backoff{BaseDelay: time.Second, MaxAttempts: 5},
		Logger:  log.FromZap(zap.New(core), log.LevelDebug),
	})
	t.Cleanup(f.manager.Disconnect)
	return f
}

func (f *fixture) status() realtime.Status {
	return f.manager.State().Status
}

func TestConnectSendsBearerToken(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.manager.Connect(context.Background()))

	state := f.manager.State()
	assert.Equal(t, realtime.StatusConnected, state.Status)
	assert.Equal(t, 0, state.ReconnectAttempt)
	assert.NoError(t, state.LastError)
	assert.Equal(t, "Bearer student-token", f.dialer.LastHeader().Get("Authorization"))
}

func TestConnectWhileConnectedIsNoop(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.Connect(context.Background()))
	require.NoError(t, f.manager.Connect(context.Background()))
	assert.Equal(t, 1, f.dialer.Attempts())
}

func TestConnectWithoutTokenDoesNothing(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.tokens.ClearToken())

	var changes []realtime.StateChange
	f.manager.OnStateChange(func(c realtime.StateChange) { changes = append(changes, c) })

	require.NoError(t, f.manager.Connect(context.Background()))

	assert.Equal(t, realtime.StatusDisconnected, f.status())
	assert.Equal(t, 0, f.dialer.Attempts())
	assert.Empty(t, changes)
	assert.Equal(t, 1, f.logs.FilterMessage("No auth token available, real-time connection not attempted").Len())
}

func TestDisconnectIsIdempotent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.Connect(context.Background()))
	conn := f.dialer.LastConn()

	f.manager.Disconnect()
	first := f.manager.State()
	f.manager.Disconnect()
	second := f.manager.State()

	assert.Equal(t, first, second)
	assert.Equal(t, realtime.StatusDisconnected, second.Status)
	assert.Equal(t, 0, second.ReconnectAttempt)
	assert.True(t, conn.Closed())
	assert.Equal(t, 0, f.clock.Pending(), "manual disconnect must not schedule a retry")
}

func TestDisconnectWhenNeverConnected(t *testing.T) {
	f := newFixture(t)
	assert.NotPanics(t, func() {
		f.manager.Disconnect()
		f.manager.Disconnect()
	})
	assert.Equal(t, realtime.StatusDisconnected, f.status())
}

func TestBackoffGrowsUntilFailed(t *testing.T) {
	f := newFixture(t)
	f.dialer.Fail(errNetwork)

	require.NoError(t, f.manager.Connect(context.Background()))
	require.Equal(t, realtime.StatusReconnecting, f.status())

	for i := 0; i < 10 && f.clock.Pending() > 0; i++ {
		f.clock.Advance(time.Hour)
	}

	delays := f.clock.Scheduled()
	require.Len(t, delays, 5)
	for i := 1; i < len(delays); i++ {
		assert.Greater(t, delays[i], delays[i-1], "delay %d must exceed delay %d", i, i-1)
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}, delays)

	state := f.manager.State()
	assert.Equal(t, realtime.StatusFailed, state.Status)
	assert.Greater(t, state.ReconnectAttempt, 5)
	assert.ErrorIs(t, state.LastError, errNetwork)
	assert.Equal(t, 0, f.clock.Pending())
	assert.Equal(t, 6, f.dialer.Attempts(), "initial dial plus five retries")

	// terminal until an explicit Connect
	f.clock.Advance(24 * time.Hour)
	assert.Equal(t, 6, f.dialer.Attempts())

	f.dialer.Fail(nil)
	require.NoError(t, f.manager.Connect(context.Background()))
	assert.Equal(t, realtime.StatusConnected, f.status())
	assert.Equal(t, 0, f.manager.State().ReconnectAttempt)
}

func TestNoReconnectAfterManualDisconnect(t *testing.T) {
	f := newFixture(t)
	f.dialer.Fail(errNetwork)

	require.NoError(t, f.manager.Connect(context.Background()))
	require.Equal(t, realtime.StatusReconnecting, f.status())
	require.Equal(t, 1, f.dialer.Attempts())

	f.manager.Disconnect()
	f.clock.Advance(time.Hour)

	assert.Equal(t, 1, f.dialer.Attempts())
	assert.Equal(t, realtime.StatusDisconnected, f.status())
	assert.Equal(t, 0, f.manager.State().ReconnectAttempt)
}

func TestManualConnectCancelsPendingRetry(t *testing.T) {
	f := newFixture(t)
	f.dialer.Fail(errNetwork)
	require.NoError(t, f.manager.Connect(context.Background()))
	require.Equal(t, 1, f.clock.Pending())

	f.dialer.Fail(nil)
	require.NoError(t, f.manager.Connect(context.Background()))
	require.Equal(t, realtime.StatusConnected, f.status())
	assert.Equal(t, 0, f.clock.Pending())

	f.clock.Advance(time.Hour)
	assert.Equal(t, 2, f.dialer.Attempts(), "stale retry must not dial again")
}

func TestDropTriggersReconnectAndResetsAttempt(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.Connect(context.Background()))
	first := f.dialer.LastConn()

	first.Drop(errors.New("server closed"))
	require.Eventually(t, func() bool {
		return f.status() == realtime.StatusReconnecting && first.Closed()
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.manager.State().ReconnectAttempt)

	f.clock.Advance(time.Second)

	state := f.manager.State()
	assert.Equal(t, realtime.StatusConnected, state.Status)
	assert.Equal(t, 0, state.ReconnectAttempt)
	assert.NotSame(t, first, f.dialer.LastConn())
}

func TestUnauthorizedHandshakeIsNotRetried(t *testing.T) {
	f := newFixture(t)
	f.dialer.Fail(realtime.ErrUnauthorized)

	require.NoError(t, f.manager.Connect(context.Background()))

	state := f.manager.State()
	assert.Equal(t, realtime.StatusDisconnected, state.Status)
	assert.ErrorIs(t, state.LastError, realtime.ErrUnauthorized)
	assert.Equal(t, 0, f.clock.Pending())
}

func TestUnauthorizedCloseIsNotRetried(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.Connect(context.Background()))

	f.dialer.LastConn().Drop(realtime.ErrUnauthorized)
	require.Eventually(t, func() bool {
		return f.status() == realtime.StatusDisconnected
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, f.clock.Pending())
}

func TestRetryAbandonedWhenTokenRemoved(t *testing.T) {
	f := newFixture(t)
	f.dialer.Fail(errNetwork)
	require.NoError(t, f.manager.Connect(context.Background()))

	require.NoError(t, f.tokens.ClearToken())
	f.clock.Advance(time.Second)

	state := f.manager.State()
	assert.Equal(t, realtime.StatusDisconnected, state.Status)
	assert.ErrorIs(t, state.LastError, credential.ErrNoToken)
	assert.Equal(t, 1, f.dialer.Attempts())
}

func TestEmitDropsWhenDisconnected(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.manager.JoinRoom("math-101"))
	assert.Equal(t, 1, f.logs.FilterMessage("Not connected, dropping outbound event").Len())
}

func TestEmitWritesFrames(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.Connect(context.Background()))
	conn := f.dialer.LastConn()

	assert.True(t, f.manager.JoinRoom("math-101"))
	assert.True(t, f.manager.SendRoomMessage("math-101", "bonjour"))
	assert.True(t, f.manager.UpdateStatus("away"))
	assert.True(t, f.manager.SendAriaMessage("aide-moi", map[string]any{"subject": "physique"}))
	assert.True(t, f.manager.LeaveRoom("math-101"))

	frames := conn.Written()
	require.Len(t, frames, 5)
	events := make([]string, len(frames))
	for i, fr := range frames {
		events[i] = fr.Event
	}
	assert.Equal(t, []string{"join_room", "room_message", "update_status", "aria_message", "leave_room"}, events)
	assert.JSONEq(t, `{"roomRef":"math-101","message":"bonjour"}`, string(frames[1].Data))

	var aria realtime.AriaMessagePayload
	require.NoError(t, json.Unmarshal(frames[3].Data, &aria))
	assert.Equal(t, "aide-moi", aria.Message)
	assert.True(t, f.clock.Now().Equal(aria.Timestamp))
}

func TestTransportHandlersOrderAndOff(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.Connect(context.Background()))
	conn := f.dialer.LastConn()

	var (
		mu    sync.Mutex
		calls []string
	)
	record := func(name string) realtime.TransportHandler {
		return func(event string, data json.RawMessage) {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, name+":"+string(data))
		}
	}
	f.manager.On("notification", record("A"))
	idB := f.manager.On("notification", record("B"))
	f.manager.On(realtime.AnyEvent, record("*"))

	conn.PushEvent("notification", 1)
	conn.Push([]byte("garbage"))
	conn.PushEvent("notification", 2)

	snapshot := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), calls...)
	}
	require.Eventually(t, func() bool { return len(snapshot()) == 6 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"A:1", "B:1", "*:1", "A:2", "B:2", "*:2"}, snapshot())

	f.manager.Off("notification", idB)
	conn.PushEvent("notification", 3)
	require.Eventually(t, func() bool { return len(snapshot()) == 8 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"A:3", "*:3"}, snapshot()[6:])
}

func TestPanickingTransportHandlerDoesNotStopOthers(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.Connect(context.Background()))

	got := make(chan string, 1)
	f.manager.On("ping", func(string, json.RawMessage) { panic("boom") })
	f.manager.On("ping", func(e string, _ json.RawMessage) { got <- e })

	f.dialer.LastConn().PushEvent("ping", nil)
	select {
	case e := <-got:
		assert.Equal(t, "ping", e)
	case <-time.After(time.Second):
		t.Fatal("second handler not called")
	}
	assert.Equal(t, realtime.StatusConnected, f.status())
}

func TestStateListenersSeeOrderedTransitions(t *testing.T) {
	f := newFixture(t)
	var seen []realtime.Status
	remove := f.manager.OnStateChange(func(c realtime.StateChange) {
		seen = append(seen, c.New.Status)
	})

	f.dialer.Fail(errNetwork)
	require.NoError(t, f.manager.Connect(context.Background()))
	f.dialer.Fail(nil)
	f.clock.Advance(time.Second)
	f.manager.Disconnect()

	assert.Equal(t, []realtime.Status{
		realtime.StatusConnecting,
		realtime.StatusReconnecting,
		realtime.StatusConnected,
		realtime.StatusDisconnected,
	}, seen)

	remove()
	require.NoError(t, f.manager.Connect(context.Background()))
	assert.Len(t, seen, 4)
}

func TestConnectHonoursCancelledContext(t *testing.T) {
	f := newFixture(t)
	f.dialer.Fail(context.Canceled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.manager.Connect(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, realtime.StatusDisconnected, f.status())
	assert.Equal(t, 0, f.clock.Pending())
}
