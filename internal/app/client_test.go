package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-reussite/nexus-realtime/internal/bridge"
	"github.com/nexus-reussite/nexus-realtime/internal/config"
	"github.com/nexus-reussite/nexus-realtime/internal/credential"
	"github.com/nexus-reussite/nexus-realtime/internal/realtime"
	"github.com/nexus-reussite/nexus-realtime/internal/realtime/realtimetest"
	"github.com/nexus-reussite/nexus-realtime/internal/store"
)

type fixture struct {
	client *Client
	dialer *realtimetest.FakeDialer
	tokens *credential.MemoryStore
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Path = store.MemoryPath

	f := &fixture{
		dialer: &realtimetest.FakeDialer{},
		tokens: credential.NewMemoryStore(token),
	}
	logger := ProvideLogger(&cfg)
	prefs, cleanup, err := ProvidePreferences(&cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	manager := ProvideManager(&cfg, f.tokens, f.dialer, realtimetest.NewFakeClock(), logger)
	f.client, err = NewClient(manager, ProvideBus(), ProvideNotifications(&cfg, logger), prefs, f.tokens, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.client.Close() })
	return f
}

func TestStartConnectsAndFeedsStore(t *testing.T) {
	f := newFixture(t, "student-token")

	require.NoError(t, f.client.Start(context.Background()))
	assert.Equal(t, realtime.StatusConnected, f.client.Manager.State().Status)
	assert.True(t, f.client.Notifications.Connected())

	f.dialer.LastConn().PushEvent(bridge.TransportNotification, store.NotificationInput{ID: "n1", Title: "Séance demain"})
	require.Eventually(t, func() bool { return f.client.Notifications.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.client.Notifications.UnreadCount())
}

func TestStartWithoutTokenDoesNotDial(t *testing.T) {
	f := newFixture(t, "")

	require.NoError(t, f.client.Start(context.Background()))
	assert.Equal(t, realtime.StatusDisconnected, f.client.Manager.State().Status)
	assert.Equal(t, 0, f.dialer.Attempts())
	assert.False(t, f.client.Notifications.Connected())
}

func TestLoginStoresTokenAndConnects(t *testing.T) {
	f := newFixture(t, "")

	require.NoError(t, f.client.Login(context.Background(), "fresh-token"))
	assert.Equal(t, realtime.StatusConnected, f.client.Manager.State().Status)
	assert.Equal(t, "Bearer fresh-token", f.dialer.LastHeader().Get("Authorization"))
}

func TestLogoutResetsSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "student-token")
	require.NoError(t, f.client.Start(ctx))
	require.NoError(t, f.client.Preferences.SetTheme(ctx, store.ThemeDark))
	f.client.Notifications.Add(store.NotificationInput{Title: "local toast"})

	require.NoError(t, f.client.Logout())

	state := f.client.Manager.State()
	assert.Equal(t, realtime.StatusDisconnected, state.Status)
	assert.Equal(t, 0, state.ReconnectAttempt)
	assert.Equal(t, 0, f.client.Notifications.Len())
	assert.Equal(t, 0, f.client.Notifications.UnreadCount())
	assert.False(t, f.client.Notifications.Connected())

	_, err := f.tokens.Token()
	assert.ErrorIs(t, err, credential.ErrNoToken)

	ui, err := f.client.Preferences.UIState(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.ThemeDark, ui.Theme, "preferences survive logout")

	require.NoError(t, f.client.Start(ctx))
	assert.Equal(t, 1, f.dialer.Attempts(), "no reconnection without a token")
}

func TestCloseIsIdempotentAndDetaches(t *testing.T) {
	f := newFixture(t, "student-token")
	require.NoError(t, f.client.Start(context.Background()))

	require.NoError(t, f.client.Close())
	require.NoError(t, f.client.Close())

	assert.Equal(t, realtime.StatusDisconnected, f.client.Manager.State().Status)
	assert.Equal(t, 0, f.client.Bus.Subscribers(store.EventNewNotification))
	assert.Equal(t, 0, f.client.Bus.Subscribers(store.EventConnectionStatus))
	assert.ErrorIs(t, f.client.Start(context.Background()), ErrClosed)
	assert.Equal(t, 1, f.dialer.Attempts())
}
