package app

import (
	"github.com/google/wire"
	"github.com/pkg/errors"

	"github.com/nexus-reussite/nexus-realtime/internal/config"
	"github.com/nexus-reussite/nexus-realtime/internal/core/events/bus"
	"github.com/nexus-reussite/nexus-realtime/internal/core/observability/log"
	"github.com/nexus-reussite/nexus-realtime/internal/credential"
	"github.com/nexus-reussite/nexus-realtime/internal/realtime"
	"github.com/nexus-reussite/nexus-realtime/internal/store"
)

// ProviderSet builds a Client from a loaded configuration.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideTokens,
	ProvidePreferences,
	ProvideDialer,
	ProvideClock,
	ProvideManager,
	ProvideBus,
	ProvideNotifications,
	NewClient,
)

func ProvideLogger(cfg *config.Config) log.Log {
	return log.New(log.ParseLevel(cfg.Log.Level))
}

func ProvideTokens(cfg *config.Config) (credential.Store, error) {
	ring, err := credential.OpenKeyring(credential.KeyringOptions{
		Service:  cfg.Credentials.Service,
		FileDir:  cfg.Credentials.FileDir,
		Backends: cfg.Credentials.Backends,
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening token keyring")
	}
	return ring, nil
}

// ProvidePreferences opens the preference database; the cleanup closes it
// when Client construction fails further down the graph.
func ProvidePreferences(cfg *config.Config) (*store.Preferences, func(), error) {
	prefs, err := store.OpenPreferences(cfg.Storage.Path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening preferences")
	}
	return prefs, func() { _ = prefs.Close() }, nil
}

func ProvideDialer(cfg *config.Config) realtime.Dialer {
	return &realtime.WebSocketDialer{
		HandshakeTimeout:  cfg.Server.HandshakeTimeout,
		WriteTimeout:      cfg.Connection.WriteTimeout,
		HeartbeatInterval: cfg.Connection.HeartbeatInterval,
		MaxMessageSize:    cfg.Connection.MaxMessageSize,
	}
}

func ProvideClock() realtime.Clock {
	return realtime.SystemClock()
}

func ProvideManager(
	cfg *config.Config,
	tokens credential.Store,
	dialer realtime.Dialer,
	clock realtime.Clock,
	logger log.Log,
) *realtime.Manager {
	return realtime.NewManager(realtime.Options{
		URL:    cfg.Server.URL,
		Tokens: tokens,
		Dialer: dialer,
		Clock:  clock,
		Backoff: realtime.Backoff{
			BaseDelay:   cfg.Reconnect.BaseDelay,
			MaxDelay:    cfg.Reconnect.MaxDelay,
			MaxAttempts: cfg.Reconnect.MaxAttempts,
		},
		HandshakeTimeout: cfg.Server.HandshakeTimeout,
		Logger:           logger,
	})
}

func ProvideBus() bus.EventBus {
	return bus.New()
}

func ProvideNotifications(cfg *config.Config, logger log.Log) *store.Notifications {
	return store.NewNotifications(store.Options{
		Capacity: cfg.Notifications.Capacity,
		Logger:   logger,
	})
}
