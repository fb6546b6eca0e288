// Package app composes the real-time client: one Connection Manager, one
// bus, one bridge and one state store per Client. There is no package-level
// instance; callers own the Client and its lifecycle.
package app

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/nexus-reussite/nexus-realtime/internal/bridge"
	"github.com/nexus-reussite/nexus-realtime/internal/core/events/bus"
	"github.com/nexus-reussite/nexus-realtime/internal/core/observability/log"
	"github.com/nexus-reussite/nexus-realtime/internal/credential"
	"github.com/nexus-reussite/nexus-realtime/internal/realtime"
	"github.com/nexus-reussite/nexus-realtime/internal/store"
)

var ErrClosed = errors.New("client closed")

// Client is the root of the real-time stack.
type Client struct {
	Manager       *realtime.Manager
	Bus           bus.EventBus
	Notifications *store.Notifications
	Preferences   *store.Preferences

	tokens      credential.Store
	bridge      *bridge.Bridge
	detachStore func()
	logger      log.Log

	mu     sync.Mutex
	closed bool
}

// NewClient wires the bridge between manager and bus and attaches the
// notification slice to the bus. prefs may be nil when nothing is persisted.
func NewClient(
	manager *realtime.Manager,
	eventBus bus.EventBus,
	notifications *store.Notifications,
	prefs *store.Preferences,
	tokens credential.Store,
	logger log.Log,
) (*Client, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	br := bridge.New(manager, eventBus, logger)
	detach, err := notifications.Attach(eventBus)
	if err != nil {
		return nil, errors.Wrap(err, "attaching notification store")
	}
	br.Attach()

	return &Client{
		Manager:       manager,
		Bus:           eventBus,
		Notifications: notifications,
		Preferences:   prefs,
		tokens:        tokens,
		bridge:        br,
		detachStore:   detach,
		logger:        logger.With(log.String("component", "client")),
	}, nil
}

// Start opens the real-time channel with the stored token. Without a token
// nothing happens; see realtime.Manager.Connect.
func (c *Client) Start(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	return c.Manager.Connect(ctx)
}

// Login stores token and connects with it.
func (c *Client) Login(ctx context.Context, token string) error {
	if c.isClosed() {
		return ErrClosed
	}
	if err := c.tokens.SetToken(token); err != nil {
		return errors.Wrap(err, "storing auth token")
	}
	// a session opened with the previous token must not survive
	c.Manager.Disconnect()
	return c.Manager.Connect(ctx)
}

// Logout tears the channel down, forgets the token and drops every
// notification. Persisted preferences are kept.
func (c *Client) Logout() error {
	c.Manager.Disconnect()
	c.Notifications.Clear()
	c.Notifications.SetConnectionStatus(false)
	if err := c.tokens.ClearToken(); err != nil {
		return errors.Wrap(err, "clearing auth token")
	}
	c.logger.Info("Logged out")
	return nil
}

// Close disconnects and releases every resource. It is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.Manager.Disconnect()
	c.bridge.Detach()
	c.detachStore()

	if c.Preferences != nil {
		if err := c.Preferences.Close(); err != nil {
			return errors.Wrap(err, "closing preferences")
		}
	}
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
