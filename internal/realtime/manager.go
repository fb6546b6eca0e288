// Package realtime owns the single authenticated duplex connection to the
// Nexus Réussite push server and recovers it after drops.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nexus-reussite/nexus-realtime/internal/core/observability/log"
	"github.com/nexus-reussite/nexus-realtime/internal/credential"
)

// AnyEvent registers a transport handler for every inbound event.
const AnyEvent = "*"

// TransportHandler receives raw inbound frames. Handlers run on the
// connection's reader goroutine, in frame order and registration order.
type TransportHandler func(event string, data json.RawMessage)

// HandlerID identifies a transport handler or state listener for removal.
type HandlerID uint64

type handlerEntry struct {
	id HandlerID
	fn TransportHandler
}

type listenerEntry struct {
	id HandlerID
	fn StateListener
}

// Options configures a Manager.
type Options struct {
	URL              string
	Tokens           credential.Source
	Dialer           Dialer
	Clock            Clock
	Backoff          Backoff
	HandshakeTimeout time.Duration
	Logger           log.Log
}

// Manager maintains at most one live connection. All methods are safe for
// concurrent use. Transport failures are never returned to callers; they
// surface through State and state listeners.
type Manager struct {
	url              string
	tokens           credential.Source
	dialer           Dialer
	clock            Clock
	backoff          Backoff
	handshakeTimeout time.Duration
	logger           log.Log

	mu    sync.Mutex
	state ConnectionState
	conn  Conn
	// gen is bumped by Connect and Disconnect; dials, retries and readers
	// carrying an older generation are stale and discard their results.
	gen   uint64
	retry Timer

	listeners    []listenerEntry
	nextListener HandlerID
	pending      []StateChange
	draining     bool

	handlersMu sync.RWMutex
	handlers   map[string][]handlerEntry
	nextID     HandlerID
}

// NewManager creates an idle (Disconnected) manager.
func NewManager(opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Backoff == (Backoff{}) {
		opts.Backoff = DefaultBackoff()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNop()
	}
	if opts.Dialer == nil {
		opts.Dialer = &WebSocketDialer{HandshakeTimeout: opts.HandshakeTimeout}
	}

	return &Manager{
		url:              opts.URL,
		tokens:           opts.Tokens,
		dialer:           opts.Dialer,
		clock:            opts.Clock,
		backoff:          opts.Backoff,
		handshakeTimeout: opts.HandshakeTimeout,
		logger:           opts.Logger.With(log.String("component", "realtime")),
		handlers:         make(map[string][]handlerEntry),
	}
}

// State returns a snapshot of the connection state.
func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnStateChange registers a listener for every transition and returns a
// function that removes it.
func (m *Manager) OnStateChange(l StateListener) func() {
	m.mu.Lock()
	m.nextListener++
	id := m.nextListener
	m.listeners = append(m.listeners, listenerEntry{id: id, fn: l})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, e := range m.listeners {
			if e.id == id {
				m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// Connect opens the connection using the stored bearer token. Without a
// token it logs and returns without touching the state. It blocks until the
// handshake completes or fails; a failed handshake hands over to the
// reconnection policy. ctx bounds the handshake only. The returned error is
// non-nil only when ctx ends first.
func (m *Manager) Connect(ctx context.Context) error {
	token, err := m.token()
	if err != nil {
		m.logger.Warn("No auth token available, real-time connection not attempted", log.Error(err))
		return nil
	}

	m.mu.Lock()
	if s := m.state.Status; s == StatusConnected || s == StatusConnecting {
		m.mu.Unlock()
		return nil
	}
	m.stopRetryLocked()
	m.gen++
	gen := m.gen
	m.setStateLocked(ConnectionState{Status: StatusConnecting})
	m.unlockAndNotify()

	return m.dial(ctx, gen, token)
}

// Disconnect tears the connection down and cancels any pending retry. It is
// idempotent and never triggers reconnection.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	m.stopRetryLocked()
	conn := m.conn
	m.conn = nil
	m.setStateLocked(ConnectionState{Status: StatusDisconnected})
	m.unlockAndNotify()

	if conn != nil {
		if err := conn.Close(); err != nil {
			m.logger.Debug("Error closing connection", log.Error(err))
		}
		m.logger.Info("Disconnected")
	}
}

// Emit sends event with payload over the live connection. When not connected
// the message is dropped with a warning, never queued. It reports whether
// the frame was handed to the transport.
func (m *Manager) Emit(event string, payload any) bool {
	m.mu.Lock()
	conn := m.conn
	status := m.state.Status
	m.mu.Unlock()

	if status != StatusConnected || conn == nil {
		m.logger.Warn("Not connected, dropping outbound event",
			log.String("event", event),
			log.String("status", status.String()))
		return false
	}

	data, err := EncodeFrame(event, payload)
	if err != nil {
		m.logger.Error("Failed to encode outbound event", log.String("event", event), log.Error(err))
		return false
	}

	if err = conn.WriteMessage(data); err != nil {
		m.logger.Warn("Failed to send event", log.String("event", event), log.Error(err))
		m.mu.Lock()
		if m.conn == conn {
			m.state.LastError = err
		}
		m.mu.Unlock()
		return false
	}
	return true
}

// On registers a raw transport handler for event (or AnyEvent).
func (m *Manager) On(event string, h TransportHandler) HandlerID {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	m.nextID++
	id := m.nextID
	m.handlers[event] = append(m.handlers[event], handlerEntry{id: id, fn: h})
	return id
}

// Off removes the handler registered under id for event.
func (m *Manager) Off(event string, id HandlerID) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	hs := m.handlers[event]
	for i, e := range hs {
		if e.id != id {
			continue
		}
		next := make([]handlerEntry, 0, len(hs)-1)
		next = append(next, hs[:i]...)
		next = append(next, hs[i+1:]...)
		if len(next) == 0 {
			delete(m.handlers, event)
		} else {
			m.handlers[event] = next
		}
		return
	}
}

func (m *Manager) token() (string, error) {
	if m.tokens == nil {
		return "", credential.ErrNoToken
	}
	return m.tokens.Token()
}

func (m *Manager) dial(ctx context.Context, gen uint64, token string) error {
	dctx := ctx
	if m.handshakeTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, m.handshakeTimeout)
		defer cancel()
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	m.logger.Debug("Dialing", log.String("url", m.url))
	conn, err := m.dialer.Dial(dctx, m.url, header)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return nil
	}

	switch {
	case err == nil:
		m.conn = conn
		m.setStateLocked(ConnectionState{Status: StatusConnected})
		m.unlockAndNotify()
		m.logger.Info("Connected", log.String("url", m.url))
		go m.readLoop(conn, gen)
		return nil

	case errors.Is(err, ErrUnauthorized):
		m.setStateLocked(ConnectionState{Status: StatusDisconnected, LastError: err})
		m.unlockAndNotify()
		m.logger.Error("Real-time credential rejected, not retrying", log.Error(err))
		return nil

	case ctx.Err() != nil:
		m.setStateLocked(ConnectionState{Status: StatusDisconnected, LastError: ctx.Err()})
		m.unlockAndNotify()
		return ctx.Err()

	default:
		m.logger.Warn("Connection attempt failed", log.Error(err))
		m.scheduleRetryLocked(gen, err)
		m.unlockAndNotify()
		return nil
	}
}

// scheduleRetryLocked applies the backoff policy after a failure.
func (m *Manager) scheduleRetryLocked(gen uint64, cause error) {
	attempt := m.state.ReconnectAttempt + 1
	m.stopRetryLocked()

	if m.backoff.Exhausted(attempt) {
		m.setStateLocked(ConnectionState{Status: StatusFailed, ReconnectAttempt: attempt, LastError: cause})
		m.logger.Error("Giving up on real-time connection",
			log.Int("attempts", attempt-1),
			log.Error(cause))
		return
	}

	delay := m.backoff.Delay(attempt)
	m.setStateLocked(ConnectionState{Status: StatusReconnecting, ReconnectAttempt: attempt, LastError: cause})
	m.retry = m.clock.AfterFunc(delay, func() { m.fireRetry(gen) })
	m.logger.Info("Reconnection scheduled",
		log.Int("attempt", attempt),
		log.Duration("delay", delay))
}

func (m *Manager) fireRetry(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state.Status != StatusReconnecting {
		m.mu.Unlock()
		return
	}
	m.retry = nil
	m.mu.Unlock()

	token, err := m.token()
	if err != nil {
		m.mu.Lock()
		if gen == m.gen {
			m.setStateLocked(ConnectionState{Status: StatusDisconnected, LastError: err})
		}
		m.unlockAndNotify()
		m.logger.Warn("Auth token gone, reconnection abandoned", log.Error(err))
		return
	}

	_ = m.dial(context.Background(), gen, token)
}

func (m *Manager) stopRetryLocked() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

func (m *Manager) readLoop(conn Conn, gen uint64) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.handleDrop(conn, gen, err)
			return
		}

		frame, err := DecodeFrame(data)
		if err != nil {
			m.logger.Warn("Dropping malformed frame", log.Error(err))
			continue
		}

		m.mu.Lock()
		stale := gen != m.gen
		m.mu.Unlock()
		if stale {
			return
		}
		m.dispatch(frame)
	}
}

func (m *Manager) handleDrop(conn Conn, gen uint64, err error) {
	m.mu.Lock()
	if gen != m.gen || m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil

	if errors.Is(err, ErrUnauthorized) {
		m.setStateLocked(ConnectionState{Status: StatusDisconnected, LastError: err})
		m.logger.Error("Session rejected by server, not retrying", log.Error(err))
	} else {
		m.logger.Warn("Connection lost", log.Error(err))
		m.scheduleRetryLocked(gen, err)
	}
	m.unlockAndNotify()

	_ = conn.Close()
}

func (m *Manager) dispatch(f Frame) {
	m.handlersMu.RLock()
	specific := m.handlers[f.Event]
	wildcard := m.handlers[AnyEvent]
	m.handlersMu.RUnlock()

	for _, h := range specific {
		m.invoke(h, f)
	}
	for _, h := range wildcard {
		m.invoke(h, f)
	}
}

func (m *Manager) invoke(h handlerEntry, f Frame) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Transport handler panicked",
				log.String("event", f.Event),
				log.Any("panic", r))
		}
	}()
	h.fn(f.Event, f.Data)
}

// setStateLocked records a transition for delivery by unlockAndNotify.
func (m *Manager) setStateLocked(next ConnectionState) {
	prev := m.state
	m.state = next
	if sameState(prev, next) {
		return
	}
	m.pending = append(m.pending, StateChange{Old: prev, New: next})
}

func sameState(a, b ConnectionState) bool {
	return a.Status == b.Status &&
		a.ReconnectAttempt == b.ReconnectAttempt &&
		a.LastError == nil && b.LastError == nil
}

// unlockAndNotify releases m.mu and delivers pending transitions. Only one
// goroutine drains at a time so listeners observe transitions in order.
func (m *Manager) unlockAndNotify() {
	if m.draining || len(m.pending) == 0 {
		m.mu.Unlock()
		return
	}
	m.draining = true
	for len(m.pending) > 0 {
		batch := m.pending
		m.pending = nil
		listeners := append([]listenerEntry(nil), m.listeners...)
		m.mu.Unlock()

		for _, change := range batch {
			for _, l := range listeners {
				m.notify(l.fn, change)
			}
		}

		m.mu.Lock()
	}
	m.draining = false
	m.mu.Unlock()
}

func (m *Manager) notify(l StateListener, change StateChange) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("State listener panicked", log.Any("panic", r))
		}
	}()
	l(change)
}
