// Package bridge republishes inbound real-time frames as typed events on the
// in-process bus, so consumers never touch the connection directly.
package bridge

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/nexus-reussite/nexus-realtime/internal/core/events/bus"
	"github.com/nexus-reussite/nexus-realtime/internal/core/observability/log"
	"github.com/nexus-reussite/nexus-realtime/internal/realtime"
)

// ErrMalformedPayload marks an inbound payload that could not be mapped.
var ErrMalformedPayload = errors.New("malformed payload")

// Transport is the part of the Connection Manager the bridge consumes.
type Transport interface {
	On(event string, h realtime.TransportHandler) realtime.HandlerID
	Off(event string, id realtime.HandlerID)
	OnStateChange(l realtime.StateListener) func()
}

type registration struct {
	event string
	id    realtime.HandlerID
}

// Bridge forwards transport events to a bus. Frames are republished on the
// reader goroutine, so per-event ordering is the frame order.
type Bridge struct {
	transport Transport
	bus       bus.EventBus
	logger    log.Log

	mu          sync.Mutex
	regs        []registration
	removeState func()
}

// New creates a detached bridge.
func New(t Transport, b bus.EventBus, logger log.Log) *Bridge {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Bridge{
		transport: t,
		bus:       b,
		logger:    logger.With(log.String("component", "bridge")),
	}
}

// Attach registers the transport handlers and the state listener. Calling it
// on an attached bridge does nothing.
func (br *Bridge) Attach() {
	br.mu.Lock()
	defer br.mu.Unlock()
	if br.removeState != nil {
		return
	}

	for _, r := range routes {
		id := br.transport.On(r.transport, func(_ string, data json.RawMessage) {
			br.forward(r, data)
		})
		br.regs = append(br.regs, registration{event: r.transport, id: id})
	}
	br.removeState = br.transport.OnStateChange(br.onStateChange)
}

// Detach removes everything Attach registered. It is idempotent.
func (br *Bridge) Detach() {
	br.mu.Lock()
	regs := br.regs
	removeState := br.removeState
	br.regs = nil
	br.removeState = nil
	br.mu.Unlock()

	for _, r := range regs {
		br.transport.Off(r.event, r.id)
	}
	if removeState != nil {
		removeState()
	}
}

// Attached reports whether handlers are currently registered.
func (br *Bridge) Attached() bool {
	br.mu.Lock()
	defer br.mu.Unlock()
	return br.removeState != nil
}

func (br *Bridge) forward(r route, data json.RawMessage) {
	payload, err := r.decode(data)
	if err == nil && r.validate != nil && !r.validate(payload) {
		err = errors.Wrap(ErrMalformedPayload, "required field missing")
	}
	if err != nil {
		br.logger.Warn("Dropping inbound event",
			log.String("event", r.transport),
			log.Error(err))
		return
	}
	br.publish(r.event, payload)
}

func (br *Bridge) onStateChange(c realtime.StateChange) {
	br.publish(EventConnectionStatus, ConnectionStatus{
		Connected: c.New.Connected(),
		Status:    c.New.Status,
		Attempt:   c.New.ReconnectAttempt,
		Error:     c.New.LastError,
	})
}

func (br *Bridge) publish(event string, payload any) {
	if err := br.bus.Publish(bus.NewEvent(event, Source, payload, nil)); err != nil {
		br.logger.Warn("Bus subscriber failed",
			log.String("event", event),
			log.Error(err))
	}
}

func decodeAs[T any](data []byte) (any, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrMalformedPayload, "empty payload")
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, errors.Wrap(ErrMalformedPayload, err.Error())
	}
	return v, nil
}

// Subscribe registers a typed handler for a bus event published by the
// bridge. Events whose payload is not a T are reported as errors to the
// publisher and never reach fn.
func Subscribe[T any](b bus.EventBus, event string, fn func(T)) (bus.Subscription, error) {
	return b.Subscribe(event, func(e bus.Event) error {
		v, ok := e.Data().(T)
		if !ok {
			return fmt.Errorf("%s: payload %T is not %T", event, e.Data(), v)
		}
		fn(v)
		return nil
	})
}
