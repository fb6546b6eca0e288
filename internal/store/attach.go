package store

import (
	"fmt"

	"github.com/nexus-reussite/nexus-realtime/internal/core/events/bus"
	"github.com/nexus-reussite/nexus-realtime/internal/core/observability/log"
)

// Bus event names the slice reacts to.
const (
	EventNewNotification  = "newNotification"
	EventConnectionStatus = "connectionStatus"
)

// ConnectionReport is implemented by connectionStatus payloads.
type ConnectionReport interface {
	IsConnected() bool
}

// Attach subscribes the slice to the bus events that feed it and returns a
// function that cancels both subscriptions.
func (s *Notifications) Attach(b bus.EventBus) (detach func(), err error) {
	notif, err := b.Subscribe(EventNewNotification, func(e bus.Event) error {
		switch in := e.Data().(type) {
		case NotificationInput:
			s.Add(in)
		case *NotificationInput:
			if in == nil {
				return fmt.Errorf("nil %s payload", EventNewNotification)
			}
			s.Add(*in)
		default:
			return fmt.Errorf("unexpected %s payload %T", EventNewNotification, e.Data())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	status, err := b.Subscribe(EventConnectionStatus, func(e bus.Event) error {
		switch v := e.Data().(type) {
		case ConnectionReport:
			s.SetConnectionStatus(v.IsConnected())
		case bool:
			s.SetConnectionStatus(v)
		default:
			return fmt.Errorf("unexpected %s payload %T", EventConnectionStatus, e.Data())
		}
		return nil
	})
	if err != nil {
		_ = notif.Cancel()
		return nil, err
	}

	return func() {
		for _, sub := range []bus.Subscription{notif, status} {
			if err := sub.Cancel(); err != nil {
				s.logger.Warn("Failed to cancel store subscription",
					log.String("event", sub.EventType()), log.Error(err))
			}
		}
	}, nil
}
