package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-reussite/nexus-realtime/internal/core/events/bus"
)

type connected bool

func (c connected) IsConnected() bool { return bool(c) }

func TestAttachFeedsSliceFromBus(t *testing.T) {
	b := bus.New()
	s := newTestNotifications(0)

	detach, err := s.Attach(b)
	require.NoError(t, err)

	require.NoError(t, b.Publish(bus.NewEvent(EventNewNotification, "test", NotificationInput{ID: "a", Title: "a"}, nil)))
	require.NoError(t, b.Publish(bus.NewEvent(EventNewNotification, "test", &NotificationInput{ID: "b", Title: "b"}, nil)))
	require.NoError(t, b.Publish(bus.NewEvent(EventConnectionStatus, "test", connected(true), nil)))
	requireConsistent(t, s)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "a", list[1].ID)
	assert.True(t, s.Connected())

	require.NoError(t, b.Publish(bus.NewEvent(EventConnectionStatus, "test", false, nil)))
	assert.False(t, s.Connected())

	detach()
	assert.Equal(t, 0, b.Subscribers(EventNewNotification))
	assert.Equal(t, 0, b.Subscribers(EventConnectionStatus))
	require.NoError(t, b.Publish(bus.NewEvent(EventNewNotification, "test", NotificationInput{ID: "c"}, nil)))
	assert.Equal(t, 2, s.Len())
}

func TestAttachRejectsForeignPayload(t *testing.T) {
	b := bus.New()
	s := newTestNotifications(0)
	_, err := s.Attach(b)
	require.NoError(t, err)

	assert.Error(t, b.Publish(bus.NewEvent(EventNewNotification, "test", "not a notification", nil)))
	assert.Error(t, b.Publish(bus.NewEvent(EventNewNotification, "test", (*NotificationInput)(nil), nil)))
	assert.Error(t, b.Publish(bus.NewEvent(EventConnectionStatus, "test", 1, nil)))
	assert.Equal(t, 0, s.Len())
	requireConsistent(t, s)
}
