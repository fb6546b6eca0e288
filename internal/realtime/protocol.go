package realtime

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Frame is the wire envelope for both directions: {"event": ..., "data": ...}.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client-to-server event names.
const (
	EventJoinRoom     = "join_room"
	EventLeaveRoom    = "leave_room"
	EventRoomMessage  = "room_message"
	EventUpdateStatus = "update_status"
	EventAriaMessage  = "aria_message"
)

type RoomPayload struct {
	RoomRef string `json:"roomRef"`
}

type RoomMessagePayload struct {
	RoomRef string `json:"roomRef"`
	Message string `json:"message"`
}

type StatusPayload struct {
	Status string `json:"status"`
}

type AriaMessagePayload struct {
	Message   string         `json:"message"`
	Context   map[string]any `json:"context"`
	Timestamp time.Time      `json:"timestamp"`
}

// EncodeFrame marshals payload under event.
func EncodeFrame(event string, payload any) ([]byte, error) {
	if event == "" {
		return nil, errors.Wrap(ErrInvalidFrame, "empty event name")
	}
	f := Frame{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding %s payload", event)
		}
		f.Data = data
	}
	return json.Marshal(f)
}

// DecodeFrame parses an inbound envelope.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, errors.Wrap(ErrInvalidFrame, err.Error())
	}
	if f.Event == "" {
		return Frame{}, errors.Wrap(ErrInvalidFrame, "missing event name")
	}
	return f, nil
}
