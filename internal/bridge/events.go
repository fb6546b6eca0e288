package bridge

import (
	"github.com/nexus-reussite/nexus-realtime/internal/realtime"
	"github.com/nexus-reussite/nexus-realtime/internal/store"
)

// Server-to-client transport event names.
const (
	TransportNotification       = "notification"
	TransportProgressUpdate     = "progress_update"
	TransportAriaResponse       = "aria_response"
	TransportUserStatusUpdate   = "user_status_update"
	TransportClassSessionUpdate = "class_session_update"
)

// Bus event names published by the bridge.
const (
	EventNewNotification    = store.EventNewNotification
	EventProgressUpdate     = "progressUpdate"
	EventAriaResponse       = "ariaResponse"
	EventUserStatusUpdate   = "userStatusUpdate"
	EventClassSessionUpdate = "classSessionUpdate"
	EventConnectionStatus   = store.EventConnectionStatus
)

// Source tags every event the bridge publishes.
const Source = "realtime"

// ProgressUpdate is a learning-progress delta for one student.
type ProgressUpdate struct {
	StudentRef string  `json:"studentRef"`
	Metric     string  `json:"metric"`
	Value      float64 `json:"value"`
	Delta      float64 `json:"delta"`
}

// AriaResponse is a reply from the tutoring assistant.
type AriaResponse struct {
	Text        string         `json:"text"`
	Suggestions []string       `json:"suggestions,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type UserStatus struct {
	UserRef string `json:"userRef"`
	Status  string `json:"status"`
}

type ClassSession struct {
	SessionRef string `json:"sessionRef"`
	State      string `json:"state"`
}

// ConnectionStatus mirrors a Connection Manager transition.
type ConnectionStatus struct {
	Connected bool
	Status    realtime.Status
	Attempt   int
	Error     error
}

func (c ConnectionStatus) IsConnected() bool { return c.Connected }

type route struct {
	transport string
	event     string
	decode    func([]byte) (any, error)
	validate  func(any) bool
}

var routes = []route{
	{
		transport: TransportNotification,
		event:     EventNewNotification,
		decode:    decodeAs[store.NotificationInput],
		validate: func(v any) bool {
			n := v.(store.NotificationInput)
			return n.Title != "" || n.Message != ""
		},
	},
	{
		transport: TransportProgressUpdate,
		event:     EventProgressUpdate,
		decode:    decodeAs[ProgressUpdate],
		validate:  func(v any) bool { return v.(ProgressUpdate).StudentRef != "" },
	},
	{
		transport: TransportAriaResponse,
		event:     EventAriaResponse,
		decode:    decodeAs[AriaResponse],
		validate:  func(v any) bool { return v.(AriaResponse).Text != "" },
	},
	{
		transport: TransportUserStatusUpdate,
		event:     EventUserStatusUpdate,
		decode:    decodeAs[UserStatus],
		validate:  func(v any) bool { return v.(UserStatus).UserRef != "" },
	},
	{
		transport: TransportClassSessionUpdate,
		event:     EventClassSessionUpdate,
		decode:    decodeAs[ClassSession],
		validate:  func(v any) bool { return v.(ClassSession).SessionRef != "" },
	},
}
