package store

import (
	"maps"
	"time"
)

// Kind classifies a notification for rendering.
type Kind string

const (
	KindSuccess     Kind = "success"
	KindInfo        Kind = "info"
	KindWarning     Kind = "warning"
	KindError       Kind = "error"
	KindAchievement Kind = "achievement"
	KindMessage     Kind = "message"
	KindReminder    Kind = "reminder"
	KindSystem      Kind = "system"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindSuccess, KindInfo, KindWarning, KindError,
		KindAchievement, KindMessage, KindReminder, KindSystem:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Notification is one entry of the in-memory notification collection.
type Notification struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Read      bool           `json:"read"`
	Priority  Priority       `json:"priority"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	ActionRef string         `json:"actionUrl,omitempty"`
}

// NotificationInput is what producers hand to Add. ID and Timestamp are
// optional; the read flag is always false for a new entry.
type NotificationInput struct {
	ID        string         `json:"id,omitempty"`
	Kind      Kind           `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp,omitempty"`
	Priority  Priority       `json:"priority,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	ActionRef string         `json:"actionUrl,omitempty"`
}

func (n Notification) clone() Notification {
	n.Metadata = maps.Clone(n.Metadata)
	return n
}

// Snapshot is a consistent, caller-owned view of the slice.
type Snapshot struct {
	Notifications []Notification
	UnreadCount   int
	Connected     bool
}
