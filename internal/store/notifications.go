// Package store holds the client-side state derived from real-time events:
// the live notification collection, the connection flag and the persisted
// UI preferences.
package store

import (
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexus-reussite/nexus-realtime/internal/core/observability/log"
)

// DefaultCapacity bounds the collection when Options.Capacity is zero.
const DefaultCapacity = 200

// Listener observes every effective mutation of the slice.
type Listener func(Snapshot)

type listenerEntry struct {
	id uint64
	fn Listener
}

// Options configures a Notifications slice.
type Options struct {
	// Capacity is the maximum number of retained entries; the oldest are
	// evicted first. Negative disables the bound.
	Capacity int
	Now      func() time.Time
	Logger   log.Log
}

// Notifications is the authoritative notification collection. Entries are
// kept newest first. The unread counter always equals the number of entries
// whose Read flag is false. Mutations are synchronous; listeners observe
// them in order, outside the internal lock.
type Notifications struct {
	capacity int
	now      func() time.Time
	logger   log.Log

	mu        sync.Mutex
	items     []Notification
	index     map[string]int
	unread    int
	connected bool

	listeners    []listenerEntry
	nextListener uint64
	pending      []Snapshot
	draining     bool
}

// NewNotifications returns an empty slice.
func NewNotifications(opts Options) *Notifications {
	if opts.Capacity == 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNop()
	}
	return &Notifications{
		capacity: opts.Capacity,
		now:      opts.Now,
		logger:   opts.Logger.With(log.String("component", "notifications")),
		index:    make(map[string]int),
	}
}

// Add prepends a new unread entry and returns its id. A missing id is
// generated and a zero timestamp is stamped with the current time. Adding an
// id that is already present keeps the existing entry untouched.
func (s *Notifications) Add(in NotificationInput) string {
	n := Notification{
		ID:        in.ID,
		Kind:      in.Kind,
		Title:     in.Title,
		Message:   in.Message,
		Timestamp: in.Timestamp,
		Priority:  in.Priority,
		ActionRef: in.ActionRef,
		Metadata:  maps.Clone(in.Metadata),
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if !n.Kind.Valid() {
		n.Kind = KindInfo
	}
	if !n.Priority.Valid() {
		n.Priority = PriorityMedium
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = s.now()
	}

	s.mu.Lock()
	if _, ok := s.index[n.ID]; ok {
		s.mu.Unlock()
		s.logger.Debug("Duplicate notification ignored", log.String("id", n.ID))
		return n.ID
	}

	s.items = append(s.items, Notification{})
	copy(s.items[1:], s.items)
	s.items[0] = n
	s.unread++

	evicted := 0
	if s.capacity > 0 {
		for len(s.items) > s.capacity {
			last := s.items[len(s.items)-1]
			if !last.Read {
				s.unread--
			}
			s.items = s.items[:len(s.items)-1]
			evicted++
		}
	}
	s.reindexLocked()
	s.unlockAndNotify()

	if evicted > 0 {
		s.logger.Debug("Evicted oldest notifications", log.Int("count", evicted))
	}
	return n.ID
}

// MarkAsRead flags the entry as read. Unknown or already read ids are ignored.
func (s *Notifications) MarkAsRead(id string) {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok || s.items[i].Read {
		s.mu.Unlock()
		return
	}
	s.items[i].Read = true
	s.unread = max(s.unread-1, 0)
	s.unlockAndNotify()
}

// MarkAllAsRead flags every entry as read.
func (s *Notifications) MarkAllAsRead() {
	s.mu.Lock()
	if s.unread == 0 {
		s.mu.Unlock()
		return
	}
	for i := range s.items {
		s.items[i].Read = true
	}
	s.unread = 0
	s.unlockAndNotify()
}

// Remove deletes the entry with id, if present.
func (s *Notifications) Remove(id string) {
	s.Archive(id)
}

// Archive removes every listed entry in one mutation.
func (s *Notifications) Archive(ids ...string) {
	s.mu.Lock()
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.index[id]; ok {
			drop[id] = struct{}{}
		}
	}
	if len(drop) == 0 {
		s.mu.Unlock()
		return
	}

	kept := s.items[:0]
	for _, n := range s.items {
		if _, ok := drop[n.ID]; ok {
			if !n.Read {
				s.unread = max(s.unread-1, 0)
			}
			continue
		}
		kept = append(kept, n)
	}
	clear(s.items[len(kept):])
	s.items = kept
	s.reindexLocked()
	s.unlockAndNotify()
}

// Clear empties the collection.
func (s *Notifications) Clear() {
	s.mu.Lock()
	if len(s.items) == 0 {
		s.mu.Unlock()
		return
	}
	s.items = nil
	s.unread = 0
	clear(s.index)
	s.unlockAndNotify()
}

// SetConnectionStatus records the channel state for display.
func (s *Notifications) SetConnectionStatus(connected bool) {
	s.mu.Lock()
	if s.connected == connected {
		s.mu.Unlock()
		return
	}
	s.connected = connected
	s.unlockAndNotify()
}

// List returns the entries newest first.
func (s *Notifications) List() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked()
}

// Get returns the entry with id.
func (s *Notifications) Get(id string) (Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return Notification{}, false
	}
	return s.items[i].clone(), true
}

func (s *Notifications) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

func (s *Notifications) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Notifications) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Snapshot returns a consistent copy of the whole slice.
func (s *Notifications) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers l for every subsequent mutation and returns a
// function that removes it.
func (s *Notifications) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	s.nextListener++
	id := s.nextListener
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: l})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, e := range s.listeners {
			if e.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *Notifications) listLocked() []Notification {
	out := make([]Notification, len(s.items))
	for i, n := range s.items {
		out[i] = n.clone()
	}
	return out
}

func (s *Notifications) snapshotLocked() Snapshot {
	return Snapshot{
		Notifications: s.listLocked(),
		UnreadCount:   s.unread,
		Connected:     s.connected,
	}
}

func (s *Notifications) reindexLocked() {
	clear(s.index)
	for i, n := range s.items {
		s.index[n.ID] = i
	}
}

// unlockAndNotify queues the current snapshot, releases the lock and, unless
// another goroutine is already draining, delivers queued snapshots in order.
func (s *Notifications) unlockAndNotify() {
	if len(s.listeners) > 0 {
		s.pending = append(s.pending, s.snapshotLocked())
	}
	if s.draining || len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	s.draining = true

	for len(s.pending) > 0 {
		snap := s.pending[0]
		s.pending = s.pending[1:]
		listeners := append([]listenerEntry(nil), s.listeners...)
		s.mu.Unlock()

		for _, l := range listeners {
			s.deliver(l.fn, snap)
		}

		s.mu.Lock()
	}
	s.pending = nil
	s.draining = false
	s.mu.Unlock()
}

func (s *Notifications) deliver(l Listener, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Notification listener panicked", log.Any("panic", r))
		}
	}()
	l(snap)
}
