// Package affinity holds short-lived per-conversation state so the router
// can resolve follow-ups ("and eth?", "why?") without re-asking the user.
// Entries are keyed by composite identity and evicted lazily on read; there
// is no background timer.
package affinity

import (
	"sync"
	"time"
)

// DefaultTTL bounds how long general conversational context survives.
const DefaultTTL = 30 * time.Minute

// Key is the composite identity for all affinity state.
type Key struct {
	UserID         string
	ConversationID string
	DomainID       string
}

// Entry is the short-term memory bound to one (user, conversation, domain).
type Entry struct {
	TopicAffinityID string
	Intent          string
	LastReportMode  string
	LastReportReply string
	RemovedSections []string
	LastSymbolPair  string
	Timestamp       time.Time
}

// maxRemovedSections bounds the removed-section list carried per entry.
const maxRemovedSections = 8

// Store is a TTL-bound key-value store for conversational affinity.
// All methods are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries map[Key]Entry
	ttl     time.Duration
	now     func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTTL overrides the eviction TTL.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock injects a clock for deterministic tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty affinity store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		entries: make(map[Key]Entry),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the entry for key, pruning it first if expired.
// The second return is false when no live entry exists.
func (s *Store) Get(key Key) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return Entry{}, false
	}
	if s.now().Sub(e.Timestamp) > s.ttl {
		delete(s.entries, key)
		return Entry{}, false
	}
	return e, true
}

// Patch upserts fields onto the entry for key. Zero-valued fields of the
// patch preserve whatever the prior entry held; the timestamp always
// advances to now.
func (s *Store) Patch(key Key, patch Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries[key]
	if patch.TopicAffinityID != "" {
		e.TopicAffinityID = patch.TopicAffinityID
	}
	if patch.Intent != "" {
		e.Intent = patch.Intent
	}
	if patch.LastReportMode != "" {
		e.LastReportMode = patch.LastReportMode
	}
	if patch.LastReportReply != "" {
		e.LastReportReply = patch.LastReportReply
	}
	if patch.RemovedSections != nil {
		sections := patch.RemovedSections
		if len(sections) > maxRemovedSections {
			sections = sections[len(sections)-maxRemovedSections:]
		}
		e.RemovedSections = append([]string(nil), sections...)
	}
	if patch.LastSymbolPair != "" {
		e.LastSymbolPair = patch.LastSymbolPair
	}
	e.Timestamp = s.now()
	s.entries[key] = e
}

// Clear removes the entry for key, if any.
func (s *Store) Clear(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// ClearIfSuperseded drops key's entry when a different domain in the same
// conversation holds a strictly newer entry. This is the topic-switch
// heuristic: the newer domain owns the conversation now.
// Returns true when the entry was dropped.
func (s *Store) ClearIfSuperseded(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	mine, ok := s.entries[key]
	if !ok {
		return false
	}
	for other, e := range s.entries {
		if other.UserID != key.UserID || other.ConversationID != key.ConversationID {
			continue
		}
		if other.DomainID == key.DomainID {
			continue
		}
		if e.Timestamp.After(mine.Timestamp) {
			delete(s.entries, key)
			return true
		}
	}
	return false
}

// Len reports the number of stored entries, expired or not. Test helper.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
