package affinity

import (
	"sync"
	"time"
)

// FollowUpTTL is how long a failed turn can be interrogated ("why?")
// before the error context is forgotten.
const FollowUpTTL = 8 * time.Minute

// ErrorState is the last failure seen for a key, kept so a clarifying
// question can be answered without re-invoking the capability.
type ErrorState struct {
	ErrorCode   string
	SafeMessage string
	Guidance    string
	Timestamp   time.Time
}

// FollowUpStore tracks per-key error state with a fixed TTL.
type FollowUpStore struct {
	mu      sync.Mutex
	entries map[Key]ErrorState
	ttl     time.Duration
	now     func() time.Time
}

// NewFollowUpStore creates an empty follow-up store. A nil clock means
// time.Now.
func NewFollowUpStore(now func() time.Time) *FollowUpStore {
	if now == nil {
		now = time.Now
	}
	return &FollowUpStore{
		entries: make(map[Key]ErrorState),
		ttl:     FollowUpTTL,
		now:     now,
	}
}

// RecordFailure (re)writes the error state for key. Failures without an
// error code are ignored: there is nothing actionable to follow up on.
func (s *FollowUpStore) RecordFailure(key Key, state ErrorState) {
	if state.ErrorCode == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state.Timestamp = s.now()
	s.entries[key] = state
}

// RecordSuccess deletes any error state for key. A successful call means
// the prior failure is stale context.
func (s *FollowUpStore) RecordSuccess(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Get returns live error state for key, pruning expired entries.
func (s *FollowUpStore) Get(key Key) (ErrorState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return ErrorState{}, false
	}
	if s.now().Sub(e.Timestamp) > s.ttl {
		delete(s.entries, key)
		return ErrorState{}, false
	}
	return e, true
}
