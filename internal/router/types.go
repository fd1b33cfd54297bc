// Package router is the conversational fast path for the exchange
// capability. It normalizes free text, classifies intent, resolves asset
// references, gates execution behind rollout and circuit-breaker checks,
// invokes the injected capability executor, and renders a deterministic
// reply. Everything it needs is injected; the package holds no global
// state.
package router

import "sync"

// Intent is the classified category of a user turn.
type Intent string

const (
	// IntentPrice is a spot-price lookup for one asset or pair.
	IntentPrice Intent = "price"
	// IntentPortfolio is a holdings/balance request.
	IntentPortfolio Intent = "portfolio"
	// IntentTransactions is a trade/activity history request.
	IntentTransactions Intent = "transactions"
	// IntentReport is a summary/digest report request.
	IntentReport Intent = "report"
	// IntentStatus is a connection/health check on the exchange link.
	IntentStatus Intent = "status"
	// IntentAssist is open-ended interest without an actionable command.
	IntentAssist Intent = "assist"
	// IntentPolicy covers preference directives and access questions.
	IntentPolicy Intent = "policy"
	// IntentClarify is a short answer to a pending clarification question.
	IntentClarify Intent = "clarify"
	// IntentValidation means the input was empty or unusable.
	IntentValidation Intent = "validation"
	// IntentNone means the turn is out of scope for this router.
	IntentNone Intent = "none"
)

// String returns the string representation of an Intent.
func (i Intent) String() string {
	return string(i)
}

// MatchedBy records which classification path claimed the turn.
type MatchedBy string

const (
	// MatchedByAlias means a phrase pattern from the priority rule table hit.
	MatchedByAlias MatchedBy = "alias"
	// MatchedByIntent means the marker-based fallback path hit.
	MatchedByIntent MatchedBy = "intent"
	// MatchedByNone means nothing claimed the turn.
	MatchedByNone MatchedBy = "none"
)

// Classification is the outcome of classifying normalized text.
type Classification struct {
	// IsCrypto reports whether the turn is in scope for the exchange
	// capability at all.
	IsCrypto bool `json:"is_crypto"`

	// Intent is the classified category.
	Intent Intent `json:"intent"`

	// MatchedBy records which classification stage decided.
	MatchedBy MatchedBy `json:"matched_by"`

	// Deferred means an upstream mission builder owns this turn and the
	// router must stay silent.
	Deferred bool `json:"deferred"`
}

// Turn is one inbound user message with its correlation identity.
type Turn struct {
	UserID         string
	ConversationID string
	MissionRunID   string
	Text           string
}

// Reply is the router's answer to one turn.
type Reply struct {
	// TurnID correlates the reply with log lines and capability calls.
	TurnID string `json:"turn_id"`

	// Text is the user-facing reply. Empty when the turn was out of scope
	// or deferred.
	Text string `json:"text"`

	// Intent is the classified category this reply answers.
	Intent Intent `json:"intent"`

	// MatchedBy records the classification path.
	MatchedBy MatchedBy `json:"matched_by"`

	// Deferred means an upstream component owns the turn.
	Deferred bool `json:"deferred"`

	// ErrorCode is set when the reply surfaces a failure envelope.
	ErrorCode string `json:"error_code,omitempty"`
}

// Stats tracks routing counters for monitoring and threshold tuning.
type Stats struct {
	TotalTurns         int64            `json:"total_turns"`
	AliasHits          int64            `json:"alias_hits"`
	IntentHits         int64            `json:"intent_hits"`
	Deferred           int64            `json:"deferred"`
	OutOfScope         int64            `json:"out_of_scope"`
	RolloutBlocked     int64            `json:"rollout_blocked"`
	CircuitRejections  int64            `json:"circuit_rejections"`
	Failures           int64            `json:"failures"`
	IntentDistribution map[Intent]int64 `json:"intent_distribution"`
}

// statsTracker is the mutable counter set behind Router.Stats.
type statsTracker struct {
	mu    sync.Mutex
	stats Stats
}

func newStatsTracker() *statsTracker {
	return &statsTracker{stats: Stats{IntentDistribution: make(map[Intent]int64)}}
}

func (t *statsTracker) record(mutate func(*Stats)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	mutate(&t.stats)
}

// snapshot returns a copy safe to hand to callers.
func (t *statsTracker) snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.stats
	out.IntentDistribution = make(map[Intent]int64, len(t.stats.IntentDistribution))
	for k, v := range t.stats.IntentDistribution {
		out.IntentDistribution[k] = v
	}
	return out
}
