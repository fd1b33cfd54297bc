package gate

import "sync"

// CircuitStatus is the state of one endpoint's breaker.
type CircuitStatus string

const (
	CircuitClosed   CircuitStatus = "closed"
	CircuitOpen     CircuitStatus = "open"
	CircuitHalfOpen CircuitStatus = "half_open"
)

// Circuit is the breaker state for one logical endpoint. It is a plain
// value; all transitions are pure functions taking explicit timestamps.
type Circuit struct {
	Status              CircuitStatus `json:"status"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	OpenedAtMs          int64         `json:"opened_at_ms"`
}

// CircuitConfig tunes the breaker.
type CircuitConfig struct {
	FailureThreshold int   // consecutive failures before opening
	CooldownMs       int64 // how long open rejects before a probe
}

// DefaultCircuitConfig returns the production defaults.
func DefaultCircuitConfig() CircuitConfig {
	return CircuitConfig{
		FailureThreshold: 3,
		CooldownMs:       30_000,
	}
}

// NewCircuit returns a closed breaker.
func NewCircuit() Circuit {
	return Circuit{Status: CircuitClosed}
}

// CanRequest decides whether a request may proceed at nowMs, returning the
// possibly-updated state. While open and inside the cooldown window all
// requests are rejected. At the cooldown boundary the breaker moves to
// half_open and admits exactly the caller that crossed it; further callers
// are rejected until the probe reports back.
func CanRequest(c Circuit, cfg CircuitConfig, nowMs int64) (bool, Circuit) {
	switch c.Status {
	case CircuitClosed:
		return true, c
	case CircuitOpen:
		if nowMs-c.OpenedAtMs >= cfg.CooldownMs {
			c.Status = CircuitHalfOpen
			return true, c
		}
		return false, c
	case CircuitHalfOpen:
		// Probe already in flight.
		return false, c
	default:
		return false, c
	}
}

// RecordSuccess applies a successful request to the state.
func RecordSuccess(c Circuit) Circuit {
	return Circuit{Status: CircuitClosed}
}

// ReleaseProbe returns a half-open circuit to open without recording an
// outcome. It covers probes that failed for reasons unrelated to upstream
// health (consent, admin policy): the window start is preserved, so the
// next request is admitted as a fresh probe immediately. A probe must
// always resolve through success, failure, or release; otherwise the
// half_open state would reject requests forever.
func ReleaseProbe(c Circuit) Circuit {
	if c.Status == CircuitHalfOpen {
		return Circuit{Status: CircuitOpen, ConsecutiveFailures: c.ConsecutiveFailures, OpenedAtMs: c.OpenedAtMs}
	}
	return c
}

// RecordFailure applies a failed request at nowMs. A failed half-open
// probe reopens with a fresh cooldown window starting now.
func RecordFailure(c Circuit, cfg CircuitConfig, nowMs int64) Circuit {
	switch c.Status {
	case CircuitHalfOpen:
		return Circuit{Status: CircuitOpen, ConsecutiveFailures: c.ConsecutiveFailures + 1, OpenedAtMs: nowMs}
	case CircuitOpen:
		return c
	default:
		c.ConsecutiveFailures++
		if c.ConsecutiveFailures >= cfg.FailureThreshold {
			return Circuit{Status: CircuitOpen, ConsecutiveFailures: c.ConsecutiveFailures, OpenedAtMs: nowMs}
		}
		return c
	}
}

// Breaker tracks circuit state per endpoint key. It wraps the pure
// transition functions with a mutex so interleaved turns observe a
// consistent state.
type Breaker struct {
	mu       sync.Mutex
	circuits map[string]Circuit
	cfg      CircuitConfig
}

// NewBreaker creates a registry with the given config.
func NewBreaker(cfg CircuitConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultCircuitConfig().FailureThreshold
	}
	if cfg.CooldownMs <= 0 {
		cfg.CooldownMs = DefaultCircuitConfig().CooldownMs
	}
	return &Breaker{circuits: make(map[string]Circuit), cfg: cfg}
}

// Allow reports whether a request to endpoint may proceed at nowMs.
func (b *Breaker) Allow(endpoint string, nowMs int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	ok, next := CanRequest(b.get(endpoint), b.cfg, nowMs)
	b.circuits[endpoint] = next
	return ok
}

// Success records a successful request to endpoint.
func (b *Breaker) Success(endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.circuits[endpoint] = RecordSuccess(b.get(endpoint))
}

// Failure records a failed request to endpoint at nowMs.
func (b *Breaker) Failure(endpoint string, nowMs int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.circuits[endpoint] = RecordFailure(b.get(endpoint), b.cfg, nowMs)
}

// Release returns endpoint's probe slot without recording an outcome.
func (b *Breaker) Release(endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.circuits[endpoint] = ReleaseProbe(b.get(endpoint))
}

// State returns a copy of the circuit for endpoint.
func (b *Breaker) State(endpoint string) Circuit {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.get(endpoint)
}

func (b *Breaker) get(endpoint string) Circuit {
	if c, ok := b.circuits[endpoint]; ok {
		return c
	}
	return NewCircuit()
}
