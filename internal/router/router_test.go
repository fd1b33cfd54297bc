package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/centavo/internal/capability"
	"github.com/normanking/centavo/internal/gate"
	"github.com/normanking/centavo/internal/prefs"
)

const (
	priceResponse     = `{"ok":true,"price":43250.12,"freshness_sec":12,"as_of":"2026-03-01T15:30:00Z"}`
	portfolioResponse = `{"ok":true,"total_value":30107.06,"move_pct":3.2,"tx_count":5,"cash_flow":120.5,"staleness_sec":20,"as_of":"2026-03-01T15:30:00Z","assets":[{"symbol":"BTC","amount":0.5,"value":21625.06},{"symbol":"ETH","amount":4,"value":8402.0},{"symbol":"DOGE","amount":1000,"value":80.0}]}`
	statusResponse    = `{"ok":true,"connected":true,"latency_ms":42}`
)

type fakeExecutor struct {
	mu        sync.Mutex
	calls     int
	responses map[string]string
	err       error
}

func (f *fakeExecutor) Invoke(_ context.Context, name string, _ map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.responses[name], nil
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func defaultResponses() map[string]string {
	return map[string]string{
		capability.CapPrice:        priceResponse,
		capability.CapPortfolio:    portfolioResponse,
		capability.CapTransactions: portfolioResponse,
		capability.CapReports:      portfolioResponse,
		capability.CapStatus:       statusResponse,
	}
}

type testHarness struct {
	router *Router
	exec   *fakeExecutor
}

func newHarness(t *testing.T, mutate func(*Deps, *capability.EnabledSet)) *testHarness {
	t.Helper()
	exec := &fakeExecutor{responses: defaultResponses()}
	enabled := capability.EnabledSet{}
	deps := Deps{
		Rollout: gate.RolloutConfig{Stage: gate.StageFull},
		Logger:  zerolog.Nop(),
		Now:     func() time.Time { return time.Date(2026, 3, 1, 15, 30, 30, 0, time.UTC) },
	}
	if mutate != nil {
		mutate(&deps, &enabled)
	}
	deps.Adapter = capability.NewAdapter(exec, enabled)
	return &testHarness{router: New(Config{}, deps), exec: exec}
}

func (h *testHarness) turn(text string) Reply {
	return h.router.Handle(context.Background(), Turn{
		UserID:         "user-1",
		ConversationID: "conv-1",
		Text:           text,
	})
}

func TestHandle_PriceHappyPath(t *testing.T) {
	h := newHarness(t, nil)

	reply := h.turn("price btc")
	assert.Equal(t, IntentPrice, reply.Intent)
	assert.Contains(t, reply.Text, "BTC-USD now:")
	assert.Contains(t, reply.Text, "Freshness: 12s")
	assert.Empty(t, reply.ErrorCode)
	assert.NotEmpty(t, reply.TurnID)
}

func TestHandle_TypoCorrectedPrice(t *testing.T) {
	h := newHarness(t, nil)

	clean := h.turn("price btc")
	typo := h.turn("prcie btc")
	assert.Equal(t, clean.Text, typo.Text)
}

func TestHandle_AmbiguousSymbolAsksForConfirmation(t *testing.T) {
	h := newHarness(t, nil)

	reply := h.turn("price btx")
	assert.Contains(t, reply.Text, "Did you mean BTC")
	assert.Equal(t, 0, h.exec.callCount(), "no capability call on ambiguous input")

	// A bare "yes" confirms the stashed suggestion.
	confirm := h.turn("yes")
	assert.Equal(t, IntentPrice, confirm.Intent)
	assert.Contains(t, confirm.Text, "BTC-USD now:")
	assert.Equal(t, 1, h.exec.callCount())
}

func TestHandle_ClarifyRejectionClearsPending(t *testing.T) {
	h := newHarness(t, nil)

	h.turn("price btx")
	reply := h.turn("no")
	assert.Contains(t, reply.Text, "Which asset")

	// Nothing pending anymore, so the bare confirmation is not claimed.
	reply = h.turn("yes")
	assert.Equal(t, IntentNone, reply.Intent)
	assert.Empty(t, reply.Text)
	assert.Equal(t, 0, h.exec.callCount())
}

func TestHandle_BareConfirmationWithoutPendingIsOutOfScope(t *testing.T) {
	h := newHarness(t, nil)

	for _, text := range []string{"yes", "nope", "i meant sol"} {
		reply := h.turn(text)
		assert.Equal(t, IntentNone, reply.Intent, "input %q", text)
		assert.Empty(t, reply.Text, "input %q", text)
		assert.False(t, reply.Deferred, "input %q", text)
	}
	assert.Equal(t, 0, h.exec.callCount())
	assert.Equal(t, int64(3), h.router.Stats().OutOfScope)
}

func TestHandle_FollowUpReusesLastPair(t *testing.T) {
	h := newHarness(t, nil)

	h.turn("price eth/usd")
	reply := h.turn("price again")
	assert.Contains(t, reply.Text, "ETH-USD now:")
	assert.Equal(t, 2, h.exec.callCount())
}

func TestHandle_CancelClearsAffinity(t *testing.T) {
	h := newHarness(t, nil)

	h.turn("price btc")
	reply := h.turn("never mind")
	assert.Contains(t, reply.Text, "dropped")

	// The pair is gone, so a bare "price" cannot resolve.
	reply = h.turn("price")
	assert.Contains(t, reply.Text, "couldn't match")
}

func TestHandle_UnresolvedSymbol(t *testing.T) {
	h := newHarness(t, nil)

	reply := h.turn("price zzzzqq")
	assert.Contains(t, reply.Text, "couldn't match")
	assert.Equal(t, 0, h.exec.callCount())
}

func TestHandle_RolloutRampBoundaries(t *testing.T) {
	blocked := newHarness(t, func(d *Deps, _ *capability.EnabledSet) {
		d.Rollout = gate.RolloutConfig{Stage: gate.StageRamp, Percent: 0, Salt: "s1"}
	})
	reply := blocked.turn("price btc")
	assert.Equal(t, capability.CodeRolloutBlocked, reply.ErrorCode)
	assert.Contains(t, reply.Text, "isn't enabled for your account yet")
	assert.Equal(t, 0, blocked.exec.callCount())

	open := newHarness(t, func(d *Deps, _ *capability.EnabledSet) {
		d.Rollout = gate.RolloutConfig{Stage: gate.StageRamp, Percent: 100, Salt: "s1"}
	})
	reply = open.turn("price btc")
	assert.Empty(t, reply.ErrorCode)
	assert.Equal(t, 1, open.exec.callCount())
}

func TestHandle_DeniedCategoryNeverInvokesExecutor(t *testing.T) {
	h := newHarness(t, func(_ *Deps, enabled *capability.EnabledSet) {
		enabled.Deny = []string{"reports"}
	})

	reply := h.turn("give me a report")
	assert.Equal(t, capability.CodeToolNotEnabled, reply.ErrorCode)
	assert.Contains(t, reply.Text, "disabled by admin policy")
	assert.Equal(t, 0, h.exec.callCount())
}

func TestHandle_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	h := newHarness(t, nil)
	h.exec.err = errors.New("connection reset")

	for i := 0; i < 3; i++ {
		reply := h.turn("price btc")
		assert.Equal(t, capability.CodeToolExecutionFailed, reply.ErrorCode)
	}
	require.Equal(t, 3, h.exec.callCount())

	// Breaker is open now; the executor is not reached again.
	reply := h.turn("price btc")
	assert.Equal(t, capability.CodeUpstreamUnavailable, reply.ErrorCode)
	assert.Equal(t, 3, h.exec.callCount())
}

func TestHandle_HalfOpenProbeReleasedOnLocalOutcome(t *testing.T) {
	now := time.Date(2026, 3, 1, 15, 30, 30, 0, time.UTC)
	h := newHarness(t, func(d *Deps, _ *capability.EnabledSet) {
		d.Now = func() time.Time { return now }
	})

	h.exec.err = errors.New("connection reset")
	for i := 0; i < 3; i++ {
		h.turn("price btc")
	}

	// Past the cooldown the probe goes out, but the upstream wants consent
	// first. That verdict says nothing about its health.
	now = now.Add(31 * time.Second)
	h.exec.err = nil
	h.exec.responses[capability.CapPrice] = `{"ok":false,"errorCode":"CONSENT_REQUIRED"}`
	reply := h.turn("price btc")
	require.Equal(t, capability.CodeConsentRequired, reply.ErrorCode)

	// Once healthy, the very next request must be admitted as a probe
	// instead of bouncing off a stuck half-open breaker.
	h.exec.responses[capability.CapPrice] = priceResponse
	reply = h.turn("price btc")
	assert.Empty(t, reply.ErrorCode)
	assert.Contains(t, reply.Text, "BTC-USD now:")
}

func TestHandle_ReportFailureServesCachedReply(t *testing.T) {
	h := newHarness(t, nil)

	first := h.turn("show my portfolio")
	require.Contains(t, first.Text, "Portfolio: $30,107.06")

	h.exec.err = errors.New("connection reset")
	reply := h.turn("show my portfolio")
	assert.Equal(t, capability.CodeToolExecutionFailed, reply.ErrorCode)
	assert.Contains(t, reply.Text, "Portfolio: $30,107.06")
	assert.Contains(t, reply.Text, "last saved view")
}

func TestHandle_WhyAnswersFromFollowUpState(t *testing.T) {
	h := newHarness(t, nil)
	h.exec.err = errors.New("connection reset")

	h.turn("price btc")
	calls := h.exec.callCount()

	reply := h.turn("why?")
	assert.Equal(t, IntentClarify, reply.Intent)
	assert.Equal(t, capability.CodeToolExecutionFailed, reply.ErrorCode)
	assert.Contains(t, reply.Text, "didn't complete")
	assert.Equal(t, calls, h.exec.callCount(), "answered without re-invoking")
}

func TestHandle_SuccessClearsFollowUpState(t *testing.T) {
	h := newHarness(t, nil)
	h.exec.err = errors.New("connection reset")
	h.turn("price btc")

	h.exec.err = nil
	h.turn("price btc")

	reply := h.turn("why?")
	assert.NotEqual(t, IntentClarify, reply.Intent, "stale error context should be gone")
}

func TestHandle_PreferenceShortCircuit(t *testing.T) {
	store, err := prefs.NewStore(t.TempDir())
	require.NoError(t, err)
	h := newHarness(t, func(d *Deps, _ *capability.EnabledSet) {
		d.Prefs = store
	})

	reply := h.turn("hide doge from my portfolio")
	assert.Equal(t, IntentPolicy, reply.Intent)
	assert.Contains(t, reply.Text, "Got it")
	assert.Equal(t, 0, h.exec.callCount())

	report := h.turn("show my portfolio")
	assert.Contains(t, report.Text, "BTC")
	assert.NotContains(t, report.Text, "DOGE")
}

func TestHandle_RemovedSectionsSurviveIntoReports(t *testing.T) {
	store, err := prefs.NewStore(t.TempDir())
	require.NoError(t, err)
	h := newHarness(t, func(d *Deps, _ *capability.EnabledSet) {
		d.Prefs = store
	})

	h.turn("hide the cash flow line in my reports")
	report := h.turn("show my portfolio")
	assert.NotContains(t, report.Text, "Net flow")
}

func TestHandle_MissionDeferral(t *testing.T) {
	h := newHarness(t, nil)

	reply := h.turn("schedule a daily digest of btc price and sports news")
	assert.True(t, reply.Deferred)
	assert.Empty(t, reply.Text)
	assert.Equal(t, 0, h.exec.callCount())
}

func TestHandle_OutOfScopeStaysSilent(t *testing.T) {
	h := newHarness(t, nil)

	reply := h.turn("refactor the rate limiter class")
	assert.Equal(t, IntentNone, reply.Intent)
	assert.Empty(t, reply.Text)
	assert.False(t, reply.Deferred)
}

func TestHandle_EmptyInput(t *testing.T) {
	h := newHarness(t, nil)

	reply := h.turn("   ")
	assert.Equal(t, IntentValidation, reply.Intent)
	assert.Contains(t, reply.Text, "price btc")
}

func TestHandle_StatusTurn(t *testing.T) {
	h := newHarness(t, nil)

	reply := h.turn("status")
	assert.Equal(t, IntentStatus, reply.Intent)
	assert.Contains(t, reply.Text, "connected")
}

func TestHandle_PortfolioRendersTotals(t *testing.T) {
	h := newHarness(t, nil)

	reply := h.turn("show my portfolio")
	assert.Contains(t, reply.Text, "Portfolio: $30,107.06")
	assert.Contains(t, reply.Text, "Freshness: 20s")
}

func TestHandle_DeterministicReplies(t *testing.T) {
	h := newHarness(t, nil)

	a := h.turn("show my portfolio")
	b := h.turn("show my portfolio")
	assert.Equal(t, a.Text, b.Text)
}

func TestStats_Counters(t *testing.T) {
	h := newHarness(t, nil)

	h.turn("price btc")
	h.turn("refactor the rate limiter class")
	h.turn("schedule a daily digest of btc price and sports news")

	stats := h.router.Stats()
	assert.Equal(t, int64(3), stats.TotalTurns)
	assert.Equal(t, int64(1), stats.AliasHits)
	assert.Equal(t, int64(1), stats.OutOfScope)
	assert.Equal(t, int64(1), stats.Deferred)
	assert.Equal(t, int64(1), stats.IntentDistribution[IntentPrice])
}

func TestClampTimeout(t *testing.T) {
	tests := []struct {
		requested, remaining, floor, want time.Duration
	}{
		{8 * time.Second, 10 * time.Second, time.Second, 8 * time.Second},
		{8 * time.Second, 3 * time.Second, time.Second, 3 * time.Second},
		{8 * time.Second, 100 * time.Millisecond, time.Second, time.Second},
	}
	for _, tt := range tests {
		if got := clampTimeout(tt.requested, tt.remaining, tt.floor); got != tt.want {
			t.Errorf("clampTimeout(%v, %v, %v) = %v, want %v", tt.requested, tt.remaining, tt.floor, got, tt.want)
		}
	}
}

func TestAssetToken(t *testing.T) {
	if got := assetToken("price btx"); got != "btx" {
		t.Errorf("assetToken = %q, want btx", got)
	}
	if got := assetToken("how much is btcc worth"); got != "btcc" {
		t.Errorf("assetToken = %q, want btcc", got)
	}
}

func TestHandle_ReplyTextNeverLeaksRawError(t *testing.T) {
	h := newHarness(t, nil)
	h.exec.err = errors.New("pq: connection refused at 10.0.0.5:5432")

	reply := h.turn("price btc")
	assert.False(t, strings.Contains(reply.Text, "10.0.0.5"), "raw error leaked: %s", reply.Text)
	assert.Contains(t, reply.Text, "didn't complete")
}
