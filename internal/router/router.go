package router

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/normanking/centavo/internal/affinity"
	"github.com/normanking/centavo/internal/capability"
	"github.com/normanking/centavo/internal/gate"
	"github.com/normanking/centavo/internal/logging"
	"github.com/normanking/centavo/internal/prefs"
	"github.com/normanking/centavo/internal/render"
	"github.com/normanking/centavo/internal/symbols"
)

// Config tunes the router pipeline.
type Config struct {
	// DomainID keys all affinity state for this integration.
	DomainID string
	// AssistantName is stripped from leading salutations.
	AssistantName string
	// TurnBudget bounds one turn end to end.
	TurnBudget time.Duration
	// CallTimeout is the requested capability-call timeout; the effective
	// timeout is clamped to what remains of the turn budget.
	CallTimeout time.Duration
	// MinCallTimeout floors the clamped timeout so a nearly-spent budget
	// still gives the call a fighting chance.
	MinCallTimeout time.Duration
	// Tone selects the commentary voice.
	Tone render.Tone
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DomainID:       "exchange",
		AssistantName:  "centavo",
		TurnBudget:     12 * time.Second,
		CallTimeout:    8 * time.Second,
		MinCallTimeout: 500 * time.Millisecond,
		Tone:           render.ToneNeutral,
	}
}

// Deps are the injected collaborators. Nil stores get fresh in-memory
// instances; a nil clock means time.Now.
type Deps struct {
	Affinity  *affinity.Store
	FollowUps *affinity.FollowUpStore
	Breaker   *gate.Breaker
	Rollout   gate.RolloutConfig
	Adapter   *capability.Adapter
	Prefs     *prefs.Store
	Gate      render.CommentaryGate
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Router is the conversational fast path. One instance serves many
// interleaved conversations; all state lives in the injected stores.
type Router struct {
	cfg       Config
	norm      *Normalizer
	affinity  *affinity.Store
	followUps *affinity.FollowUpStore
	breaker   *gate.Breaker
	rollout   gate.RolloutConfig
	adapter   *capability.Adapter
	prefs     *prefs.Store
	gate      render.CommentaryGate
	log       zerolog.Logger
	now       func() time.Time
	stats     *statsTracker
}

// New builds a router from config and dependencies.
func New(cfg Config, deps Deps) *Router {
	def := DefaultConfig()
	if cfg.DomainID == "" {
		cfg.DomainID = def.DomainID
	}
	if cfg.AssistantName == "" {
		cfg.AssistantName = def.AssistantName
	}
	if cfg.TurnBudget <= 0 {
		cfg.TurnBudget = def.TurnBudget
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.MinCallTimeout <= 0 {
		cfg.MinCallTimeout = def.MinCallTimeout
	}
	if cfg.Tone == "" {
		cfg.Tone = def.Tone
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Affinity == nil {
		deps.Affinity = affinity.NewStore(affinity.WithClock(deps.Now))
	}
	if deps.FollowUps == nil {
		deps.FollowUps = affinity.NewFollowUpStore(deps.Now)
	}
	if deps.Breaker == nil {
		deps.Breaker = gate.NewBreaker(gate.DefaultCircuitConfig())
	}
	if deps.Gate == (render.CommentaryGate{}) {
		deps.Gate = render.DefaultCommentaryGate()
	}
	return &Router{
		cfg:       cfg,
		norm:      NewNormalizer(cfg.AssistantName),
		affinity:  deps.Affinity,
		followUps: deps.FollowUps,
		breaker:   deps.Breaker,
		rollout:   deps.Rollout,
		adapter:   deps.Adapter,
		prefs:     deps.Prefs,
		gate:      deps.Gate,
		log:       deps.Logger,
		now:       deps.Now,
		stats:     newStatsTracker(),
	}
}

// Stats returns a snapshot of the routing counters.
func (r *Router) Stats() Stats {
	return r.stats.snapshot()
}

var (
	cancelPhrase = regexp.MustCompile(`(?i)^(?:cancel|never ?mind|forget (?:it|that)|stop|drop it)(?: that| it)?[.!?]?$`)
	whyFollowUp  = regexp.MustCompile(`(?i)^(?:why\??|why not\??|what happened\??|what went wrong\??)$`)
	affirmative  = regexp.MustCompile(`(?i)^(?:yes|yeah|yep|that one|the first one)[.!?]?$`)
	negative     = regexp.MustCompile(`(?i)^(?:no|nope)[.!?]?$`)
	meantPattern = regexp.MustCompile(`(?i)^i meant ([a-z0-9]+)[.!?]?$`)
)

// Handle processes one turn and always returns a reply, possibly with
// empty text when the turn is out of scope or deferred upstream.
func (r *Router) Handle(ctx context.Context, turn Turn) Reply {
	start := r.now()
	reply := Reply{TurnID: uuid.NewString(), Intent: IntentNone, MatchedBy: MatchedByNone}

	log := logging.WithTurn(r.log, turn.UserID, turn.ConversationID, turn.MissionRunID, reply.TurnID)
	defer func() {
		log.Info().
			Str("intent", reply.Intent.String()).
			Str("matched_by", string(reply.MatchedBy)).
			Bool("deferred", reply.Deferred).
			Str("error_code", reply.ErrorCode).
			Dur("took", r.now().Sub(start)).
			Msg("turn handled")
	}()

	ctx, cancel := context.WithDeadline(ctx, start.Add(r.cfg.TurnBudget))
	defer cancel()

	r.stats.record(func(s *Stats) { s.TotalTurns++ })

	normalized := r.norm.Normalize(turn.Text)
	key := affinity.Key{UserID: turn.UserID, ConversationID: turn.ConversationID, DomainID: r.cfg.DomainID}

	if normalized == "" {
		reply.Intent = IntentValidation
		reply.Text = `I didn't catch a command there. Try "price btc" or "show my portfolio".`
		r.countIntent(reply.Intent, reply.MatchedBy)
		return reply
	}

	if cancelPhrase.MatchString(normalized) {
		r.affinity.Clear(key)
		r.followUps.RecordSuccess(key)
		reply.Text = "Okay, I've dropped that."
		r.countIntent(reply.Intent, reply.MatchedBy)
		return reply
	}

	doc := r.loadPrefs(turn.UserID, log)
	ren := render.NewRenderer(renderOptions(doc, r.cfg.Tone), r.gate)

	if whyFollowUp.MatchString(normalized) {
		if state, ok := r.followUps.Get(key); ok {
			reply.Intent = IntentClarify
			reply.MatchedBy = MatchedByIntent
			reply.ErrorCode = state.ErrorCode
			reply.Text = "The last attempt failed. " + ren.Error(state.SafeMessage, state.Guidance)
			r.countIntent(reply.Intent, reply.MatchedBy)
			return reply
		}
	}

	r.affinity.ClearIfSuperseded(key)
	prior, hasPrior := r.affinity.Get(key)

	assumeReport := hasPrior &&
		(prior.Intent == IntentReport.String() || prior.Intent == IntentPortfolio.String())
	if d := prefs.Extract(normalized, assumeReport); !d.Empty() {
		r.applyPrefs(key, turn.UserID, d, prior, log)
		reply.Intent = IntentPolicy
		reply.MatchedBy = MatchedByIntent
		reply.Text = "Got it. I'll format reports that way from now on."
		r.countIntent(reply.Intent, reply.MatchedBy)
		return reply
	}

	cls := Classify(normalized)
	reply.Intent = cls.Intent
	reply.MatchedBy = cls.MatchedBy

	if cls.Deferred {
		reply.Deferred = true
		reply.Intent = IntentNone
		r.stats.record(func(s *Stats) { s.Deferred++ })
		log.Debug().Msg("turn deferred to mission builder")
		return reply
	}
	if !cls.IsCrypto {
		r.stats.record(func(s *Stats) { s.OutOfScope++ })
		return reply
	}
	// A bare "yes" or "I meant X" only belongs to this domain while a
	// clarification is pending; otherwise the turn is not ours to claim.
	if cls.Intent == IntentClarify && !clarifyPending(prior, hasPrior) {
		reply.Intent = IntentNone
		reply.MatchedBy = MatchedByNone
		r.stats.record(func(s *Stats) { s.OutOfScope++ })
		return reply
	}
	r.countIntent(cls.Intent, cls.MatchedBy)

	switch cls.Intent {
	case IntentAssist:
		reply.Text = `I can check prices ("price btc"), show your portfolio, list recent transactions, or build a summary report.`
	case IntentPolicy:
		dec := gate.Decide(r.rollout, turn.UserID)
		if dec.Enabled {
			reply.Text = "You have access to the exchange capability."
		} else {
			reply.Text = "Exchange access is limited for your account right now: " + dec.Reason + "."
		}
	case IntentClarify:
		r.handleClarify(ctx, ren, log, key, turn, normalized, prior, &reply)
	case IntentPrice:
		r.handlePrice(ctx, ren, log, key, turn, normalized, prior, hasPrior, &reply)
	case IntentPortfolio:
		r.handleReportLike(ctx, ren, log, key, turn, normalized, capability.CapPortfolio, "Portfolio", doc, prior, &reply)
	case IntentTransactions:
		r.handleReportLike(ctx, ren, log, key, turn, normalized, capability.CapTransactions, "Recent transactions", doc, prior, &reply)
	case IntentReport:
		r.handleReportLike(ctx, ren, log, key, turn, normalized, capability.CapReports, "Report", doc, prior, &reply)
	case IntentStatus:
		r.handleStatus(ctx, ren, log, key, turn, &reply)
	}
	return reply
}

// handlePrice resolves the asset reference and invokes the price
// capability. Ambiguous resolutions stash the suggestion in affinity so a
// bare "yes" on the next turn can confirm it.
func (r *Router) handlePrice(ctx context.Context, ren *render.Renderer, log zerolog.Logger, key affinity.Key, turn Turn, normalized string, prior affinity.Entry, hasPrior bool, reply *Reply) {
	var pair string
	if base, quote, ok := symbols.ResolvePair(normalized); ok {
		pair = base + "-" + quote
	}

	res := symbols.Resolve(normalized)
	switch res.Status {
	case symbols.StatusResolved:
		if pair == "" {
			pair = res.Symbol + "-" + symbols.DefaultQuote
		}
	case symbols.StatusAmbiguous:
		r.affinity.Patch(key, affinity.Entry{
			TopicAffinityID: reply.TurnID,
			Intent:          IntentClarify.String(),
			LastSymbolPair:  res.Suggestion + "-" + symbols.DefaultQuote,
		})
		reply.Text = ren.Clarify(assetToken(normalized), res.Suggestion)
		return
	case symbols.StatusUnresolved:
		// A bare "price" right after a quoted pair reads as "that one
		// again".
		if hasPrior && prior.Intent == IntentPrice.String() && prior.LastSymbolPair != "" {
			pair = prior.LastSymbolPair
			break
		}
		reply.Text = ren.Unresolved(assetToken(normalized))
		return
	}

	r.quotePair(ctx, ren, log, key, turn, pair, reply)
}

// handleClarify answers a short confirmation against the pending
// suggestion stashed by an earlier ambiguous resolution. The caller has
// already verified a suggestion is pending.
func (r *Router) handleClarify(ctx context.Context, ren *render.Renderer, log zerolog.Logger, key affinity.Key, turn Turn, normalized string, prior affinity.Entry, reply *Reply) {
	if m := meantPattern.FindStringSubmatch(normalized); m != nil {
		res := symbols.Resolve(m[1])
		if res.Status != symbols.StatusResolved {
			reply.Text = ren.Unresolved(m[1])
			return
		}
		reply.Intent = IntentPrice
		r.quotePair(ctx, ren, log, key, turn, res.Symbol+"-"+symbols.DefaultQuote, reply)
		return
	}
	if affirmative.MatchString(normalized) {
		reply.Intent = IntentPrice
		r.quotePair(ctx, ren, log, key, turn, prior.LastSymbolPair, reply)
		return
	}
	if negative.MatchString(normalized) {
		r.affinity.Clear(key)
		reply.Text = "Okay. Which asset did you mean?"
		return
	}
	base := strings.TrimSuffix(prior.LastSymbolPair, "-"+symbols.DefaultQuote)
	reply.Text = ren.Clarify(normalized, base)
}

// clarifyPending reports whether an ambiguous-symbol suggestion is
// waiting on this conversation's confirmation.
func clarifyPending(prior affinity.Entry, hasPrior bool) bool {
	return hasPrior && prior.Intent == IntentClarify.String() && prior.LastSymbolPair != ""
}

// quotePair invokes the price capability for an already-resolved pair.
func (r *Router) quotePair(ctx context.Context, ren *render.Renderer, log zerolog.Logger, key affinity.Key, turn Turn, pair string, reply *Reply) {
	input := r.callInput(turn, reply.TurnID)
	input["pair"] = pair
	env, ok := r.invoke(ctx, ren, log, key, capability.CapPrice, input, reply)
	if !ok {
		return
	}
	price, freshness, asOf := shapePrice(env.Data)
	reply.Text = ren.Price(pair, price, freshness, asOf)
	r.affinity.Patch(key, affinity.Entry{
		TopicAffinityID: reply.TurnID,
		Intent:          IntentPrice.String(),
		LastSymbolPair:  pair,
	})
}

// handleReportLike serves portfolio, transactions, and report turns: one
// capability call shaped into a report payload, with the user's exclusions
// and removed sections applied before rendering.
func (r *Router) handleReportLike(ctx context.Context, ren *render.Renderer, log zerolog.Logger, key affinity.Key, turn Turn, normalized, capName, title string, doc prefs.Document, prior affinity.Entry, reply *Reply) {
	env, ok := r.invoke(ctx, ren, log, key, capName, r.callInput(turn, reply.TurnID), reply)
	if !ok {
		// Fall back to the last good rendering of this report mode, marked
		// as saved data so nobody trades on it.
		if prior.LastReportMode == capName && prior.LastReportReply != "" {
			reply.Text = prior.LastReportReply +
				"\nThis is your last saved view; live data is unavailable right now."
		}
		return
	}

	rep := shapeReport(env.Data)
	if rep.Title == "" {
		rep.Title = title
	}
	rep.ExcludeAssets = splitList(doc.Values["exclude_assets"])
	if include := splitList(doc.Values["include_assets"]); len(include) > 0 {
		rep.ExcludeAssets = append(rep.ExcludeAssets, outsideInclude(rep.Lines, include)...)
	}
	rep.RemovedSections = prior.RemovedSections

	seed := turn.UserID + "|" + turn.ConversationID + "|" + normalized
	reply.Text = ren.Portfolio(rep, seed)
	r.affinity.Patch(key, affinity.Entry{
		TopicAffinityID: reply.TurnID,
		Intent:          reply.Intent.String(),
		LastReportMode:  capName,
		LastReportReply: reply.Text,
	})
}

func (r *Router) handleStatus(ctx context.Context, ren *render.Renderer, log zerolog.Logger, key affinity.Key, turn Turn, reply *Reply) {
	env, ok := r.invoke(ctx, ren, log, key, capability.CapStatus, r.callInput(turn, reply.TurnID), reply)
	if !ok {
		return
	}
	reply.Text = statusText(env.Data)
	r.affinity.Patch(key, affinity.Entry{
		TopicAffinityID: reply.TurnID,
		Intent:          IntentStatus.String(),
	})
}

// invoke runs the gate checks and the capability call. On failure the
// reply is filled with the safe envelope text and false is returned; the
// caller only proceeds with a usable envelope.
func (r *Router) invoke(ctx context.Context, ren *render.Renderer, log zerolog.Logger, key affinity.Key, capName string, input map[string]any, reply *Reply) (capability.Envelope, bool) {
	dec := gate.Decide(r.rollout, key.UserID)
	if !dec.Enabled {
		r.stats.record(func(s *Stats) { s.RolloutBlocked++ })
		log.Info().Str("reason", dec.Reason).Msg("turn blocked by rollout")
		return capability.Envelope{}, r.fail(ren, key, capability.Failure(capability.CodeRolloutBlocked, "", ""), reply)
	}

	if !r.breaker.Allow(capName, r.now().UnixMilli()) {
		r.stats.record(func(s *Stats) { s.CircuitRejections++ })
		log.Warn().Str("capability", capName).Msg("circuit open, request rejected")
		return capability.Envelope{}, r.fail(ren, key, capability.Failure(capability.CodeUpstreamUnavailable, "", ""), reply)
	}

	timeout := r.cfg.CallTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = clampTimeout(timeout, deadline.Sub(r.now()), r.cfg.MinCallTimeout)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	env := r.adapter.Invoke(callCtx, capName, input)
	cancel()

	if !env.OK {
		if countsAgainstCircuit(env.ErrorCode) {
			r.breaker.Failure(capName, r.now().UnixMilli())
		} else {
			// Consent and policy outcomes say nothing about upstream
			// health, but a half-open probe slot must still be returned.
			r.breaker.Release(capName)
		}
		r.stats.record(func(s *Stats) { s.Failures++ })
		log.Warn().Str("capability", capName).Str("error_code", env.ErrorCode).Str("guidance", env.Guidance).Msg("capability call failed")
		return capability.Envelope{}, r.fail(ren, key, env, reply)
	}

	r.breaker.Success(capName)
	r.followUps.RecordSuccess(key)
	return env, true
}

// fail surfaces a failure envelope: records follow-up state so "why?" can
// be answered later, and renders the safe reply. Always returns false.
func (r *Router) fail(ren *render.Renderer, key affinity.Key, env capability.Envelope, reply *Reply) bool {
	guidance := displayGuidance(env)
	r.followUps.RecordFailure(key, affinity.ErrorState{
		ErrorCode:   env.ErrorCode,
		SafeMessage: env.SafeMessage,
		Guidance:    guidance,
	})
	reply.ErrorCode = env.ErrorCode
	reply.Text = ren.Error(env.SafeMessage, guidance)
	return false
}

// displayGuidance picks user-facing guidance. Execution and parse
// failures carry the raw cause in Guidance for internal logging; that text
// never reaches a reply, so those codes fall back to taxonomy defaults.
func displayGuidance(env capability.Envelope) string {
	switch env.ErrorCode {
	case capability.CodeToolExecutionFailed, capability.CodeNonJSONToolResponse:
		return capability.GuidanceFor(env.ErrorCode)
	default:
		return env.Guidance
	}
}

// applyPrefs persists extracted directives and mirrors section removals
// into affinity so the next report honors them immediately.
func (r *Router) applyPrefs(key affinity.Key, userID string, d prefs.Directives, prior affinity.Entry, log zerolog.Logger) {
	if r.prefs != nil {
		if _, err := r.prefs.Apply(userID, d); err != nil {
			log.Error().Err(err).Msg("preference persist failed")
		}
	}
	if removed := mergeRemoved(prior.RemovedSections, d); removed != nil {
		r.affinity.Patch(key, affinity.Entry{RemovedSections: removed})
	}
}

func (r *Router) loadPrefs(userID string, log zerolog.Logger) prefs.Document {
	if r.prefs == nil {
		return prefs.NewDocument()
	}
	doc, err := r.prefs.Load(userID)
	if err != nil {
		log.Warn().Err(err).Msg("preference load failed")
		return prefs.NewDocument()
	}
	return doc
}

// callInput is the base input map for every capability call, carrying the
// correlation identity downstream schedulers and dead-letter logs need.
func (r *Router) callInput(turn Turn, turnID string) map[string]any {
	input := map[string]any{
		"user_id":         turn.UserID,
		"conversation_id": turn.ConversationID,
		"turn_id":         turnID,
	}
	if turn.MissionRunID != "" {
		input["mission_run_id"] = turn.MissionRunID
	}
	return input
}

func (r *Router) countIntent(intent Intent, matched MatchedBy) {
	r.stats.record(func(s *Stats) {
		s.IntentDistribution[intent]++
		switch matched {
		case MatchedByAlias:
			s.AliasHits++
		case MatchedByIntent:
			s.IntentHits++
		}
	})
}

// countsAgainstCircuit reports whether a failure code indicates upstream
// trouble. Local configuration failures must not open the breaker.
func countsAgainstCircuit(code string) bool {
	switch code {
	case capability.CodeToolNotEnabled,
		capability.CodeToolRuntimeUnavailable,
		capability.CodeConsentRequired,
		capability.CodeRolloutBlocked:
		return false
	default:
		return true
	}
}

// clampTimeout bounds a requested timeout to what remains of the turn
// budget, floored so a nearly-spent budget still permits a short call.
func clampTimeout(requested, remaining, floor time.Duration) time.Duration {
	d := requested
	if remaining < d {
		d = remaining
	}
	if d < floor {
		d = floor
	}
	return d
}

// assetToken picks the token the user most likely meant as an asset, for
// clarification prompts. Command vocabulary is skipped.
func assetToken(normalized string) string {
	for _, token := range strings.Fields(strings.ToLower(normalized)) {
		if commandWords[token] {
			continue
		}
		return token
	}
	return normalized
}

var commandWords = map[string]bool{
	"a": true, "an": true, "check": true, "current": true, "for": true,
	"get": true, "give": true, "how": true, "is": true, "latest": true,
	"me": true, "much": true, "my": true, "now": true, "of": true,
	"on": true, "please": true, "price": true, "prices": true,
	"quote": true, "show": true, "the": true, "to": true, "today": true,
	"value": true, "what": true, "whats": true, "worth": true,
}

// mergeRemoved folds toggle directives into the prior removed-section
// list. Returns nil when the directives carry no section toggles.
func mergeRemoved(prior []string, d prefs.Directives) []string {
	if d.ShowCashFlow == nil && d.ShowTimestamp == nil && d.ShowFreshness == nil {
		return nil
	}
	set := make(map[string]bool, len(prior))
	for _, s := range prior {
		set[s] = true
	}
	apply := func(toggle *bool, name string) {
		if toggle == nil {
			return
		}
		if *toggle {
			delete(set, name)
		} else {
			set[name] = true
		}
	}
	apply(d.ShowCashFlow, "cash_flow")
	apply(d.ShowTimestamp, "timestamp")
	apply(d.ShowFreshness, "freshness")

	out := make([]string, 0, len(set))
	for _, name := range []string{"cash_flow", "timestamp", "freshness"} {
		if set[name] {
			out = append(out, name)
		}
	}
	return out
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// outsideInclude lists symbols present in lines but absent from the
// include list, so an include-only preference renders as exclusions.
func outsideInclude(lines []render.AssetLine, include []string) []string {
	allowed := make(map[string]bool, len(include))
	for _, s := range include {
		allowed[strings.ToUpper(s)] = true
	}
	var out []string
	for _, l := range lines {
		if !allowed[strings.ToUpper(l.Symbol)] {
			out = append(out, l.Symbol)
		}
	}
	return out
}
