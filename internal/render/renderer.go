// Package render turns structured capability payloads into user-facing
// text. All output is deterministic: identical inputs produce identical
// replies, so a cached last-good reply can stand in verbatim when the
// upstream is unavailable.
package render

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// timestampLayout is the fixed locale format for rendered timestamps.
const timestampLayout = "Jan 2, 2006 3:04 PM MST"

// Options controls formatting. Zero value means defaults.
type Options struct {
	Decimals      int // decimal places for currency, 0..8
	DateFormat    string
	ShowCashFlow  bool
	ShowTimestamp bool
	ShowFreshness bool
	Tone          Tone
}

// DefaultOptions returns the formatting defaults.
func DefaultOptions() Options {
	return Options{
		Decimals:      2,
		ShowCashFlow:  true,
		ShowTimestamp: true,
		ShowFreshness: true,
		Tone:          ToneNeutral,
	}
}

// Renderer renders replies with a fixed set of options.
type Renderer struct {
	opts     Options
	gate     CommentaryGate
	variants variantTable
}

// NewRenderer creates a renderer. Decimals outside 0..8 are clamped.
func NewRenderer(opts Options, gate CommentaryGate) *Renderer {
	if opts.Decimals < 0 {
		opts.Decimals = 0
	}
	if opts.Decimals > 8 {
		opts.Decimals = 8
	}
	if opts.Tone == "" {
		opts.Tone = ToneNeutral
	}
	return &Renderer{opts: opts, gate: gate, variants: defaultVariants}
}

// Price renders a spot-price reply: headline, optional freshness line,
// optional timestamp line.
func (r *Renderer) Price(pair string, price float64, freshness time.Duration, asOf time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s now: %s", pair, r.Currency(price))
	if r.opts.ShowFreshness {
		fmt.Fprintf(&b, "\nFreshness: %ds", int(freshness.Seconds()))
	}
	if r.opts.ShowTimestamp && !asOf.IsZero() {
		fmt.Fprintf(&b, "\nAs of %s", r.Timestamp(asOf))
	}
	return b.String()
}

// AssetLine is one holding in a portfolio or report payload.
type AssetLine struct {
	Symbol string
	Amount float64
	Value  float64
}

// Report is the shaped payload for portfolio/report replies.
type Report struct {
	Title        string
	Lines        []AssetLine
	TotalValue   float64
	MovePct      float64 // 24h percentage move of the total
	TxCount      int
	PricedAssets int
	CashFlow     float64
	Staleness    time.Duration
	AsOf         time.Time
	// Excluded assets and removed sections come from user preferences.
	ExcludeAssets   []string
	RemovedSections []string
}

// Portfolio renders a report payload. Commentary is appended only when
// every gate threshold passes.
func (r *Renderer) Portfolio(rep Report, seed string) string {
	var b strings.Builder
	title := rep.Title
	if title == "" {
		title = "Portfolio"
	}
	fmt.Fprintf(&b, "%s: %s", title, r.Currency(rep.TotalValue))
	if rep.MovePct != 0 {
		fmt.Fprintf(&b, " (%+.2f%% 24h)", rep.MovePct)
	}

	excluded := make(map[string]bool, len(rep.ExcludeAssets))
	for _, sym := range rep.ExcludeAssets {
		excluded[strings.ToUpper(sym)] = true
	}
	for _, line := range rep.Lines {
		if excluded[strings.ToUpper(line.Symbol)] {
			continue
		}
		fmt.Fprintf(&b, "\n  %s: %s (%s)", line.Symbol, trimAmount(line.Amount), r.Currency(line.Value))
	}

	if r.opts.ShowCashFlow && !removed(rep.RemovedSections, "cash_flow") && rep.CashFlow != 0 {
		fmt.Fprintf(&b, "\nNet flow: %s", r.SignedCurrency(rep.CashFlow))
	}
	if r.opts.ShowFreshness && !removed(rep.RemovedSections, "freshness") {
		fmt.Fprintf(&b, "\nFreshness: %ds", int(rep.Staleness.Seconds()))
	}
	if r.opts.ShowTimestamp && !removed(rep.RemovedSections, "timestamp") && !rep.AsOf.IsZero() {
		fmt.Fprintf(&b, "\nAs of %s", r.Timestamp(rep.AsOf))
	}

	if line, ok := r.Commentary(rep, seed); ok {
		b.WriteString("\n")
		b.WriteString(line)
	}
	return b.String()
}

// Clarify renders the ambiguous-symbol question.
func (r *Renderer) Clarify(input, suggestion string) string {
	return fmt.Sprintf("Did you mean %s? I couldn't find %q on the exchange.", suggestion, input)
}

// Unresolved renders the no-match reply.
func (r *Renderer) Unresolved(input string) string {
	return fmt.Sprintf("I couldn't match %q to an asset I can quote. Try a ticker like BTC or ETH.", input)
}

// Error renders a failure envelope: safe message plus an actionable next
// step. Guidance always has a default, so the user is never left without
// one.
func (r *Renderer) Error(safeMessage, guidance string) string {
	if guidance == "" {
		guidance = "Retry in a moment."
	}
	if safeMessage == "" {
		safeMessage = "Something went wrong with that request."
	}
	return safeMessage + " " + guidance
}

// Currency formats a dollar amount with thousands separators and the
// configured number of decimal places.
func (r *Renderer) Currency(v float64) string {
	neg := v < 0
	v = math.Abs(v)
	s := fmt.Sprintf("%.*f", r.opts.Decimals, v)
	intPart, fracPart, _ := strings.Cut(s, ".")
	intPart = groupThousands(intPart)
	out := "$" + intPart
	if fracPart != "" {
		out += "." + fracPart
	}
	if neg {
		out = "-" + out
	}
	return out
}

// SignedCurrency is Currency with an explicit leading sign.
func (r *Renderer) SignedCurrency(v float64) string {
	if v >= 0 {
		return "+" + r.Currency(v)
	}
	return r.Currency(v)
}

// Timestamp renders t in the fixed locale format, or the user's date
// format token when one is configured.
func (r *Renderer) Timestamp(t time.Time) string {
	t = t.UTC()
	switch strings.ToUpper(r.opts.DateFormat) {
	case "YYYY-MM-DD":
		return t.Format("2006-01-02 15:04 MST")
	case "DD/MM/YYYY":
		return t.Format("02/01/2006 15:04 MST")
	case "MM/DD/YYYY":
		return t.Format("01/02/2006 15:04 MST")
	default:
		return t.Format(timestampLayout)
	}
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// trimAmount renders holding quantities without trailing zero noise.
func trimAmount(v float64) string {
	s := fmt.Sprintf("%.8f", v)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

func removed(sections []string, name string) bool {
	for _, s := range sections {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}
