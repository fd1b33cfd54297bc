package prefs

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/normanking/centavo/internal/symbols"
)

// Directives is the set of formatting instructions extracted from one
// message. Nil pointer fields mean "not mentioned".
type Directives struct {
	IncludeAssets []string
	ExcludeAssets []string
	Decimals      *int
	ShowCashFlow  *bool
	ShowTimestamp *bool
	ShowFreshness *bool
	DateFormat    string
	Rules         []string
}

// Empty reports whether nothing was extracted.
func (d Directives) Empty() bool {
	return len(d.IncludeAssets) == 0 && len(d.ExcludeAssets) == 0 &&
		d.Decimals == nil && d.ShowCashFlow == nil && d.ShowTimestamp == nil &&
		d.ShowFreshness == nil && d.DateFormat == "" && len(d.Rules) == 0
}

var (
	reportVocab = regexp.MustCompile(`(?i)\b(report|reports|portfolio|summary|digest|holdings)\b`)

	decimalsPattern = regexp.MustCompile(`(?i)\b(\d+)\s+decimal(?:\s+place)?s?\b`)

	includePattern = regexp.MustCompile(`(?i)\b(?:only\s+(?:show|include)|include\s+only|just\s+show)\s+([a-z0-9, /-]+?)(?:\s+in\b|[.!?]|$)`)
	excludePattern = regexp.MustCompile(`(?i)\b(?:exclude|hide|leave\s+out|drop|without)\s+([a-z0-9, /-]+?)(?:\s+from\b|[.!?]|$)`)

	dateFormatPattern = regexp.MustCompile(`(?i)\bdate\s+format\s+(?:to\s+|of\s+|as\s+)?([a-z0-9/.-]+)`)

	cashFlowWord  = regexp.MustCompile(`(?i)\bcash[ -]?flow\b`)
	timestampWord = regexp.MustCompile(`(?i)\btime ?stamps?\b`)
	freshnessWord = regexp.MustCompile(`(?i)\b(freshness|staleness|data age)\b`)
	negationWord  = regexp.MustCompile(`(?i)\b(hide|without|no|remove|drop|skip|turn\s+off|don'?t\s+show)\b`)
	assertionWord = regexp.MustCompile(`(?i)\b(show|include|add|keep|with|turn\s+on)\b`)

	ruleOpener = regexp.MustCompile(`(?i)^\s*(from\s+now\s+on|always|never|going\s+forward|in\s+the\s+future)\b`)

	sectionWords = []string{"cash flow", "cash-flow", "cashflow", "timestamp", "timestamps", "freshness", "staleness", "data age"}
)

// Extract pulls directives out of free text. It only activates when the
// text plausibly concerns report formatting: either explicit report
// vocabulary is present, or the caller asserts report context from recent
// affinity.
func Extract(text string, assumeReportContext bool) Directives {
	var d Directives
	if !assumeReportContext && !reportVocab.MatchString(text) {
		return d
	}

	if m := decimalsPattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			n = clampDecimals(n)
			d.Decimals = &n
		}
	}
	if m := dateFormatPattern.FindStringSubmatch(text); m != nil {
		d.DateFormat = strings.ToUpper(m[1])
	}
	if m := includePattern.FindStringSubmatch(text); m != nil {
		d.IncludeAssets = splitAssets(m[1])
	}
	if m := excludePattern.FindStringSubmatch(text); m != nil {
		if assets := splitAssets(m[1]); len(assets) > 0 {
			d.ExcludeAssets = assets
		}
	}

	d.ShowCashFlow = toggleFor(text, cashFlowWord)
	d.ShowTimestamp = toggleFor(text, timestampWord)
	d.ShowFreshness = toggleFor(text, freshnessWord)

	// Preference-shaped sentences that produced no structured directive
	// are kept verbatim so they aren't silently lost.
	for _, sentence := range splitSentences(text) {
		if ruleOpener.MatchString(sentence) && !structuredHit(d, sentence) {
			d.Rules = append(d.Rules, strings.TrimSpace(sentence))
		}
	}
	return d
}

// toggleFor decides whether the text turns a section on, off, or leaves it
// alone. The negation has to appear in the same sentence as the section
// word, otherwise "hide doge and show the timestamp" would kill both.
func toggleFor(text string, word *regexp.Regexp) *bool {
	for _, sentence := range splitSentences(text) {
		if !word.MatchString(sentence) {
			continue
		}
		v := true
		if negationWord.MatchString(sentence) && !assertionBeforeWord(sentence, word) {
			v = false
		}
		return &v
	}
	return nil
}

// assertionBeforeWord checks whether an affirmative verb sits closer to the
// section word than any negation does.
func assertionBeforeWord(sentence string, word *regexp.Regexp) bool {
	loc := word.FindStringIndex(sentence)
	if loc == nil {
		return false
	}
	prefix := sentence[:loc[0]]
	neg := negationWord.FindAllStringIndex(prefix, -1)
	pos := assertionWord.FindAllStringIndex(prefix, -1)
	if len(pos) == 0 {
		return false
	}
	if len(neg) == 0 {
		return true
	}
	return pos[len(pos)-1][0] > neg[len(neg)-1][0]
}

// structuredHit reports whether the sentence already contributed to a
// structured directive, so it should not double as a rule line.
func structuredHit(d Directives, sentence string) bool {
	if d.Decimals != nil && decimalsPattern.MatchString(sentence) {
		return true
	}
	if d.DateFormat != "" && dateFormatPattern.MatchString(sentence) {
		return true
	}
	if len(d.IncludeAssets) > 0 && includePattern.MatchString(sentence) {
		return true
	}
	if len(d.ExcludeAssets) > 0 && excludePattern.MatchString(sentence) {
		return true
	}
	lower := strings.ToLower(sentence)
	for _, w := range sectionWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == ';' || r == '\n'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// splitAssets keeps only tokens that resolve to known assets, so phrases
// like "hide the cash flow line" never leak section words into an asset
// list.
func splitAssets(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' '
	})
	assets := make([]string, 0, len(fields))
	seen := make(map[string]bool)
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || !symbols.IsKnown(f) {
			continue
		}
		sym := strings.ToUpper(f)
		if !symbols.Canonical[sym] {
			sym = symbols.Aliases[strings.ToLower(f)]
		}
		if !seen[sym] {
			seen[sym] = true
			assets = append(assets, sym)
		}
	}
	return assets
}
