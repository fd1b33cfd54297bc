package router

import (
	"regexp"
	"strings"

	"github.com/normanking/centavo/internal/symbols"
)

// aliasRule binds phrase patterns to one intent. Rules are evaluated in
// priority order and the first matching rule wins, so broader vocabulary
// must sit lower in the table.
type aliasRule struct {
	intent   Intent
	patterns []*regexp.Regexp
}

// aliasRules is the priority-ordered phrase table for the direct path.
var aliasRules = []aliasRule{
	{IntentPrice, []*regexp.Regexp{
		regexp.MustCompile(`\bprices?\b`),
		regexp.MustCompile(`\bquote\b`),
		regexp.MustCompile(`\bhow much is (?:a |an |one )?[a-z]{2,10} worth\b`),
	}},
	{IntentPortfolio, []*regexp.Regexp{
		regexp.MustCompile(`\b(?:portfolio|holdings?|balances?)\b`),
		regexp.MustCompile(`\bmy assets\b`),
	}},
	{IntentTransactions, []*regexp.Regexp{
		regexp.MustCompile(`\btransactions?\b`),
		regexp.MustCompile(`\btrades?\b`),
		regexp.MustCompile(`\b(?:trade |purchase )?(?:history|activity)\b`),
	}},
	{IntentReport, []*regexp.Regexp{
		regexp.MustCompile(`\breports?\b`),
		regexp.MustCompile(`\b(?:summary|overview|breakdown)\b`),
	}},
	{IntentStatus, []*regexp.Regexp{
		regexp.MustCompile(`\bstatus\b`),
		regexp.MustCompile(`\b(?:connected|connection|health)\b`),
	}},
}

var (
	// codingVocab suppresses classification for software-engineering talk
	// that reuses domain words like "rate" without meaning the exchange.
	codingVocab = regexp.MustCompile(`\b(?:refactor|debug|compile|stack ?trace|unit tests?|pull request|merge conflict|functions?|classes|class\b|variables?|regex|endpoint)\b`)

	// cryptoMarker is the domain vocabulary that keeps a turn in scope.
	cryptoMarker = regexp.MustCompile(`\b(?:crypto|coins?|exchange|wallet|tokens?|market)\b`)

	// openEndedVocab catches interest without an actionable command.
	openEndedVocab = regexp.MustCompile(`\b(?:help|talk|chat|learn|curious|interested|tell me about)\b`)
	domainNoun     = regexp.MustCompile(`\b(?:crypto|investing|portfolio|coins?|market)\b`)
	actionVerb     = regexp.MustCompile(`\b(?:price|show|get|check|fetch|quote|list|give)\b`)

	// Mission deferral: scheduling vocabulary plus off-topic cues mean a
	// mission builder owns this turn, not the fast path.
	schedulingVocab = regexp.MustCompile(`\b(?:missions?|workflows?|schedule|digest|daily|remind|every (?:morning|day|week))\b`)
	offTopicVocab   = regexp.MustCompile(`\b(?:sports?|weather|news|headlines|football|basketball)\b`)

	policyVocab   = regexp.MustCompile(`\b(?:am i (?:allowed|enabled)|do i have access|why can.?t i use|admin policy|rollout|feature flag)\b`)
	clarifyAnswer = regexp.MustCompile(`^(?:yes|yeah|yep|no|nope|that one|the first one|i meant [a-z0-9]+)[.!?]?$`)
)

// Classify decides whether normalized text is an in-scope command and
// which category it belongs to. The direct path is a priority-ordered
// phrase table; the fallback path requires a domain marker or a directly
// mentioned known symbol.
func Classify(normalized string) Classification {
	lower := strings.ToLower(strings.TrimSpace(normalized))
	if lower == "" {
		return Classification{Intent: IntentValidation, MatchedBy: MatchedByNone}
	}

	marker := cryptoMarker.MatchString(lower)
	symbolMentioned := mentionsKnownSymbol(lower)

	if schedulingVocab.MatchString(lower) && offTopicVocab.MatchString(lower) && (marker || symbolMentioned) {
		return Classification{Deferred: true, Intent: IntentNone, MatchedBy: MatchedByNone}
	}

	if clarifyAnswer.MatchString(lower) {
		return Classification{IsCrypto: true, Intent: IntentClarify, MatchedBy: MatchedByIntent}
	}

	if policyVocab.MatchString(lower) {
		return Classification{IsCrypto: true, Intent: IntentPolicy, MatchedBy: MatchedByIntent}
	}

	if codingVocab.MatchString(lower) && !marker && !symbolMentioned {
		return Classification{Intent: IntentNone, MatchedBy: MatchedByNone}
	}

	if openEndedVocab.MatchString(lower) && domainNoun.MatchString(lower) &&
		!actionVerb.MatchString(lower) && !symbolMentioned {
		return Classification{IsCrypto: true, Intent: IntentAssist, MatchedBy: MatchedByIntent}
	}

	for _, rule := range aliasRules {
		for _, p := range rule.patterns {
			if p.MatchString(lower) {
				return Classification{IsCrypto: true, Intent: rule.intent, MatchedBy: MatchedByAlias}
			}
		}
	}

	// Fallback path: a bare known symbol reads as a price ask; a bare
	// domain marker gets a capability overview.
	if symbolMentioned {
		return Classification{IsCrypto: true, Intent: IntentPrice, MatchedBy: MatchedByIntent}
	}
	if marker {
		return Classification{IsCrypto: true, Intent: IntentAssist, MatchedBy: MatchedByIntent}
	}
	return Classification{Intent: IntentNone, MatchedBy: MatchedByNone}
}

// mentionsKnownSymbol reports whether any token is exactly a canonical
// ticker or a full-name alias. Fuzzy matches do not count here: the
// fallback path needs a direct mention, not a guess.
func mentionsKnownSymbol(lower string) bool {
	for _, token := range strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		if symbols.IsKnown(token) {
			return true
		}
	}
	return false
}
