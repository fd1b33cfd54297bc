// Package symbols maps free-text asset references to canonical exchange
// tickers. Resolution is deliberately conservative: quoting the wrong
// asset's price is worse than asking the user to confirm, so near-misses
// surface as suggestions instead of auto-resolving.
package symbols

import (
	"regexp"
	"sort"
	"strings"
)

// Status is the verdict of a resolution attempt.
type Status string

const (
	StatusResolved   Status = "resolved"
	StatusAmbiguous  Status = "ambiguous"
	StatusUnresolved Status = "unresolved"
)

// Confidence thresholds for the similarity ladder.
const (
	exactConfidence  = 1.0
	aliasConfidence  = 0.98
	resolveThreshold = 0.93
	suggestThreshold = 0.78
	suggestMargin    = 0.04
	shortTokenMaxLen = 4
)

// Resolution is the outcome of resolving one piece of text.
//
// Invariants: StatusResolved implies Symbol != "";
// StatusAmbiguous implies Suggestion != "" and Symbol == "".
type Resolution struct {
	Status     Status  `json:"status"`
	Symbol     string  `json:"symbol,omitempty"`
	Confidence float64 `json:"confidence"`
	Suggestion string  `json:"suggestion,omitempty"`
}

// pairPattern matches explicit BASE/QUOTE or BASE-QUOTE references.
var pairPattern = regexp.MustCompile(`(?i)\b([a-z]{2,6})[/-]([a-z]{2,6})\b`)

var tokenSplit = regexp.MustCompile(`[^a-zA-Z]+`)

// Resolve maps free text to a canonical ticker.
func Resolve(text string) Resolution {
	if base, _, ok := ResolvePair(text); ok {
		return Resolution{Status: StatusResolved, Symbol: base, Confidence: exactConfidence}
	}

	var bestResolved, bestAmbiguous Resolution
	for _, token := range tokenSplit.Split(text, -1) {
		token = strings.TrimSpace(token)
		if token == "" || stopWords[strings.ToLower(token)] {
			continue
		}
		r := resolveToken(token)
		switch r.Status {
		case StatusResolved:
			if r.Confidence > bestResolved.Confidence {
				bestResolved = r
			}
		case StatusAmbiguous:
			if r.Confidence > bestAmbiguous.Confidence {
				bestAmbiguous = r
			}
		}
	}

	// A resolved candidate wins outright over any ambiguous one.
	if bestResolved.Status == StatusResolved {
		return bestResolved
	}
	if bestAmbiguous.Status == StatusAmbiguous {
		return bestAmbiguous
	}
	return Resolution{Status: StatusUnresolved}
}

// ResolvePair extracts an explicit BASE/QUOTE or BASE-QUOTE pair.
// Both sides must be known (base canonical or alias, quote in Quotes).
func ResolvePair(text string) (base, quote string, ok bool) {
	m := pairPattern.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	b := strings.ToUpper(m[1])
	if !Canonical[b] {
		if alias, found := Aliases[strings.ToLower(m[1])]; found {
			b = alias
		} else {
			return "", "", false
		}
	}
	q := strings.ToUpper(m[2])
	if !Quotes[q] {
		return "", "", false
	}
	return b, q, true
}

// resolveToken runs the scoring ladder for a single token.
func resolveToken(token string) Resolution {
	upper := strings.ToUpper(token)
	if Canonical[upper] {
		return Resolution{Status: StatusResolved, Symbol: upper, Confidence: exactConfidence}
	}
	if sym, ok := Aliases[strings.ToLower(token)]; ok {
		return Resolution{Status: StatusResolved, Symbol: sym, Confidence: aliasConfidence}
	}

	type candidate struct {
		symbol string
		score  float64
		dist   int
	}
	lower := strings.ToLower(token)
	cands := make([]candidate, 0, len(Canonical)+len(Aliases))
	for sym := range Canonical {
		d := editDistance(lower, strings.ToLower(sym))
		cands = append(cands, candidate{symbol: sym, score: similarity(len(lower), len(sym), d), dist: d})
	}
	for name, sym := range Aliases {
		d := editDistance(lower, name)
		cands = append(cands, candidate{symbol: sym, score: similarity(len(lower), len(name), d), dist: d})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].symbol < cands[j].symbol
	})

	best := cands[0]
	if best.score >= resolveThreshold {
		return Resolution{Status: StatusResolved, Symbol: best.symbol, Confidence: best.score}
	}
	// Short tokens are high typo-risk: one edit away from a known symbol
	// is a suggestion, never an auto-resolve.
	if best.dist <= 1 && len(token) <= shortTokenMaxLen {
		return Resolution{Status: StatusAmbiguous, Suggestion: best.symbol, Confidence: best.score}
	}
	if best.score >= suggestThreshold {
		margin := best.score
		for _, c := range cands[1:] {
			if c.symbol != best.symbol {
				margin = best.score - c.score
				break
			}
		}
		if margin >= suggestMargin {
			return Resolution{Status: StatusAmbiguous, Suggestion: best.symbol, Confidence: best.score}
		}
	}
	return Resolution{Status: StatusUnresolved, Confidence: best.score}
}

// similarity is 1 - dist/max(lenA, lenB), clamped at zero.
func similarity(lenA, lenB, dist int) float64 {
	max := lenA
	if lenB > max {
		max = lenB
	}
	if max == 0 {
		return 0
	}
	s := 1 - float64(dist)/float64(max)
	if s < 0 {
		return 0
	}
	return s
}

// editDistance is the Levenshtein distance between two strings.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
