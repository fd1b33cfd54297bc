package router

import (
	"regexp"
	"sort"
	"strings"
)

// typoTable maps frequent misspellings of command vocabulary to the
// intended word. Exact lookups run first; edit-distance 1 against keys of
// similar length catches one-off variants without a bigger dictionary.
var typoTable = map[string]string{
	"prcie":       "price",
	"pirce":       "price",
	"pric":        "price",
	"proce":       "price",
	"protfolio":   "portfolio",
	"porfolio":    "portfolio",
	"portfolo":    "portfolio",
	"balence":     "balance",
	"balnce":      "balance",
	"transactons": "transactions",
	"transacions": "transactions",
	"reprot":      "report",
	"repot":       "report",
	"staus":       "status",
	"stauts":      "status",
	"bitcion":     "bitcoin",
	"bitocin":     "bitcoin",
	"ethereom":    "ethereum",
	"etherium":    "ethereum",
	"wroth":       "worth",
}

// typoKeys holds typoTable's keys in sorted order. The distance-1
// fallback scans these instead of ranging the map, so a token that ties
// between two keys always resolves to the same correction.
var typoKeys = func() []string {
	keys := make([]string, 0, len(typoTable))
	for k := range typoTable {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}()

// Normalizer cleans raw message text before classification.
type Normalizer struct {
	salutation *regexp.Regexp
}

// NewNormalizer creates a normalizer that strips a leading salutation
// addressed to assistantName.
func NewNormalizer(assistantName string) *Normalizer {
	name := regexp.QuoteMeta(strings.ToLower(assistantName))
	return &Normalizer{
		salutation: regexp.MustCompile(`(?i)^\s*(?:(?:hey|hi|hello|ok|okay|yo)[\s,!]+)?` + name + `\b[\s,:!.]*`),
	}
}

// Normalize strips the assistant-name salutation, corrects known typos
// token by token, and collapses whitespace. It never fails; empty input
// yields an empty string.
func (n *Normalizer) Normalize(raw string) string {
	text := n.salutation.ReplaceAllString(raw, "")
	fields := strings.Fields(text)
	for i, f := range fields {
		fields[i] = correctToken(f)
	}
	return strings.Join(fields, " ")
}

// correctToken maps a single token through the typo table. Tokens that
// already spell a known correction are left alone so real vocabulary is
// never rewritten.
func correctToken(token string) string {
	lower := strings.ToLower(token)
	if fixed, ok := typoTable[lower]; ok {
		return fixed
	}
	for _, known := range typoTable {
		if lower == known {
			return token
		}
	}
	for _, key := range typoKeys {
		if lenDiff(lower, key) <= 1 && editDistance(lower, key) <= 1 {
			return typoTable[key]
		}
	}
	return token
}

func lenDiff(a, b string) int {
	d := len(a) - len(b)
	if d < 0 {
		return -d
	}
	return d
}

// editDistance is the Levenshtein distance between two short tokens.
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
			curr[j] = minOf(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func minOf(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
