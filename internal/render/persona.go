package render

import (
	"fmt"
	"hash/fnv"
	"math"
)

// Tone selects the commentary voice.
type Tone string

const (
	ToneNeutral Tone = "neutral"
	ToneHype    Tone = "hype"
	ToneDry     Tone = "dry"
)

// ParseTone normalizes a configured tone, defaulting to neutral.
func ParseTone(s string) Tone {
	switch Tone(s) {
	case ToneHype:
		return ToneHype
	case ToneDry:
		return ToneDry
	default:
		return ToneNeutral
	}
}

// CommentaryGate holds the thresholds that must all pass before any
// commentary line is added to a report.
type CommentaryGate struct {
	MinAbsMovePct   float64
	MinTxCount      int
	MinPricedAssets int
	MaxStalenessSec int
}

// DefaultCommentaryGate returns the production thresholds.
func DefaultCommentaryGate() CommentaryGate {
	return CommentaryGate{
		MinAbsMovePct:   2.0,
		MinTxCount:      1,
		MinPricedAssets: 2,
		MaxStalenessSec: 300,
	}
}

type direction int

const (
	dirUp direction = iota
	dirDown
)

// variantTable maps tone and direction to phrasing variants. Selection is
// seeded, never random: identical inputs must render identical text.
type variantTable map[Tone][2][]string

var defaultVariants = variantTable{
	ToneNeutral: {
		dirUp: {
			"Up %.1f%% over the last day.",
			"A %.1f%% gain since yesterday.",
			"Trending up: %.1f%% in 24 hours.",
		},
		dirDown: {
			"Down %.1f%% over the last day.",
			"A %.1f%% dip since yesterday.",
			"Trending down: %.1f%% in 24 hours.",
		},
	},
	ToneHype: {
		dirUp: {
			"Up %.1f%% in a day — nice momentum!",
			"That's a %.1f%% pop since yesterday!",
			"Green across the board: +%.1f%% in 24 hours!",
		},
		dirDown: {
			"Down %.1f%% today — hold steady.",
			"A %.1f%% pullback. Zoom out!",
			"Red day: %.1f%% off in 24 hours.",
		},
	},
	ToneDry: {
		dirUp: {
			"24h change: +%.1f%%.",
			"Day over day: up %.1f%%.",
		},
		dirDown: {
			"24h change: -%.1f%%.",
			"Day over day: down %.1f%%.",
		},
	},
}

// Commentary returns the gated commentary line for a report. The second
// return is false when any threshold fails and no line should be shown.
func (r *Renderer) Commentary(rep Report, seed string) (string, bool) {
	g := r.gate
	move := math.Abs(rep.MovePct)
	if move < g.MinAbsMovePct {
		return "", false
	}
	if rep.TxCount < g.MinTxCount {
		return "", false
	}
	if rep.PricedAssets < g.MinPricedAssets {
		return "", false
	}
	if g.MaxStalenessSec > 0 && int(rep.Staleness.Seconds()) > g.MaxStalenessSec {
		return "", false
	}

	dir := dirUp
	if rep.MovePct < 0 {
		dir = dirDown
	}
	variants := r.variants[r.opts.Tone][dir]
	if len(variants) == 0 {
		return "", false
	}
	idx := seededIndex(seed, len(variants))
	return fmt.Sprintf(variants[idx], move), true
}

// seededIndex picks a stable variant index from the seed.
func seededIndex(seed string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(seed))
	return int(h.Sum32() % uint32(n))
}
