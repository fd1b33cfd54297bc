// Package gate decides whether a turn may reach the exchange capability at
// all: first through staged rollout cohorts, then through a per-endpoint
// circuit breaker. Both decisions are pure functions of their inputs so
// they can be tested without clocks or environment.
package gate

import (
	"hash/fnv"
	"strings"
)

// Stage is a progressive-exposure phase.
type Stage string

const (
	StageOff   Stage = "off"
	StageAlpha Stage = "alpha"
	StageBeta  Stage = "beta"
	StageRamp  Stage = "ramp"
	StageFull  Stage = "full"
)

// ParseStage normalizes a configured stage string. Unknown values are
// treated as off: failing closed beats accidentally exposing everyone.
func ParseStage(s string) Stage {
	switch Stage(strings.ToLower(strings.TrimSpace(s))) {
	case StageAlpha:
		return StageAlpha
	case StageBeta:
		return StageBeta
	case StageRamp:
		return StageRamp
	case StageFull:
		return StageFull
	default:
		return StageOff
	}
}

// RolloutConfig is the environment-driven rollout state.
type RolloutConfig struct {
	KillSwitch bool
	Stage      Stage
	Percent    int // 0..100, ramp stage only
	Salt       string
	AlphaUsers []string
	BetaUsers  []string
}

// Decision is the outcome of a rollout check.
type Decision struct {
	Enabled bool   `json:"enabled"`
	Stage   Stage  `json:"stage"`
	Reason  string `json:"reason"`
	Percent int    `json:"percent"`
}

// NormalizeUsers splits a comma-separated allow-list into trimmed,
// lower-cased IDs.
func NormalizeUsers(list string) []string {
	parts := strings.Split(list, ",")
	users := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			users = append(users, p)
		}
	}
	return users
}

// Decide computes the rollout decision for userID. It is deterministic:
// the same config and user always produce the same answer.
func Decide(cfg RolloutConfig, userID string) Decision {
	d := Decision{Stage: cfg.Stage, Percent: cfg.Percent}

	if cfg.KillSwitch {
		d.Reason = "kill switch active"
		return d
	}

	switch cfg.Stage {
	case StageOff:
		d.Reason = "stage off"
	case StageFull:
		d.Enabled = true
		d.Percent = 100
		d.Reason = "fully rolled out"
	case StageAlpha:
		if containsUser(cfg.AlphaUsers, userID) {
			d.Enabled = true
			d.Reason = "alpha allow-list"
		} else {
			d.Reason = "not in alpha allow-list"
		}
	case StageBeta:
		// Allow-lists are monotonically inclusive: alpha users stay in.
		if containsUser(cfg.AlphaUsers, userID) || containsUser(cfg.BetaUsers, userID) {
			d.Enabled = true
			d.Reason = "beta allow-list"
		} else {
			d.Reason = "not in beta allow-list"
		}
	case StageRamp:
		if Bucket(cfg.Salt, userID) < clampPercent(cfg.Percent) {
			d.Enabled = true
			d.Reason = "in ramp cohort"
		} else {
			d.Reason = "outside ramp cohort"
		}
	default:
		d.Reason = "unknown stage"
	}
	return d
}

// Bucket assigns userID a stable percentile 0..99. FNV-1a keeps the
// assignment well distributed and identical across deployments for a
// given salt.
func Bucket(salt, userID string) int {
	h := fnv.New32a()
	h.Write([]byte(salt))
	h.Write([]byte(":"))
	h.Write([]byte(strings.ToLower(userID)))
	return int(h.Sum32() % 100)
}

func containsUser(users []string, userID string) bool {
	userID = strings.ToLower(strings.TrimSpace(userID))
	for _, u := range users {
		if u == userID {
			return true
		}
	}
	return false
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
