package gate

import (
	"fmt"
	"testing"
)

func TestDecide_KillSwitch(t *testing.T) {
	cfg := RolloutConfig{KillSwitch: true, Stage: StageFull}
	d := Decide(cfg, "u1")
	if d.Enabled {
		t.Error("kill switch must override every stage")
	}
}

func TestDecide_Stages(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RolloutConfig
		userID  string
		enabled bool
	}{
		{"off blocks", RolloutConfig{Stage: StageOff}, "u1", false},
		{"full enables", RolloutConfig{Stage: StageFull}, "u1", true},
		{"alpha member", RolloutConfig{Stage: StageAlpha, AlphaUsers: []string{"u1"}}, "u1", true},
		{"alpha non-member", RolloutConfig{Stage: StageAlpha, AlphaUsers: []string{"u1"}}, "u2", false},
		{"beta member", RolloutConfig{Stage: StageBeta, BetaUsers: []string{"u2"}}, "u2", true},
		{"alpha user passes during beta", RolloutConfig{Stage: StageBeta, AlphaUsers: []string{"u1"}}, "u1", true},
		{"beta non-member", RolloutConfig{Stage: StageBeta, BetaUsers: []string{"u2"}}, "u3", false},
		{"allow-list is case-insensitive", RolloutConfig{Stage: StageAlpha, AlphaUsers: NormalizeUsers("U1, u7 ")}, "U7", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.cfg, tt.userID)
			if d.Enabled != tt.enabled {
				t.Errorf("Decide(%+v, %q).Enabled = %v, want %v (%s)",
					tt.cfg, tt.userID, d.Enabled, tt.enabled, d.Reason)
			}
		})
	}
}

func TestDecide_RampBoundaries(t *testing.T) {
	for i := 0; i < 50; i++ {
		userID := fmt.Sprintf("user-%d", i)
		if Decide(RolloutConfig{Stage: StageRamp, Percent: 0, Salt: "s"}, userID).Enabled {
			t.Fatalf("percent=0 must block %s", userID)
		}
		if !Decide(RolloutConfig{Stage: StageRamp, Percent: 100, Salt: "s"}, userID).Enabled {
			t.Fatalf("percent=100 must enable %s", userID)
		}
	}
}

func TestDecide_RampMonotonic(t *testing.T) {
	// Raising the percentage can only add users, never drop them.
	const salt = "centavo-v1"
	enabledAt := func(p int) map[string]bool {
		set := make(map[string]bool)
		for i := 0; i < 200; i++ {
			u := fmt.Sprintf("user-%d", i)
			if Decide(RolloutConfig{Stage: StageRamp, Percent: p, Salt: salt}, u).Enabled {
				set[u] = true
			}
		}
		return set
	}

	prev := enabledAt(0)
	for p := 10; p <= 100; p += 10 {
		curr := enabledAt(p)
		for u := range prev {
			if !curr[u] {
				t.Fatalf("user %s enabled at lower percent but dropped at %d", u, p)
			}
		}
		prev = curr
	}
}

func TestBucket_Stable(t *testing.T) {
	a := Bucket("salt", "user-42")
	b := Bucket("salt", "USER-42")
	if a != b {
		t.Error("bucket must be case-insensitive over the user ID")
	}
	if a != Bucket("salt", "user-42") {
		t.Error("bucket must be stable across calls")
	}
	if a < 0 || a > 99 {
		t.Errorf("bucket out of range: %d", a)
	}
}

func TestParseStage(t *testing.T) {
	tests := []struct {
		in   string
		want Stage
	}{
		{"alpha", StageAlpha},
		{" Beta ", StageBeta},
		{"RAMP", StageRamp},
		{"full", StageFull},
		{"off", StageOff},
		{"bogus", StageOff},
		{"", StageOff},
	}
	for _, tt := range tests {
		if got := ParseStage(tt.in); got != tt.want {
			t.Errorf("ParseStage(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeUsers(t *testing.T) {
	got := NormalizeUsers(" Alice ,bob,, CAROL")
	want := []string{"alice", "bob", "carol"}
	if len(got) != len(want) {
		t.Fatalf("NormalizeUsers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("NormalizeUsers[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
