package router

import "testing"

func TestClassify_AliasTable(t *testing.T) {
	tests := []struct {
		input string
		want  Intent
	}{
		{"price btc", IntentPrice},
		{"quote for ethereum", IntentPrice},
		{"how much is bitcoin worth", IntentPrice},
		{"show my portfolio", IntentPortfolio},
		{"what's my balance", IntentPortfolio},
		{"recent transactions", IntentTransactions},
		{"show my trade history", IntentTransactions},
		{"give me a report", IntentReport},
		{"weekly summary please", IntentReport},
		{"is the exchange connected", IntentStatus},
	}

	for _, tt := range tests {
		got := Classify(tt.input)
		if !got.IsCrypto || got.Intent != tt.want || got.MatchedBy != MatchedByAlias {
			t.Errorf("Classify(%q) = %+v, want intent %s via alias", tt.input, got, tt.want)
		}
	}
}

func TestClassify_PriorityOrder(t *testing.T) {
	// "worth" vocabulary must not steal portfolio questions.
	got := Classify("how much is my portfolio worth")
	if got.Intent != IntentPortfolio {
		t.Errorf("intent = %s, want portfolio", got.Intent)
	}
}

func TestClassify_CodingGuard(t *testing.T) {
	got := Classify("refactor the rate limiter class")
	if got.IsCrypto || got.Intent != IntentNone {
		t.Errorf("coding talk claimed: %+v", got)
	}

	// A direct symbol mention keeps the turn in scope despite the vocab.
	got = Classify("debug my btc bot")
	if !got.IsCrypto {
		t.Errorf("symbol mention should keep turn in scope: %+v", got)
	}
}

func TestClassify_OpenEndedAssist(t *testing.T) {
	for _, input := range []string{
		"can you help me with crypto investing",
		"tell me about the crypto market",
	} {
		got := Classify(input)
		if got.Intent != IntentAssist || got.MatchedBy != MatchedByIntent {
			t.Errorf("Classify(%q) = %+v, want assist", input, got)
		}
	}

	// An explicit action verb makes it a command, not interest.
	got := Classify("check the crypto market price")
	if got.Intent == IntentAssist {
		t.Errorf("action verb should not classify as assist: %+v", got)
	}
}

func TestClassify_MissionDeferral(t *testing.T) {
	got := Classify("schedule a daily digest of btc price and sports news")
	if !got.Deferred {
		t.Fatalf("want deferred, got %+v", got)
	}

	// Scheduling vocabulary alone stays on the fast path.
	got = Classify("give me a daily btc price")
	if got.Deferred {
		t.Errorf("no off-topic cue, should not defer: %+v", got)
	}
}

func TestClassify_FallbackPaths(t *testing.T) {
	got := Classify("btc?")
	if got.Intent != IntentPrice || got.MatchedBy != MatchedByIntent {
		t.Errorf("bare symbol = %+v, want price via intent path", got)
	}

	got = Classify("what about the exchange")
	if got.Intent != IntentAssist {
		t.Errorf("bare marker = %+v, want assist", got)
	}

	got = Classify("what's the weather like")
	if got.IsCrypto || got.Intent != IntentNone {
		t.Errorf("off-domain text claimed: %+v", got)
	}
}

func TestClassify_PolicyAndClarify(t *testing.T) {
	got := Classify("am i allowed to use reports")
	if got.Intent != IntentPolicy {
		t.Errorf("intent = %s, want policy", got.Intent)
	}

	for _, input := range []string{"yes", "nope", "i meant sol", "the first one"} {
		got := Classify(input)
		if got.Intent != IntentClarify {
			t.Errorf("Classify(%q) = %s, want clarify", input, got.Intent)
		}
	}
}

func TestClassify_Empty(t *testing.T) {
	got := Classify("   ")
	if got.Intent != IntentValidation {
		t.Errorf("intent = %s, want validation", got.Intent)
	}
}
