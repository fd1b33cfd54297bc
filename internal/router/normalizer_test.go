package router

import "testing"

func TestNormalize_Salutation(t *testing.T) {
	n := NewNormalizer("centavo")

	tests := []struct {
		input string
		want  string
	}{
		{"hey centavo, price btc", "price btc"},
		{"Centavo price btc", "price btc"},
		{"hello centavo! show my portfolio", "show my portfolio"},
		{"centavo", ""},
		{"price btc", "price btc"},
	}

	for _, tt := range tests {
		if got := n.Normalize(tt.input); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalize_TypoCorrection(t *testing.T) {
	n := NewNormalizer("centavo")

	tests := []struct {
		input string
		want  string
	}{
		{"prcie btc", "price btc"},
		{"show my protfolio", "show my portfolio"},
		{"reprot please", "report please"},
		{"staus", "status"},
		// One edit away from a table key still corrects.
		{"prciee btc", "price btc"},
		// Correct vocabulary is never rewritten.
		{"price btc", "price btc"},
		{"my balance", "my balance"},
	}

	for _, tt := range tests {
		if got := n.Normalize(tt.input); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalize_TypoTieIsDeterministic(t *testing.T) {
	n := NewNormalizer("centavo")

	// "prce" is one edit from several table keys; the sorted-key scan must
	// land on the same correction on every call.
	const want = "price btc"
	if got := n.Normalize("prce btc"); got != want {
		t.Fatalf("Normalize(%q) = %q, want %q", "prce btc", got, want)
	}
	for i := 0; i < 50; i++ {
		if got := n.Normalize("prce btc"); got != want {
			t.Fatalf("run %d: Normalize = %q, want %q", i, got, want)
		}
	}
}

func TestNormalize_WhitespaceCollapse(t *testing.T) {
	n := NewNormalizer("centavo")
	if got := n.Normalize("  price \t btc  "); got != "price btc" {
		t.Errorf("Normalize = %q, want %q", got, "price btc")
	}
	if got := n.Normalize(""); got != "" {
		t.Errorf("Normalize(empty) = %q, want empty", got)
	}
}
