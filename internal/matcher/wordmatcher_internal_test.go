package matcher

import "testing"

func TestMatchWordSkipsHallucinatedHypothesisWords(t *testing.T) {
	tail := "see you at the station"
	hyp := "see you uh at the station"
	got := matchWord(tail, hyp)
	want := len(tail)
	if got != want {
		t.Fatalf("want %d, got %d", want, got)
	}
}

func TestMatchWordCreditsAnnotationTokens(t *testing.T) {
	tail := "ready [applause] go now"
	hyp := "ready go now"
	got := matchWord(tail, hyp)
	want := len(tail)
	if got != want {
		t.Fatalf("want %d, got %d", want, got)
	}
}

func TestMatchWordStopsAtFirstUnresolvedMismatch(t *testing.T) {
	tail := "the rain in spain falls mainly"
	hyp := "the rain xyzzyzzy"
	got := matchWord(tail, hyp)
	if got <= 0 || got >= len(tail) {
		t.Fatalf("expected partial progress, got %d (tail len %d)", got, len(tail))
	}
}

func TestIsAnnotationToken(t *testing.T) {
	cases := map[string]bool{
		"[pause]": true,
		"--":      true,
		"hello":   false,
		"don't":   false,
	}
	for tok, want := range cases {
		if got := isAnnotationToken(tok); got != want {
			t.Errorf("isAnnotationToken(%q) = %v, want %v", tok, got, want)
		}
	}
}
