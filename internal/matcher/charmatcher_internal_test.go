package matcher

import "testing"

func TestMatchCharExactPrefix(t *testing.T) {
	got := matchChar("the quick brown fox", "the quick")
	want := len("the quick")
	if got != want {
		t.Fatalf("want %d, got %d", want, got)
	}
}

func TestMatchCharResyncsAcrossMisheardLetter(t *testing.T) {
	tail := "the quick brown fox jumps"
	hyp := "the quikk brown fox jumps"
	got := matchChar(tail, hyp)
	if got != len(tail) {
		t.Fatalf("want full tail confirmed despite one misheard word, got %d of %d", got, len(tail))
	}
}

func TestMatchCharNoOverlapReturnsZero(t *testing.T) {
	got := matchChar("abcdef", "zzzzzz")
	if got != 0 {
		t.Fatalf("want 0, got %d", got)
	}
}
