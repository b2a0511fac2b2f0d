package matcher_test

import (
	"strings"
	"testing"
	"time"

	"github.com/nupi-ai/teleprompter-engine/internal/matcher"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAdvanceCumulativeTracksGrowingTranscript(t *testing.T) {
	page := "the quick brown fox jumps over the lazy dog"
	state := matcher.State{}

	state, _ = matcher.Advance(page, state, "the quick brown", matcher.BackendCumulative, fixedClock(time.Time{}))
	if state.RecognizedCharCount == 0 {
		t.Fatalf("expected progress after first chunk")
	}
	first := state.RecognizedCharCount

	state, _ = matcher.Advance(page, state, "the quick brown fox jumps", matcher.BackendCumulative, fixedClock(time.Time{}))
	if state.RecognizedCharCount <= first {
		t.Fatalf("expected cursor to advance with longer cumulative transcript, got %d after %d", state.RecognizedCharCount, first)
	}
}

func TestAdvanceCumulativeNeverRetreats(t *testing.T) {
	page := "one two three four five"
	state := matcher.State{}
	state, _ = matcher.Advance(page, state, "one two three", matcher.BackendCumulative, fixedClock(time.Time{}))
	advanced := state.RecognizedCharCount

	// A shorter/garbled hypothesis must not move the cursor backwards.
	state, _ = matcher.Advance(page, state, "one", matcher.BackendCumulative, fixedClock(time.Time{}))
	if state.RecognizedCharCount < advanced {
		t.Fatalf("cursor retreated: had %d, now %d", advanced, state.RecognizedCharCount)
	}
}

func TestAdvanceSegmentConsumesAnnotationTokens(t *testing.T) {
	page := "welcome everyone [pause] let's begin the show"
	state := matcher.State{}

	state, _ = matcher.Advance(page, state, "welcome everyone", matcher.BackendSegment, fixedClock(time.Time{}))
	afterFirst := state.RecognizedCharCount

	state, _ = matcher.Advance(page, state, "let's begin the show", matcher.BackendSegment, fixedClock(time.Time{}))
	if state.RecognizedCharCount <= afterFirst {
		t.Fatalf("expected progress past the annotation token, got %d after %d", state.RecognizedCharCount, afterFirst)
	}
}

func TestAdvanceSegmentFarJumpRequiresCorroboration(t *testing.T) {
	page := "alpha bravo charlie delta echo foxtrot golf hotel india juliet kilo lima mike november oscar papa quebec romeo sierra tango"
	state := matcher.State{RecognizedCharCount: 0, MatchStart: 0}

	now := time.Now()
	clock := func() time.Time { return now }

	// A hypothesis that only matches far ahead in the script should not
	// commit on the first hit.
	state, ev := matcher.Advance(page, state, "sierra tango", matcher.BackendSegment, clock)
	if ev.FarJumpCommitted {
		t.Fatalf("expected far jump to require a second corroborating hit")
	}

	now = now.Add(200 * time.Millisecond)
	state, ev = matcher.Advance(page, state, "sierra tango", matcher.BackendSegment, clock)
	if !ev.FarJumpCommitted {
		t.Fatalf("expected far jump to commit on second corroborating hit, recognized=%d", state.RecognizedCharCount)
	}
}

// S1 — clean read, cumulative backend.
func TestScenarioS1CleanRead(t *testing.T) {
	page := "Hello world from the teleprompter."
	state := matcher.State{}
	hyps := []string{"hello", "hello world", "hello world from", "hello world from the teleprompter"}
	want := []int{5, 11, 16, 34}

	for i, hyp := range hyps {
		state, _ = matcher.Advance(page, state, hyp, matcher.BackendCumulative, fixedClock(time.Time{}))
		if state.RecognizedCharCount != want[i] {
			t.Fatalf("after %q: got %d, want %d", hyp, state.RecognizedCharCount, want[i])
		}
	}
}

// S2 — STT hallucinated word: the inserted "a" must be skipped without
// blocking the rest of the sentence from matching through to the end.
func TestScenarioS2HallucinatedWord(t *testing.T) {
	page := "read the script carefully"
	state := matcher.State{}
	state, _ = matcher.Advance(page, state, "read a the script carefully", matcher.BackendCumulative, fixedClock(time.Time{}))
	if want := len([]rune(page)); state.RecognizedCharCount != want {
		t.Fatalf("expected a full match past the hallucinated word, got %d, want %d", state.RecognizedCharCount, want)
	}
}

// S3 — annotation tokens: a bracketed stage direction must not be credited
// until the match has genuinely reached it.
func TestScenarioS3AnnotationTokens(t *testing.T) {
	page := "Welcome [smile] to the show"
	state := matcher.State{}
	hyps := []string{"welcome", "welcome to", "welcome to the show"}
	want := []int{7, 18, 27}

	for i, hyp := range hyps {
		state, _ = matcher.Advance(page, state, hyp, matcher.BackendSegment, fixedClock(time.Time{}))
		if state.RecognizedCharCount != want[i] {
			t.Fatalf("after %q: got %d, want %d", hyp, state.RecognizedCharCount, want[i])
		}
	}
}

// S4 — repeated passage, ambiguity lock: with a prior exact occurrence of
// the hypothesis behind the cursor, the match must lock onto the nearest
// forward repeat rather than jumping to a later one.
func TestScenarioS4AmbiguityLockPrefersNearest(t *testing.T) {
	page := "The product is fast. The product is cheap. The product is easy."
	state := matcher.State{RecognizedCharCount: 20, MatchStart: 20}

	state, ev := matcher.Advance(page, state, "the product is", matcher.BackendSegment, fixedClock(time.Now()))
	const nearest = 35 // end of "is" in "The product is cheap.", not the third sentence
	if state.RecognizedCharCount != nearest {
		t.Fatalf("expected ambiguity lock to land on the nearest repeat (%d), got %d", nearest, state.RecognizedCharCount)
	}
	if ev.FarJumpCommitted {
		t.Fatalf("did not expect a far jump for an ambiguous repeated passage")
	}
}

// S5 — legitimate forward jump: a single far anchor hit must stay pending,
// and only commit once a second corroborating hit lands in the same place.
func TestScenarioS5ForwardJumpCommitsOnSecondHit(t *testing.T) {
	var a strings.Builder
	for a.Len() < 200 {
		a.WriteString("alpha ")
	}
	paragraphA := string([]rune(a.String())[:200])

	words := []string{
		"zeppelin", "quartz", "nimbus", "obelisk", "vortex", "prairie", "kindle",
		"plume", "cinder", "marble", "thicket", "lantern", "ember", "granite",
		"willow", "copper", "falcon", "ridge", "basalt", "coral", "linden",
		"ferrous", "tundra", "cobalt", "ravine", "sorrel", "umber", "flax",
		"spruce", "jasper", "holly", "quartzite", "brindle", "hazel",
	}
	var b strings.Builder
	for _, w := range words {
		b.WriteString(w)
		b.WriteString(" ")
	}
	for b.Len() < 200 {
		b.WriteString("extra ")
	}
	paragraphB := string([]rune(b.String())[:200])

	page := paragraphA + paragraphB
	runes := []rune(page)
	slice1 := string(runes[250:270])
	slice2 := string(runes[280:300])

	state := matcher.State{RecognizedCharCount: 50, MatchStart: 50}
	now := time.Now()
	clock := func() time.Time { return now }

	state, ev := matcher.Advance(page, state, slice1, matcher.BackendSegment, clock)
	if ev.FarJumpCommitted {
		t.Fatalf("expected the first far anchor hit to stay pending, not commit")
	}
	if state.RecognizedCharCount >= 200 {
		t.Fatalf("expected cursor to remain in paragraph A while the jump is pending, got %d", state.RecognizedCharCount)
	}

	now = now.Add(300 * time.Millisecond)
	state, ev = matcher.Advance(page, state, slice2, matcher.BackendSegment, clock)
	if !ev.FarJumpCommitted {
		t.Fatalf("expected the second corroborating hit to commit the far jump")
	}
	if state.RecognizedCharCount < 200 {
		t.Fatalf("expected cursor to land in paragraph B after commit, got %d", state.RecognizedCharCount)
	}
}

func TestJumpToResetsCursorAndClearsPending(t *testing.T) {
	s := matcher.JumpTo(42)
	if s.RecognizedCharCount != 42 || s.MatchStart != 42 {
		t.Fatalf("unexpected jump state: %+v", s)
	}
	if s.PendingJump != nil {
		t.Fatalf("expected no pending jump after an explicit jump")
	}
}
