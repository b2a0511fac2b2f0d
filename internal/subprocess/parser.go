package subprocess

import (
	"regexp"
	"strings"
)

var (
	ansiCSI       = regexp.MustCompile("\x1b\\[[0-9;]*[A-Za-z]")
	timestampSpan = regexp.MustCompile(`\[\d+(?:\.\d+)?-\d+(?:\.\d+)?\]`)
	senseVoiceTag = regexp.MustCompile(`<\|[^|]*\|>`)
)

// stripANSI removes ANSI CSI escape sequences from a line.
func stripANSI(line string) string {
	return ansiCSI.ReplaceAllString(line, "")
}

// isTranscriptCandidate reports whether a cleaned line carries a
// timestamp span or a SenseVoice-style tag, the two markers that
// distinguish a transcript payload from incidental log chatter.
func isTranscriptCandidate(line string) bool {
	return timestampSpan.MatchString(line) || senseVoiceTag.MatchString(line)
}

// sanitize strips timestamp spans and SenseVoice tags, collapses
// whitespace, and trims the result.
func sanitize(line string) string {
	line = timestampSpan.ReplaceAllString(line, " ")
	line = senseVoiceTag.ReplaceAllString(line, " ")
	line = strings.Join(strings.Fields(line), " ")
	return strings.TrimSpace(line)
}

var errorMarkers = []string{"error", "failed", "dyld", "couldn't"}

// isErrorLine reports whether a stderr line matches one of the
// case-insensitive error markers.
func isErrorLine(line string) bool {
	lower := strings.ToLower(line)
	for _, marker := range errorMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
