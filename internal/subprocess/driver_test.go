package subprocess

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func TestBuildArgs(t *testing.T) {
	args := BuildArgs(Config{ModelPath: "/models/sense.bin", Language: "zh", DisableGPU: true})
	want := []string{
		"-m", "/models/sense.bin",
		"-l", "zh",
		"--use-vad",
		"--chunk-size", "80",
		"-mmc", "8",
		"-mnc", "120",
		"--speech-prob-threshold", "0.2",
		"-ng",
	}
	if strings.Join(args, " ") != strings.Join(want, " ") {
		t.Fatalf("BuildArgs mismatch:\nwant %v\ngot  %v", want, args)
	}
}

func TestBuildArgsGPUEnabledOmitsFlag(t *testing.T) {
	args := BuildArgs(Config{ModelPath: "m", Language: "en", DisableGPU: false})
	for _, a := range args {
		if a == "-ng" {
			t.Fatalf("did not expect -ng when DisableGPU is false")
		}
	}
}

func TestIsTranscriptCandidate(t *testing.T) {
	cases := []struct {
		line string
		want bool
	}{
		{"[0.00-1.50] hello there", true},
		{"<|zh|><|NEUTRAL|>hello", true},
		{"loading model...", false},
		{"", false},
	}
	for _, c := range cases {
		if got := isTranscriptCandidate(c.line); got != c.want {
			t.Errorf("isTranscriptCandidate(%q) = %v, want %v", c.line, got, c.want)
		}
	}
}

func TestSanitize(t *testing.T) {
	got := sanitize("[0.00-1.50]  <|zh|> hello   world  ")
	if got != "hello world" {
		t.Fatalf("sanitize() = %q, want %q", got, "hello world")
	}
}

func TestIsErrorLine(t *testing.T) {
	cases := []struct {
		line string
		want bool
	}{
		{"dyld: Library not loaded", true},
		{"Error: model not found", true},
		{"couldn't open device", true},
		{"normal log line", false},
	}
	for _, c := range cases {
		if got := isErrorLine(c.line); got != c.want {
			t.Errorf("isErrorLine(%q) = %v, want %v", c.line, got, c.want)
		}
	}
}

func TestSplitLinesCoalescesTerminatorRuns(t *testing.T) {
	data := []byte("one\r\ntwo\r\r\nthree")
	var lines []string
	for len(data) > 0 {
		advance, token, err := splitLines(data, true)
		if err != nil {
			t.Fatalf("splitLines error: %v", err)
		}
		if advance == 0 {
			break
		}
		lines = append(lines, string(token))
		data = data[advance:]
	}
	want := []string{"one", "two", "three"}
	if len(lines) != len(want) {
		t.Fatalf("got %v lines, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

// fakeScriptPath writes an executable shell script emitting the given
// stdout/stderr lines, one at a time, then exits with exitCode.
func fakeScriptPath(t *testing.T, stdoutLines, stderrLines []string, exitCode int) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	path := dir + "/fake-sense-voice-stream.sh"
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	for _, l := range stdoutLines {
		b.WriteString("echo '" + l + "'\n")
	}
	for _, l := range stderrLines {
		b.WriteString("echo '" + l + "' 1>&2\n")
	}
	b.WriteString("exit " + itoa(exitCode) + "\n")
	if err := os.WriteFile(path, []byte(b.String()), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

func TestDriverEmitsTranscriptsAndExit(t *testing.T) {
	path := fakeScriptPath(t,
		[]string{"[0.00-1.00] hello world", "loading...", "[1.00-2.00] hello world"},
		nil, 3)

	d := NewDriver(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.Configure(Config{ExecutablePath: path, ModelPath: "m", Language: "auto"}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case tr := <-d.Transcripts():
		if tr.Text != "hello world" {
			t.Fatalf("transcript = %q, want %q", tr.Text, "hello world")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for transcript")
	}

	// the third stdout line repeats the same sanitized text; it must be
	// suppressed as a consecutive duplicate, so Exit should arrive
	// without a second transcript.
	select {
	case ex := <-d.Exited():
		if ex.Code != 3 {
			t.Fatalf("exit code = %d, want 3", ex.Code)
		}
	case tr := <-d.Transcripts():
		t.Fatalf("unexpected duplicate transcript delivered: %q", tr.Text)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for exit")
	}
}

func TestDriverSuppressesExitAfterIntentionalStop(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	path := dir + "/fake-sense-voice-stream.sh"
	script := "#!/bin/sh\necho '[0.00-1.00] hi'\nsleep 5\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	d := NewDriver(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := d.Configure(Config{ExecutablePath: path, ModelPath: "m", Language: "auto"}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if err := d.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case ex := <-d.Exited():
		t.Fatalf("did not expect Exit after intentional stop, got %+v", ex)
	case <-time.After(1 * time.Second):
	}
}

func TestIsErrorLineCaseInsensitive(t *testing.T) {
	if !isErrorLine("FAILED to init") {
		t.Fatalf("expected case-insensitive match")
	}
}
