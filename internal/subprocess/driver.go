// Package subprocess spawns and supervises a long-lived streaming ASR
// binary: it parses its line-delimited stdout into segment transcripts,
// classifies stderr chatter into backend errors, and reports the child's
// exit code — except when the driver stopped it intentionally, guarded
// by an explicit stop flag so a deliberate shutdown never looks like a
// crash to callers watching for exit-triggered retries.
package subprocess

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/nupi-ai/teleprompter-engine/internal/assets"
)

// Config configures one launch of the external ASR binary.
type Config struct {
	ExecutablePath     string
	ModelPath          string
	Language           string // auto, zh, en, yue, ja, ko
	DisableGPU         bool
	LibrarySearchPaths []string
}

// Transcript is one segment transcript parsed from stdout. Unlike the
// platform backend's cumulative Transcript, Text here covers only the
// latest speech slice.
type Transcript struct {
	Text string
}

// BackendError is one stderr line classified as an error report.
type BackendError struct {
	Line string
}

// Exit reports the child process's termination code. It is never
// delivered when Stop was called intentionally.
type Exit struct {
	Code int
}

// Driver spawns and supervises exactly one external ASR subprocess at a
// time. A Driver is reusable across Start/Stop cycles but not safe for
// concurrent Start calls.
type Driver struct {
	log *slog.Logger

	mu                   sync.Mutex
	cmd                  *exec.Cmd
	cfg                  Config
	intentionallyStopped atomic.Bool

	transcripts chan Transcript
	errors      chan BackendError
	exits       chan Exit

	lastEmitted string
}

// NewDriver constructs a Driver.
func NewDriver(logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		log:         logger.With("component", "subprocess.Driver"),
		transcripts: make(chan Transcript, 32),
		errors:      make(chan BackendError, 16),
		exits:       make(chan Exit, 1),
	}
}

// Transcripts returns the channel segment transcripts are delivered on.
func (d *Driver) Transcripts() <-chan Transcript { return d.transcripts }

// BackendErrors returns the channel classified stderr error lines are
// delivered on.
func (d *Driver) BackendErrors() <-chan BackendError { return d.errors }

// Exited returns the channel the child's exit code is delivered on.
func (d *Driver) Exited() <-chan Exit { return d.exits }

// Configure validates and stores cfg for the next Start call.
func (d *Driver) Configure(cfg Config) error {
	if cfg.ExecutablePath == "" {
		return fmt.Errorf("subprocess: empty executable path")
	}
	if cfg.ModelPath == "" {
		return fmt.Errorf("subprocess: empty model path")
	}
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
	return nil
}

// BuildArgs constructs the CLI argument vector for the external binary
// from cfg.
func BuildArgs(cfg Config) []string {
	args := []string{
		"-m", cfg.ModelPath,
		"-l", cfg.Language,
		"--use-vad",
		"--chunk-size", "80",
		"-mmc", "8",
		"-mnc", "120",
		"--speech-prob-threshold", "0.2",
	}
	if cfg.DisableGPU {
		args = append(args, "-ng")
	}
	return args
}

// dynamicLibraryEnvVar is the dynamic-linker search path environment
// variable name. It is a var, not a const, so platform-specific builds
// (DYLD_LIBRARY_PATH on Darwin, LD_LIBRARY_PATH elsewhere) can override it;
// this module targets the Linux/ELF convention used by the reference
// binary's Linux builds.
var dynamicLibraryEnvVar = "LD_LIBRARY_PATH"

// Start launches the external binary with the most recently Configure'd
// settings and begins parsing its stdout/stderr. It returns once the
// process has been spawned; parsing happens on background goroutines
// coordinated by an errgroup, following the concurrent-probe pattern used
// elsewhere in the retrieved pack for supervising external work.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.cmd != nil {
		d.mu.Unlock()
		return fmt.Errorf("subprocess: driver already running")
	}
	cfg := d.cfg
	d.mu.Unlock()

	if cfg.ExecutablePath == "" {
		return fmt.Errorf("subprocess: empty executable path")
	}
	if cfg.ModelPath == "" {
		return fmt.Errorf("subprocess: empty model path")
	}

	d.intentionallyStopped.Store(false)
	d.lastEmitted = ""

	cmd := exec.CommandContext(ctx, cfg.ExecutablePath, BuildArgs(cfg)...)
	cmd.Env = append(os.Environ(), dynamicLibraryEnvVar+"="+assets.MergeLibraryPathEnv(os.Getenv(dynamicLibraryEnvVar), cfg.LibrarySearchPaths))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("subprocess: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("subprocess: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("subprocess: start %s: %w", cfg.ExecutablePath, err)
	}

	d.mu.Lock()
	d.cmd = cmd
	d.mu.Unlock()

	d.log.Info("subprocess started", "executable", cfg.ExecutablePath, "pid", cmd.Process.Pid)

	go d.supervise(cmd, stdout, stderr)
	return nil
}

// supervise reads stdout/stderr to completion and waits for the child to
// exit, delivering Transcript/BackendError/Exit events. Besides the
// channels and the intentional-stop flag it touches Driver state in two
// places: the stdout reader updates the duplicate-suppression text, and
// once the child has exited it clears the running command under the
// mutex, which is what lets a later Start call proceed.
func (d *Driver) supervise(cmd *exec.Cmd, stdout, stderr io.Reader) {
	var g errgroup.Group
	g.Go(func() error {
		d.readStdout(stdout)
		return nil
	})
	g.Go(func() error {
		d.readStderr(stderr)
		return nil
	})
	_ = g.Wait()

	err := cmd.Wait()

	d.mu.Lock()
	d.cmd = nil
	d.mu.Unlock()

	if d.intentionallyStopped.Load() {
		d.log.Debug("subprocess exited after intentional stop, suppressing Exit callback")
		return
	}

	code := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}
	d.log.Warn("subprocess exited", "code", code)
	select {
	case d.exits <- Exit{Code: code}:
	default:
	}
}

func (d *Driver) readStdout(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Split(splitLines)
	scanner.Buffer(make([]byte, 4096), 1<<20)
	for scanner.Scan() {
		line := stripANSI(scanner.Text())
		if !isTranscriptCandidate(line) {
			continue
		}
		text := sanitize(line)
		if text == "" || text == d.lastEmitted {
			continue
		}
		d.lastEmitted = text
		select {
		case d.transcripts <- Transcript{Text: text}:
		default:
			d.log.Warn("transcript channel full, dropping update")
		}
	}
}

func (d *Driver) readStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Split(splitLines)
	scanner.Buffer(make([]byte, 4096), 1<<20)
	for scanner.Scan() {
		line := stripANSI(scanner.Text())
		if line == "" {
			continue
		}
		if isErrorLine(line) {
			select {
			case d.errors <- BackendError{Line: line}:
			default:
				d.log.Warn("backend-error channel full, dropping line")
			}
		}
	}
}

// splitLines is a bufio.SplitFunc that splits on runs of \n and/or \r,
// coalescing consecutive terminators into a single boundary. It never
// returns a zero-length token for an empty run between terminators.
func splitLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	i := bytes.IndexAny(data, "\r\n")
	if i < 0 {
		if atEOF && len(data) > 0 {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
	j := i
	for j < len(data) && (data[j] == '\r' || data[j] == '\n') {
		j++
	}
	if j == len(data) && !atEOF {
		return 0, nil, nil
	}
	return j, data[:i], nil
}

// Stop sets the intentional-stop flag and kills the child if alive. It is
// idempotent and safe to call when no process is running.
func (d *Driver) Stop() error {
	d.intentionallyStopped.Store(true)

	d.mu.Lock()
	cmd := d.cmd
	d.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !isProcessFinished(err) {
		return fmt.Errorf("subprocess: kill: %w", err)
	}
	return nil
}

func isProcessFinished(err error) bool {
	return err == os.ErrProcessDone
}
