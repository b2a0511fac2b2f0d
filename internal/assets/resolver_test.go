package assets_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/nupi-ai/teleprompter-engine/internal/assets"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write executable: %v", err)
	}
	return path
}

func TestResolveExecutableAcceptsValidConfiguredPath(t *testing.T) {
	dir := t.TempDir()
	path := writeExecutable(t, dir, "sense-voice-stream")

	r := assets.NewResolver(silentLogger(), nil)
	got, persist, err := r.ResolveExecutable(path)
	if err != nil {
		t.Fatalf("ResolveExecutable: %v", err)
	}
	if got != path {
		t.Fatalf("want %s, got %s", path, got)
	}
	if persist {
		t.Fatalf("expected no persist needed for an already-valid path")
	}
}

func TestResolveExecutableFallsBackToDefaultLocation(t *testing.T) {
	dir := t.TempDir()
	fallback := writeExecutable(t, dir, "sense-voice-stream-macos")

	r := assets.NewResolver(silentLogger(), []string{fallback})
	got, persist, err := r.ResolveExecutable(filepath.Join(dir, "missing"))
	if err != nil {
		t.Fatalf("ResolveExecutable: %v", err)
	}
	if got != fallback {
		t.Fatalf("want %s, got %s", fallback, got)
	}
	if !persist {
		t.Fatalf("expected persist=true when falling back to a default location")
	}
}

func TestResolveExecutableRejectsWrongBasename(t *testing.T) {
	dir := t.TempDir()
	path := writeExecutable(t, dir, "totally-unrelated-binary")

	r := assets.NewResolver(silentLogger(), nil)
	if _, _, err := r.ResolveExecutable(path); err == nil {
		t.Fatalf("expected an error for a basename without the sense-voice-stream marker")
	}
}

func TestLibrarySearchPathsKeepsOnlyExistingDirs(t *testing.T) {
	root := t.TempDir()
	binDir := filepath.Join(root, "bin")
	libDir := filepath.Join(root, "lib")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(libDir, 0o755); err != nil {
		t.Fatal(err)
	}
	exe := filepath.Join(binDir, "sense-voice-stream")

	got := assets.LibrarySearchPaths(exe)
	foundLib, foundBin := false, false
	for _, p := range got {
		if p == libDir {
			foundLib = true
		}
		if p == binDir {
			foundBin = true
		}
	}
	if !foundLib || !foundBin {
		t.Fatalf("expected lib dir and bin dir in %v", got)
	}
}

func TestMergeLibraryPathEnvDedupsPreservingOrder(t *testing.T) {
	got := assets.MergeLibraryPathEnv("/a:/b", []string{"/c", "/a"})
	want := "/c:/a:/b"
	if got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}
