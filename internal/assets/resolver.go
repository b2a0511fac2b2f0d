// Package assets resolves and validates the external subprocess's
// executable path: given a configured path, a set of fallback install
// locations, and a validity check, it picks the first usable one and
// reports whether the caller should persist that choice for next time.
package assets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ExecutableMarker is the basename substring every valid
// sense-voice-stream binary is expected to contain, acting as a sanity
// check against a misconfigured path pointing at an unrelated binary.
const ExecutableMarker = "sense-voice-stream"

// Resolver validates a configured executable path and, if it is invalid,
// probes a list of default install locations.
type Resolver struct {
	log              *slog.Logger
	DefaultLocations []string
}

// NewResolver constructs a Resolver. defaultLocations should be absolute
// paths under the user's home, most-preferred first.
func NewResolver(logger *slog.Logger, defaultLocations []string) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		log:              logger.With("component", "assets.Resolver"),
		DefaultLocations: defaultLocations,
	}
}

// ResolveExecutable validates configuredPath and, on failure, probes the
// default locations in order. persist reports whether the caller (the
// demo command, in this module) should write the resolved path back to
// settings —
// true whenever the configured path did not already hold the answer.
func (r *Resolver) ResolveExecutable(configuredPath string) (resolvedPath string, persist bool, err error) {
	if err := r.validate(configuredPath); err == nil {
		return configuredPath, false, nil
	}

	for _, candidate := range r.DefaultLocations {
		if err := r.validate(candidate); err == nil {
			r.log.Info("resolved executable from default location", "path", candidate)
			return candidate, true, nil
		}
	}

	return "", false, fmt.Errorf("assets: no valid %s executable found (configured path %q invalid, %d fallback locations exhausted)",
		ExecutableMarker, configuredPath, len(r.DefaultLocations))
}

// validate checks that path is non-empty, exists, has a sane basename,
// and is executable — attempting to fix a non-executable mode before
// giving up.
func (r *Resolver) validate(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("assets: empty path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("assets: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("assets: %s is a directory", path)
	}
	if !strings.Contains(filepath.Base(path), ExecutableMarker) {
		return fmt.Errorf("assets: basename of %s does not contain %q", path, ExecutableMarker)
	}
	if info.Mode().Perm()&0o111 == 0 {
		if chmodErr := os.Chmod(path, 0o755); chmodErr != nil {
			return fmt.Errorf("assets: %s is not executable and chmod failed: %w", path, chmodErr)
		}
		info, err = os.Stat(path)
		if err != nil {
			return fmt.Errorf("assets: re-stat %s after chmod: %w", path, err)
		}
		if info.Mode().Perm()&0o111 == 0 {
			return fmt.Errorf("assets: %s is still not executable after chmod", path)
		}
	}
	return nil
}

// LibrarySearchPaths collects the directories the external subprocess's
// dynamic linker should search: ../lib and ../../lib relative to the
// executable, plus the executable's own directory, filtered to existing
// directories and deduplicated, preserving order (spec §4.3).
func LibrarySearchPaths(executablePath string) []string {
	dir := filepath.Dir(executablePath)
	candidates := []string{
		filepath.Join(dir, "..", "lib"),
		filepath.Join(dir, "..", "..", "lib"),
		dir,
	}

	seen := make(map[string]bool, len(candidates))
	var out []string
	for _, c := range candidates {
		clean := filepath.Clean(c)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		if info, err := os.Stat(clean); err == nil && info.IsDir() {
			out = append(out, clean)
		}
	}
	return out
}

// MergeLibraryPathEnv merges newPaths into an existing dynamic-linker
// search path environment variable value, prepending the new entries and
// deduplicating while preserving order.
func MergeLibraryPathEnv(existing string, newPaths []string) string {
	seen := make(map[string]bool)
	var parts []string
	for _, p := range newPaths {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		parts = append(parts, p)
	}
	for _, p := range strings.Split(existing, string(os.PathListSeparator)) {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		parts = append(parts, p)
	}
	return strings.Join(parts, string(os.PathListSeparator))
}
