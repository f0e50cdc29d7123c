// Package locator finds the freshest profiler log matching a glob pattern.
package locator

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// ErrNoLogFound is returned when a pattern matches no files.
var ErrNoLogFound = errors.New("no log files found")

// FindLatest returns the path matching pattern with the newest modification
// time. Ties are broken arbitrarily; production runs write logs with distinct
// timestamps. Files that disappear between globbing and stat are skipped.
func FindLatest(pattern string) (string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("bad pattern %q: %w", pattern, err)
	}

	var latest string
	var latestMod time.Time
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			slog.Warn("skipping unreadable log candidate", "path", path, "error", err)
			continue
		}
		if info.IsDir() {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = path
			latestMod = info.ModTime()
		}
	}
	if latest == "" {
		return "", fmt.Errorf("%w for pattern %q", ErrNoLogFound, pattern)
	}
	return latest, nil
}
