// Package tempdir hands out scratch directories under one apigen folder in the system temp dir and
// sweeps the ones left behind by crashed runs.
package tempdir

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	subdir          = "apigen"
	maxAge          = 60 * time.Minute
	cleanupInterval = 5 * time.Minute
)

var cleanupOnce sync.Once

// Root is the folder every scratch directory lives in.
func Root() string {
	return filepath.Join(os.TempDir(), subdir)
}

// StartCleanup sweeps stale directories now and then periodically. Long running commands call it
// once; repeated calls do nothing.
func StartCleanup() {
	cleanupOnce.Do(func() {
		go cleanupLoop()
	})
}

// New creates a fresh directory named prefix-*. The caller removes it.
func New(prefix string) (string, error) {
	if err := os.MkdirAll(Root(), 0755); err != nil {
		return "", err
	}
	dir, err := os.MkdirTemp(Root(), prefix+"-*")
	if err != nil {
		return "", err
	}
	slog.Debug("Created temp directory", "path", dir)
	return dir, nil
}

func cleanupLoop() {
	Sweep(maxAge)

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for range ticker.C {
		Sweep(maxAge)
	}
}

// Sweep removes directories under Root older than age and returns how many it removed.
func Sweep(age time.Duration) int {
	entries, err := os.ReadDir(Root())
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("Failed to read apigen temp directory", "error", err)
		}
		return 0
	}

	removed := 0
	now := time.Now()
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			slog.Error("Failed to get info for temp folder", "name", entry.Name(), "error", err)
			continue
		}
		if now.Sub(info.ModTime()) <= age {
			continue
		}
		path := filepath.Join(Root(), entry.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.Error("Failed to remove old temp folder", "path", path, "error", err)
			continue
		}
		slog.Debug("Cleaned up old temp folder", "path", path, "age", now.Sub(info.ModTime()))
		removed++
	}
	return removed
}
