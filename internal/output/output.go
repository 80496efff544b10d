// Package output puts generated files on disk all at once, or compares them with what is there.
package output

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/wham/apigen/internal/codegen"
)

// Write stages every artifact next to dir and then moves them into place, so an interrupted run
// never leaves a mix of old and new files behind. Files whose content is unchanged are not
// touched.
func Write(dir string, artifacts []codegen.Artifact) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	staging, err := os.MkdirTemp(dir, ".apigen-*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	var changed []string
	for _, a := range artifacts {
		current, err := os.ReadFile(filepath.Join(dir, a.Name))
		if err == nil && string(current) == a.Content {
			slog.Debug("Unchanged", "file", a.Name)
			continue
		}
		if err := os.WriteFile(filepath.Join(staging, a.Name), []byte(a.Content), 0644); err != nil {
			return fmt.Errorf("failed to stage %s: %w", a.Name, err)
		}
		changed = append(changed, a.Name)
	}

	for _, name := range changed {
		if err := os.Rename(filepath.Join(staging, name), filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("failed to move %s into place: %w", name, err)
		}
		slog.Info("Wrote "+name, "dir", dir)
	}
	return nil
}

// Stale is a generated file whose content on disk differs from the artifact.
type Stale struct {
	Name string
	Diff string
}

// Check compares artifacts with the files in dir and returns the stale ones with a unified diff
// from the file on disk to the artifact. A missing file diffs against empty content.
func Check(dir string, artifacts []codegen.Artifact) ([]Stale, error) {
	var stale []Stale
	for _, a := range artifacts {
		path := filepath.Join(dir, a.Name)
		current, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if string(current) == a.Content {
			continue
		}
		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(current)),
			B:        difflib.SplitLines(a.Content),
			FromFile: path,
			ToFile:   path + " (generated)",
			Context:  3,
		})
		if err != nil {
			return nil, err
		}
		stale = append(stale, Stale{Name: a.Name, Diff: diff})
	}
	return stale, nil
}
