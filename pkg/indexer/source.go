package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Source lists the run directories available in a storage backend and
// reads files out of them. The indexer stays unaware of whether runs
// live on the local filesystem or in a bucket.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// ListRunDirs returns the run directory names present in the source.
	ListRunDirs(ctx context.Context) ([]string, error)

	// GetRunFile reads a file from a run directory.
	// Returns (nil, nil) when the file does not exist.
	GetRunFile(ctx context.Context, runDir, filename string) ([]byte, error)
}

// Compile-time interface check.
var _ Source = (*localSource)(nil)

type localSource struct {
	root string
}

// NewLocalSource creates a Source backed by a local results directory.
func NewLocalSource(root string) Source {
	return &localSource{root: root}
}

// Name returns the source identifier.
func (s *localSource) Name() string {
	return "local:" + s.root
}

// ListRunDirs returns the directory names under the results root. A
// missing root is not an error; it simply holds no runs yet.
func (s *localSource) ListRunDirs(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading results directory: %w", err)
	}

	dirs := make([]string, 0, len(entries))

	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}

	return dirs, nil
}

// GetRunFile reads {root}/{runDir}/{filename}.
// Returns (nil, nil) when the file does not exist.
func (s *localSource) GetRunFile(
	_ context.Context, runDir, filename string,
) ([]byte, error) {
	p := filepath.Join(s.root, runDir, filename)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading file %s: %w", p, err)
	}

	return data, nil
}
