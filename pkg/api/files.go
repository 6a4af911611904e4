package api

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// runFileServer serves run artifact files directly from the local
// results directory. Incoming request paths are resolved relative to
// the results root.
type runFileServer struct {
	log  logrus.FieldLogger
	root string
}

// newRunFileServer creates a file server over the given results root.
func newRunFileServer(log logrus.FieldLogger, root string) *runFileServer {
	return &runFileServer{
		log:  log.WithField("component", "file-server"),
		root: filepath.Clean(root),
	}
}

// ServeFile resolves filePath under the results root and serves it via
// http.ServeFile. Returns an error when the path is disallowed or not
// found.
func (l *runFileServer) ServeFile(
	w http.ResponseWriter,
	r *http.Request,
	filePath string,
) error {
	if !l.isAllowedPath(filePath) {
		return fmt.Errorf("path %q is not allowed", filePath)
	}

	full := filepath.Join(l.root, filePath)

	// Defense-in-depth: ensure the resolved path stays under the root.
	if !strings.HasPrefix(full, l.root+string(filepath.Separator)) {
		return fmt.Errorf("path %q escapes the results root", filePath)
	}

	if _, err := os.Stat(full); err != nil {
		return fmt.Errorf("file %q not found: %w", filePath, err)
	}

	http.ServeFile(w, r, full)

	return nil
}

// isAllowedPath rejects empty, absolute, unclean, or traversal request paths.
func (l *runFileServer) isAllowedPath(filePath string) bool {
	if filePath == "" {
		return false
	}

	if strings.Contains(filePath, "..") {
		return false
	}

	// Reject paths that start with a slash (absolute paths).
	if filepath.IsAbs(filePath) {
		return false
	}

	// Ensure the path is clean (no double slashes, trailing slashes, etc.).
	return path.Clean(filePath) == filePath
}
