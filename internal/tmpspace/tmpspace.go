// Package tmpspace manages the per-execution scratch directory tree used to
// stage downloaded binaries, plugin launcher scripts, output directories,
// the incremental cache, and protoc argument files.
//
// Layout mirrors the teacher's single-resource tmp.Dir/tmp.File pattern but
// scoped to a whole execution: <buildDir>/pmp-core/<goal>/<executionID>/...
package tmpspace

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Space is a scratch directory tree rooted under a build directory, goal
// name, and execution ID.
type Space struct {
	root   string
	logger *zap.Logger
}

// New creates (via MkdirAll) and returns the root scratch directory for the
// given goal/executionID under buildDir.
func New(buildDir string, goal string, executionID string, logger *zap.Logger) (*Space, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	root := filepath.Join(buildDir, "pmp-core", goal, executionID)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("tmpspace: create root: %w", err)
	}
	logger.Debug("created scratch space", zap.String("root", root))
	return &Space{root: root, logger: logger}, nil
}

// Root returns the absolute path of the scratch tree's root.
func (s *Space) Root() string { return s.root }

// Subdir returns (creating if necessary) an absolute path for a named
// subdirectory of the scratch tree, e.g. Subdir("protoc"), Subdir("plugins",
// "protoc-gen-java").
func (s *Space) Subdir(parts ...string) (string, error) {
	elems := append([]string{s.root}, parts...)
	dir := filepath.Join(elems...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("tmpspace: create subdir %q: %w", dir, err)
	}
	return dir, nil
}

// WriteFile writes data to a new file under the given subdirectory parts,
// returning the absolute path. Parent directories are created as needed.
func (s *Space) WriteFile(data []byte, perm os.FileMode, parts ...string) (string, error) {
	if len(parts) == 0 {
		return "", fmt.Errorf("tmpspace: write file: no path given")
	}
	dir, err := s.Subdir(parts[:len(parts)-1]...)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, parts[len(parts)-1])
	if err := os.WriteFile(path, data, perm); err != nil {
		return "", fmt.Errorf("tmpspace: write file %q: %w", path, err)
	}
	return path, nil
}

// Close removes the whole scratch tree unless keep is true, in which case
// the tree is left on disk for post-mortem debugging (the orchestrator's
// GenerationRequest.Debug flag controls this).
func (s *Space) Close(keep bool) error {
	if keep {
		s.logger.Info("keeping scratch space for debugging", zap.String("root", s.root))
		return nil
	}
	if err := os.RemoveAll(s.root); err != nil {
		return fmt.Errorf("tmpspace: close: %w", err)
	}
	return nil
}
