// Package platform provides OS/architecture classifier inference and $PATH
// executable lookup, mirroring the per-call (never cached at package scope)
// semantics the orchestrator relies on for testability.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Classifier returns the Maven-style os-arch classifier for the running
// process, e.g. "linux-x86_64" or "osx-aarch_64".
func Classifier() (string, error) {
	return ClassifierFor(runtime.GOOS, runtime.GOARCH)
}

// ClassifierFor computes the classifier for an explicit (goos, goarch) pair,
// exported so the resolver's tests can exercise every supported platform
// without GOOS/GOARCH build constraints.
func ClassifierFor(goos string, goarch string) (string, error) {
	var os string
	switch goos {
	case "linux":
		os = "linux"
	case "darwin":
		os = "osx"
	case "windows":
		os = "windows"
	default:
		return "", fmt.Errorf("platform: unsupported GOOS %q", goos)
	}
	var arch string
	switch goarch {
	case "amd64":
		arch = "x86_64"
	case "386":
		arch = "x86_32"
	case "arm64":
		arch = "aarch_64"
	default:
		return "", fmt.Errorf("platform: unsupported GOARCH %q", goarch)
	}
	return os + "-" + arch, nil
}

// ErrNotFound is returned by SearchPath when no matching executable exists
// on $PATH.
var ErrNotFound = errors.New("platform: executable not found on PATH")

// SearchPath looks up name on the $PATH, using POSIX executable-bit
// semantics on Unix-like systems and Windows's case-insensitive $PATHEXT
// semantics on Windows.
func SearchPath(name string) (string, error) {
	return searchPathIn(name, os.Getenv("PATH"), os.Getenv("PATHEXT"), runtime.GOOS)
}

func searchPathIn(name string, pathEnv string, pathExt string, goos string) (string, error) {
	dirs := filepath.SplitList(pathEnv)
	if goos == "windows" {
		exts := splitPathExt(pathExt)
		for _, dir := range dirs {
			entries, err := os.ReadDir(dir)
			if err != nil {
				continue
			}
			for _, ext := range exts {
				for _, entry := range entries {
					if !entry.IsDir() && strings.EqualFold(entry.Name(), name+ext) {
						return filepath.Join(dir, entry.Name()), nil
					}
				}
			}
		}
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	for _, dir := range dirs {
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode()&0o111 != 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

func splitPathExt(pathExt string) []string {
	if pathExt == "" {
		return []string{".com", ".exe", ".bat", ".cmd"}
	}
	raw := strings.Split(pathExt, ";")
	exts := make([]string, 0, len(raw)+1)
	exts = append(exts, "")
	for _, e := range raw {
		if e != "" {
			exts = append(exts, strings.ToLower(e))
		}
	}
	return exts
}

// MakeExecutable sets the owner/group/world execute bits on path. It is a
// no-op on Windows, where executability is determined by extension.
func MakeExecutable(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("platform: make executable: %w", err)
	}
	return os.Chmod(path, info.Mode()|0o111)
}
