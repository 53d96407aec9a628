// Package cache implements the incremental build cache: a JSON-serialized,
// content-hash fingerprint of every proto dependency, proto source, and
// descriptor file input to a generation request, used to skip regeneration
// when nothing relevant has changed.
//
// Grounded on the teacher's content-addressed staging idiom
// (internal/pkg/tmp) combined with spec.md §4.H's three-map schema; the
// cache schema itself has no direct teacher analogue (buf's own build cache
// is a different shape), so the JSON encoding here is intentionally the
// simplest idiomatic choice: encoding/json over a small, versioned struct
// (see DESIGN.md for the stdlib-use justification).
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/protocgen/core/internal/digest"
)

// SchemaVersion is the only schema this cache manager understands. Any
// persisted cache whose SchemaVersion differs (including the absence of the
// field, i.e. the legacy two-key schema) is treated as absent: the build
// proceeds as a full rebuild rather than attempting a partial migration, per
// Design Note §9's Open Question resolution.
const SchemaVersion = "3.0"

// Cache is the three-map content-hash fingerprint persisted between builds.
type Cache struct {
	SchemaVersion    string            `json:"schemaVersion"`
	ProtoDependencies map[string]string `json:"proto_dependencies"` // canonical file URI -> hex digest
	ProtoSources      map[string]string `json:"proto_sources"`
	DescriptorFiles   map[string]string `json:"descriptor_files"`
}

// New returns an empty Cache stamped with the current SchemaVersion.
func New() *Cache {
	return &Cache{
		SchemaVersion:     SchemaVersion,
		ProtoDependencies: map[string]string{},
		ProtoSources:      map[string]string{},
		DescriptorFiles:   map[string]string{},
	}
}

// Load reads previous.json from dir. A missing file, or a file whose
// SchemaVersion doesn't match, is reported as (nil, nil): the caller should
// treat this exactly like a first build.
func Load(dir string) (*Cache, error) {
	path := filepath.Join(dir, "previous.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache: read %q: %w", path, err)
	}
	var c Cache
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, nil // unparseable cache is equivalent to no cache, not a fatal error
	}
	if c.SchemaVersion != SchemaVersion {
		return nil, nil
	}
	return &c, nil
}

// Save atomically persists c as dir/previous.json by writing dir/next.json
// and renaming it over previous.json only once the write has fully
// succeeded, so a crash mid-write never corrupts the prior cache.
func Save(dir string, c *Cache) error {
	nextPath := filepath.Join(dir, "next.json")
	previousPath := filepath.Join(dir, "previous.json")

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: marshal: %w", err)
	}
	if err := os.WriteFile(nextPath, data, 0o644); err != nil {
		return fmt.Errorf("cache: write %q: %w", nextPath, err)
	}
	if err := os.Rename(nextPath, previousPath); err != nil {
		return fmt.Errorf("cache: rename %q -> %q: %w", nextPath, previousPath, err)
	}
	return nil
}

// FingerprintFile computes the SHA-512 content digest of path, keyed by its
// canonical file:// URI, for insertion into one of Cache's three maps.
func FingerprintFile(path string) (uri string, hexDigest string, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", fmt.Errorf("cache: abs path %q: %w", path, err)
	}
	file, err := os.Open(abs)
	if err != nil {
		return "", "", fmt.Errorf("cache: open %q: %w", abs, err)
	}
	defer file.Close()
	d, err := digest.Compute(digest.SHA512, file)
	if err != nil {
		return "", "", err
	}
	return canonicalFileURI(abs), d.Hex(), nil
}

func canonicalFileURI(absPath string) string {
	return "file://" + filepath.ToSlash(absPath)
}

// Diff reports whether want differs from have, returning true on any
// mismatch. Added, removed, or digest-changed entries all count as a
// mismatch. A nil have (no prior cache) always mismatches.
func Diff(have map[string]string, want map[string]string) bool {
	if have == nil {
		return true
	}
	if len(have) != len(want) {
		return true
	}
	for k, v := range want {
		if have[k] != v {
			return true
		}
	}
	return false
}

// NeedsRebuild reports whether any of the three fingerprint maps in current
// differ from previous (or previous is nil, meaning no prior build ran).
func NeedsRebuild(previous *Cache, current *Cache) bool {
	if previous == nil {
		return true
	}
	return Diff(previous.ProtoDependencies, current.ProtoDependencies) ||
		Diff(previous.ProtoSources, current.ProtoSources) ||
		Diff(previous.DescriptorFiles, current.DescriptorFiles)
}

// BuildCurrent fingerprints every listed file into a fresh Cache.
func BuildCurrent(ctx context.Context, dependencies []string, sources []string, descriptors []string) (*Cache, error) {
	current := New()
	for _, group := range []struct {
		paths []string
		dest  map[string]string
	}{
		{dependencies, current.ProtoDependencies},
		{sources, current.ProtoSources},
		{descriptors, current.DescriptorFiles},
	} {
		for _, path := range group.paths {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			uri, hexDigest, err := FingerprintFile(path)
			if err != nil {
				return nil, err
			}
			group.dest[uri] = hexDigest
		}
	}
	return current, nil
}

// SortedKeys is a small helper used by logging/debugging call sites that
// want deterministic map iteration order.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
