// Package resolver implements the dedup/depth/exclusion algorithm of the
// spec's Artifact Path Resolver component. It does not filter artifacts by
// scope and does not substitute managed versions for blank ones. The
// actual artifact-fetching collaborator (equivalent to a Maven/Gradle
// repository client) is supplied by the embedder through the
// ArtifactPathResolver interface; this package is resolver-agnostic.
package resolver

import (
	"context"
	"fmt"

	"golang.org/x/mod/semver"

	"github.com/protocgen/core/internal/model"
)

// ArtifactPathResolver is the external collaborator that resolves a single
// Coordinate to a local filesystem path and lists its direct dependencies.
// Implemented by the embedding build tool (§6 external interfaces).
type ArtifactPathResolver interface {
	// Resolve downloads (or locates in a local cache) the artifact for
	// coordinate and returns its local path.
	Resolve(ctx context.Context, coordinate model.Coordinate) (string, error)
	// DirectDependencies returns coordinate's direct (non-transitive)
	// dependencies, in declaration order.
	DirectDependencies(ctx context.Context, coordinate model.Coordinate) ([]model.Coordinate, error)
}

// ResolutionError wraps a failure to resolve a specific coordinate.
type ResolutionError struct {
	Coordinate model.Coordinate
	Cause      error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolver: failed to resolve %s: %v", e.Coordinate, e.Cause)
}
func (e *ResolutionError) Unwrap() error { return e.Cause }

// ResolvedArtifact is a single deduplicated, path-resolved artifact.
type ResolvedArtifact struct {
	Coordinate model.Coordinate
	Path       string
	Depth      int // 0 = root/direct request, >0 = transitive depth
}

// ResolveDependencies resolves roots and, unless a root or a transitively
// discovered dependency carries Direct resolution depth or is cut off by a
// NoTransitive exclusion, their full transitive closure. Coordinates sharing
// the same Key() are deduplicated by ComparableVersion, highest wins. Results
// are returned in the order each Key() was first seen.
func ResolveDependencies(
	ctx context.Context,
	pathResolver ArtifactPathResolver,
	roots []model.Coordinate,
	exclusions []model.Exclusion,
) ([]ResolvedArtifact, error) {
	type candidate struct {
		coordinate model.Coordinate
		depth      int
	}

	// best tracks, per dedup key, the highest-version candidate seen so far.
	best := make(map[string]candidate)
	var order []string               // dedup keys in first-seen order
	visited := make(map[string]bool) // by group:name:version:type:classifier, cycle guard

	var walk func(c model.Coordinate, depth int, noTransitive bool) error
	walk = func(c model.Coordinate, depth int, noTransitive bool) error {
		for _, excl := range exclusions {
			if excl.Matches(c) {
				if excl.NoTransitive {
					noTransitive = true
					continue
				}
				return nil // fully excluded
			}
		}

		key := c.Key()
		if existing, ok := best[key]; ok {
			if compareVersions(c.Version, existing.coordinate.Version) <= 0 {
				return nil // existing candidate wins or ties, skip re-walk
			}
		} else {
			order = append(order, key)
		}
		best[key] = candidate{coordinate: c, depth: depth}

		identity := fmt.Sprintf("%s:%s:%s:%s:%s", c.Group, c.Name, c.Version, c.Type, c.Classifier)
		if visited[identity] {
			return nil
		}
		visited[identity] = true

		if noTransitive || c.ResolutionDepth == model.Direct {
			return nil
		}
		deps, err := pathResolver.DirectDependencies(ctx, c)
		if err != nil {
			return &ResolutionError{Coordinate: c, Cause: err}
		}
		for _, dep := range deps {
			if err := walk(dep, depth+1, false); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range roots {
		if err := walk(root, 0, false); err != nil {
			return nil, err
		}
	}

	resolved := make([]ResolvedArtifact, 0, len(best))
	for _, key := range order {
		c := best[key]
		path, err := pathResolver.Resolve(ctx, c.coordinate)
		if err != nil {
			return nil, &ResolutionError{Coordinate: c.coordinate, Cause: err}
		}
		resolved = append(resolved, ResolvedArtifact{Coordinate: c.coordinate, Path: path, Depth: c.depth})
	}
	return resolved, nil
}

// compareVersions compares two version strings using semver ordering when
// both parse as semantic versions (after prefixing with "v" if needed), and
// falls back to lexicographic ordering otherwise. Returns <0, 0, >0 like
// strings.Compare.
func compareVersions(a string, b string) int {
	va, aOK := toSemver(a)
	vb, bOK := toSemver(b)
	if aOK && bOK {
		return semver.Compare(va, vb)
	}
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func toSemver(v string) (string, bool) {
	if v == "" {
		return "", false
	}
	if v[0] != 'v' {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", false
	}
	return v, true
}
