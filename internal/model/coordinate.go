// Package model defines the data model shared across every component of the
// orchestration engine: artifact coordinates, plugin specifications,
// language targets, and the request/result types exchanged with the
// embedding build tool.
package model

import "fmt"

// Coordinate is an immutable external reference to an artifact:
// group:name:version[:type[:classifier]].
type Coordinate struct {
	Group      string
	Name       string
	Version    string
	Type       string // defaults applied by callers, e.g. "jar" or "exe"
	Classifier string

	Exclusions      []Exclusion
	ResolutionDepth ResolutionDepth
}

// ResolutionDepth controls whether a Coordinate's transitive dependencies
// are followed.
type ResolutionDepth int

const (
	// Transitive resolves the coordinate and all of its dependencies.
	Transitive ResolutionDepth = iota
	// Direct resolves only the coordinate itself.
	Direct
)

// String renders the Maven-style coordinate string.
func (c Coordinate) String() string {
	s := fmt.Sprintf("%s:%s:%s", c.Group, c.Name, c.Version)
	if c.Type != "" {
		s += ":" + c.Type
		if c.Classifier != "" {
			s += ":" + c.Classifier
		}
	}
	return s
}

// Key returns the group:name:type:classifier identity used for dedup,
// deliberately excluding version.
func (c Coordinate) Key() string {
	return fmt.Sprintf("%s:%s:%s:%s", c.Group, c.Name, c.Type, c.Classifier)
}

// Exclusion excludes a dependency (or subtree) during transitive resolution.
// A wildcard exclusion is never constructed directly by callers; set
// NoTransitive to express "resolve this node, do not follow its
// children" (see Design Note on wildcard exclusions).
type Exclusion struct {
	Group      string
	Name       string
	Classifier string
	Type       string

	// NoTransitive, when true, tells the resolver to resolve the matched
	// coordinate but not traverse into its own dependencies. This replaces
	// the ambiguous "*:*:*:*" wildcard exclusion sentinel from the original
	// config surface with an explicit boolean.
	NoTransitive bool
}

// Matches reports whether the exclusion applies to the given coordinate.
func (e Exclusion) Matches(c Coordinate) bool {
	if e.Group != "" && e.Group != "*" && e.Group != c.Group {
		return false
	}
	if e.Name != "" && e.Name != "*" && e.Name != c.Name {
		return false
	}
	if e.Classifier != "" && e.Classifier != "*" && e.Classifier != c.Classifier {
		return false
	}
	if e.Type != "" && e.Type != "*" && e.Type != c.Type {
		return false
	}
	return true
}
