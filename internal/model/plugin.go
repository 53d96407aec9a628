package model

import (
	"path"
	"strings"

	"github.com/protocgen/core/internal/digest"
)

// NormalizeID lowercases raw and maps every non-alphanumeric run to a single
// underscore, producing the stable plugin id spec.md §3 requires: the
// "--xxx_out" / "protoc-gen-xxx" key derived from a spec's coordinate/name.
func NormalizeID(raw string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

// PluginSpec is the closed sum type of ways a compiler plugin can be
// specified. Implementations are unexported-method-gated so no type outside
// this package can implement the interface, matching spec.md's closed
// variant set.
type PluginSpec interface {
	isPluginSpec()
	// ID returns a stable identifier for this plugin spec, used as the
	// protoc-gen-<id> / --<id>_out key and to name the plugin's output
	// directory.
	ID() string
}

// RepoBinaryPlugin resolves a native executable plugin from an artifact
// repository coordinate (e.g. protoc-gen-grpc-java published as a
// classifier'd executable).
type RepoBinaryPlugin struct {
	Coordinate Coordinate
	Digest     *digest.Digest
	Options    []string
}

func (RepoBinaryPlugin) isPluginSpec() {}
func (p RepoBinaryPlugin) ID() string  { return NormalizeID(p.Coordinate.Name) }

// PathBinaryPlugin resolves a plugin already present on disk, either an
// absolute path or a bare name to be searched for on $PATH.
type PathBinaryPlugin struct {
	Name    string // e.g. "protoc-gen-go" or "/usr/local/bin/protoc-gen-go"
	Options []string
}

func (PathBinaryPlugin) isPluginSpec() {}
func (p PathBinaryPlugin) ID() string  { return NormalizeID(path.Base(p.Name)) }

// UriBinaryPlugin resolves a plugin executable fetched from a file:// or
// http(s):// URI; the fetcher rejects ftp:// URIs.
type UriBinaryPlugin struct {
	URI     string
	Digest  *digest.Digest
	Options []string
}

func (UriBinaryPlugin) isPluginSpec() {}
func (p UriBinaryPlugin) ID() string   { return NormalizeID(path.Base(p.URI)) }

// RepoJvmPlugin resolves a JVM-based plugin: a coordinate plus its runtime
// classpath, launched via a generated shell/batch wrapper script.
type RepoJvmPlugin struct {
	Coordinate      Coordinate
	MainClass       string
	ClasspathExtras []Coordinate
	JvmArgs         []string
	Options         []string
}

func (RepoJvmPlugin) isPluginSpec() {}
func (p RepoJvmPlugin) ID() string   { return NormalizeID(p.Coordinate.Name) }
