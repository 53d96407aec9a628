// Package normalpath provides path normalization and validation helpers
// shared by the aggregator, incremental cache, and argument file builder.
package normalpath

import (
	"errors"
	"path"
	"path/filepath"
	"strings"
)

// Normalize normalizes the given path to a slash-separated, cleaned, relative
// form. Absolute paths keep their leading slash.
func Normalize(p string) string {
	p = filepath.ToSlash(p)
	isAbs := strings.HasPrefix(p, "/")
	p = path.Clean(p)
	if p == "." {
		return "."
	}
	if isAbs && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// Unnormalize converts a normalized path back to the OS-native separator.
func Unnormalize(p string) string {
	return filepath.FromSlash(p)
}

// NormalizeAndValidate normalizes the path and rejects any path that escapes
// its root via a leading ".." component.
func NormalizeAndValidate(p string) (string, error) {
	n := Normalize(p)
	if n == ".." || strings.HasPrefix(n, "../") {
		return "", errors.New("normalpath: path jumps context: " + p)
	}
	return n, nil
}

// Join joins and normalizes path components.
func Join(elem ...string) string {
	return Normalize(path.Join(elem...))
}

// Rel returns a relative path from basepath to targpath, both normalized.
func Rel(basepath string, targpath string) (string, error) {
	r, err := filepath.Rel(filepath.FromSlash(basepath), filepath.FromSlash(targpath))
	if err != nil {
		return "", err
	}
	return Normalize(r), nil
}

// Dir returns the normalized directory of the path.
func Dir(p string) string {
	return Normalize(path.Dir(Normalize(p)))
}

// Base returns the last element of the path.
func Base(p string) string {
	return path.Base(Normalize(p))
}

// Ext returns the file name extension, including the leading dot.
func Ext(p string) string {
	return path.Ext(Normalize(p))
}

// Components splits the normalized path into its slash-separated elements.
func Components(p string) []string {
	n := Normalize(p)
	if n == "." || n == "" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(n, "/"), "/")
}

// Matcher reports whether a normalized path matches some predicate.
type Matcher func(path string) bool

// ExtMatcher returns a Matcher that matches paths with the given extension
// (e.g. ".proto").
func ExtMatcher(ext string) Matcher {
	return func(p string) bool {
		return Ext(p) == ext
	}
}

// TransformerOption configures a Transformer.
type TransformerOption func(*Transformer)

// WithStripComponents strips the given number of leading path components
// before a path is accepted, mirroring tar --strip-components semantics.
func WithStripComponents(n int) TransformerOption {
	return func(t *Transformer) {
		t.stripComponents = n
	}
}

// WithPrefix adds a prefix to every transformed path.
func WithPrefix(prefix string) TransformerOption {
	return func(t *Transformer) {
		t.prefix = prefix
	}
}

// WithMatcher restricts the Transformer to paths accepted by the matcher.
func WithMatcher(matcher Matcher) TransformerOption {
	return func(t *Transformer) {
		t.matchers = append(t.matchers, matcher)
	}
}

// Transformer rewrites and optionally filters paths during aggregation or
// archive extraction.
type Transformer struct {
	stripComponents int
	prefix          string
	matchers        []Matcher
}

// NewTransformer builds a Transformer from the given options.
func NewTransformer(options ...TransformerOption) *Transformer {
	t := &Transformer{}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Transform applies component-stripping, prefixing and matcher filtering to
// path. The second return value is false if the path should be dropped.
func (t *Transformer) Transform(p string) (string, bool) {
	components := Components(p)
	if t.stripComponents > 0 {
		if len(components) <= t.stripComponents {
			return "", false
		}
		components = components[t.stripComponents:]
	}
	newPath := strings.Join(components, "/")
	if t.prefix != "" {
		newPath = Join(t.prefix, newPath)
	}
	for _, matcher := range t.matchers {
		if !matcher(newPath) {
			return "", false
		}
	}
	return newPath, true
}
