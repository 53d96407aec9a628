// Package protocresolve resolves the protoc compiler binary used for a
// generation request: an explicit path, a pinned version fetched from the
// official release artifact, or the "latest" sentinel.
//
// Grounded on the teacher's private/buf/bufprotopluginexec protoc-proxy
// resolution logic and Design Note §9's "latest warns and proceeds" Open
// Question decision.
package protocresolve

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/protocgen/core/internal/digest"
	"github.com/protocgen/core/internal/fetch"
	"github.com/protocgen/core/internal/platform"
	"github.com/protocgen/core/internal/tmpspace"
)

// LatestSentinel is the reserved version string meaning "whatever the
// artifact repository currently publishes as latest". Per Design Note §9 a
// request pinned to LatestSentinel is honoured but logged at warn, since it
// breaks build reproducibility.
const LatestSentinel = "latest"

// PathResolver is the minimal repository collaborator protocresolve needs:
// given a protoc version and classifier it returns a URI (fetched by
// Resolve) plus an optional expected digest to verify.
type PathResolver interface {
	ResolveProtoc(ctx context.Context, version string, classifier string) (uri string, expected *digest.Digest, err error)
}

// ResolveError wraps a failure to resolve or verify the protoc binary.
type ResolveError struct {
	Version string
	Cause   error
}

func (e *ResolveError) Error() string { return fmt.Sprintf("protocresolve: %s: %v", e.Version, e.Cause) }
func (e *ResolveError) Unwrap() error  { return e.Cause }

// Resolved is the outcome of resolving protoc.
type Resolved struct {
	Path    string
	Version string
}

// Resolve locates a usable protoc binary for the request: a non-empty
// explicitPath takes priority and is returned as is, with no $PATH search,
// digest check or executable-bit change; otherwise the URI for
// requestedVersion is obtained from resolver, fetched, verified, and made
// executable.
func Resolve(
	ctx context.Context,
	resolver PathResolver,
	fetcher *fetch.Fetcher,
	space *tmpspace.Space,
	requestedVersion string,
	explicitPath string,
	logger *zap.Logger,
) (*Resolved, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if explicitPath != "" {
		return &Resolved{Path: explicitPath, Version: requestedVersion}, nil
	}
	if requestedVersion == LatestSentinel {
		logger.Warn("protoc version pinned to \"latest\"; build is not reproducible")
	}

	classifier, err := platform.Classifier()
	if err != nil {
		return nil, &ResolveError{Version: requestedVersion, Cause: err}
	}

	uri, expected, err := resolver.ResolveProtoc(ctx, requestedVersion, classifier)
	if err != nil {
		return nil, &ResolveError{Version: requestedVersion, Cause: err}
	}

	rc, err := fetcher.Fetch(ctx, uri)
	if err != nil {
		return nil, &ResolveError{Version: requestedVersion, Cause: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &ResolveError{Version: requestedVersion, Cause: err}
	}
	if expected != nil {
		if err := digest.Verify(*expected, bytes.NewReader(data)); err != nil {
			return nil, &ResolveError{Version: requestedVersion, Cause: err}
		}
	}

	path, err := space.WriteFile(data, 0o755, "protoc", binaryName())
	if err != nil {
		return nil, &ResolveError{Version: requestedVersion, Cause: err}
	}
	if err := platform.MakeExecutable(path); err != nil {
		return nil, &ResolveError{Version: requestedVersion, Cause: err}
	}
	return &Resolved{Path: path, Version: requestedVersion}, nil
}

func binaryName() string {
	return "protoc"
}
