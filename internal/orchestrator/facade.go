// Package orchestrator drives the full generate() state machine: resolve
// protoc and plugins, aggregate sources, consult the incremental cache,
// build the argument file, run protoc, and report results back to the
// embedding build tool through a small set of façade interfaces.
package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/protocgen/core/internal/model"
	"github.com/protocgen/core/internal/protocresolve"
	"github.com/protocgen/core/internal/resolver"
)

// ArtifactPathResolver is the embedder-supplied dependency resolution
// collaborator, shared with internal/resolver and internal/pluginresolve.
type ArtifactPathResolver = resolver.ArtifactPathResolver

// ProtocPathResolver resolves the protoc binary coordinate, shared with
// internal/protocresolve.
type ProtocPathResolver = protocresolve.PathResolver

// SourceRootRegistrar lets the orchestrator hand generated-source
// directories back to the embedding build tool's compile phase.
type SourceRootRegistrar interface {
	RegisterSourceRoot(ctx context.Context, language model.Language, dir string) error
}

// OutputDescriptorAttachmentRegistrar lets the orchestrator attach a
// generated FileDescriptorSet as a build artifact (e.g. for downstream
// schema-registry publication).
type OutputDescriptorAttachmentRegistrar interface {
	AttachDescriptorSet(ctx context.Context, path string, classifier string) error
}

// Logger is the minimal structured-logging surface the orchestrator needs
// from the embedder, satisfied directly by *zap.Logger.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

// Collaborators bundles every external-interface dependency the
// orchestrator needs, supplied once by the embedder at construction time.
type Collaborators struct {
	ArtifactResolver ArtifactPathResolver
	ProtocResolver   ProtocPathResolver
	SourceRoots      SourceRootRegistrar
	Descriptors      OutputDescriptorAttachmentRegistrar
	Logger           *zap.Logger
}
