package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/protocgen/core/internal/digest"
	"github.com/protocgen/core/internal/model"
)

type fakeArtifactResolver struct{}

func (fakeArtifactResolver) Resolve(ctx context.Context, c model.Coordinate) (string, error) {
	return "/repo/" + c.String(), nil
}

func (fakeArtifactResolver) DirectDependencies(ctx context.Context, c model.Coordinate) ([]model.Coordinate, error) {
	return nil, nil
}

type fakeProtocResolver struct {
	uri string
}

func (f fakeProtocResolver) ResolveProtoc(ctx context.Context, version, classifier string) (string, *digest.Digest, error) {
	return f.uri, nil, nil
}

type fakeDescriptorRegistrar struct {
	attachedPath       string
	attachedClassifier string
}

func (f *fakeDescriptorRegistrar) AttachDescriptorSet(ctx context.Context, path string, classifier string) error {
	f.attachedPath = path
	f.attachedClassifier = classifier
	return nil
}

func writeFakeProtoc(t *testing.T, dir string, body string) string {
	t.Helper()
	path := filepath.Join(dir, "fake-protoc.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func newTestOrchestrator(protocURI string) *Orchestrator {
	return New(Collaborators{
		ArtifactResolver: fakeArtifactResolver{},
		ProtocResolver:   fakeProtocResolver{uri: protocURI},
	})
}

func TestGenerateRunsEndToEnd(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix-only test")
	}
	buildDir := t.TempDir()
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.proto"), []byte("syntax = \"proto3\";"), 0o644))

	protocPath := writeFakeProtoc(t, t.TempDir(), "exit 0\n")
	o := newTestOrchestrator("file://" + protocPath)

	req := model.GenerationRequest{
		Goal:          "generate",
		ExecutionID:   "exec-1",
		BuildDir:      buildDir,
		ProtocVersion: "4.28.2",
		Languages:     []model.Language{model.Java},
		SourceRoots:   []model.SourceRoot{{Path: srcDir}},
		Debug:         true,
	}
	result, err := o.Generate(context.Background(), req)
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Equal(t, model.ProtocSucceeded, result.Kind)
	require.Equal(t, 1, result.GeneratedFileCount)
}

func TestGenerateSkipsWhenCacheHits(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix-only test")
	}
	buildDir := t.TempDir()
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.proto"), []byte("syntax = \"proto3\";"), 0o644))
	protocPath := writeFakeProtoc(t, t.TempDir(), "exit 0\n")
	o := newTestOrchestrator("file://" + protocPath)

	baseReq := model.GenerationRequest{
		Goal:                    "generate",
		BuildDir:                buildDir,
		ProtocVersion:           "4.28.2",
		Languages:               []model.Language{model.Java},
		SourceRoots:             []model.SourceRoot{{Path: srcDir}},
		IncrementalCacheEnabled: true,
		Debug:                   true,
	}

	req1 := baseReq
	req1.ExecutionID = "exec-1"
	_, err := o.Generate(context.Background(), req1)
	require.NoError(t, err)

	req2 := baseReq
	req2.ExecutionID = "exec-1" // same scratch/cache dir as req1
	result2, err := o.Generate(context.Background(), req2)
	require.NoError(t, err)
	require.Equal(t, model.NothingToDo, result2.Kind)
	require.True(t, result2.OK)
}

func TestGenerateSkipField(t *testing.T) {
	o := newTestOrchestrator("")
	result, err := o.Generate(context.Background(), model.GenerationRequest{Skip: true})
	require.NoError(t, err)
	require.Equal(t, model.NothingToDo, result.Kind)
}

func TestGenerateNoTargetsWhenFailOnMissingTargets(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix-only test")
	}
	buildDir := t.TempDir()
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.proto"), []byte("syntax = \"proto3\";"), 0o644))
	protocPath := writeFakeProtoc(t, t.TempDir(), "exit 0\n")
	o := newTestOrchestrator("file://" + protocPath)

	req := model.GenerationRequest{
		Goal:                 "generate",
		ExecutionID:          "exec-1",
		BuildDir:             buildDir,
		ProtocVersion:        "4.28.2",
		SourceRoots:          []model.SourceRoot{{Path: srcDir}},
		FailOnMissingTargets: true,
	}
	result, err := o.Generate(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.OK)
	require.Equal(t, model.NoTargets, result.Kind)
}

func TestGenerateNoSourcesWhenFailOnMissingSources(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix-only test")
	}
	buildDir := t.TempDir()
	srcDir := t.TempDir() // empty: no .proto files
	protocPath := writeFakeProtoc(t, t.TempDir(), "exit 0\n")
	o := newTestOrchestrator("file://" + protocPath)

	req := model.GenerationRequest{
		Goal:                 "generate",
		ExecutionID:          "exec-1",
		BuildDir:             buildDir,
		ProtocVersion:        "4.28.2",
		Languages:            []model.Language{model.Java},
		SourceRoots:          []model.SourceRoot{{Path: srcDir}},
		FailOnMissingSources: true,
	}
	result, err := o.Generate(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.OK)
	require.Equal(t, model.NoSources, result.Kind)
}

func TestGenerateNothingToDoWhenSourcesEmptyAndNotFailing(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix-only test")
	}
	buildDir := t.TempDir()
	srcDir := t.TempDir() // empty
	protocPath := writeFakeProtoc(t, t.TempDir(), "exit 0\n")
	o := newTestOrchestrator("file://" + protocPath)

	req := model.GenerationRequest{
		Goal:          "generate",
		ExecutionID:   "exec-1",
		BuildDir:      buildDir,
		ProtocVersion: "4.28.2",
		Languages:     []model.Language{model.Java},
		SourceRoots:   []model.SourceRoot{{Path: srcDir}},
	}
	result, err := o.Generate(context.Background(), req)
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Equal(t, model.NothingToDo, result.Kind)
}

func TestGenerateClassifiesNonZeroExitAsProtocFailed(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix-only test")
	}
	buildDir := t.TempDir()
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.proto"), []byte("syntax = \"proto3\";"), 0o644))
	protocPath := writeFakeProtoc(t, t.TempDir(), "exit 3\n")
	o := newTestOrchestrator("file://" + protocPath)

	req := model.GenerationRequest{
		Goal:          "generate",
		ExecutionID:   "exec-1",
		BuildDir:      buildDir,
		ProtocVersion: "4.28.2",
		Languages:     []model.Language{model.Java},
		SourceRoots:   []model.SourceRoot{{Path: srcDir}},
	}
	result, err := o.Generate(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.OK)
	require.Equal(t, model.ProtocFailed, result.Kind)
}

func TestGenerateRegistersPluginOutputDirectory(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix-only test")
	}
	buildDir := t.TempDir()
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.proto"), []byte("syntax = \"proto3\";"), 0o644))

	pluginDir := t.TempDir()
	pluginPath := filepath.Join(pluginDir, "protoc-gen-grpc-java")
	require.NoError(t, os.WriteFile(pluginPath, []byte("#!/bin/sh\n"), 0o755))

	protocPath := writeFakeProtoc(t, t.TempDir(), "exit 0\n")
	o := newTestOrchestrator("file://" + protocPath)

	req := model.GenerationRequest{
		Goal:          "generate",
		ExecutionID:   "exec-1",
		BuildDir:      buildDir,
		ProtocVersion: "4.28.2",
		Languages:     []model.Language{model.Java},
		Plugins:       []model.PluginSpec{model.PathBinaryPlugin{Name: pluginPath, Options: []string{"jakarta"}}},
		SourceRoots:   []model.SourceRoot{{Path: srcDir}},
	}
	result, err := o.Generate(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, model.ProtocSucceeded, result.Kind)
	require.Len(t, result.SourceRootsUsed, 2) // java out dir + plugin out dir
}

func TestGenerateAttachesDescriptorSet(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix-only test")
	}
	buildDir := t.TempDir()
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.proto"), []byte("syntax = \"proto3\";"), 0o644))
	protocPath := writeFakeProtoc(t, t.TempDir(), "exit 0\n")

	descriptors := &fakeDescriptorRegistrar{}
	o := New(Collaborators{
		ArtifactResolver: fakeArtifactResolver{},
		ProtocResolver:   fakeProtocResolver{uri: "file://" + protocPath},
		Descriptors:      descriptors,
	})

	req := model.GenerationRequest{
		Goal:          "generate",
		ExecutionID:   "exec-1",
		BuildDir:      buildDir,
		ProtocVersion: "4.28.2",
		Languages:     []model.Language{model.Java},
		SourceRoots:   []model.SourceRoot{{Path: srcDir}},
		Descriptor: model.DescriptorSetOptions{
			Filename:   "descriptor.bin",
			Attached:   true,
			Classifier: "protos",
		},
	}
	result, err := o.Generate(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, model.ProtocSucceeded, result.Kind)
	require.NotEmpty(t, result.DescriptorSetPath)
	require.Equal(t, result.DescriptorSetPath, descriptors.attachedPath)
	require.Equal(t, "protos", descriptors.attachedClassifier)
}
