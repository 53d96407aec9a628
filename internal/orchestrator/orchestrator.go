package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/protocgen/core/internal/aggregate"
	"github.com/protocgen/core/internal/argfile"
	"github.com/protocgen/core/internal/cache"
	"github.com/protocgen/core/internal/command"
	"github.com/protocgen/core/internal/fetch"
	"github.com/protocgen/core/internal/model"
	"github.com/protocgen/core/internal/pluginresolve"
	"github.com/protocgen/core/internal/protocresolve"
	"github.com/protocgen/core/internal/resolver"
	"github.com/protocgen/core/internal/supervisor"
	"github.com/protocgen/core/internal/thread"
	"github.com/protocgen/core/internal/tmpspace"
)

// Orchestrator drives a single generate() invocation end to end.
type Orchestrator struct {
	collaborators Collaborators
	fetcher       *fetch.Fetcher
	runner        *command.Runner
	logger        *zap.Logger
}

// New constructs an Orchestrator from the embedder-supplied collaborators.
func New(collaborators Collaborators) *Orchestrator {
	logger := collaborators.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		collaborators: collaborators,
		fetcher:       fetch.New(),
		runner:        command.NewRunner(command.RunnerWithParallelism(1)),
		logger:        logger,
	}
}

// ExecutionError identifies which state-machine step failed. It is reserved
// for failures the orchestrator cannot classify as an ordinary
// model.ResultKind outcome (resolution, aggregation, I/O) — the exit
// classification (PROTOC_SUCCEEDED / NOTHING_TO_DO / NO_SOURCES /
// NO_TARGETS / PROTOC_FAILED) is always returned as a GenerationResult, not
// as an error.
type ExecutionError struct {
	Step  string
	Cause error
}

func (e *ExecutionError) Error() string { return fmt.Sprintf("orchestrator: %s: %v", e.Step, e.Cause) }
func (e *ExecutionError) Unwrap() error { return e.Cause }

func classify(kind model.ResultKind, message string) model.GenerationResult {
	return model.GenerationResult{OK: kind.OK(), Kind: kind, Message: message}
}

func withElapsed(res model.GenerationResult, start time.Time) model.GenerationResult {
	res.Elapsed = time.Since(start)
	return res
}

// Generate runs the full build orchestrator state machine:
//
//  1. skip short-circuit
//  2. resolve protoc and every requested plugin concurrently
//  3. aggregate project sources, dependency proto roots, and descriptor
//     inputs
//  4. classify NO_TARGETS / NO_SOURCES / NOTHING_TO_DO before touching the
//     incremental cache or running protoc
//  5. consult the incremental cache; skip protoc entirely if nothing changed
//  6. build the deterministic @argfile
//  7. run protoc under supervision
//  8. register generated source roots, attach the descriptor set, persist
//     the updated incremental cache
func (o *Orchestrator) Generate(ctx context.Context, req model.GenerationRequest) (model.GenerationResult, error) {
	start := time.Now()
	if req.Skip {
		return withElapsed(classify(model.NothingToDo, "skipped by request"), start), nil
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	space, err := tmpspace.New(req.BuildDir, req.Goal, req.ExecutionID, o.logger)
	if err != nil {
		return model.GenerationResult{}, &ExecutionError{Step: "create scratch space", Cause: err}
	}
	defer space.Close(req.Debug)

	resolvedProtoc, resolvedPlugins, err := o.resolveToolchain(ctx, req, space)
	if err != nil {
		return model.GenerationResult{}, err
	}

	inputs, err := o.aggregateInputs(ctx, req)
	if err != nil {
		return model.GenerationResult{}, &ExecutionError{Step: "aggregate sources", Cause: err}
	}

	if len(req.Languages) == 0 && len(req.Plugins) == 0 && req.FailOnMissingTargets {
		return withElapsed(classify(model.NoTargets, "no languages or plugins enabled"), start), nil
	}

	if len(inputs.Sources.CompilableFiles)+len(inputs.Descriptors) == 0 {
		if req.FailOnMissingSources {
			return withElapsed(classify(model.NoSources, "no compilable sources found"), start), nil
		}
		return withElapsed(classify(model.NothingToDo, "no compilable sources found"), start), nil
	}

	cacheDir, err := space.Subdir("cache")
	if err != nil {
		return model.GenerationResult{}, &ExecutionError{Step: "prepare cache dir", Cause: err}
	}

	// Incremental compilation is disabled whenever a descriptor set output
	// is requested: descriptor emission always runs protoc in full.
	incrementalEnabled := req.IncrementalCacheEnabled && req.Descriptor.Filename == ""

	var previous *cache.Cache
	if incrementalEnabled {
		previous, err = cache.Load(cacheDir)
		if err != nil {
			return model.GenerationResult{}, &ExecutionError{Step: "load incremental cache", Cause: err}
		}
	}
	current, err := cache.BuildCurrent(ctx, inputs.Dependencies.CompilableFiles, inputs.Sources.CompilableFiles, inputs.Descriptors)
	if err != nil {
		return model.GenerationResult{}, &ExecutionError{Step: "fingerprint inputs", Cause: err}
	}

	if incrementalEnabled && !cache.NeedsRebuild(previous, current) {
		o.logger.Info("incremental cache hit, skipping protoc invocation")
		return withElapsed(classify(model.NothingToDo, "incremental cache unchanged"), start), nil
	}

	outDirs := make(map[model.Language]string, len(req.Languages))
	for _, lang := range req.Languages {
		dir, err := space.Subdir("out", lang.String())
		if err != nil {
			return model.GenerationResult{}, &ExecutionError{Step: "prepare output dir", Cause: err}
		}
		outDirs[lang] = dir
	}

	pluginOutDirs := make(map[string]string, len(resolvedPlugins))
	for _, p := range resolvedPlugins {
		dir, err := space.Subdir("out", "plugin-"+p.ID)
		if err != nil {
			return model.GenerationResult{}, &ExecutionError{Step: "prepare plugin output dir", Cause: err}
		}
		pluginOutDirs[p.ID] = dir
	}

	var descriptorSetOut string
	if req.Descriptor.Filename != "" {
		descriptorDir, err := space.Subdir("descriptor")
		if err != nil {
			return model.GenerationResult{}, &ExecutionError{Step: "prepare descriptor dir", Cause: err}
		}
		descriptorSetOut = filepath.Join(descriptorDir, req.Descriptor.Filename)
	}

	args, err := argfile.Build(argfile.Request{
		FatalWarnings:     req.FatalWarnings,
		DescriptorSetOut:  descriptorSetOut,
		IncludeImports:    req.Descriptor.IncludeImports,
		IncludeSourceInfo: req.Descriptor.IncludeSourceInfo,
		RetainOptions:     req.Descriptor.RetainOptions,
		LiteEnabled:       req.LiteEnabled,
		Languages:         req.Languages,
		LanguageOutDirs:   outDirs,
		Plugins:           resolvedPlugins,
		PluginOutDirs:     pluginOutDirs,
		ProtoPathRoots:    protoPathRoots(req.SourceRoots, inputs.Dependencies.Roots),
		SourceFiles:       inputs.Sources.CompilableFiles,
		ExtraArgs:         req.ExtraProtocArgs,
	})
	if err != nil {
		return model.GenerationResult{}, &ExecutionError{Step: "build argument file", Cause: err}
	}

	argfilePath, err := space.WriteFile([]byte(joinArgs(args)), 0o644, "protoc.args")
	if err != nil {
		return model.GenerationResult{}, &ExecutionError{Step: "write argument file", Cause: err}
	}

	execResult, runErr := supervisor.Run(ctx, o.runner, resolvedProtoc.Path, []string{"@" + argfilePath}, o.logger)
	if runErr != nil {
		if isProtocExitFailure(runErr) {
			return withElapsed(classify(model.ProtocFailed, runErr.Error()), start), nil
		}
		return model.GenerationResult{}, &ExecutionError{Step: "run protoc", Cause: runErr}
	}

	var roots []string
	for lang, dir := range outDirs {
		if o.collaborators.SourceRoots != nil {
			if err := o.collaborators.SourceRoots.RegisterSourceRoot(ctx, lang, dir); err != nil {
				return model.GenerationResult{}, &ExecutionError{Step: "register source root", Cause: err}
			}
		}
		roots = append(roots, dir)
	}
	for _, dir := range pluginOutDirs {
		roots = append(roots, dir)
	}

	if req.Descriptor.Filename != "" && req.Descriptor.Attached && o.collaborators.Descriptors != nil {
		if err := o.collaborators.Descriptors.AttachDescriptorSet(ctx, descriptorSetOut, req.Descriptor.Classifier); err != nil {
			return model.GenerationResult{}, &ExecutionError{Step: "attach descriptor set", Cause: err}
		}
	}

	if incrementalEnabled {
		if err := cache.Save(cacheDir, current); err != nil {
			return model.GenerationResult{}, &ExecutionError{Step: "save incremental cache", Cause: err}
		}
	}

	o.logger.Debug("protoc finished", zap.Duration("protocElapsed", execResult.Elapsed))
	res := classify(model.ProtocSucceeded, "protoc succeeded")
	res.GeneratedFileCount = len(inputs.Sources.CompilableFiles)
	res.SourceRootsUsed = roots
	res.DescriptorSetPath = descriptorSetOut
	return withElapsed(res, start), nil
}

// isProtocExitFailure reports whether err represents an ordinary non-zero
// protoc exit (-> PROTOC_FAILED result) as opposed to a supervisor-level
// launch failure (-> ExecutionError).
func isProtocExitFailure(err error) bool {
	var execErr *exec.ExitError
	return errors.As(err, &execErr)
}

// resolveToolchain resolves protoc and every requested plugin concurrently
// via golang.org/x/sync/errgroup, matching the teacher's bufgen.generator
// fan-out-then-ordered-apply pattern: results are collected into
// pre-indexed slices so plugin order survives the concurrent resolution.
func (o *Orchestrator) resolveToolchain(ctx context.Context, req model.GenerationRequest, space *tmpspace.Space) (*protocresolve.Resolved, []*pluginresolve.ResolvedPlugin, error) {
	group, groupCtx := errgroup.WithContext(ctx)

	var resolvedProtoc *protocresolve.Resolved
	group.Go(func() error {
		r, err := protocresolve.Resolve(groupCtx, o.collaborators.ProtocResolver, o.fetcher, space, req.ProtocVersion, "", o.logger)
		if err != nil {
			return err
		}
		resolvedProtoc = r
		return nil
	})

	resolvedPlugins := make([]*pluginresolve.ResolvedPlugin, len(req.Plugins))
	jobs := make([]func(context.Context) error, len(req.Plugins))
	for i, spec := range req.Plugins {
		i, spec := i, spec
		jobs[i] = func(ctx context.Context) error {
			r, err := pluginresolve.Resolve(ctx, o.collaborators.ArtifactResolver, o.fetcher, space, i, spec, o.logger)
			if err != nil {
				return err
			}
			resolvedPlugins[i] = r
			return nil
		}
	}
	group.Go(func() error {
		return thread.Parallelize(groupCtx, jobs, thread.ParallelizeWithCancel())
	})

	if err := group.Wait(); err != nil {
		return nil, nil, &ExecutionError{Step: "resolve toolchain", Cause: err}
	}
	return resolvedProtoc, resolvedPlugins, nil
}

// aggregateInputs builds the full ProjectInputListing: the project's own
// compilable sources, the transitively resolved dependency proto roots
// (wired via internal/resolver's dedup/depth/exclusion algorithm; no scope
// filtering is applied), and any standalone descriptor-set inputs passed
// through verbatim. A request-level DependencyDepth of Direct makes every
// requested coordinate Direct.
func (o *Orchestrator) aggregateInputs(ctx context.Context, req model.GenerationRequest) (model.ProjectInputListing, error) {
	sources, err := aggregate.Aggregate(ctx, req.SourceRoots, aggregate.ProtoFileFilter(), o.logger)
	if err != nil {
		return model.ProjectInputListing{}, err
	}

	var dependencies model.SourceListing
	if len(req.DependencyCoordinates) > 0 && o.collaborators.ArtifactResolver != nil {
		coordinates := req.DependencyCoordinates
		if req.DependencyDepth == model.Direct {
			coordinates = make([]model.Coordinate, len(req.DependencyCoordinates))
			for i, c := range req.DependencyCoordinates {
				c.ResolutionDepth = model.Direct
				coordinates[i] = c
			}
		}
		resolved, err := resolver.ResolveDependencies(ctx, o.collaborators.ArtifactResolver, coordinates, req.DependencyExclusions)
		if err != nil {
			return model.ProjectInputListing{}, err
		}
		depRoots := make([]model.SourceRoot, 0, len(resolved))
		for _, artifact := range resolved {
			depRoots = append(depRoots, model.SourceRoot{Path: artifact.Path, IsArchive: true})
		}
		dependencies, err = aggregate.Aggregate(ctx, depRoots, aggregate.ProtoFileFilter(), o.logger)
		if err != nil {
			return model.ProjectInputListing{}, err
		}
	}

	return model.ProjectInputListing{
		Sources:      sources,
		Dependencies: dependencies,
		Descriptors:  req.DescriptorInputs,
	}, nil
}

func protoPathRoots(sourceRoots []model.SourceRoot, dependencyRoots []model.SourceRoot) []string {
	paths := make([]string, 0, len(sourceRoots)+len(dependencyRoots))
	for _, r := range sourceRoots {
		paths = append(paths, r.Path)
	}
	for _, r := range dependencyRoots {
		paths = append(paths, r.Path)
	}
	return paths
}

func joinArgs(args []string) string {
	out := ""
	for _, a := range args {
		out += a + "\n"
	}
	return out
}
