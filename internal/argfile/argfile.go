// Package argfile builds the deterministic "@argfile" passed to protoc,
// enforcing the strict ordering rules spec.md §4.I requires: base flags,
// the caller's extra args, per-language --xxx_out flags, per-plugin flags,
// deduplicated --proto_path roots, and finally the source file list.
package argfile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/protocgen/core/internal/model"
	"github.com/protocgen/core/internal/pluginresolve"
)

// Request carries everything needed to build a single protoc invocation's
// argument list.
type Request struct {
	FatalWarnings bool

	DescriptorSetOut  string
	IncludeImports    bool
	IncludeSourceInfo bool
	RetainOptions     bool

	LiteEnabled     bool
	Languages       []model.Language
	LanguageOutDirs map[model.Language]string // keyed by Language

	Plugins       []*pluginresolve.ResolvedPlugin
	PluginOutDirs map[string]string // keyed by ResolvedPlugin.ID

	ProtoPathRoots []string
	SourceFiles    []string
	ExtraArgs      []string
}

// Build renders the full, ordered protoc argument list for req.
//
// Order, matching spec.md exactly:
//  1. base flags (--fatal_warnings, --descriptor_set_out and its siblings)
//  2. the caller's extra args, appended after (1) and before (3) below
//  3. one --<lang>_out=[lite:]<dir> per requested language, in request order
//  4. one --plugin=protoc-gen-<id>=<path>, --<id>_out=<dir>, --<id>_opt per
//     resolved plugin, in Order
//  5. deduplicated --proto_path=<root> flags, preserving first-seen order
//  6. the source file list
func Build(req Request) ([]string, error) {
	var args []string

	if req.FatalWarnings {
		args = append(args, "--fatal_warnings")
	}
	if req.DescriptorSetOut != "" {
		args = append(args, "--descriptor_set_out="+req.DescriptorSetOut)
		if req.IncludeImports {
			args = append(args, "--include_imports")
		}
		if req.IncludeSourceInfo {
			args = append(args, "--include_source_info")
		}
		if req.RetainOptions {
			args = append(args, "--retain_options")
		}
	}

	args = append(args, req.ExtraArgs...)

	for _, lang := range req.Languages {
		flagName, err := lang.FlagName()
		if err != nil {
			return nil, fmt.Errorf("argfile: %w", err)
		}
		outDir, ok := req.LanguageOutDirs[lang]
		if !ok || outDir == "" {
			return nil, fmt.Errorf("argfile: no output directory configured for language %s", lang)
		}
		if req.LiteEnabled {
			outDir = "lite:" + outDir
		}
		args = append(args, fmt.Sprintf("--%s_out=%s", flagName, outDir))
	}

	plugins := append([]*pluginresolve.ResolvedPlugin(nil), req.Plugins...)
	sort.SliceStable(plugins, func(i, j int) bool { return plugins[i].Order < plugins[j].Order })
	for _, p := range plugins {
		name := p.ID // already normalised by model.NormalizeID
		args = append(args, fmt.Sprintf("--plugin=protoc-gen-%s=%s", name, p.Path))
		outDir, ok := req.PluginOutDirs[p.ID]
		if !ok || outDir == "" {
			return nil, fmt.Errorf("argfile: no output directory configured for plugin %s", p.ID)
		}
		args = append(args, fmt.Sprintf("--%s_out=%s", name, outDir))
		if len(p.Options) > 0 {
			args = append(args, fmt.Sprintf("--%s_opt=%s", name, strings.Join(p.Options, ",")))
		}
	}

	seen := make(map[string]bool, len(req.ProtoPathRoots))
	for _, root := range req.ProtoPathRoots {
		if seen[root] {
			continue
		}
		seen[root] = true
		args = append(args, "--proto_path="+root)
	}

	args = append(args, req.SourceFiles...)
	return args, nil
}

