package argfile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/protocgen/core/internal/model"
	"github.com/protocgen/core/internal/pluginresolve"
)

func TestBuildOrdersFlagsCorrectly(t *testing.T) {
	req := Request{
		DescriptorSetOut:  "/out/descriptor.bin",
		IncludeImports:    true,
		Languages:         []model.Language{model.Java},
		LanguageOutDirs:   map[model.Language]string{model.Java: "/out/java"},
		Plugins: []*pluginresolve.ResolvedPlugin{
			{ID: "protoc_gen_grpc_java", Path: "/bin/protoc-gen-grpc-java", Order: 0, Options: []string{"lite"}},
		},
		PluginOutDirs:  map[string]string{"protoc_gen_grpc_java": "/out/grpc-java"},
		ProtoPathRoots: []string{"/src/main/proto", "/src/main/proto", "/deps/extracted"},
		SourceFiles:    []string{"/src/main/proto/a.proto"},
		ExtraArgs:      []string{"--experimental_allow_proto3_optional"},
	}
	args, err := Build(req)
	require.NoError(t, err)
	require.Equal(t, []string{
		"--descriptor_set_out=/out/descriptor.bin",
		"--include_imports",
		"--experimental_allow_proto3_optional",
		"--java_out=/out/java",
		"--plugin=protoc-gen-protoc_gen_grpc_java=/bin/protoc-gen-grpc-java",
		"--protoc_gen_grpc_java_out=/out/grpc-java",
		"--protoc_gen_grpc_java_opt=lite",
		"--proto_path=/src/main/proto",
		"--proto_path=/deps/extracted",
		"/src/main/proto/a.proto",
	}, args)
}

func TestBuildMissingOutDirErrors(t *testing.T) {
	req := Request{Languages: []model.Language{model.Java}}
	_, err := Build(req)
	require.Error(t, err)
}

func TestBuildMissingPluginOutDirErrors(t *testing.T) {
	req := Request{
		Plugins: []*pluginresolve.ResolvedPlugin{
			{ID: "protoc_gen_grpc_java", Path: "/bin/grpc-java", Order: 0},
		},
	}
	_, err := Build(req)
	require.Error(t, err)
}

func TestBuildOrdersPluginsByOrder(t *testing.T) {
	req := Request{
		Plugins: []*pluginresolve.ResolvedPlugin{
			{ID: "b", Path: "/bin/b", Order: 1},
			{ID: "a", Path: "/bin/a", Order: 0},
		},
		PluginOutDirs: map[string]string{"a": "/out/a", "b": "/out/b"},
	}
	args, err := Build(req)
	require.NoError(t, err)
	require.Equal(t, []string{
		"--plugin=protoc-gen-a=/bin/a",
		"--a_out=/out/a",
		"--plugin=protoc-gen-b=/bin/b",
		"--b_out=/out/b",
	}, args)
}

// TestBuildDerivesPluginFlagFromNormalizedID mirrors end-to-end scenario 4:
// a path-binary plugin named "protoc-gen-grpc-java" normalises to the id
// "protoc_gen_grpc_java" and drives every "--protoc_gen_grpc_java_*" flag.
func TestBuildDerivesPluginFlagFromNormalizedID(t *testing.T) {
	id := model.PathBinaryPlugin{Name: "protoc-gen-grpc-java", Options: []string{"jakarta"}}.ID()
	require.Equal(t, "protoc_gen_grpc_java", id)

	req := Request{
		Plugins: []*pluginresolve.ResolvedPlugin{
			{ID: id, Path: "/resolved/protoc-gen-grpc-java", Options: []string{"jakarta"}},
		},
		PluginOutDirs: map[string]string{id: "/out"},
	}
	args, err := Build(req)
	require.NoError(t, err)
	require.Equal(t, []string{
		"--plugin=protoc-gen-protoc_gen_grpc_java=/resolved/protoc-gen-grpc-java",
		"--protoc_gen_grpc_java_out=/out",
		"--protoc_gen_grpc_java_opt=jakarta",
	}, args)
}
