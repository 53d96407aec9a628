package aggregate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/protocgen/core/internal/model"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestAggregateDirectoryRootFiltersProto(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.proto":     "syntax = \"proto3\";",
		"README.md":   "ignored",
		"sub/b.proto": "syntax = \"proto3\";",
	})

	listing, err := Aggregate(context.Background(), []model.SourceRoot{{Path: dir}}, ProtoFileFilter(), nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a.proto", "sub/b.proto"}, listing.CompilableFiles)
}

func TestAggregateMultipleRootsPreservesAllFiles(t *testing.T) {
	dir1, dir2 := t.TempDir(), t.TempDir()
	writeFiles(t, dir1, map[string]string{"a.proto": "x"})
	writeFiles(t, dir2, map[string]string{"b.proto": "y"})

	listing, err := Aggregate(context.Background(), []model.SourceRoot{{Path: dir1}, {Path: dir2}}, ProtoFileFilter(), nil)
	require.NoError(t, err)
	require.Len(t, listing.CompilableFiles, 2)
}

func TestAggregateReportsPerRootFailures(t *testing.T) {
	good := t.TempDir()
	writeFiles(t, good, map[string]string{"a.proto": "x"})
	missing := filepath.Join(t.TempDir(), "does-not-exist")

	_, err := Aggregate(context.Background(), []model.SourceRoot{{Path: good}, {Path: missing}}, ProtoFileFilter(), nil)
	require.Error(t, err)
	var aggErr *AggregationError
	require.ErrorAs(t, err, &aggErr)
	require.Len(t, aggErr.Causes, 1)
}

func TestGlobFilterIncludeExclude(t *testing.T) {
	filter := GlobFilter([]string{"**/*.proto"}, []string{"**/internal/*.proto"})
	require.True(t, filter("a/b.proto"))
	require.False(t, filter("a/internal/b.proto"))
	require.False(t, filter("a/b.txt"))
}
