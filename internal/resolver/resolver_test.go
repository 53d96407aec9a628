package resolver

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/protocgen/core/internal/model"
)

type fakeResolver struct {
	deps map[string][]model.Coordinate
}

func (f *fakeResolver) Resolve(ctx context.Context, c model.Coordinate) (string, error) {
	return fmt.Sprintf("/repo/%s", c.String()), nil
}

func (f *fakeResolver) DirectDependencies(ctx context.Context, c model.Coordinate) ([]model.Coordinate, error) {
	return f.deps[c.Key()], nil
}

func coord(group, name, version string) model.Coordinate {
	return model.Coordinate{Group: group, Name: name, Version: version, Type: "jar"}
}

func TestResolveDependenciesTransitive(t *testing.T) {
	a := coord("g", "a", "1.0.0")
	b := coord("g", "b", "1.0.0")
	fr := &fakeResolver{deps: map[string][]model.Coordinate{
		a.Key(): {b},
	}}
	resolved, err := ResolveDependencies(context.Background(), fr, []model.Coordinate{a}, nil)
	require.NoError(t, err)
	require.Len(t, resolved, 2)
}

func TestResolveDependenciesDedupHighestVersionWins(t *testing.T) {
	a := coord("g", "a", "1.0.0")
	bOld := coord("g", "b", "1.0.0")
	bNew := coord("g", "b", "2.0.0")
	fr := &fakeResolver{deps: map[string][]model.Coordinate{
		a.Key(): {bOld, bNew},
	}}
	resolved, err := ResolveDependencies(context.Background(), fr, []model.Coordinate{a}, nil)
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	for _, r := range resolved {
		if r.Coordinate.Name == "b" {
			require.Equal(t, "2.0.0", r.Coordinate.Version)
		}
	}
}

func TestResolveDependenciesDirectDepthSkipsChildren(t *testing.T) {
	a := coord("g", "a", "1.0.0")
	a.ResolutionDepth = model.Direct
	b := coord("g", "b", "1.0.0")
	fr := &fakeResolver{deps: map[string][]model.Coordinate{
		a.Key(): {b},
	}}
	resolved, err := ResolveDependencies(context.Background(), fr, []model.Coordinate{a}, nil)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
}

func TestResolveDependenciesExclusion(t *testing.T) {
	a := coord("g", "a", "1.0.0")
	b := coord("g", "b", "1.0.0")
	fr := &fakeResolver{deps: map[string][]model.Coordinate{
		a.Key(): {b},
	}}
	resolved, err := ResolveDependencies(context.Background(), fr, []model.Coordinate{a}, []model.Exclusion{
		{Group: "g", Name: "b"},
	})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
}

func TestResolveDependenciesNoTransitiveExclusionKeepsNodeDropsChildren(t *testing.T) {
	a := coord("g", "a", "1.0.0")
	b := coord("g", "b", "1.0.0")
	c := coord("g", "c", "1.0.0")
	fr := &fakeResolver{deps: map[string][]model.Coordinate{
		a.Key(): {b},
		b.Key(): {c},
	}}
	resolved, err := ResolveDependencies(context.Background(), fr, []model.Coordinate{a}, []model.Exclusion{
		{Group: "g", Name: "b", NoTransitive: true},
	})
	require.NoError(t, err)
	require.Len(t, resolved, 2) // a and b, not c
}
