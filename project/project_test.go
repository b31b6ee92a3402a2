package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sunscript-lang/sunscript/compiler"
)

func writeProject(t *testing.T, entrySource string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.sun"), []byte(entrySource), 0o644))
	manifest := "name = \"demo\"\nentry = \"main.sun\"\nimport_roots = []\n"
	path := filepath.Join(dir, "demo.ssproj")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeProject(t, "print(1)")
	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Equal(t, "demo", m.Name)
	require.Equal(t, filepath.Join(filepath.Dir(path), "main.sun"), m.EntryPath())
	require.Equal(t, filepath.Join(filepath.Dir(path), "demo.ssasm"), m.ArtifactPath())
}

func TestManifestValidationAggregatesErrors(t *testing.T) {
	dir := t.TempDir()
	manifest := "name = \"broken\"\nentry = \"missing.sun\"\nimport_roots = [\"nope\"]\n"
	path := filepath.Join(dir, "broken.ssproj")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))

	_, err := LoadManifest(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing.sun")
	require.Contains(t, err.Error(), "import root")
}

func TestBuild(t *testing.T) {
	path := writeProject(t, "print(41 + 1)")
	m, err := LoadManifest(path)
	require.NoError(t, err)

	builder := &Builder{BuildKind: compiler.Debug}
	chunk, err := builder.Build(m)
	require.NoError(t, err)
	require.NotEmpty(t, chunk.Code)
	require.NotNil(t, chunk.Debug)
}

func TestBuildWithCache(t *testing.T) {
	path := writeProject(t, "print(1)")
	m, err := LoadManifest(path)
	require.NoError(t, err)

	cache, err := OpenCache(t.TempDir())
	require.NoError(t, err)
	builder := &Builder{BuildKind: compiler.Release, Cache: cache}

	first, err := builder.Build(m)
	require.NoError(t, err)

	// Second build is served from the cache and decodes identically.
	second, err := builder.Build(m)
	require.NoError(t, err)
	require.Equal(t, first.Code, second.Code)
	require.Equal(t, first.Constants, second.Constants)
}

func TestCacheRoundTrip(t *testing.T) {
	cache, err := OpenCache(t.TempDir())
	require.NoError(t, err)

	src := "print(7)"
	digest := Digest(src, 0)
	_, ok := cache.Get(digest)
	require.False(t, ok)

	builder := &Builder{}
	m, err := LoadManifest(writeProject(t, src))
	require.NoError(t, err)
	chunk, err := builder.Build(m)
	require.NoError(t, err)

	require.NoError(t, cache.Put(digest, m.EntryPath(), 0, chunk))
	got, ok := cache.Get(digest)
	require.True(t, ok)
	require.Equal(t, chunk.Code, got.Code)

	require.NotEqual(t, digest, Digest(src, 1), "build kind is part of the digest")
	require.NotEqual(t, digest, Digest(src+" ", 0))
}
