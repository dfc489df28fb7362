package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	return &Config{
		ProjectDir:   dir,
		TargetDir:    filepath.Join(dir, "target"),
		Name:         "example",
		DebName:      "example",
		Version:      "1.0.0",
		Architecture: "amd64",
		Maintainer:   "Test <test@example.com>",
		Description:  "test package",
		Copyright:    "Test",
		License:      "MIT",
		Priority:     "optional",
	}
}

func touch(t *testing.T, path string, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestNewAssetDirectoryDest(t *testing.T) {
	a := NewAsset("/tmp/build/example", "usr/bin/", 0o755, true)
	assert.Equal(t, "usr/bin/example", a.Dest)

	b := NewAsset("/tmp/doc/example.1", "usr/share/man/man1/example.1.gz", 0o644, false)
	assert.Equal(t, "usr/share/man/man1/example.1.gz", b.Dest)

	c := NewAsset("/tmp/conf", "/etc/example/example.conf", 0o644, false)
	assert.Equal(t, "etc/example/example.conf", c.Dest)
}

func TestResolveAssetsDefaults(t *testing.T) {
	cfg := testConfig(t)
	cfg.Binaries = []string{"example"}
	cfg.Readme = "README.md"
	touch(t, filepath.Join(cfg.BuildDir(), "example"), "elf")
	touch(t, filepath.Join(cfg.ProjectDir, "README.md"), "docs")

	require.NoError(t, cfg.ResolveAssets())
	require.Len(t, cfg.Assets, 2)

	bin := cfg.Assets[0]
	assert.Equal(t, "usr/bin/example", bin.Dest)
	assert.Equal(t, int64(0o755), bin.Mode)
	assert.True(t, bin.IsBuilt)

	readme := cfg.Assets[1]
	assert.Equal(t, "usr/share/doc/example/README", readme.Dest)
	assert.Equal(t, int64(0o644), readme.Mode)
}

func TestResolveAssetsGlob(t *testing.T) {
	cfg := testConfig(t)
	touch(t, filepath.Join(cfg.ProjectDir, "assets", "b.txt"), "b")
	touch(t, filepath.Join(cfg.ProjectDir, "assets", "a.txt"), "a")
	cfg.SetSpecs([]AssetSpec{
		{Source: "assets/*.txt", Dest: "usr/share/example/", Mode: 0o644},
	})

	require.NoError(t, cfg.ResolveAssets())
	require.Len(t, cfg.Assets, 2)
	assert.Equal(t, "usr/share/example/a.txt", cfg.Assets[0].Dest)
	assert.Equal(t, "usr/share/example/b.txt", cfg.Assets[1].Dest)
}

func TestResolveAssetsMissingSource(t *testing.T) {
	cfg := testConfig(t)
	cfg.SetSpecs([]AssetSpec{
		{Source: "does-not-exist", Dest: "usr/bin/x", Mode: 0o755},
	})

	err := cfg.ResolveAssets()
	var aerr *AssetError
	require.ErrorAs(t, err, &aerr)
}

func TestResolveAssetsDuplicateDest(t *testing.T) {
	cfg := testConfig(t)
	touch(t, filepath.Join(cfg.ProjectDir, "one"), "1")
	touch(t, filepath.Join(cfg.ProjectDir, "two"), "2")
	cfg.SetSpecs([]AssetSpec{
		{Source: "one", Dest: "usr/bin/tool", Mode: 0o755},
		{Source: "two", Dest: "usr/bin/tool", Mode: 0o755},
	})

	err := cfg.ResolveAssets()
	var aerr *AssetError
	require.ErrorAs(t, err, &aerr)
}

func TestMarkConfFiles(t *testing.T) {
	cfg := testConfig(t)
	touch(t, filepath.Join(cfg.ProjectDir, "example.conf"), "k=v")
	touch(t, filepath.Join(cfg.ProjectDir, "extra.conf"), "k=v")
	cfg.ConfFiles = []string{"/etc/example/extra.conf"}
	cfg.SetSpecs([]AssetSpec{
		{Source: "example.conf", Dest: "etc/example/example.conf", Mode: 0o644},
		{Source: "extra.conf", Dest: "etc/example/extra.conf", Mode: 0o644},
	})

	require.NoError(t, cfg.ResolveAssets())
	cfg.MarkConfFiles()

	for _, a := range cfg.Assets {
		assert.True(t, a.IsConf, a.Dest)
	}
}

func TestInstalledSize(t *testing.T) {
	assets := []*Asset{
		{Kind: SourceData, Data: make([]byte, 1)},
		{Kind: SourceData, Data: make([]byte, 1024)},
		{Kind: SourceData, Data: make([]byte, 1025)},
		{Kind: SourceSymlink, LinkTarget: "target"},
	}
	// 1 + 1 + 2 KiB, symlinks do not count.
	assert.Equal(t, int64(4), InstalledSize(assets))
}

func TestIsDynamicLibrary(t *testing.T) {
	assert.True(t, (&Asset{Dest: "usr/lib/libfoo.so"}).IsDynamicLibrary())
	assert.True(t, (&Asset{Dest: "usr/lib/libfoo.so.1.2"}).IsDynamicLibrary())
	assert.False(t, (&Asset{Dest: "usr/bin/foo"}).IsDynamicLibrary())
}

func TestDebugTarget(t *testing.T) {
	a := &Asset{Dest: "usr/bin/example", IsBuilt: true}
	assert.Equal(t, "usr/lib/debug/usr/bin/example.debug", a.DebugTarget())
	b := &Asset{Dest: "usr/bin/other"}
	assert.Equal(t, "", b.DebugTarget())
}
