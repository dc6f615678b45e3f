package module_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"

	"github.com/modrt/modrt/internal/module"
)

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := module.Info{
		Module:      module.Module{Name: "physics", GUID: uuid.New()},
		Description: "rigid bodies",
		Authors:     "runtime team",
		Version:     module.Version{Major: 2, Minor: 1, Fix: 3},
		Dependencies: []module.Dependency{
			{Name: "core", MinVersion: module.Version{Major: 1}},
		},
		Entry: "lua:main.lua",
		Dir:   dir,
	}
	path := filepath.Join(dir, module.ManifestFile)
	require.NoError(t, module.WriteManifest(path, want))

	got, err := module.LoadManifest(path)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestDiscoverScansModuleDirectories(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"b_render", "a_core"} {
		dir := filepath.Join(root, name)
		require.NoError(t, os.Mkdir(dir, 0o755))
		require.NoError(t, module.WriteManifest(filepath.Join(dir, module.ManifestFile), module.Info{
			Module: module.Module{Name: name, GUID: uuid.New()},
		}))
	}
	require.NoError(t, os.Mkdir(filepath.Join(root, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README"), []byte("x"), 0o644))

	infos, err := module.Discover(root)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	require.Equal(t, "a_core", infos[0].Name)
	require.Equal(t, "b_render", infos[1].Name)
}

func TestLoadManifestRejectsBadGUID(t *testing.T) {
	path := filepath.Join(t.TempDir(), module.ManifestFile)
	require.NoError(t, os.WriteFile(path, []byte("name: broken\nguid: nope\nversion: 1.0.0\n"), 0o644))
	_, err := module.LoadManifest(path)
	require.True(t, eris.Is(err, module.ErrInvalidManifest))
}
