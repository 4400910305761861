package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b3collect/internal/errors"
)

func TestNewPaths(t *testing.T) {
	base := t.TempDir()
	cfg := Default().Paths
	cfg.LogsDir = filepath.Join(base, "elsewhere", "logs")

	paths := NewPaths(base, cfg)

	assert.Equal(t, base, paths.BaseDir)
	assert.Equal(t, filepath.Join(base, "Indicadores Financeiros"), paths.IndicatorsDir)
	assert.Equal(t, filepath.Join(base, "Historico cotações", "Ações IBOV"), paths.StocksDir)
	assert.Equal(t, filepath.Join(base, "DataCom Proventos"), paths.DataComDir)
	// absolute directories are kept as-is
	assert.Equal(t, cfg.LogsDir, paths.LogsDir)
}

func TestGetPaths_BaseDir(t *testing.T) {
	base := t.TempDir()
	cfg := Default().Paths
	cfg.BaseDir = base

	paths, err := GetPaths(cfg)
	require.NoError(t, err)
	assert.Equal(t, base, paths.BaseDir)
	assert.True(t, filepath.IsAbs(paths.ReitsDir))
}

func TestGetPaths_ExecutableDir(t *testing.T) {
	paths, err := GetPaths(Default().Paths)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(paths.BaseDir))
	assert.Equal(t, filepath.Join(paths.BaseDir, "logs"), paths.LogsDir)
}

func TestFindProjectRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ProjetoInvestimento")
	nested := filepath.Join(root, "scripts", "coleta")
	require.NoError(t, os.MkdirAll(nested, 0755))

	found, err := FindProjectRoot(nested, "ProjetoInvestimento")
	require.NoError(t, err)
	assert.Equal(t, root, found)

	found, err = FindProjectRoot(root, "ProjetoInvestimento")
	require.NoError(t, err)
	assert.Equal(t, root, found)

	_, err = FindProjectRoot(nested, "Inexistente")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestPaths_OutputDir(t *testing.T) {
	paths := NewPaths("/data", Default().Paths)

	dir, err := paths.OutputDir(UniverseStocks)
	require.NoError(t, err)
	assert.Equal(t, paths.StocksDir, dir)

	dir, err = paths.OutputDir(UniverseReits)
	require.NoError(t, err)
	assert.Equal(t, paths.ReitsDir, dir)

	_, err = paths.OutputDir("crypto")
	assert.Error(t, err)
}

func TestPaths_EnsureDirectories(t *testing.T) {
	paths := NewPaths(t.TempDir(), Default().Paths)

	require.NoError(t, paths.EnsureDirectories())

	assert.DirExists(t, paths.IndicatorsDir)
	assert.DirExists(t, paths.LogsDir)
	// output directories stay untouched
	assert.NoDirExists(t, paths.StocksDir)
	assert.NoDirExists(t, paths.DataComDir)
}

func TestPaths_GetIndicatorPath(t *testing.T) {
	paths := NewPaths(t.TempDir(), Default().Paths)

	assert.Equal(t, filepath.Join(paths.IndicatorsDir, "x.csv"), paths.GetIndicatorPath("x.csv"))
}
