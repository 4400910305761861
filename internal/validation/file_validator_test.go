package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b3collect/internal/errors"
	"b3collect/internal/shared/testutil"
)

func TestFileValidator_ValidateDirectory(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T) string
		wantType errors.ErrorType
	}{
		{
			name:  "existing directory",
			setup: func(t *testing.T) string { return t.TempDir() },
		},
		{
			name:     "missing directory",
			setup:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing") },
			wantType: errors.ErrTypeNotFound,
		},
		{
			name: "path is a file",
			setup: func(t *testing.T) string {
				return testutil.WriteFile(t, t.TempDir(), "x.csv", "a")
			},
			wantType: errors.ErrTypeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			err := NewFileValidator(logger).ValidateDirectory(tt.setup(t))
			if tt.wantType == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.wantType))
			assert.True(t, errors.IsStructural(err))
		})
	}
}

func TestFileValidator_ValidateOutputDirectory(t *testing.T) {
	dir := t.TempDir()
	v := NewFileValidator(nil)

	require.NoError(t, v.ValidateOutputDirectory(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "probe file must be removed")

	missing := filepath.Join(dir, "missing")
	assert.Error(t, v.ValidateOutputDirectory(missing))
	assert.NoDirExists(t, missing)
}

func TestFileValidator_ValidateTickerFile(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"csv", testutil.WriteFile(t, dir, "Indicadores_AcoesIBOV.csv", "TICKER\n"), false},
		{"xlsx", testutil.WriteFile(t, dir, "Indicadores_FiiIBOV.xlsx", "x"), false},
		{"uppercase extension", testutil.WriteFile(t, dir, "LIST.CSV", "x"), false},
		{"pdf", testutil.WriteFile(t, dir, "report.pdf", "x"), true},
		{"lock file", testutil.WriteFile(t, dir, "~$Indicadores.xlsx", "x"), true},
		{"missing", filepath.Join(dir, "absent.csv"), true},
		{"directory", dir, true},
	}

	v := NewFileValidator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateTickerFile(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
