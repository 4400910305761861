package files

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b3collect/internal/errors"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("test content"), 0644))
	}
}

func TestNewDiscovery(t *testing.T) {
	discovery := NewDiscovery("/test/base")

	assert.NotNil(t, discovery)
	assert.Equal(t, "/test/base", discovery.basePath)
	assert.Equal(t, filepath.Join("/test/base", "out"), discovery.resolve("out"))
	assert.Equal(t, "/abs/out", discovery.resolve("/abs/out"))
}

func TestListFiles(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, "b.csv", "a.csv", "c.txt")
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "sub_01_2023"), 0755))

	files, err := NewDiscovery(tmpDir).ListFiles(".")
	require.NoError(t, err)

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
		assert.Greater(t, f.Size, int64(0))
		assert.False(t, f.ModTime.IsZero())
	}
	assert.Equal(t, []string{"a.csv", "b.csv", "c.txt"}, names)
}

func TestListFiles_MissingDirectory(t *testing.T) {
	_, err := NewDiscovery("").ListFiles(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
	assert.True(t, errors.IsStructural(err))
}

func TestFindByRegexp(t *testing.T) {
	tests := []struct {
		name       string
		files      []string
		wantNames  []string
		wantGroups [][]string
	}{
		{
			name:       "month files",
			files:      []string{"Acoes_IBOV_01_2023.csv", "Acoes_IBOV_03_2023.csv", "notes.txt"},
			wantNames:  []string{"Acoes_IBOV_01_2023.csv", "Acoes_IBOV_03_2023.csv"},
			wantGroups: [][]string{{"01", "2023"}, {"03", "2023"}},
		},
		{
			name:  "no match",
			files: []string{"readme.md"},
		},
		{
			name:  "empty directory",
			files: nil,
		},
	}

	re := regexp.MustCompile(`(\d{2})_(\d{4})`)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFiles(t, dir, tt.files...)

			matches, err := NewDiscovery("").FindByRegexp(dir, re)
			require.NoError(t, err)
			require.Len(t, matches, len(tt.wantNames))
			for i, m := range matches {
				assert.Equal(t, tt.wantNames[i], m.Name)
				assert.Equal(t, tt.wantGroups[i], m.Groups)
				assert.Equal(t, tt.wantGroups[i][0]+"_"+tt.wantGroups[i][1], m.Text)
			}
		})
	}
}

func TestFindFilesByPattern(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "statusinvest-busca-avancada.csv", "statusinvest-busca-avancada (1).csv", "other.csv")

	files, err := NewDiscovery("").FindFilesByPattern(dir, "statusinvest-*.csv")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = NewDiscovery("").FindFilesByPattern(dir, "[")
	assert.Error(t, err)
}

func TestGetLatestFile(t *testing.T) {
	_, ok := GetLatestFile(nil)
	assert.False(t, ok)

	now := time.Now()
	files := []FileInfo{
		{Name: "old", ModTime: now.Add(-time.Hour)},
		{Name: "new", ModTime: now},
		{Name: "mid", ModTime: now.Add(-time.Minute)},
	}
	latest, ok := GetLatestFile(files)
	require.True(t, ok)
	assert.Equal(t, "new", latest.Name)
}
