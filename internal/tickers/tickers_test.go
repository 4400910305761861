package tickers

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"b3collect/internal/errors"
	"b3collect/internal/shared/testutil"
)

func TestSource_LoadCSV(t *testing.T) {
	tests := []struct {
		name    string
		content string
		suffix  string
		want    []string
	}{
		{
			name:    "statusinvest export",
			content: "TICKER;PRECO;DY\nPETR4;35,10;12,5\nVALE3;60,00;8,1\n",
			suffix:  DefaultSuffix,
			want:    []string{"PETR4.SA", "VALE3.SA"},
		},
		{
			name:    "duplicates keep first occurrence",
			content: "TICKER\nVALE3\nPETR4\nVALE3\nITUB4\nPETR4\n",
			suffix:  DefaultSuffix,
			want:    []string{"VALE3.SA", "PETR4.SA", "ITUB4.SA"},
		},
		{
			name:    "blank cells skipped",
			content: "PRECO;TICKER\n1;HGLG11\n2;\n3; KNRI11 \n",
			suffix:  DefaultSuffix,
			want:    []string{"HGLG11.SA", "KNRI11.SA"},
		},
		{
			name:    "utf-8 bom",
			content: "\xEF\xBB\xBFTICKER;PRECO\nBBAS3;27,00\n",
			suffix:  "",
			want:    []string{"BBAS3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteFile(t, t.TempDir(), "Indicadores_AcoesIBOV.csv", tt.content)

			got, err := NewSource(tt.suffix, nil).Load(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSource_LoadCSV_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantType errors.ErrorType
	}{
		{"missing column", "CODIGO;PRECO\nPETR4;1\n", errors.ErrTypeValidation},
		{"empty file", "", errors.ErrTypeValidation},
		{"header only", "TICKER\n", errors.ErrTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteFile(t, t.TempDir(), "tickers.csv", tt.content)

			_, err := NewSource(DefaultSuffix, nil).Load(path)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.wantType), "got %v", err)
			assert.True(t, errors.IsStructural(err))
		})
	}
}

func TestSource_LoadMissingFile(t *testing.T) {
	for _, name := range []string{"absent.csv", "absent.xlsx"} {
		_, err := NewSource(DefaultSuffix, nil).Load(filepath.Join(t.TempDir(), name))
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeNotFound), name)
	}
}

func TestSource_LoadRejectsUnsupportedFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Indicadores.txt", "~$Indicadores_FiiIBOV.xlsx"} {
		path := testutil.WriteFile(t, dir, name, "TICKER\nPETR4\n")

		_, err := NewSource(DefaultSuffix, nil).Load(path)
		require.Error(t, err, name)
		assert.True(t, errors.IsType(err, errors.ErrTypeValidation), name)
	}
}

func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "Indicadores_FiiIBOV.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestSource_LoadXLSX(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Preco", "ticker"},
		{100.5, "HGLG11"},
		{95.0, "KNRI11"},
		{90.0, "HGLG11"},
		{80.0},
	})

	logger, handler := testutil.NewTestLogger(t)
	got, err := NewSource(DefaultSuffix, logger).Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"HGLG11.SA", "KNRI11.SA"}, got)
	testutil.AssertLogAttr(t, handler, "tickers", int64(2))
}

func TestSource_LoadXLSX_MissingColumn(t *testing.T) {
	path := writeWorkbook(t, [][]any{{"CODIGO"}, {"HGLG11"}})

	_, err := NewSource(DefaultSuffix, nil).Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}
