package exporter

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	content = bytes.TrimPrefix(content, utf8BOM)
	records, err := csv.NewReader(bytes.NewReader(content)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestTableWriter_Write(t *testing.T) {
	tests := []struct {
		name  string
		table Table
		want  string
	}{
		{
			name: "header and quoted rows",
			table: Table{
				Header: []string{"reactor", "polymer"},
				Rows:   [][]string{{"1", "PEG"}, {"3", "Poly(ethylene, oxide)"}},
			},
			want: "reactor,polymer\n1,PEG\n3,\"Poly(ethylene, oxide)\"\n",
		},
		{
			name:  "unit header",
			table: Table{Header: []string{"temperature [°C]"}, Rows: [][]string{{"20"}}},
			want:  "temperature [°C]\n20\n",
		},
		{
			name:  "rows only",
			table: Table{Rows: [][]string{{"a", "b"}}},
			want:  "a,b\n",
		},
		{
			name:  "header only",
			table: Table{Header: []string{"col1", "col2"}},
			want:  "col1,col2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writer := NewTableWriter(dir, nil)
			require.NoError(t, writer.Write("nested/out.csv", tt.table))

			content, err := os.ReadFile(filepath.Join(dir, "nested", "out.csv"))
			require.NoError(t, err)
			require.True(t, bytes.HasPrefix(content, utf8BOM))
			assert.Equal(t, tt.want, string(content[len(utf8BOM):]))
		})
	}
}

func TestTableWriter_AppendWritesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	writer := NewTableWriter(dir, nil)
	header := []string{"file_name"}

	require.NoError(t, writer.Append("summary.csv", Table{Header: header, Rows: [][]string{{"a.csv"}}}))
	require.NoError(t, writer.Append("summary.csv", Table{Header: header, Rows: [][]string{{"b.csv"}}}))

	content, err := os.ReadFile(filepath.Join(dir, "summary.csv"))
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(content, utf8BOM))
	assert.Equal(t, [][]string{{"file_name"}, {"a.csv"}, {"b.csv"}}, readCSV(t, filepath.Join(dir, "summary.csv")))
}

func TestTableWriter_WriteTruncates(t *testing.T) {
	dir := t.TempDir()
	writer := NewTableWriter(dir, nil)

	require.NoError(t, writer.Write("out.csv", Table{Header: []string{"h"}, Rows: [][]string{{"1"}, {"2"}, {"3"}}}))
	require.NoError(t, writer.Write("out.csv", Table{Header: []string{"h"}, Rows: [][]string{{"9"}}}))

	assert.Equal(t, [][]string{{"h"}, {"9"}}, readCSV(t, filepath.Join(dir, "out.csv")))
}

func TestTableWriter_Path(t *testing.T) {
	target := filepath.Join(t.TempDir(), "abs.csv")
	writer := NewTableWriter("/nonexistent/base", nil)

	assert.Equal(t, target, writer.Path(target))
	assert.Equal(t, filepath.Join("/nonexistent/base", "rel.csv"), writer.Path("rel.csv"))
	assert.Equal(t, "rel.csv", NewTableWriter("", nil).Path("rel.csv"))

	require.NoError(t, writer.Write(target, Table{Header: []string{"h"}}))
	assert.FileExists(t, target)
}

func TestRowStream(t *testing.T) {
	dir := t.TempDir()
	writer := NewTableWriter(dir, nil)

	sw, err := writer.OpenStream("stream.csv", []string{"time [hour]", "transmission [%]"})
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		require.NoError(t, sw.Write([]string{formatInt(i), formatFloat(float64(i) / 4)}))
	}
	require.NoError(t, sw.Close())

	records := readCSV(t, filepath.Join(dir, "stream.csv"))
	require.Len(t, records, 101)
	assert.Equal(t, []string{"time [hour]", "transmission [%]"}, records[0])
	assert.Equal(t, []string{"99", "24.75"}, records[100])
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "5.11", formatFloat(5.11))
	assert.Equal(t, "20", formatFloat(20))
	assert.Equal(t, "0.8291561975888499", formatFloat(0.8291561975888499))
	assert.Equal(t, "-3", formatInt(-3))
}
