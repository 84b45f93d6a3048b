package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path     string
		expected Format
	}{
		{"/data/people.csv", FormatDelimited},
		{"/data/PEOPLE.CSV", FormatDelimited},
		{"/data/events.parquet", FormatColumnar},
		{"/data/events.parq", FormatColumnar},
		{"/data/events.PQ", FormatColumnar},
		{"/data/notes.txt", FormatUnknown},
		{"/data/noext", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectFormat(tt.path))
		})
	}
}

func TestFormat_ReaderFunc(t *testing.T) {
	assert.Equal(t, "read_csv", FormatDelimited.ReaderFunc())
	assert.Equal(t, "read_parquet", FormatColumnar.ReaderFunc())
	assert.Empty(t, FormatUnknown.ReaderFunc())
}

func TestNewSource(t *testing.T) {
	src, err := NewSource("/tmp/sales.2024.csv")
	require.NoError(t, err)
	assert.Equal(t, FormatDelimited, src.Format)
	assert.Equal(t, "sales.2024", src.BaseName())

	_, err = NewSource("/tmp/report.xlsx")
	require.Error(t, err)

	var unsupported *UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, ".xlsx", unsupported.Extension)
	assert.Contains(t, unsupported.Supported, ".parquet")
	assert.Contains(t, err.Error(), "report.xlsx")
}

func TestSessionConfig_ApplyDefaults(t *testing.T) {
	cfg := SessionConfig{ChunkSize: -1}
	cfg.ApplyDefaults()

	assert.Equal(t, DefaultChunkSize, cfg.ChunkSize)
	assert.Equal(t, DefaultTableName, cfg.TableName)
	assert.Equal(t, DefaultQueryPattern, cfg.DefaultQuery)

	custom := SessionConfig{ChunkSize: 2, TableName: "t", DefaultQuery: "SELECT 1"}
	custom.ApplyDefaults()
	assert.Equal(t, 2, custom.ChunkSize)
	assert.Equal(t, "t", custom.TableName)
	assert.Equal(t, "SELECT 1", custom.DefaultQuery)
}
