package core

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// Format identifies the file family a source belongs to.
type Format int

// Supported source formats.
const (
	FormatUnknown Format = iota
	// FormatDelimited is delimited text (CSV).
	FormatDelimited
	// FormatColumnar is a columnar archive (Parquet).
	FormatColumnar
)

var (
	delimitedExtensions = []string{".csv"}
	columnarExtensions  = []string{".pq", ".parq", ".parquet"}
)

// String returns a human-readable format name.
func (f Format) String() string {
	switch f {
	case FormatDelimited:
		return "delimited"
	case FormatColumnar:
		return "columnar"
	default:
		return "unknown"
	}
}

// ReaderFunc returns the engine table function that reads this format.
func (f Format) ReaderFunc() string {
	switch f {
	case FormatDelimited:
		return "read_csv"
	case FormatColumnar:
		return "read_parquet"
	default:
		return ""
	}
}

// DetectFormat determines the format of a file from its extension.
// The comparison is case-insensitive.
func DetectFormat(path string) Format {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case slices.Contains(delimitedExtensions, ext):
		return FormatDelimited
	case slices.Contains(columnarExtensions, ext):
		return FormatColumnar
	default:
		return FormatUnknown
	}
}

// SupportedExtensions lists every extension a source may carry.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(delimitedExtensions)+len(columnarExtensions))
	exts = append(exts, delimitedExtensions...)
	return append(exts, columnarExtensions...)
}

// Source describes the file a session is opened on.
// It is immutable once the session starts.
type Source struct {
	Path   string
	Format Format
}

// NewSource builds a Source for path, detecting its format.
func NewSource(path string) (Source, error) {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return Source{}, &UnsupportedFormatError{
			Path:      path,
			Extension: filepath.Ext(path),
			Supported: SupportedExtensions(),
		}
	}
	return Source{Path: path, Format: format}, nil
}

// BaseName returns the file name without directory and extension.
func (s Source) BaseName() string {
	base := filepath.Base(s.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// UnsupportedFormatError is returned when a file extension matches no
// supported family. Callers are expected to only route supported files,
// so this is a configuration error rather than a user error.
type UnsupportedFormatError struct {
	Path      string
	Extension string
	Supported []string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file type %q for %s\nSupported extensions: %v", e.Extension, e.Path, e.Supported)
}
