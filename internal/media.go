package internal

import (
	"path/filepath"
	"strings"
)

// MediaRecord is one catalogue row: a physically ingested file.
type MediaRecord struct {
	Digest   string
	Filename string
	Path     string
	MTime    int64 // seconds since epoch
	Metadata Metadata

	// MetadataErr is set when the stored metadata could not be decoded;
	// Metadata is then empty.
	MetadataErr error
	// MTimeErr is set when the stored mtime is not a number; MTime is then 0.
	MTimeErr error
}

// Name is the filename, or the base of Path when the catalogue left it blank.
func (r MediaRecord) Name() string {
	if strings.TrimSpace(r.Filename) == "" {
		return filepath.Base(r.Path)
	}
	return r.Filename
}
