// Package testsupport builds catalogue fixtures for tests.
package testsupport

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// Row is one media table row. A nil Exif stores SQL NULL. RawMTime, when
// set, is stored in place of MTime so REAL or TEXT values can be written.
type Row struct {
	Digest   string
	Filename string
	Path     string
	MTime    int64
	RawMTime any
	Exif     *string
}

// JSON is a helper for Row.Exif literals.
func JSON(s string) *string {
	return &s
}

const schema = `CREATE TABLE media (
	digest   TEXT,
	filename TEXT,
	path     TEXT,
	mtime    INTEGER,
	exif     TEXT
)`

// CreateCatalog writes rows into a fresh media.db under t.TempDir() and
// returns its path.
func CreateCatalog(t testing.TB, rows ...Row) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "media.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create media table: %v", err)
	}
	for _, r := range rows {
		var exif any
		if r.Exif != nil {
			exif = *r.Exif
		}
		var mtime any = r.MTime
		if r.RawMTime != nil {
			mtime = r.RawMTime
		}
		if _, err := db.Exec(
			`INSERT INTO media (digest, filename, path, mtime, exif) VALUES (?, ?, ?, ?, ?)`,
			r.Digest, r.Filename, r.Path, mtime, exif,
		); err != nil {
			t.Fatalf("insert fixture row %s: %v", r.Path, err)
		}
	}
	return path
}
