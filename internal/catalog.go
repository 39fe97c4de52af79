package internal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Catalog is read access to previously ingested media records.
type Catalog interface {
	// DistinctDigests returns every content digest once, in a stable order.
	DistinctDigests(ctx context.Context) ([]string, error)
	// RecordsForDigest returns the records sharing digest ordered by
	// filename, then path.
	RecordsForDigest(ctx context.Context, digest string) ([]MediaRecord, error)
}

// SQLiteCatalog reads the media table of an ingest database:
//
//	media(digest TEXT, filename TEXT, path TEXT, mtime INTEGER, exif TEXT)
type SQLiteCatalog struct {
	db     *sql.DB
	path   string
	lock   *flock.Flock
	logger zerolog.Logger
}

// OpenSQLiteCatalog opens path read-only and takes a shared lock on
// path+".lock" so that a cooperating ingest holding the exclusive lock
// cannot rewrite rows mid-run.
func OpenSQLiteCatalog(ctx context.Context, path string, logger zerolog.Logger) (*SQLiteCatalog, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrCatalog, path, err)
	}

	c := &SQLiteCatalog{path: path, logger: logger}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryRLock()
	switch {
	case err != nil && isReadOnlyErr(err):
		logger.Warn().Err(err).Str("catalog", path).Msg("cannot create catalogue lock, reading unlocked")
	case err != nil:
		return nil, fmt.Errorf("%w: lock %s: %w", ErrCatalog, path, err)
	case !ok:
		return nil, fmt.Errorf("%w: %s is locked by a writer", ErrCatalog, path)
	default:
		c.lock = lock
	}

	q := url.Values{}
	q.Set("mode", "ro")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "query_only(1)")
	dsn := "file:" + path + "?" + q.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		c.unlock()
		return nil, fmt.Errorf("%w: open sqlite db: %w", ErrCatalog, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		c.unlock()
		return nil, fmt.Errorf("%w: ping %s: %w", ErrCatalog, path, err)
	}
	c.db = db

	logger.Debug().Str("catalog", path).Bool("locked", c.lock != nil).Msg("catalogue opened")
	return c, nil
}

func isReadOnlyErr(err error) bool {
	return errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EROFS)
}

func (c *SQLiteCatalog) unlock() {
	if c.lock != nil {
		_ = c.lock.Unlock()
		c.lock = nil
	}
}

// Close releases the database handle and the shared lock.
func (c *SQLiteCatalog) Close() error {
	var err error
	if c.db != nil {
		err = c.db.Close()
	}
	c.unlock()
	return err
}

// Path returns the catalogue file location.
func (c *SQLiteCatalog) Path() string {
	return c.path
}

func (c *SQLiteCatalog) DistinctDigests(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT DISTINCT digest FROM media ORDER BY digest`)
	if err != nil {
		return nil, fmt.Errorf("%w: list digests: %w", ErrCatalog, err)
	}
	defer rows.Close()

	var (
		digests []string
		blank   bool
	)
	for rows.Next() {
		var d sql.NullString
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("%w: scan digest: %w", ErrCatalog, err)
		}
		if !d.Valid || strings.TrimSpace(d.String) == "" {
			blank = true
			continue
		}
		digests = append(digests, d.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list digests: %w", ErrCatalog, err)
	}
	rows.Close()

	if blank {
		var skipped int
		err := c.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM media WHERE digest IS NULL OR TRIM(digest) = ''`,
		).Scan(&skipped)
		if err != nil {
			return nil, fmt.Errorf("%w: count rows without digest: %w", ErrCatalog, err)
		}
		c.logger.Warn().Int("rows", skipped).Str("catalog", c.path).Msg("rows without digest skipped")
	}
	return digests, nil
}

func (c *SQLiteCatalog) RecordsForDigest(ctx context.Context, digest string) ([]MediaRecord, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT filename, path, mtime, exif FROM media WHERE digest = ? ORDER BY filename, path`,
		digest,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: records for %s: %w", ErrCatalog, digest, err)
	}
	defer rows.Close()

	var records []MediaRecord
	for rows.Next() {
		var (
			filename, path sql.NullString
			mtime          any
			exif           sql.NullString
		)
		if err := rows.Scan(&filename, &path, &mtime, &exif); err != nil {
			return nil, fmt.Errorf("%w: scan record for %s: %w", ErrCatalog, digest, err)
		}
		rec := MediaRecord{
			Digest:   digest,
			Filename: filename.String,
			Path:     path.String,
		}
		rec.MTime, rec.MTimeErr = mtimeSeconds(mtime)
		md, err := ParseMetadata([]byte(exif.String))
		if err != nil {
			rec.MetadataErr = err
		}
		rec.Metadata = md
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: records for %s: %w", ErrCatalog, digest, err)
	}
	return records, nil
}

// mtimeSeconds accepts the integer, REAL and numeric TEXT forms an ingest
// may have stored. Fractions are truncated; NULL is the epoch.
func mtimeSeconds(v any) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return t, nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, fmt.Errorf("mtime %v is not finite", t)
		}
		return int64(t), nil
	case []byte:
		return mtimeSeconds(string(t))
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("mtime %q is not a number", t)
		}
		return mtimeSeconds(f)
	}
	return 0, fmt.Errorf("mtime has unsupported type %T", v)
}

// MemoryCatalog serves records held in memory with the same ordering and
// blank-digest rules as SQLiteCatalog.
type MemoryCatalog struct {
	byDigest map[string][]MediaRecord
}

func NewMemoryCatalog(records ...MediaRecord) *MemoryCatalog {
	c := &MemoryCatalog{byDigest: make(map[string][]MediaRecord)}
	for _, r := range records {
		if strings.TrimSpace(r.Digest) == "" {
			continue
		}
		c.byDigest[r.Digest] = append(c.byDigest[r.Digest], r)
	}
	for _, group := range c.byDigest {
		sortRecords(group)
	}
	return c
}

func (c *MemoryCatalog) DistinctDigests(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	digests := make([]string, 0, len(c.byDigest))
	for d := range c.byDigest {
		digests = append(digests, d)
	}
	sort.Strings(digests)
	return digests, nil
}

func (c *MemoryCatalog) RecordsForDigest(ctx context.Context, digest string) ([]MediaRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	group := c.byDigest[digest]
	out := make([]MediaRecord, len(group))
	copy(out, group)
	return out, nil
}

func sortRecords(records []MediaRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Filename != records[j].Filename {
			return records[i].Filename < records[j].Filename
		}
		return records[i].Path < records[j].Path
	})
}
