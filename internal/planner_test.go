package internal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lib = "/mnt/medialib"

func record(digest, path string, mtime int64, tags map[string]string) MediaRecord {
	return MediaRecord{
		Digest:   digest,
		Filename: filepath.Base(path),
		Path:     path,
		MTime:    mtime,
		Metadata: NewMetadata(tags),
	}
}

func newTestPlanner(cat Catalog, opts PlanOptions) *Planner {
	opts.LibraryRoot = lib
	opts.Resolver = NewTimeResolver(time.UTC)
	opts.Logger = zerolog.Nop()
	return NewPlanner(cat, opts)
}

func TestDestinationPath(t *testing.T) {
	got := DestinationPath("/mnt/medialib", utc(2008, 2, 3, 16, 13, 3), "mov.avi")
	assert.Equal(t, "/mnt/medialib/2008-02/2008-02-03/mov.avi", got)
}

func TestPlanner_SameDigestYieldsOneEntry(t *testing.T) {
	cat := NewMemoryCatalog(
		record("abc123", "/src/b/mov1.avi", unix(t, "2010-01-01 00:00:00"),
			map[string]string{"FileModifyDate": "2009:12:31 12:00:00"}),
		record("abc123", "/src/a/mov.2010-05-01_10-00.00.avi", unix(t, "2011-01-01 00:00:00"), nil),
	)

	plan, sum, err := newTestPlanner(cat, PlanOptions{}).Run(context.Background())
	require.NoError(t, err)

	// "mov." sorts before "mov1" byte-wise, so the WinDV copy represents the content
	require.Equal(t, 1, plan.Len())
	e := plan.Entries()[0]
	assert.Equal(t, "/src/a/mov.2010-05-01_10-00.00.avi", e.SourcePath)
	assert.Equal(t, lib+"/2010-05/2010-05-01/mov.2010-05-01_10-00.00.avi", e.DestinationPath)
	assert.Equal(t, SourceFilename, e.TimeSource)
	assert.Equal(t, "abc123", e.Digest)

	assert.Equal(t, 1, sum.Digests)
	assert.Equal(t, 2, sum.Records)
	assert.Equal(t, 1, sum.Inserted)
}

func TestPlanner_RichestSelection(t *testing.T) {
	cat := NewMemoryCatalog(
		record("abc123", "/src/b/mov1.avi", unix(t, "2010-01-01 00:00:00"),
			map[string]string{"FileModifyDate": "2009:12:31 12:00:00"}),
		record("abc123", "/src/a/mov.2010-05-01_10-00.00.avi", unix(t, "2011-01-01 00:00:00"), nil),
	)

	plan, _, err := newTestPlanner(cat, PlanOptions{Selection: SelectRichest}).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, plan.Len())
	e := plan.Entries()[0]
	assert.Equal(t, "/src/b/mov1.avi", e.SourcePath)
	assert.Equal(t, lib+"/2009-12/2009-12-31/mov1.avi", e.DestinationPath)
}

func TestPlanner_RichestSelectionTieKeepsFilenameOrder(t *testing.T) {
	tags := map[string]string{"CreateDate": "2004:04:04 04:04:04"}
	cat := NewMemoryCatalog(
		record("d1", "/src/z/b.jpg", unix(t, "2010-01-01 00:00:00"), tags),
		record("d1", "/src/y/a.jpg", unix(t, "2010-01-01 00:00:00"), tags),
	)

	plan, _, err := newTestPlanner(cat, PlanOptions{Selection: SelectRichest}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/src/y/a.jpg", plan.Entries()[0].SourcePath)
}

func TestPlanner_CollisionAcrossDigestsPrefersGPS(t *testing.T) {
	date := map[string]string{"DateTimeOriginal": "2012:08:15 09:30:00"}
	located := map[string]string{"DateTimeOriginal": "2012:08:15 09:30:00", "GPSLatitude": "52.52"}
	mtime := unix(t, "2013-01-01 00:00:00")

	cat := NewMemoryCatalog(
		record("aaa", "/phone/IMG_0042.JPG", mtime, date),
		record("bbb", "/camera/IMG_0042.JPG", mtime, located),
		record("ccc", "/backup/IMG_0042.JPG", mtime, date),
	)

	plan, sum, err := newTestPlanner(cat, PlanOptions{}).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, plan.Len())
	e, ok := plan.Get(lib + "/2012-08/2012-08-15/IMG_0042.JPG")
	require.True(t, ok)
	assert.Equal(t, "/camera/IMG_0042.JPG", e.SourcePath)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, 1, sum.Replaced)
	assert.Equal(t, 1, sum.Kept)
}

func TestPlanner_WorkersProduceIdenticalPlan(t *testing.T) {
	var records []MediaRecord
	base := unix(t, "2015-01-01 00:00:00")
	for i := 0; i < 60; i++ {
		tags := map[string]string{"DateTimeOriginal": time.Unix(base+int64(i%7)*86400, 0).UTC().Format("2006:01:02 15:04:05")}
		if i%5 == 0 {
			tags["GPSLatitude"] = "1.0"
		}
		name := fmt.Sprintf("/src/%d/IMG_%d.JPG", i%3, i%4)
		records = append(records, record(fmt.Sprintf("d%03d", (i*37)%60), name, base+86400*30, tags))
	}
	cat := NewMemoryCatalog(records...)

	serial, _, err := newTestPlanner(cat, PlanOptions{Workers: 1}).Run(context.Background())
	require.NoError(t, err)
	parallel, _, err := newTestPlanner(cat, PlanOptions{Workers: 8}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, serial.Entries(), parallel.Entries())
}

func TestPlanner_RecordProblemsAreRecovered(t *testing.T) {
	broken := record("d2", "/src/broken.jpg", unix(t, "2008-08-08 08:08:08"), nil)
	broken.MetadataErr = errors.New("decode metadata: unexpected end of JSON input")

	cat := NewMemoryCatalog(
		record("d1", "/src/nodate.jpg", unix(t, "2007-07-07 07:07:07"),
			map[string]string{"CreateDate": "not-a-date"}),
		broken,
	)

	plan, sum, err := newTestPlanner(cat, PlanOptions{}).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, plan.Len())
	e, ok := plan.Get(lib + "/2007-07/2007-07-07/nodate.jpg")
	require.True(t, ok)
	assert.Equal(t, SourceMTime, e.TimeSource)

	// nodate: missing baseline + bad CreateDate; broken: bad JSON + missing baseline
	assert.Equal(t, 4, sum.Warnings)
	assert.Equal(t, 2, sum.Errors.ByCategory[ErrorCategoryBaseline])
	assert.Equal(t, 2, sum.Errors.ByCategory[ErrorCategoryMetadata])
	for _, w := range sum.Errors.LastErrors {
		assert.Contains(t, []string{"/src/nodate.jpg", "/src/broken.jpg"}, w.FilePath)
	}
}

func TestPlanner_BlankFilenameUsesPathBase(t *testing.T) {
	rec := record("d1", "/src/photo.jpg", unix(t, "2001-01-01 00:00:00"), nil)
	rec.Filename = ""

	plan, _, err := newTestPlanner(NewMemoryCatalog(rec), PlanOptions{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, lib+"/2001-01/2001-01-01/photo.jpg", plan.Entries()[0].DestinationPath)
}

type failingCatalog struct {
	*MemoryCatalog
	failDigest string
}

func (c failingCatalog) RecordsForDigest(ctx context.Context, digest string) ([]MediaRecord, error) {
	if digest == c.failDigest {
		return nil, errors.New("disk I/O error")
	}
	return c.MemoryCatalog.RecordsForDigest(ctx, digest)
}

func TestPlanner_CatalogFailureAborts(t *testing.T) {
	cat := failingCatalog{
		MemoryCatalog: NewMemoryCatalog(
			record("d1", "/src/a.jpg", 0, nil),
			record("d2", "/src/b.jpg", 0, nil),
		),
		failDigest: "d2",
	}

	for _, workers := range []int{1, 4} {
		plan, sum, err := newTestPlanner(cat, PlanOptions{Workers: workers}).Run(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCatalog)
		assert.Nil(t, plan)
		assert.Nil(t, sum)
	}
}

func TestPlanner_CancelledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := newTestPlanner(NewMemoryCatalog(record("d1", "/src/a.jpg", 0, nil)), PlanOptions{}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrCatalog)
}

func TestPlanner_RequiresLibraryRoot(t *testing.T) {
	p := NewPlanner(NewMemoryCatalog(), PlanOptions{Logger: zerolog.Nop()})
	_, _, err := p.Run(context.Background())
	assert.ErrorContains(t, err, "library root")
}

func TestPlanner_SessionJournalsDecisions(t *testing.T) {
	manifest := filepath.Join(t.TempDir(), "runs", "manifest.jsonl")
	session, err := NewPlanSession(manifest, "run-1")
	require.NoError(t, err)

	cat := NewMemoryCatalog(
		record("aaa", "/a/IMG_1.JPG", unix(t, "2013-01-01 00:00:00"), map[string]string{"FileModifyDate": "2012:01:01 00:00:00"}),
		record("bbb", "/b/IMG_1.JPG", unix(t, "2013-01-01 00:00:00"), map[string]string{"FileModifyDate": "2012:01:01 00:00:00", "GPSLatitude": "1"}),
		record("ccc", "/c/IMG_2.JPG", unix(t, "2013-01-01 00:00:00"), nil),
	)
	require.NoError(t, session.LogRunStart("media.db", lib, SelectFirst))
	_, sum, err := newTestPlanner(cat, PlanOptions{Session: session}).Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, session.LogRunEnd(*sum))
	require.NoError(t, session.Close())

	f, err := os.Open(manifest)
	require.NoError(t, err)
	defer f.Close()

	var events []ManifestEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev ManifestEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		assert.Equal(t, "run-1", ev.RunID)
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())

	var kinds []string
	for _, ev := range events {
		kinds = append(kinds, ev.Event+":"+ev.Decision)
	}
	assert.Equal(t, []string{
		"run_start:",
		"admitted:inserted",
		"admitted:replaced",
		"warning:",
		"admitted:inserted",
		"run_end:",
	}, kinds)

	assert.Equal(t, "/b/IMG_1.JPG", events[2].Src)
	assert.True(t, events[2].GPS)
	assert.Equal(t, string(ErrorCategoryBaseline), events[3].ErrorCategory)
	assert.Equal(t, 3, events[5].Digests)
	assert.Equal(t, 1, events[5].Replaced)
}

func TestParseSelection(t *testing.T) {
	s, err := ParseSelection("")
	require.NoError(t, err)
	assert.Equal(t, SelectFirst, s)

	s, err = ParseSelection(" Richest ")
	require.NoError(t, err)
	assert.Equal(t, SelectRichest, s)

	_, err = ParseSelection("newest")
	assert.Error(t, err)
}

func TestRepresentative(t *testing.T) {
	plain := record("d1", "/src/a/IMG.JPG", 0, nil)
	plain.Filename = ""
	rich := record("d1", "/src/b/IMG.JPG", 0, map[string]string{"GPSLatitude": "1"})
	group := []MediaRecord{plain, rich}

	first := Representative(group, SelectFirst)
	assert.Equal(t, "/src/a/IMG.JPG", first.Path)
	assert.Equal(t, "IMG.JPG", first.Filename)
	assert.Empty(t, group[0].Filename, "catalogue record left untouched")

	assert.Equal(t, "/src/b/IMG.JPG", Representative(group, SelectRichest).Path)
}

func TestWarningMessage(t *testing.T) {
	tests := []struct {
		procErr *ProcessError
		want    string
	}{
		{NewBaselineParseError("/a", "", errFieldMissing), "baseline fallback to mtime"},
		{NewMetadataParseError("/a", FieldCreateDate, "x", errors.New("bad")), "timestamp tag ignored"},
		{CategorizeError("/a", errors.New("decode metadata: unexpected EOF")), "metadata unreadable"},
		{NewMTimeError("/a", errors.New(`mtime "x" is not a number`)), "mtime unreadable"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, warningMessage(tt.procErr))
	}
}
