package internal

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeSource names where a resolved timestamp came from.
type TimeSource string

const (
	SourceFilename         TimeSource = "filename"
	SourceDateTimeOriginal TimeSource = TimeSource(FieldDateTimeOriginal)
	SourceCreateDate       TimeSource = TimeSource(FieldCreateDate)
	SourceFileModifyDate   TimeSource = TimeSource(FieldFileModifyDate)
	SourceMTime            TimeSource = "mtime"
)

var errFieldMissing = errors.New("field missing")

// WinDV and similar capture tools encode the start time in the name,
// e.g. mov.2008-02-03_16-13.03.avi
var filenameTimestamp = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})_(\d{2})-(\d{2})\.(\d{2})`)

// Layouts tried in order. Zoned layouts come first so an explicit offset is
// never read as local time.
var zonedLayouts = []string{
	"2006:01:02 15:04:05.999999999Z07:00",
	"2006:01:02 15:04:05Z07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 -0700",
}

var localLayouts = []string{
	"2006:01:02 15:04:05.999999999",
	"2006:01:02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006:01:02 15:04",
	"2006:01:02",
	"2006-01-02",
}

// Resolution is the authoritative capture time of one record.
type Resolution struct {
	Time     time.Time
	Source   TimeSource
	Warnings []*ProcessError
}

// TimeResolver derives a capture timestamp from a file name, its mtime and
// its catalogue metadata.
type TimeResolver struct {
	loc *time.Location
}

// NewTimeResolver returns a resolver that reads zoneless values in loc.
// A nil loc means time.Local.
func NewTimeResolver(loc *time.Location) *TimeResolver {
	if loc == nil {
		loc = time.Local
	}
	return &TimeResolver{loc: loc}
}

// Location returns the zone used for zoneless timestamps.
func (r *TimeResolver) Location() *time.Location {
	return r.loc
}

// Resolve picks the capture time for one record. Warnings carry the
// filename as FilePath; callers holding the full path may overwrite it.
//
// A timestamp embedded in the filename is authoritative and is returned as
// is. Otherwise FileModifyDate is the baseline, overwritten by CreateDate and
// then DateTimeOriginal when they parse, and the result is clamped to the
// filesystem mtime: a file cannot be written before it was captured.
//
// The filename branch skips the mtime clamp. Existing libraries were laid
// out that way, so it stays.
func (r *TimeResolver) Resolve(filename string, mtime int64, md Metadata) Resolution {
	if t, ok := r.fromFilename(filename); ok {
		return Resolution{Time: t, Source: SourceFilename}
	}

	fileTime := time.Unix(mtime, 0).In(r.loc)
	var res Resolution

	raw, present := md.Lookup(FieldFileModifyDate)
	baseline, err := r.parseField(raw, present)
	if err != nil {
		res.Warnings = append(res.Warnings, NewBaselineParseError(filename, raw, err))
		res.Time, res.Source = fileTime, SourceMTime
	} else {
		res.Time, res.Source = baseline, SourceFileModifyDate
	}

	for _, f := range dateFields[1:] {
		raw, present := md.Lookup(f)
		if !present {
			continue
		}
		t, err := r.parseField(raw, present)
		if err != nil {
			res.Warnings = append(res.Warnings, NewMetadataParseError(filename, f, raw, err))
			continue
		}
		res.Time, res.Source = t, TimeSource(f)
	}

	if fileTime.Before(res.Time) {
		res.Time, res.Source = fileTime, SourceMTime
	}
	return res
}

func (r *TimeResolver) fromFilename(filename string) (time.Time, bool) {
	m := filenameTimestamp.FindStringSubmatch(filename)
	if m == nil {
		return time.Time{}, false
	}
	var c [6]int
	for i := range c {
		c[i], _ = strconv.Atoi(m[i+1])
	}
	year, month, day, hour, minute, sec := c[0], c[1], c[2], c[3], c[4], c[5]
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || sec > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, r.loc)
	// time.Date normalizes Feb 30 into March; reject instead
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func (r *TimeResolver) parseField(raw string, present bool) (time.Time, error) {
	if !present {
		return time.Time{}, errFieldMissing
	}
	return ParseTimestamp(raw, r.loc)
}

// ParseTimestamp parses the date formats found in exiftool output and common
// ISO variants. Zoneless values are read in loc.
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc), nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}
