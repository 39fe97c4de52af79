package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// AnalyticsOptions contains configuration for catalogue analysis
type AnalyticsOptions struct {
	LibraryRoot   string
	Selection     Selection
	Resolver      *TimeResolver
	TopDuplicates int
	Format        string
}

// AnalyticsResults contains the analysis results
type AnalyticsResults struct {
	TotalRecords     int                `json:"total_records"`
	Digests          int                `json:"digests"`
	DuplicateRecords int                `json:"duplicate_records"`
	Duplicates       []DuplicateSet     `json:"duplicates,omitempty"`
	FieldCoverage    map[Field]int      `json:"field_coverage"`
	GPSRecords       int                `json:"gps_records"`
	UnreadableMeta   int                `json:"unreadable_metadata"`
	TimeSources      map[TimeSource]int `json:"time_sources"`
	DateRange        DateRange          `json:"date_range"`
	Collisions       []DestinationClash `json:"collisions,omitempty"`
	ScanDuration     time.Duration      `json:"scan_duration"`
}

type DateRange struct {
	Earliest time.Time `json:"earliest"`
	Latest   time.Time `json:"latest"`
}

// DuplicateSet lists every catalogued copy of one content digest.
type DuplicateSet struct {
	Digest string   `json:"digest"`
	Files  []string `json:"files"`
}

// DestinationClash is a destination path claimed by more than one digest.
type DestinationClash struct {
	Destination string   `json:"destination"`
	Sources     []string `json:"sources"`
}

// AnalyzeCatalog reports duplicate, metadata and date statistics for the
// catalogue. Every record is resolved, not only the group representative.
func AnalyzeCatalog(ctx context.Context, catalog Catalog, options *AnalyticsOptions) (*AnalyticsResults, error) {
	startTime := time.Now()
	resolver := options.Resolver
	if resolver == nil {
		resolver = NewTimeResolver(nil)
	}

	digests, err := catalog.DistinctDigests(ctx)
	if err != nil {
		return nil, catalogErr(err)
	}

	results := &AnalyticsResults{
		Digests:       len(digests),
		FieldCoverage: make(map[Field]int),
		TimeSources:   make(map[TimeSource]int),
	}
	claims := make(map[string][]string)
	var claimOrder []string

	for _, digest := range digests {
		records, err := catalog.RecordsForDigest(ctx, digest)
		if err != nil {
			return nil, catalogErr(err)
		}
		if len(records) == 0 {
			continue
		}
		results.TotalRecords += len(records)

		if len(records) > 1 {
			results.DuplicateRecords += len(records) - 1
			set := DuplicateSet{Digest: digest}
			for _, r := range records {
				set.Files = append(set.Files, r.Path)
			}
			results.Duplicates = append(results.Duplicates, set)
		}

		for _, r := range records {
			if r.MetadataErr != nil {
				results.UnreadableMeta++
			}
			for _, f := range knownFields {
				if _, ok := r.Metadata.Lookup(f); ok {
					results.FieldCoverage[f]++
				}
			}
			if r.Metadata.HasGPS() {
				results.GPSRecords++
			}

			res := resolver.Resolve(r.Name(), r.MTime, r.Metadata)
			results.TimeSources[res.Source]++
			if results.DateRange.Earliest.IsZero() || res.Time.Before(results.DateRange.Earliest) {
				results.DateRange.Earliest = res.Time
			}
			if res.Time.After(results.DateRange.Latest) {
				results.DateRange.Latest = res.Time
			}
		}

		// only the group's representative competes for a destination
		if options.LibraryRoot != "" {
			rep := Representative(records, options.Selection)
			res := resolver.Resolve(rep.Filename, rep.MTime, rep.Metadata)
			dest := DestinationPath(options.LibraryRoot, res.Time, rep.Filename)
			if _, seen := claims[dest]; !seen {
				claimOrder = append(claimOrder, dest)
			}
			claims[dest] = append(claims[dest], rep.Path)
		}
	}

	for _, dest := range claimOrder {
		if len(claims[dest]) > 1 {
			results.Collisions = append(results.Collisions, DestinationClash{Destination: dest, Sources: claims[dest]})
		}
	}

	sort.SliceStable(results.Duplicates, func(i, j int) bool {
		return len(results.Duplicates[i].Files) > len(results.Duplicates[j].Files)
	})
	if options.TopDuplicates > 0 && len(results.Duplicates) > options.TopDuplicates {
		results.Duplicates = results.Duplicates[:options.TopDuplicates]
	}

	results.ScanDuration = time.Since(startTime)
	return results, nil
}

// DisplayAnalytics writes the results as JSON or tables
func DisplayAnalytics(w io.Writer, results *AnalyticsResults, options *AnalyticsOptions) error {
	if options.Format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	return displayTable(w, results)
}

func displayTable(w io.Writer, results *AnalyticsResults) error {
	overview := table.NewWriter()
	overview.SetOutputMirror(w)
	overview.SetStyle(table.StyleRounded)
	overview.SetTitle("Catalogue")
	overview.AppendRows([]table.Row{
		{"Records", results.TotalRecords},
		{"Distinct contents", results.Digests},
		{"Duplicate copies", results.DuplicateRecords},
		{"With GPS", fmt.Sprintf("%d (%d%%)", results.GPSRecords, percentage(results.GPSRecords, results.TotalRecords))},
		{"Unreadable metadata", results.UnreadableMeta},
		{"Destination collisions", len(results.Collisions)},
	})
	if !results.DateRange.Earliest.IsZero() {
		overview.AppendRow(table.Row{"Earliest", results.DateRange.Earliest.Format(time.DateTime)})
		overview.AppendRow(table.Row{"Latest", results.DateRange.Latest.Format(time.DateTime)})
	}
	overview.AppendRow(table.Row{"Scan time", results.ScanDuration.Round(time.Millisecond)})
	overview.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	overview.Render()

	coverage := table.NewWriter()
	coverage.SetOutputMirror(w)
	coverage.SetStyle(table.StyleRounded)
	coverage.SetTitle("Metadata")
	coverage.AppendHeader(table.Row{"Field", "Records", "%"})
	for _, f := range knownFields {
		n := results.FieldCoverage[f]
		coverage.AppendRow(table.Row{string(f), n, percentage(n, results.TotalRecords)})
	}
	coverage.Render()

	sources := table.NewWriter()
	sources.SetOutputMirror(w)
	sources.SetStyle(table.StyleRounded)
	sources.SetTitle("Resolved from")
	sources.AppendHeader(table.Row{"Source", "Records"})
	for _, s := range []TimeSource{SourceFilename, SourceDateTimeOriginal, SourceCreateDate, SourceFileModifyDate, SourceMTime} {
		sources.AppendRow(table.Row{string(s), results.TimeSources[s]})
	}
	sources.Render()

	if len(results.Duplicates) > 0 {
		dups := table.NewWriter()
		dups.SetOutputMirror(w)
		dups.SetStyle(table.StyleRounded)
		dups.SetTitle("Largest duplicate sets")
		dups.AppendHeader(table.Row{"Digest", "Copies", "First by name"})
		for _, d := range results.Duplicates {
			dups.AppendRow(table.Row{shortDigest(d.Digest), len(d.Files), d.Files[0]})
		}
		dups.Render()
	}

	if len(results.Collisions) > 0 {
		clashes := table.NewWriter()
		clashes.SetOutputMirror(w)
		clashes.SetStyle(table.StyleRounded)
		clashes.SetTitle("Destination collisions")
		clashes.AppendHeader(table.Row{"Destination", "Sources"})
		for _, c := range results.Collisions {
			clashes.AppendRow(table.Row{c.Destination, len(c.Sources)})
		}
		clashes.Render()
	}
	return nil
}

func percentage(part, total int) int {
	if total == 0 {
		return 0
	}
	return (part * 100) / total
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
