package internal

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Selection decides which record of a digest group represents the content.
type Selection string

const (
	// SelectFirst trusts the first record in filename order.
	SelectFirst Selection = "first"
	// SelectRichest prefers the record with the most complete metadata,
	// falling back to filename order on ties.
	SelectRichest Selection = "richest"
)

// ParseSelection validates a selection policy name.
func ParseSelection(s string) (Selection, error) {
	switch Selection(strings.ToLower(strings.TrimSpace(s))) {
	case SelectFirst, "":
		return SelectFirst, nil
	case SelectRichest:
		return SelectRichest, nil
	}
	return "", fmt.Errorf("unknown selection policy %q (want first or richest)", s)
}

// Summary counts what a run did.
type Summary struct {
	Digests  int
	Records  int
	Inserted int
	Replaced int
	Kept     int
	Warnings int
	Duration time.Duration
	Errors   *ErrorStats
}

// PlanOptions configures a Planner.
type PlanOptions struct {
	LibraryRoot string
	Selection   Selection
	Workers     int
	Resolver    *TimeResolver
	Logger      zerolog.Logger
	Session     *PlanSession
}

// Planner walks a catalogue and builds the migration plan.
type Planner struct {
	catalog Catalog
	opts    PlanOptions
}

func NewPlanner(catalog Catalog, opts PlanOptions) *Planner {
	if opts.Resolver == nil {
		opts.Resolver = NewTimeResolver(nil)
	}
	if opts.Selection == "" {
		opts.Selection = SelectFirst
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Planner{catalog: catalog, opts: opts}
}

// DestinationPath lays a file out as root/YYYY-MM/YYYY-MM-DD/filename.
func DestinationPath(root string, taken time.Time, filename string) string {
	y, m, d := taken.Date()
	return filepath.Join(root,
		fmt.Sprintf("%04d-%02d", y, m),
		fmt.Sprintf("%04d-%02d-%02d", y, m, d),
		filename)
}

// candidate is a resolved representative of one digest group.
type candidate struct {
	record   MediaRecord
	res      Resolution
	problems []*ProcessError
	records  int
}

// Run builds the plan. Any catalogue failure aborts the run and no plan is
// returned; per-record problems are logged and counted.
func (p *Planner) Run(ctx context.Context) (*Plan, *Summary, error) {
	start := time.Now()
	log := p.opts.Logger

	if strings.TrimSpace(p.opts.LibraryRoot) == "" {
		return nil, nil, errors.New("library root is required")
	}

	digests, err := p.catalog.DistinctDigests(ctx)
	if err != nil {
		return nil, nil, catalogErr(err)
	}
	log.Info().Int("digests", len(digests)).Msg("catalogue enumerated")

	candidates, err := p.resolveAll(ctx, digests)
	if err != nil {
		return nil, nil, err
	}

	plan := NewPlan()
	sum := &Summary{Digests: len(digests), Errors: NewErrorStats()}

	for _, c := range candidates {
		sum.Records += c.records
		if c.records == 0 {
			continue
		}
		for _, procErr := range c.problems {
			sum.Warnings++
			sum.Errors.Add(procErr)
			p.warn(procErr)
		}

		entry := Entry{
			Filename:        c.record.Filename,
			SourcePath:      c.record.Path,
			DestinationPath: DestinationPath(p.opts.LibraryRoot, c.res.Time, c.record.Filename),
			Digest:          c.record.Digest,
			Taken:           c.res.Time,
			TimeSource:      c.res.Source,
			Metadata:        c.record.Metadata,
		}
		decision := plan.Admit(entry)
		switch decision {
		case DecisionInserted:
			sum.Inserted++
		case DecisionReplaced:
			sum.Replaced++
		case DecisionKept:
			sum.Kept++
		}

		ev := log.Debug()
		if decision != DecisionInserted {
			ev = log.Info()
		}
		ev.Str("decision", string(decision)).
			Str("src", entry.SourcePath).
			Str("dest", entry.DestinationPath).
			Str("time_source", string(entry.TimeSource)).
			Msg("candidate admitted")

		if err := p.opts.Session.LogAdmitted(entry, decision); err != nil {
			log.Warn().Err(err).Msg("manifest write failed")
		}
	}

	sum.Duration = time.Since(start)
	log.Info().
		Int("digests", sum.Digests).
		Int("records", sum.Records).
		Int("entries", plan.Len()).
		Int("replaced", sum.Replaced).
		Int("kept", sum.Kept).
		Int("warnings", sum.Warnings).
		Dur("duration", sum.Duration).
		Msg("plan built")
	return plan, sum, nil
}

// resolveAll fetches and resolves every digest group. Results keep digest
// order regardless of worker count so admission stays deterministic.
func (p *Planner) resolveAll(ctx context.Context, digests []string) ([]candidate, error) {
	out := make([]candidate, len(digests))

	if p.opts.Workers == 1 {
		for i, digest := range digests {
			c, err := p.resolveGroup(ctx, digest)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, digest := range digests {
		i, digest := i, digest
		g.Go(func() error {
			c, err := p.resolveGroup(gctx, digest)
			if err != nil {
				return err
			}
			out[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Planner) resolveGroup(ctx context.Context, digest string) (candidate, error) {
	records, err := p.catalog.RecordsForDigest(ctx, digest)
	if err != nil {
		return candidate{}, catalogErr(err)
	}
	if len(records) == 0 {
		p.opts.Logger.Debug().Str("digest", digest).Msg("digest has no records")
		return candidate{}, nil
	}

	rec := Representative(records, p.opts.Selection)

	c := candidate{record: rec, records: len(records)}
	if rec.MetadataErr != nil {
		procErr := CategorizeError(rec.Path, rec.MetadataErr)
		c.problems = append(c.problems, procErr)
	}
	if rec.MTimeErr != nil {
		c.problems = append(c.problems, NewMTimeError(rec.Path, rec.MTimeErr))
	}

	c.res = p.opts.Resolver.Resolve(rec.Filename, rec.MTime, rec.Metadata)
	for _, w := range c.res.Warnings {
		w.FilePath = rec.Path
		c.problems = append(c.problems, w)
	}
	return c, nil
}

// Representative picks the record that stands for a digest group, with a
// blank filename replaced by the base of its path. records must be in
// filename order and non-empty.
func Representative(records []MediaRecord, selection Selection) MediaRecord {
	best := 0
	if selection == SelectRichest {
		for i := 1; i < len(records); i++ {
			if records[i].Metadata.completeness() > records[best].Metadata.completeness() {
				best = i
			}
		}
	}
	rec := records[best]
	rec.Filename = rec.Name()
	return rec
}

func (p *Planner) warn(procErr *ProcessError) {
	p.opts.Logger.Warn().
		Str("src", procErr.FilePath).
		Str("field", string(procErr.Field)).
		Str("value", procErr.Value).
		Str("category", string(procErr.Category)).
		Err(procErr.OriginalErr).
		Msg(warningMessage(procErr))
	if err := p.opts.Session.LogWarning(procErr); err != nil {
		p.opts.Logger.Warn().Err(err).Msg("manifest write failed")
	}
}

func warningMessage(procErr *ProcessError) string {
	switch {
	case procErr.Field == FieldMTime:
		return "mtime unreadable"
	case procErr.Category == ErrorCategoryBaseline:
		return "baseline fallback to mtime"
	case procErr.Field == "":
		return "metadata unreadable"
	}
	return "timestamp tag ignored"
}

func catalogErr(err error) error {
	if errors.Is(err, ErrCatalog) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrCatalog, err)
}
