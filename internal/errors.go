package internal

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrCatalog marks failures of the catalogue itself. Those abort a run.
var ErrCatalog = errors.New("catalog failure")

// ErrorCategory represents the type of error encountered
type ErrorCategory string

const (
	ErrorCategoryMetadata ErrorCategory = "metadata_error" // A tag could not be parsed as a timestamp
	ErrorCategoryBaseline ErrorCategory = "baseline_error" // FileModifyDate missing or unparsable
	ErrorCategoryCatalog  ErrorCategory = "catalog_error"  // Catalogue could not be read
	ErrorCategoryUnknown  ErrorCategory = "unknown_error"  // Unexpected errors
)

// ErrorSeverity indicates how critical the error is
type ErrorSeverity string

const (
	ErrorSeverityCritical ErrorSeverity = "critical" // Run cannot continue
	ErrorSeverityError    ErrorSeverity = "error"    // Record-level issue
	ErrorSeverityWarning  ErrorSeverity = "warning"  // Recovered, resolution continued
)

// ProcessError represents a categorized error for one catalogue record
type ProcessError struct {
	FilePath    string
	Field       Field
	Value       string
	Category    ErrorCategory
	Severity    ErrorSeverity
	OriginalErr error
	Suggestion  string
}

func (e *ProcessError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s/%s] %s: %s %q: %v", e.Severity, e.Category, e.FilePath, e.Field, e.Value, e.OriginalErr)
	}
	return fmt.Sprintf("[%s/%s] %s: %v", e.Severity, e.Category, e.FilePath, e.OriginalErr)
}

func (e *ProcessError) Unwrap() error {
	return e.OriginalErr
}

// NewMetadataParseError reports a date tag that could not be parsed. The
// previously held timestamp stays in effect.
func NewMetadataParseError(path string, field Field, value string, err error) *ProcessError {
	return &ProcessError{
		FilePath:    path,
		Field:       field,
		Value:       value,
		Category:    ErrorCategoryMetadata,
		Severity:    ErrorSeverityWarning,
		OriginalErr: err,
		Suggestion:  "Tag ignored - a lower priority timestamp was used",
	}
}

// NewBaselineParseError reports a missing or unparsable FileModifyDate. The
// file's mtime becomes the baseline.
func NewBaselineParseError(path string, value string, err error) *ProcessError {
	return &ProcessError{
		FilePath:    path,
		Field:       FieldFileModifyDate,
		Value:       value,
		Category:    ErrorCategoryBaseline,
		Severity:    ErrorSeverityWarning,
		OriginalErr: err,
		Suggestion:  "Filesystem mtime used as baseline - re-run metadata extraction for this file",
	}
}

// NewMTimeError reports a stored mtime that is not a number. The record is
// resolved as if its mtime were the epoch.
func NewMTimeError(path string, err error) *ProcessError {
	return &ProcessError{
		FilePath:    path,
		Field:       FieldMTime,
		Category:    ErrorCategoryMetadata,
		Severity:    ErrorSeverityError,
		OriginalErr: err,
		Suggestion:  "Stored mtime unreadable - re-ingest this file",
	}
}

// CategorizeError analyzes a catalogue error and returns a ProcessError with
// category and severity
func CategorizeError(filePath string, err error) *ProcessError {
	if err == nil {
		return nil
	}

	var procErr *ProcessError
	if errors.As(err, &procErr) {
		return procErr
	}

	errStr := strings.ToLower(err.Error())
	procErr = &ProcessError{
		FilePath:    filePath,
		OriginalErr: err,
	}

	switch {
	case strings.Contains(errStr, "database is locked") || strings.Contains(errStr, "sqlite_busy"):
		procErr.Category = ErrorCategoryCatalog
		procErr.Severity = ErrorSeverityCritical
		procErr.Suggestion = "Catalogue is being written - wait for the ingest to finish and retry"

	case strings.Contains(errStr, "no such table") || strings.Contains(errStr, "no such column"):
		procErr.Category = ErrorCategoryCatalog
		procErr.Severity = ErrorSeverityCritical
		procErr.Suggestion = "Catalogue has no media table - check the --catalog path"

	case strings.Contains(errStr, "unable to open") || strings.Contains(errStr, "no such file"):
		procErr.Category = ErrorCategoryCatalog
		procErr.Severity = ErrorSeverityCritical
		procErr.Suggestion = "Catalogue file not found - check the --catalog path"

	case strings.Contains(errStr, "permission denied"):
		procErr.Category = ErrorCategoryCatalog
		procErr.Severity = ErrorSeverityCritical
		procErr.Suggestion = "Check read permissions on the catalogue and its directory"

	case errors.Is(err, ErrCatalog):
		procErr.Category = ErrorCategoryCatalog
		procErr.Severity = ErrorSeverityCritical
		procErr.Suggestion = "Catalogue query failed - check logs for details"

	case strings.Contains(errStr, "metadata"):
		procErr.Category = ErrorCategoryMetadata
		procErr.Severity = ErrorSeverityWarning
		procErr.Suggestion = "Metadata ignored for this record - mtime will be used"

	default:
		procErr.Category = ErrorCategoryUnknown
		procErr.Severity = ErrorSeverityError
		procErr.Suggestion = "Unexpected error - check logs for details"
	}

	return procErr
}

// ErrorStats tracks error statistics during a planning run
type ErrorStats struct {
	Total      int
	Critical   int
	Errors     int
	Warnings   int
	ByCategory map[ErrorCategory]int
	LastErrors []*ProcessError // Last 5 errors for quick diagnosis
}

func NewErrorStats() *ErrorStats {
	return &ErrorStats{
		ByCategory: make(map[ErrorCategory]int),
		LastErrors: make([]*ProcessError, 0, 5),
	}
}

func (s *ErrorStats) Add(err *ProcessError) {
	s.Total++
	s.ByCategory[err.Category]++

	switch err.Severity {
	case ErrorSeverityCritical:
		s.Critical++
	case ErrorSeverityError:
		s.Errors++
	case ErrorSeverityWarning:
		s.Warnings++
	}

	if len(s.LastErrors) >= 5 {
		s.LastErrors = s.LastErrors[1:]
	}
	s.LastErrors = append(s.LastErrors, err)
}

// GenerateReport creates a human-readable error report
func (s *ErrorStats) GenerateReport() string {
	var report strings.Builder

	report.WriteString(fmt.Sprintf("\nPlanning recovered from %d problems:\n\n", s.Total))

	if s.Critical > 0 {
		report.WriteString(fmt.Sprintf("  Critical: %d (catalogue issues)\n", s.Critical))
	}
	if s.Errors > 0 {
		report.WriteString(fmt.Sprintf("  Errors:   %d (record-level issues)\n", s.Errors))
	}
	if s.Warnings > 0 {
		report.WriteString(fmt.Sprintf("  Warnings: %d (unparsable timestamps)\n", s.Warnings))
	}

	report.WriteString("\nCategories:\n")
	categories := make([]string, 0, len(s.ByCategory))
	for cat := range s.ByCategory {
		categories = append(categories, string(cat))
	}
	sort.Strings(categories)
	for _, cat := range categories {
		report.WriteString(fmt.Sprintf("  - %s: %d\n", cat, s.ByCategory[ErrorCategory(cat)]))
	}

	report.WriteString("\nRecent problems:\n")
	for i, err := range s.LastErrors {
		report.WriteString(fmt.Sprintf("\n%d. %s\n", i+1, err.FilePath))
		report.WriteString(fmt.Sprintf("   Category: %s | Severity: %s\n", err.Category, err.Severity))
		if err.Field != "" {
			report.WriteString(fmt.Sprintf("   Field: %s = %q\n", err.Field, err.Value))
		}
		report.WriteString(fmt.Sprintf("   Error: %v\n", err.OriginalErr))
		if err.Suggestion != "" {
			report.WriteString(fmt.Sprintf("   Suggestion: %s\n", err.Suggestion))
		}
	}

	if s.ByCategory[ErrorCategoryBaseline] > s.Total/2 {
		report.WriteString("\nMost records lack FileModifyDate - the catalogue may have been built without exiftool -json\n")
	}

	return report.String()
}
