package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PlanSession journals one planning run to a manifest.jsonl file so the
// reasoning behind every destination can be audited after the script ran.
type PlanSession struct {
	ID           string    // Run ID
	ManifestPath string    // Full path to the manifest
	StartedAt    time.Time // When the session was opened
	manifestFile *os.File
	mu           sync.Mutex
}

// ManifestEvent represents a single event in the manifest log
type ManifestEvent struct {
	Event string `json:"event"`
	Ts    string `json:"ts"`
	RunID string `json:"run_id,omitempty"`

	// Admission fields
	Src        string `json:"src,omitempty"`
	Dest       string `json:"dest,omitempty"`
	Digest     string `json:"digest,omitempty"`
	Decision   string `json:"decision,omitempty"`
	TimeSource string `json:"time_source,omitempty"`
	Taken      string `json:"taken,omitempty"`
	GPS        bool   `json:"gps,omitempty"`

	// Warning fields
	Field           string `json:"field,omitempty"`
	Value           string `json:"value,omitempty"`
	Error           string `json:"error,omitempty"`
	ErrorCategory   string `json:"error_category,omitempty"`
	ErrorSeverity   string `json:"error_severity,omitempty"`
	ErrorSuggestion string `json:"error_suggestion,omitempty"`

	// Run start/end fields
	Catalog   string `json:"catalog,omitempty"`
	Library   string `json:"library,omitempty"`
	Selection string `json:"selection,omitempty"`
	Digests   int    `json:"digests,omitempty"`
	Records   int    `json:"records,omitempty"`
	Inserted  int    `json:"inserted,omitempty"`
	Replaced  int    `json:"replaced,omitempty"`
	Kept      int    `json:"kept,omitempty"`
	Warnings  int    `json:"warnings,omitempty"`
}

// NewPlanSession opens (or appends to) the manifest at manifestPath.
func NewPlanSession(manifestPath, runID string) (*PlanSession, error) {
	if dir := filepath.Dir(manifestPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create manifest directory: %w", err)
		}
	}

	manifestFile, err := os.OpenFile(manifestPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest file: %w", err)
	}

	return &PlanSession{
		ID:           runID,
		ManifestPath: manifestPath,
		StartedAt:    time.Now(),
		manifestFile: manifestFile,
	}, nil
}

// LogRunStart writes the run start event
func (s *PlanSession) LogRunStart(catalog, library string, selection Selection) error {
	return s.writeEvent(ManifestEvent{
		Event:     "run_start",
		Catalog:   catalog,
		Library:   library,
		Selection: string(selection),
	})
}

// LogAdmitted records the arbitration outcome for one entry
func (s *PlanSession) LogAdmitted(e Entry, d Decision) error {
	return s.writeEvent(ManifestEvent{
		Event:      "admitted",
		Src:        e.SourcePath,
		Dest:       e.DestinationPath,
		Digest:     e.Digest,
		Decision:   string(d),
		TimeSource: string(e.TimeSource),
		Taken:      e.Taken.Format(time.RFC3339),
		GPS:        e.Metadata.HasGPS(),
	})
}

// LogWarning records a recovered per-record problem
func (s *PlanSession) LogWarning(procErr *ProcessError) error {
	event := ManifestEvent{
		Event:           "warning",
		Src:             procErr.FilePath,
		Field:           string(procErr.Field),
		Value:           procErr.Value,
		ErrorCategory:   string(procErr.Category),
		ErrorSeverity:   string(procErr.Severity),
		ErrorSuggestion: procErr.Suggestion,
	}
	if procErr.OriginalErr != nil {
		event.Error = procErr.OriginalErr.Error()
	}
	return s.writeEvent(event)
}

// LogRunEnd writes the run end event
func (s *PlanSession) LogRunEnd(sum Summary) error {
	return s.writeEvent(ManifestEvent{
		Event:    "run_end",
		Digests:  sum.Digests,
		Records:  sum.Records,
		Inserted: sum.Inserted,
		Replaced: sum.Replaced,
		Kept:     sum.Kept,
		Warnings: sum.Warnings,
	})
}

// Close closes the manifest file
func (s *PlanSession) Close() error {
	if s == nil || s.manifestFile == nil {
		return nil
	}
	return s.manifestFile.Close()
}

// writeEvent writes a manifest event as a JSON line
func (s *PlanSession) writeEvent(event ManifestEvent) error {
	if s == nil {
		return nil
	}
	event.Ts = time.Now().UTC().Format(time.RFC3339)
	event.RunID = s.ID

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.manifestFile.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write to manifest: %w", err)
	}
	return s.manifestFile.Sync()
}
