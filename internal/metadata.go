package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Field names a metadata tag the planner knows how to interpret.
type Field string

const (
	FieldFileModifyDate   Field = "FileModifyDate"
	FieldCreateDate       Field = "CreateDate"
	FieldDateTimeOriginal Field = "DateTimeOriginal"
	FieldGPSLatitude      Field = "GPSLatitude"

	// FieldMTime names the catalogue's mtime column in problem reports.
	FieldMTime Field = "mtime"
)

// dateFields lists the timestamp tags in ascending priority.
var dateFields = []Field{FieldFileModifyDate, FieldCreateDate, FieldDateTimeOriginal}

var knownFields = []Field{FieldFileModifyDate, FieldCreateDate, FieldDateTimeOriginal, FieldGPSLatitude}

// Metadata is the catalogue's tag set for one file. Unknown tags are kept
// verbatim so they survive into the emitted plan.
type Metadata struct {
	values map[string]string
}

// NewMetadata builds Metadata from plain key/value pairs.
func NewMetadata(values map[string]string) Metadata {
	m := Metadata{values: make(map[string]string, len(values))}
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

// ParseMetadata decodes a JSON object as written by `exiftool -json`.
// Null values are treated as absent; non-string values keep their JSON text.
func ParseMetadata(data []byte) (Metadata, error) {
	m := Metadata{values: map[string]string{}}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return m, nil
	}

	// exiftool wraps single-file output in an array
	if trimmed[0] == '[' {
		var list []map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return m, fmt.Errorf("decode metadata: %w", err)
		}
		if len(list) == 0 {
			return m, nil
		}
		return metadataFromRaw(list[0])
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return m, fmt.Errorf("decode metadata: %w", err)
	}
	return metadataFromRaw(raw)
}

func metadataFromRaw(raw map[string]json.RawMessage) (Metadata, error) {
	m := Metadata{values: make(map[string]string, len(raw))}
	for k, v := range raw {
		text := bytes.TrimSpace(v)
		if len(text) == 0 || bytes.Equal(text, []byte("null")) {
			continue
		}
		if text[0] == '"' {
			var s string
			if err := json.Unmarshal(text, &s); err != nil {
				return m, fmt.Errorf("decode metadata field %s: %w", k, err)
			}
			m.values[k] = s
			continue
		}
		m.values[k] = string(text)
	}
	return m, nil
}

// Lookup returns the value for a known field and whether it is present.
func (m Metadata) Lookup(f Field) (string, bool) {
	v, ok := m.values[string(f)]
	return v, ok
}

// Get returns the raw value for any tag.
func (m Metadata) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// HasGPS reports whether a non-blank GPSLatitude is present.
func (m Metadata) HasGPS() bool {
	v, ok := m.Lookup(FieldGPSLatitude)
	return ok && strings.TrimSpace(v) != ""
}

// Len returns the number of tags.
func (m Metadata) Len() int {
	return len(m.values)
}

// Keys returns the tag names in lexical order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON writes the tags as a flat JSON object.
func (m Metadata) MarshalJSON() ([]byte, error) {
	if m.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m.values)
}

// completeness scores how much a record tells us: GPS outweighs any number
// of date tags.
func (m Metadata) completeness() int {
	score := 0
	if m.HasGPS() {
		score += 100
	}
	for _, f := range dateFields {
		if _, ok := m.Lookup(f); ok {
			score++
		}
	}
	return score
}
