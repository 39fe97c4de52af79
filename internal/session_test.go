package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanSession_NilIsNoop(t *testing.T) {
	var s *PlanSession
	assert.NoError(t, s.LogRunStart("media.db", lib, SelectFirst))
	assert.NoError(t, s.LogAdmitted(Entry{}, DecisionInserted))
	assert.NoError(t, s.LogWarning(NewBaselineParseError("/a.jpg", "", errFieldMissing)))
	assert.NoError(t, s.LogRunEnd(Summary{}))
	assert.NoError(t, s.Close())
}

func TestPlanSession_AppendsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.jsonl")

	for _, id := range []string{"run-1", "run-2"} {
		s, err := NewPlanSession(path, id)
		require.NoError(t, err)
		require.NoError(t, s.LogRunStart("media.db", lib, SelectRichest))
		require.NoError(t, s.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"run_id":"run-1"`)
	assert.Contains(t, lines[1], `"run_id":"run-2"`)
	assert.Contains(t, lines[1], `"selection":"richest"`)
}
