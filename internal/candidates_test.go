package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(src, dest string, tags map[string]string) Entry {
	return Entry{
		Filename:        "IMG_0001.JPG",
		SourcePath:      src,
		DestinationPath: dest,
		Metadata:        NewMetadata(tags),
	}
}

var gps = map[string]string{"GPSLatitude": "48 deg 8' 22.00\" N"}

func TestPlanAdmit_NewDestinationInserted(t *testing.T) {
	plan := NewPlan()

	assert.Equal(t, DecisionInserted, plan.Admit(entry("/a/1.jpg", "/lib/x/1.jpg", nil)))
	assert.Equal(t, DecisionInserted, plan.Admit(entry("/a/2.jpg", "/lib/x/2.jpg", nil)))

	assert.Equal(t, 2, plan.Len())
	got, ok := plan.Get("/lib/x/2.jpg")
	require.True(t, ok)
	assert.Equal(t, "/a/2.jpg", got.SourcePath)
}

func TestPlanAdmit_Idempotent(t *testing.T) {
	plan := NewPlan()
	e := entry("/a/1.jpg", "/lib/x/1.jpg", gps)

	plan.Admit(e)
	before := plan.Entries()
	assert.Equal(t, DecisionKept, plan.Admit(e))

	assert.Equal(t, before, plan.Entries())
	assert.Equal(t, 1, plan.Len())
}

func TestPlanAdmit_GPSReplacesPlain(t *testing.T) {
	plain := entry("/a/plain.jpg", "/lib/x/1.jpg", nil)
	tagged := entry("/b/tagged.jpg", "/lib/x/1.jpg", gps)

	forward := NewPlan()
	forward.Admit(plain)
	assert.Equal(t, DecisionReplaced, forward.Admit(tagged))

	reverse := NewPlan()
	reverse.Admit(tagged)
	assert.Equal(t, DecisionKept, reverse.Admit(plain))

	for _, plan := range []*Plan{forward, reverse} {
		got, ok := plan.Get("/lib/x/1.jpg")
		require.True(t, ok)
		assert.Equal(t, "/b/tagged.jpg", got.SourcePath)
		assert.Equal(t, 1, plan.Len())
	}
}

func TestPlanAdmit_FirstWriterWinsOnTie(t *testing.T) {
	for name, tags := range map[string]map[string]string{
		"neither": nil,
		"both":    gps,
	} {
		t.Run(name, func(t *testing.T) {
			plan := NewPlan()
			plan.Admit(entry("/a/first.jpg", "/lib/x/1.jpg", tags))
			assert.Equal(t, DecisionKept, plan.Admit(entry("/b/second.jpg", "/lib/x/1.jpg", tags)))

			got, _ := plan.Get("/lib/x/1.jpg")
			assert.Equal(t, "/a/first.jpg", got.SourcePath)
		})
	}
}

func TestPlanAdmit_BlankGPSDoesNotCount(t *testing.T) {
	plan := NewPlan()
	plan.Admit(entry("/a/first.jpg", "/lib/x/1.jpg", nil))

	assert.Equal(t, DecisionKept, plan.Admit(entry("/b/blank.jpg", "/lib/x/1.jpg", map[string]string{"GPSLatitude": "  "})))
}

func TestPlanEntries_ReplacementKeepsPosition(t *testing.T) {
	plan := NewPlan()
	plan.Admit(entry("/a/1.jpg", "/lib/x/1.jpg", nil))
	plan.Admit(entry("/a/2.jpg", "/lib/x/2.jpg", nil))
	plan.Admit(entry("/b/1.jpg", "/lib/x/1.jpg", gps))

	entries := plan.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "/b/1.jpg", entries[0].SourcePath)
	assert.Equal(t, "/a/2.jpg", entries[1].SourcePath)
}
