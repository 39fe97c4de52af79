package internal

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// dirinfo.txt in each destination directory lists where its files came from.
const dirInfoName = "dirinfo.txt"

var shellQuoter = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")

func shellQuote(s string) string {
	return `"` + shellQuoter.Replace(s) + `"`
}

// WriteScript emits a bash script that creates each destination directory,
// copies the source without overwriting, and appends the source path to the
// directory's dirinfo.txt.
func WriteScript(w io.Writer, plan *Plan, runID string) error {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	if runID != "" {
		fmt.Fprintf(&b, "# mediaplan run %s\n", runID)
	}
	fmt.Fprintf(&b, "# %d files\n\n", plan.Len())

	for _, e := range plan.Entries() {
		dir := filepath.Dir(e.DestinationPath)
		fmt.Fprintf(&b, "mkdir -p %s\n", shellQuote(dir))
		fmt.Fprintf(&b, "cp -i -v %s %s\n", shellQuote(e.SourcePath), shellQuote(e.DestinationPath))
		fmt.Fprintf(&b, "echo %s >> %s\n", shellQuote(e.SourcePath), shellQuote(filepath.Join(dir, dirInfoName)))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteJSON emits the plan entries as an indented JSON array.
func WriteJSON(w io.Writer, plan *Plan) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(plan.Entries())
}

// WriteTable renders the plan for a terminal.
func WriteTable(w io.Writer, plan *Plan) error {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Taken", "Source", "Time source", "GPS", "Destination"})
	for _, e := range plan.Entries() {
		gps := ""
		if e.Metadata.HasGPS() {
			gps = "yes"
		}
		tw.AppendRow(table.Row{
			e.Taken.Format(time.DateTime),
			e.SourcePath,
			string(e.TimeSource),
			gps,
			e.DestinationPath,
		})
	}
	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d files", plan.Len()), "", "", ""})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignCenter},
	})
	tw.Render()
	return nil
}

// WritePlan dispatches on format.
func WritePlan(w io.Writer, plan *Plan, format, runID string) error {
	switch format {
	case FormatScript, "":
		return WriteScript(w, plan, runID)
	case FormatJSON:
		return WriteJSON(w, plan)
	case FormatTable:
		return WriteTable(w, plan)
	}
	return fmt.Errorf("unknown format %q", format)
}
