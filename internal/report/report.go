// Package report renders a completed run's stored results into a
// Markdown summary, then HTML for the dashboard's static report page.
// Grounded on the teacher's internal/email markdown-to-HTML rendering
// (same goldmark.Convert call, same minimal styled envelope) adapted
// from an outgoing-mail body to a run summary document.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/nugget/zigbeesim/internal/runstore"
)

// BuildMarkdown renders a run's metadata, event tallies, and final
// routing snapshot as a Markdown document.
func BuildMarkdown(rec runstore.RunRecord, tallies []runstore.EventTally, snapshot []runstore.RoutingSnapshotRow) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Run %s\n\n", rec.ID)
	fmt.Fprintf(&b, "- Scenario: %s\n", rec.ScenarioName)
	fmt.Fprintf(&b, "- Campaign: %s\n", rec.CampaignID)
	fmt.Fprintf(&b, "- Started: %s\n", rec.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- Finished: %s\n", rec.FinishedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- Nodes: %d\n", rec.NodeCount)
	fmt.Fprintf(&b, "- Trace events: %d\n\n", rec.EventCount)

	b.WriteString("## Event tallies\n\n")
	if len(tallies) == 0 {
		b.WriteString("No trace events were recorded.\n\n")
	} else {
		b.WriteString("| Kind | Count |\n|---|---|\n")
		for _, t := range tallies {
			fmt.Fprintf(&b, "| %s | %d |\n", t.Kind, t.Count)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Final routing tables\n\n")
	if len(snapshot) == 0 {
		b.WriteString("No routing entries were captured.\n")
		return b.String()
	}
	b.WriteString("| Node | Destination | Next hop | Status | Many-to-one |\n|---|---|---|---|---|\n")
	for _, row := range snapshot {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %v |\n",
			row.NodeID, row.Destination, row.NextHop, row.Status, row.ManyToOne)
	}

	return b.String()
}

// RenderHTML converts a Markdown document (typically from
// BuildMarkdown) into a standalone HTML page.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown to html: %w", err)
	}

	html := fmt.Sprintf(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Simulation run report</title></head>
<body style="font-family: sans-serif; font-size: 14px; line-height: 1.5;">
%s
</body></html>`, buf.String())

	return html, nil
}
