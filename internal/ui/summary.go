package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/steveyegge/issuetag/internal/ingest"
	"github.com/steveyegge/issuetag/internal/tags"
)

var labelStyle = lipgloss.NewStyle().Width(14)

// RenderRunSummary formats the outcome of an ingestion run. failed is the
// run error, if any.
func RenderRunSummary(stats *ingest.Stats, failed error) string {
	var sb strings.Builder

	switch {
	case failed != nil:
		fmt.Fprintf(&sb, "%s %s\n", RenderFailIcon(), RenderFail("Run failed: "+failed.Error()))
	case stats.Issues == 0:
		fmt.Fprintf(&sb, "%s %s\n", RenderWarnIcon(), RenderWarn("No issues matched the query"))
	default:
		fmt.Fprintf(&sb, "%s Ingested %d issues into %s\n", RenderPassIcon(), stats.Issues, RenderAccent(stats.Backend))
	}

	sb.WriteString(RenderSeparator())
	sb.WriteString("\n")
	row := func(label string, value any) {
		fmt.Fprintf(&sb, "%s%v\n", labelStyle.Render(RenderMuted(label)), value)
	}
	row("Batches", stats.Batches)
	row("Issues", stats.Issues)
	row("Comments", stats.Comments)
	row("Attachments", stats.Attachments)
	if stats.Duplicates > 0 {
		row("Duplicates", RenderWarn(fmt.Sprintf("%d skipped", stats.Duplicates)))
	}
	row("Duration", stats.Duration.Round(time.Millisecond))
	if stats.Committed {
		row("Committed", RenderPass("yes"))
	}

	if len(stats.Tags) > 0 {
		sb.WriteString("\n")
		sb.WriteString(RenderTagCounts(stats.Tags))
	}
	return sb.String()
}

// RenderTagCounts formats per-tag counts from a classification pass.
func RenderTagCounts(counts []tags.TagCount) string {
	var sb strings.Builder
	sb.WriteString(RenderCategory("Tags"))
	sb.WriteString("\n")
	width := 0
	for _, c := range counts {
		width = max(width, len(c.Tag))
	}
	for _, c := range counts {
		rows := "unknown"
		if c.Rows >= 0 {
			rows = fmt.Sprintf("%d", c.Rows)
		}
		fmt.Fprintf(&sb, "  %-*s  %s\n", width, c.Tag, rows)
	}
	return sb.String()
}

// RenderRules lists a rule set in order with its patterns.
func RenderRules(rs *tags.RuleSet) string {
	if rs.Len() == 0 {
		return RenderMuted("No tag rules loaded") + "\n"
	}
	var sb strings.Builder
	for _, r := range rs.Rules() {
		sb.WriteString(RenderAccent(r.Name))
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "  include: %s\n", patternList(r.Include))
		if len(r.Exclude) > 0 {
			fmt.Fprintf(&sb, "  exclude: %s\n", patternList(r.Exclude))
		}
	}
	return sb.String()
}

func patternList(patterns []string) string {
	if len(patterns) == 0 {
		return RenderMuted("(none, matches nothing)")
	}
	quoted := make([]string, len(patterns))
	for i, p := range patterns {
		quoted[i] = fmt.Sprintf("%q", p)
	}
	return strings.Join(quoted, ", ")
}
