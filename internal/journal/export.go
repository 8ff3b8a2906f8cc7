// ABOUTME: Renders a cached monthly report as Markdown or HTML
// ABOUTME: HTML goes through goldmark so both formats share one source

package journal

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
)

var markdown = goldmark.New()

// ExportMarkdown renders the cached report for month.
func (s *Store) ExportMarkdown(month string) (string, error) {
	r, err := s.Report(month)
	if err != nil {
		return "", err
	}
	return RenderMarkdown(r), nil
}

// ExportHTML renders the cached report for month as an HTML fragment.
func (s *Store) ExportHTML(month string) (string, error) {
	md, err := s.ExportMarkdown(month)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return buf.String(), nil
}

// RenderMarkdown formats a report.
func RenderMarkdown(r MonthlyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Monthly report %s\n\n", r.Month)

	b.WriteString("## Mood trend\n\n")
	if len(r.MoodTrend) == 0 {
		b.WriteString("_No check-ins this month._\n\n")
	} else {
		moods := make([]string, len(r.MoodTrend))
		for i, m := range r.MoodTrend {
			moods[i] = strconv.Itoa(m)
		}
		b.WriteString(strings.Join(moods, " → "))
		b.WriteString("\n\n")
	}

	writeList(&b, "Highlights", r.Highlights)
	writeList(&b, "Top values", r.TopValues)
	writeList(&b, "Top strengths", r.TopStrengths)
	writeList(&b, "Experiments", r.ExperimentsSummary)

	fmt.Fprintf(&b, "## Gifts unlocked\n\n%d\n", r.GiftUnlocked)
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}
