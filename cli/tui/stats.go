package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/stager/sizefmt"
	"github.com/pithecene-io/stager/stage"
)

// RenderSummary renders the outcome of a staging run as a row of stat boxes.
func RenderSummary(res *stage.Result) string {
	if res == nil {
		return ""
	}

	var b strings.Builder
	heading := lipgloss.NewStyle().Bold(true).Foreground(outcomeColor(res.Outcome))
	b.WriteString(heading.Render(strings.ToUpper(string(res.Outcome))))
	b.WriteString("\n\n")

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		statBox("Parts", fmt.Sprintf("%d", len(res.Parts)), accent),
		statBox("Archive", sizefmt.Size(res.Archive.Size), accent),
		statBox("Source", sizefmt.Size(res.Archive.SourceSize), muted),
		statBox("Disk used", fmt.Sprintf("%.2f%%", res.Disk.UsedPercent), verdictColor(res.Disk.Verdict)),
	))

	if res.ManifestPath != "" {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("Manifest:") + " " + valueStyle.Render(res.ManifestPath))
	}
	return b.String()
}

func statBox(label, value string, color lipgloss.TerminalColor) string {
	return boxStyle.BorderForeground(color).Render(lipgloss.JoinVertical(lipgloss.Center,
		boxValueStyle.Foreground(color).Render(value),
		boxLabelStyle.Render(label),
	))
}
