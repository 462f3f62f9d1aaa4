// Package tui draws the interactive view of a staging run.
//
// The view is opt-in (--tui) and only the stage command uses it. It shows the
// same data as the rendered result, and logs are kept off the terminal while
// it runs.
package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/pithecene-io/stager/diskguard"
	"github.com/pithecene-io/stager/stage"
)

var (
	accent = lipgloss.AdaptiveColor{Light: "#6D28D9", Dark: "#A78BFA"}
	good   = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#34D399"}
	warn   = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	bad    = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	muted  = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	plain  = lipgloss.AdaptiveColor{Light: "#111827", Dark: "#F9FAFB"}
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1)
	labelStyle = lipgloss.NewStyle().Foreground(muted).Width(10)
	valueStyle = lipgloss.NewStyle().Foreground(plain)
	helpStyle  = lipgloss.NewStyle().Foreground(muted).MarginTop(1)
	warnStyle  = lipgloss.NewStyle().Foreground(warn)
	errStyle   = lipgloss.NewStyle().Foreground(bad)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2).
			Width(18).
			Align(lipgloss.Center)
	boxValueStyle = lipgloss.NewStyle().Bold(true).Align(lipgloss.Center)
	boxLabelStyle = lipgloss.NewStyle().Foreground(muted).Align(lipgloss.Center)
)

// outcomeColor groups outcomes into success, operator action needed
// (disk or cancellation) and failure.
func outcomeColor(o stage.Outcome) lipgloss.TerminalColor {
	switch o {
	case stage.OutcomeStaged:
		return good
	case stage.OutcomeLowSpace, stage.OutcomeDiskUnknown, stage.OutcomeCancelled:
		return warn
	case "":
		return plain
	default:
		return bad
	}
}

func verdictColor(v diskguard.Verdict) lipgloss.TerminalColor {
	switch v {
	case diskguard.VerdictOK:
		return good
	case diskguard.VerdictLowSpace:
		return bad
	default:
		return warn
	}
}

// DisableColor renders every style without ANSI colors.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}
