package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	bar "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/stager/progress"
	"github.com/pithecene-io/stager/stage"
)

// PhaseMsg reports that the pipeline entered a new step.
type PhaseMsg stage.Phase

// StatusMsg carries a tracker update.
type StatusMsg progress.Status

// DoneMsg ends the view with the outcome of the run.
type DoneMsg struct {
	Result *stage.Result
	Err    error
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "cancel"),
	),
}

var phaseLabels = map[stage.Phase]string{
	stage.PhaseDisk:     "checking disk space",
	stage.PhaseArchive:  "compressing",
	stage.PhaseSplit:    "splitting",
	stage.PhaseManifest: "writing manifest",
}

// StageModel is a Bubble Tea model showing one staging run.
type StageModel struct {
	source   string
	phase    stage.Phase
	status   progress.Status
	bar      bar.Model
	cancel   context.CancelFunc
	result   *stage.Result
	err      error
	done     bool
	quitting bool
}

// NewStageModel creates a model for staging source. cancel is called when
// the user quits before the run finishes.
func NewStageModel(source string, cancel context.CancelFunc) StageModel {
	return StageModel{
		source: source,
		bar:    bar.New(bar.WithDefaultGradient(), bar.WithWidth(40)),
		cancel: cancel,
	}
}

// Init implements tea.Model.
func (m StageModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StageModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(msg.Width-8, 60))
		return m, nil

	case PhaseMsg:
		m.phase = stage.Phase(msg)
		return m, nil

	case StatusMsg:
		m.status = progress.Status(msg)
		return m, nil

	case DoneMsg:
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		return m, tea.Quit

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StageModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Staging " + m.source))
	b.WriteString("\n")

	if m.done {
		if m.err != nil {
			b.WriteString(errStyle.Render("Error: " + m.err.Error()))
			b.WriteString("\n")
		}
		b.WriteString(RenderSummary(m.result))
		b.WriteString("\n")
		return b.String()
	}

	phase := phaseLabels[m.phase]
	if phase == "" {
		phase = "starting"
	}
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Step:"), valueStyle.Render(phase)))

	if m.phase == stage.PhaseSplit || m.status.Total > 0 {
		b.WriteString(m.bar.ViewAs(min(m.status.Percent/100, 1)))
		b.WriteString("\n")
		b.WriteString(valueStyle.Render(m.status.String()))
		b.WriteString("\n")
	}

	if m.quitting {
		b.WriteString(warnStyle.Render("Cancelling after the current step..."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(helpStyle.Render("Press q or Ctrl+C to cancel"))
	return b.String()
}

// StageFunc runs a staging operation, reporting to the view through send.
type StageFunc func(ctx context.Context, send func(tea.Msg)) (*stage.Result, error)

// Run shows the staging view on out while fn runs. Quitting the view
// cancels the context passed to fn; Run still waits for fn to return.
func Run(ctx context.Context, out io.Writer, source string, fn StageFunc) (*stage.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewStageModel(source, cancel), tea.WithOutput(out))

	type outcome struct {
		res *stage.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := fn(ctx, p.Send)
		p.Send(DoneMsg{Result: res, Err: err})
		done <- outcome{res, err}
	}()

	_, uiErr := p.Run()
	if uiErr != nil {
		cancel()
	}
	o := <-done
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return o.res, errors.Join(o.err, fmt.Errorf("progress view: %w", uiErr))
	}
	return o.res, o.err
}
