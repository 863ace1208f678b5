// Package tui provides the terminal progress view for a rounds query.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/openrounds/rounds/internal/orchestrator"
	"github.com/openrounds/rounds/pkg/models"
)

// Specialist display states.
const (
	statusQueued  = "queued"
	statusRunning = "running"
	statusDone    = "done"
	statusFailed  = "failed"
)

// EventMsg wraps one orchestrator event for the TUI.
type EventMsg struct {
	Event orchestrator.Event
}

// ErrMsg signals that the query failed.
type ErrMsg struct {
	Err error
}

// specialistRow tracks one specialist's display state.
type specialistRow struct {
	specialist models.SpecialistType
	status     string
	message    string
}

var (
	stageStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")) // Blue

	queuedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")) // Gray

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // Orange

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")) // Green

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // Red

	narrativeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
)

// App is the bubbletea model for one live query.
type App struct {
	query       string
	stage       string
	stageNote   string
	specialists []specialistRow
	narrative   strings.Builder
	spinner     spinner.Model
	width       int
	done        bool
	err         error
	quitting    bool
}

// New creates a progress model for the given query.
func New(query string) *App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = runningStyle
	return &App{
		query:   query,
		spinner: s,
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.spinner.Tick
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = true
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case EventMsg:
		a.handleEvent(msg.Event)
		if a.done {
			return a, tea.Quit
		}

	case ErrMsg:
		a.err = msg.Err
		a.done = true
		return a, tea.Quit
	}

	return a, nil
}

// handleEvent folds one orchestrator event into display state.
func (a *App) handleEvent(event orchestrator.Event) {
	switch event.Type {
	case orchestrator.EventStageStarted:
		a.stage = event.Stage
		a.stageNote = ""

	case orchestrator.EventStageCompleted:
		a.stageNote = event.Message

	case orchestrator.EventSpecialistQueued:
		a.setSpecialist(event.Specialist, statusQueued, event.Message)

	case orchestrator.EventSpecialistStarted:
		a.setSpecialist(event.Specialist, statusRunning, "")

	case orchestrator.EventSpecialistCompleted:
		a.setSpecialist(event.Specialist, statusDone, "")

	case orchestrator.EventSpecialistFailed:
		a.setSpecialist(event.Specialist, statusFailed, event.Message)

	case orchestrator.EventNarrativeChunk:
		a.narrative.WriteString(event.Chunk)

	case orchestrator.EventQueryDone:
		a.done = true
	}
}

// setSpecialist updates one row, appending a new one on first sight.
func (a *App) setSpecialist(specialist models.SpecialistType, status, message string) {
	for i := range a.specialists {
		if a.specialists[i].specialist == specialist {
			a.specialists[i].status = status
			if message != "" {
				a.specialists[i].message = message
			}
			return
		}
	}
	a.specialists = append(a.specialists, specialistRow{
		specialist: specialist,
		status:     status,
		message:    message,
	})
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(stageStyle.Render(a.query))
	b.WriteString("\n\n")

	if a.stage != "" && !a.done {
		b.WriteString(fmt.Sprintf("%s %s", a.spinner.View(), stageStyle.Render(a.stage)))
		if a.stageNote != "" {
			b.WriteString(queuedStyle.Render("  " + a.stageNote))
		}
		b.WriteString("\n")
	}

	for _, row := range a.specialists {
		line := fmt.Sprintf("  %-22s %s", row.specialist, row.status)
		if row.message != "" && row.status != statusQueued {
			line += "  " + row.message
		}
		switch row.status {
		case statusRunning:
			b.WriteString(runningStyle.Render(line))
		case statusDone:
			b.WriteString(doneStyle.Render(line))
		case statusFailed:
			b.WriteString(failedStyle.Render(line))
		default:
			b.WriteString(queuedStyle.Render(line))
		}
		b.WriteString("\n")
	}

	if a.narrative.Len() > 0 {
		b.WriteString("\n")
		b.WriteString(narrativeStyle.Render(a.narrative.String()))
		b.WriteString("\n")
	}

	if a.err != nil {
		b.WriteString("\n")
		b.WriteString(failedStyle.Render(fmt.Sprintf("query failed: %v", a.err)))
		b.WriteString("\n")
	}

	return b.String()
}

// Err returns the failure recorded from an ErrMsg, if any.
func (a *App) Err() error {
	return a.err
}

// Narrative returns the streamed answer accumulated so far.
func (a *App) Narrative() string {
	return a.narrative.String()
}

// NewProgram creates a bubbletea program for the model; callers feed it
// orchestrator events via Send.
func NewProgram(query string) (*tea.Program, *App) {
	app := New(query)
	p := tea.NewProgram(app)
	return p, app
}

// Forward pumps orchestrator events into a running program until the channel
// closes. Call it from its own goroutine.
func Forward(p *tea.Program, events <-chan orchestrator.Event) {
	for event := range events {
		p.Send(EventMsg{Event: event})
	}
}
