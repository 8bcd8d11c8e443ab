// Package ui renders pipeline progress in the terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"cabalrun/internal/buildpipeline"
)

type progressModel struct {
	title   string
	events  <-chan buildpipeline.Event
	spinner spinner.Model
	prog    progress.Model
	items   []unitItem
	index   map[string]int
	overall buildpipeline.Status
	width   int
	done    bool

	interrupt   func()
	interrupted bool
}

type unitItem struct {
	name   string
	status buildpipeline.Status
	phase  buildpipeline.Phase
	// finished counts completed phases.
	finished int
}

type eventMsg buildpipeline.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders one line per
// work unit and an overall progress bar. The model quits once events is
// closed.
//
// The terminal is in raw mode while the model runs, so ctrl+c arrives as
// a key press rather than a signal. The first ctrl+c or q calls interrupt
// and keeps rendering until the pipeline winds down; a second one quits
// the UI at once.
func NewProgressModel(title string, units []string, events <-chan buildpipeline.Event, interrupt func()) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]unitItem, 0, len(units))
	index := make(map[string]int, len(units))
	for i, name := range units {
		items = append(items, unitItem{name: name, status: buildpipeline.StatusQueued})
		index[name] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		width:   80,

		interrupt: interrupt,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(buildpipeline.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.interrupted || m.interrupt == nil {
				return m, tea.Quit
			}
			m.interrupted = true
			m.interrupt()
		}
		return m, nil
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		pm, cmd := m.prog.Update(msg)
		m.prog = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.title
	switch {
	case m.done && m.overall == buildpipeline.StatusError:
		header = "failed: " + header
	case m.done:
		header = "done: " + header
	case m.interrupted:
		header = fmt.Sprintf("%s stopping: %s", m.spinner.View(), header)
	default:
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 12
	nameWidth := max(m.width-statusWidth-4, 20)
	for _, item := range m.items {
		label := itemLabel(item)
		styled := styleStatus(item.status).Render(fmt.Sprintf("%12s", label))
		fmt.Fprintf(&b, "  %s %s\n", styled, truncate(item.name, nameWidth))
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(m.percent()))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev buildpipeline.Event) tea.Cmd {
	if ev.Unit == "" {
		m.overall = ev.Status
		return nil
	}
	idx, ok := m.index[ev.Unit]
	if !ok {
		return nil
	}
	item := &m.items[idx]
	item.status = ev.Status
	if ev.Phase != "" {
		item.phase = ev.Phase
		if ev.Status == buildpipeline.StatusDone {
			item.finished++
		}
	}
	return m.prog.SetPercent(m.percent())
}

// percent weighs every unit equally; a unit is complete once it is done,
// skipped or failed, and otherwise counts its finished phases.
func (m *progressModel) percent() float64 {
	if len(m.items) == 0 {
		return 0
	}
	phases := float64(len(buildpipeline.Phases()))
	total := 0.0
	for _, item := range m.items {
		switch item.status {
		case buildpipeline.StatusDone, buildpipeline.StatusSkipped, buildpipeline.StatusError:
			total++
		default:
			total += min(float64(item.finished)/phases, 1)
		}
	}
	return total / float64(len(m.items))
}

func itemLabel(item unitItem) string {
	switch item.status {
	case buildpipeline.StatusWorking:
		switch item.phase {
		case buildpipeline.PhaseConfigure:
			return "configuring"
		case buildpipeline.PhaseBuild:
			return "building"
		}
		return "working"
	}
	return string(item.status)
}

func styleStatus(status buildpipeline.Status) lipgloss.Style {
	switch status {
	case buildpipeline.StatusDone:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case buildpipeline.StatusError:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case buildpipeline.StatusWorking:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	case buildpipeline.StatusSkipped:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
