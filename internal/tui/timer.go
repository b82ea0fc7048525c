// Package tui renders the interactive stopwatch in the terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/and161185/speedcube/internal/authsession"
	"github.com/and161185/speedcube/internal/stats"
	"github.com/and161185/speedcube/internal/timer"
)

const recentShown = 12

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	scrambleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Padding(0, 1)
	idleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")).Padding(1, 2)
	runningStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")).Padding(1, 2)
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(timer.DefaultTick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// TimerModel is the Bubble Tea model of the stopwatch screen. It keeps no
// copy of engine state between events: every key press acts on the engine
// directly and the view is re-read from a fresh snapshot.
type TimerModel struct {
	engine  *timer.Engine
	session authsession.Reader
	snap    timer.Snapshot
	err     string
	keys    KeyMap
	help    help.Model
}

// NewTimerModel binds the screen to an engine and the auth session.
func NewTimerModel(e *timer.Engine, session authsession.Reader) TimerModel {
	return TimerModel{
		engine:  e,
		session: session,
		snap:    e.Snapshot(),
		keys:    DefaultKeyMap(),
		help:    help.New(),
	}
}

// Init implements tea.Model.
func (m TimerModel) Init() tea.Cmd { return tick() }

// Update implements tea.Model.
func (m TimerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Toggle):
			m.err = ""
			if _, _, err := m.engine.Toggle(); err != nil && !errors.Is(err, timer.ErrClosed) {
				m.err = err.Error()
			}
		case key.Matches(msg, m.keys.Reset):
			m.err = ""
			m.engine.Reset()
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		}
	case tickMsg:
		m.snap = m.engine.Snapshot()
		return m, tick()
	}
	m.snap = m.engine.Snapshot()
	return m, nil
}

// View implements tea.Model.
func (m TimerModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Stopwatch Timer"))
	if s, ok := m.session.Current(); ok {
		b.WriteString(helpStyle.Render("  signed in as " + s.Claims.Subject))
	} else {
		b.WriteString(helpStyle.Render("  guest (solves are not saved)"))
	}
	b.WriteString("\n\n")

	scr := m.snap.Scramble
	if scr == "" {
		scr = "Loading scramble..."
	}
	b.WriteString(scrambleStyle.Render(scr))
	b.WriteString("\n")

	clock := stats.FormatMillis(m.snap.Elapsed.Milliseconds())
	if m.snap.Running {
		b.WriteString(runningStyle.Render(clock))
	} else {
		b.WriteString(idleStyle.Render(clock))
	}
	b.WriteString("\n")

	b.WriteString(panelStyle.Render(sessionPanel(m.snap)))
	b.WriteString("\n")
	if m.err != "" {
		b.WriteString(errStyle.Render(m.err))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

func sessionPanel(s timer.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Solves: %d\n", s.Stats.Count)
	fmt.Fprintf(&b, "Best:   %s\n", stats.FormatOptional(s.Stats.Best))
	fmt.Fprintf(&b, "Worst:  %s\n", stats.FormatOptional(s.Stats.Worst))
	fmt.Fprintf(&b, "Ao5:    %s", stats.FormatOptional(s.Stats.Ao5))

	shown := 0
	for i := len(s.History) - 1; i >= 0 && shown < recentShown; i-- {
		if shown == 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "\n%3d. %s", i+1, stats.FormatMillis(s.History[i].TimeMs))
		shown++
	}
	return b.String()
}

// RunTimer runs the stopwatch screen until the user quits or ctx is done.
func RunTimer(ctx context.Context, e *timer.Engine, session authsession.Reader) error {
	p := tea.NewProgram(NewTimerModel(e, session), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
