// Package tui provides the Bubble Tea front end for playing a game,
// locally or over SSH. It owns one play session per terminal and
// re-renders the session's latest frame on a fixed tick; all game
// authority stays with the engine.
package tui

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/davidsulc/nightwatch-mmo/internal/game"
	"github.com/davidsulc/nightwatch-mmo/internal/session"
)

const refreshRate = 20 // re-renders per second

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	boardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	aliveStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	deadStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// tickMsg triggers a re-render from the session's cached frame.
type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second/refreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// actionResultMsg carries the outcome of a move or attack.
type actionResultMsg struct {
	err error
}

// sessionClosedMsg arrives when the play session terminates.
type sessionClosedMsg struct {
	err error
}

// Model is the Bubble Tea model for one play session.
type Model struct {
	session *session.Session
	keys    KeyMap
	help    help.Model

	picture string
	player  session.PlayerState
	notice  string
	closed  bool
	err     error
}

// NewModel wraps a started session in a play screen.
func NewModel(s *session.Session) Model {
	return Model{
		session: s,
		keys:    DefaultKeyMap(),
		help:    help.New(),
	}
}

// Init starts the render tick and the session watcher.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), watchSession(m.session))
}

func watchSession(s *session.Session) tea.Cmd {
	return func() tea.Msg {
		<-s.Done()
		return sessionClosedMsg{err: s.Err()}
	}
}

// Update handles input, ticks and action outcomes.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.refresh()
		return m, tickCmd()

	case actionResultMsg:
		m.notice = noticeFor(msg.err)
		return m, nil

	case sessionClosedMsg:
		m.closed = true
		m.err = msg.err
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.closed {
		return m, tea.Quit
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.session.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		return m, m.moveCmd(session.Up)
	case key.Matches(msg, m.keys.Down):
		return m, m.moveCmd(session.Down)
	case key.Matches(msg, m.keys.Left):
		return m, m.moveCmd(session.Left)
	case key.Matches(msg, m.keys.Right):
		return m, m.moveCmd(session.Right)
	case key.Matches(msg, m.keys.Attack):
		return m, m.attackCmd()
	}

	return m, nil
}

// moveCmd issues the move off the UI loop; the engine is authoritative
// and may reject it.
func (m Model) moveCmd(dir session.Direction) tea.Cmd {
	s := m.session
	return func() tea.Msg {
		return actionResultMsg{err: s.Move(dir)}
	}
}

func (m Model) attackCmd() tea.Cmd {
	s := m.session
	return func() tea.Msg {
		return actionResultMsg{err: s.Attack()}
	}
}

// refresh pulls the latest cached picture and player state.
func (m *Model) refresh() {
	if pic, err := m.session.Render(); err == nil {
		m.picture = pic
	}
	if state, err := m.session.PlayerState(); err == nil {
		m.player = state
	}
}

// noticeFor maps action outcomes to the one-line status message.
func noticeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, game.ErrUnwalkable):
		return "blocked"
	case errors.Is(err, game.ErrUnreachable):
		return "too far"
	case errors.Is(err, game.ErrDeadPlayer):
		return "you are dead — waiting to respawn"
	default:
		return err.Error()
	}
}

// View renders the board, a status line and the help footer.
func (m Model) View() string {
	if m.closed {
		if m.err != nil {
			return fmt.Sprintf("disconnected: %v\n", m.err)
		}
		return ""
	}

	title := titleStyle.Render(fmt.Sprintf("nightwatch — %s as %s", m.session.Game(), m.session.Player()))

	status := aliveStyle.Render("alive")
	if m.player.Status == game.StatusDead {
		status = deadStyle.Render("dead")
	}
	statusLine := fmt.Sprintf("%s at (%d,%d)", status, m.player.Pos.Row, m.player.Pos.Col)
	if m.notice != "" {
		statusLine += "  " + noticeStyle.Render(m.notice)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		boardStyle.Render(m.picture),
		statusLine,
		m.help.View(m.keys),
	)
}

// Run starts a Bubble Tea program for the session in the local
// terminal.
func Run(s *session.Session) error {
	p := tea.NewProgram(NewModel(s), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
