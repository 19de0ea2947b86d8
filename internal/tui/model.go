package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nao1215/localizer/internal/log"
	"github.com/nao1215/localizer/internal/model"
)

// maxLines bounds the log history kept by the view.
const maxLines = 1000

// ProgressMsg reports a file handled by the walker.
type ProgressMsg model.Progress

// DoneMsg reports that every run has finished.
type DoneMsg struct {
	Reports []*model.RunReport
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	debugStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// Model is the bubbletea model of the interactive view. It owns no
// localization state: everything it shows arrives as messages.
type Model struct {
	source string
	output string
	cancel context.CancelFunc

	lines      []LogMsg
	filesDone  int
	current    string
	rewritten  int
	cancelling bool
	done       bool
	reports    []*model.RunReport

	width  int
	height int
}

// New creates the view for a run from source into output. cancel is
// called once when the user asks to stop.
func New(source, output string, cancel context.CancelFunc) Model {
	return Model{
		source: source,
		output: output,
		cancel: cancel,
		height: 24,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case LogMsg:
		m.lines = append(m.lines, msg)
		if len(m.lines) > maxLines {
			m.lines = m.lines[len(m.lines)-maxLines:]
		}

	case ProgressMsg:
		m.filesDone = msg.FilesDone
		m.current = msg.Path
		if msg.Rewritten {
			m.rewritten++
		}

	case DoneMsg:
		m.done = true
		m.reports = msg.Reports
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.requestCancel()
		return m, tea.Quit
	case "c", "esc":
		if !m.done {
			m.requestCancel()
		}
	case "q":
		if m.done {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *Model) requestCancel() {
	if m.cancelling || m.cancel == nil {
		return
	}
	m.cancelling = true
	m.cancel()
}

// Done reports whether the run has finished.
func (m Model) Done() bool {
	return m.done
}

// Cancelling reports whether the user asked to stop.
func (m Model) Cancelling() bool {
	return m.cancelling
}

// View implements tea.Model.
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("localizer"))
	sb.WriteString("\n")
	sb.WriteString(labelStyle.Render("Source: ") + m.source + "\n")
	sb.WriteString(labelStyle.Render("Output: ") + m.output + "\n")
	sb.WriteString(labelStyle.Render("Files:  ") + fmt.Sprintf("%d processed, %d html rewritten", m.filesDone, m.rewritten))
	if m.current != "" && !m.done {
		sb.WriteString(labelStyle.Render("  (" + m.current + ")"))
	}
	sb.WriteString("\n\n")

	for _, line := range m.visibleLines() {
		sb.WriteString(renderLine(line, m.width))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render(m.statusLine()))
	return sb.String()
}

// visibleLines returns the log lines that fit under the header.
func (m Model) visibleLines() []LogMsg {
	// header (5) + blank + status line
	room := m.height - 7
	if room < 1 {
		room = 1
	}
	if len(m.lines) <= room {
		return m.lines
	}
	return m.lines[len(m.lines)-room:]
}

func (m Model) statusLine() string {
	switch {
	case m.done:
		return m.summary() + "  q: quit"
	case m.cancelling:
		return "cancelling...  ctrl+c: quit"
	default:
		return "c/esc: cancel  ctrl+c: cancel and quit"
	}
}

func (m Model) summary() string {
	if len(m.reports) == 0 {
		return "done"
	}
	parts := make([]string, 0, len(m.reports))
	for _, r := range m.reports {
		parts = append(parts, string(r.Status))
	}
	return "done: " + strings.Join(parts, ", ")
}

func renderLine(line LogMsg, width int) string {
	level := fmt.Sprintf("%-7s", log.LevelName(line.Level))
	text := line.Text
	if width > 20 && len(text) > width-20 {
		text = text[:width-23] + "..."
	}
	return levelStyle(line.Level).Render(level) + " " + line.Time.Format("15:04:05") + " " + text
}

func levelStyle(level slog.Level) lipgloss.Style {
	switch {
	case level >= slog.LevelError:
		return errorStyle
	case level >= slog.LevelWarn:
		return warnStyle
	case level >= log.LevelSuccess:
		return successStyle
	case level >= slog.LevelInfo:
		return infoStyle
	default:
		return debugStyle
	}
}
