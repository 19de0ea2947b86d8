package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nao1215/localizer/internal/model"
)

// NewProgram creates the bubbletea program for m and connects handler to it.
func NewProgram(m Model, handler *LogHandler, opts ...tea.ProgramOption) *tea.Program {
	p := tea.NewProgram(m, opts...)
	handler.SetProgram(p)
	return p
}

// ProgressFunc returns a walker progress callback that forwards to p.
func ProgressFunc(p *tea.Program) func(model.Progress) {
	return progressTo(p)
}

func progressTo(s sender) func(model.Progress) {
	return func(progress model.Progress) {
		s.Send(ProgressMsg(progress))
	}
}
