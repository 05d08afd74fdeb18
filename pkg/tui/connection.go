/*
 *   Copyright (c) 2021 Anton Brekhov
 *   All rights reserved.
 */
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ConnectionModel represents the connecting screen
type ConnectionModel struct {
	spinner spinner.Model
	url     string
	status  string
	width   int
	height  int
}

// NewConnectionModel creates a new connecting screen model
func NewConnectionModel(url string) *ConnectionModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &ConnectionModel{
		url:     url,
		spinner: s,
		status:  "Connecting...",
		width:   80,
		height:  24,
	}
}

// Init initializes the connection model
func (m *ConnectionModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages for the connecting screen
func (m *ConnectionModel) Update(msg tea.Msg) (ConnectionModel, tea.Cmd) {
	switch msg := msg.(type) {
	case ConnectionStatusMsg:
		m.status = msg.Status
		return *m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return *m, cmd
	}

	return *m, nil
}

// View renders the connecting screen
func (m *ConnectionModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("RTC Bridge Monitor"))
	b.WriteString("\n\n")

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("7"))
	b.WriteString(infoStyle.Render(fmt.Sprintf("Bridge: %s", m.url)))
	b.WriteString("\n\n")

	statusStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(statusStyle.Render(m.status))
	b.WriteString("\n")

	return b.String()
}

// Messages

// ConnectionStatusMsg updates the connection status
type ConnectionStatusMsg struct {
	Status string
}

// Helper functions

var titleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("12")).
	MarginTop(1).
	MarginBottom(1)

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
