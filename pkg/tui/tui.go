/*
 *   Copyright (c) 2021 Anton Brekhov
 *   All rights reserved.
 */
package tui

import (
	"fmt"

	"github.com/abrekhov/rtcbridge/pkg/bridge"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// State represents the current state of the TUI
type State int

const (
	StateConnecting State = iota
	StateMonitoring
	StateDisconnected
	StateError
)

// Model is the main Bubble Tea model
type Model struct {
	connection *ConnectionModel
	monitor    *MonitorModel
	events     <-chan bridge.Event
	err        error
	width      int
	height     int
	state      State
}

// NewModel creates a monitor for the bridge at url. Events are read from
// events once ConnectedMsg arrives.
func NewModel(url string) Model {
	return Model{
		state:      StateConnecting,
		connection: NewConnectionModel(url),
		monitor:    NewMonitorModel(url),
		width:      80,
		height:     24,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return m.connection.Init()
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.connection != nil {
			m.connection.width = msg.Width
			m.connection.height = msg.Height
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case ConnectedMsg:
		m.state = StateMonitoring
		m.events = msg.Events
		return m, WaitForEvent(m.events)

	case EventMsg:
		var cmd tea.Cmd
		*m.monitor, cmd = m.monitor.Update(msg)
		return m, tea.Batch(cmd, WaitForEvent(m.events))

	case DisconnectedMsg:
		m.state = StateDisconnected
		return m, tea.Quit

	case ErrorMsg:
		m.state = StateError
		m.err = msg.Err
		return m, tea.Quit
	}

	// Delegate to the appropriate state handler
	var cmd tea.Cmd
	switch m.state {
	case StateConnecting:
		if m.connection != nil {
			*m.connection, cmd = m.connection.Update(msg)
		}
	case StateMonitoring:
		if m.monitor != nil {
			*m.monitor, cmd = m.monitor.Update(msg)
		}
	case StateDisconnected, StateError:
		// Terminal states, no further updates needed
	}

	return m, cmd
}

// View renders the UI
func (m Model) View() string {
	switch m.state {
	case StateConnecting:
		if m.connection != nil {
			return m.connection.View()
		}
	case StateMonitoring:
		if m.monitor != nil {
			return m.monitor.View()
		}
	case StateDisconnected:
		return m.disconnectedView()
	case StateError:
		return m.errorView()
	}
	return ""
}

func (m Model) disconnectedView() string {
	s := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("11")).
		MarginTop(1).
		MarginBottom(1)

	return s.Render("Bridge connection closed")
}

func (m Model) errorView() string {
	s := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("9")).
		MarginTop(1).
		MarginBottom(1)

	return s.Render(fmt.Sprintf("✗ Error: %v", m.err))
}

// Messages

// ConnectedMsg is sent when the bridge connection is established
type ConnectedMsg struct {
	Events <-chan bridge.Event
}

// EventMsg carries one bridge event
type EventMsg struct {
	Event bridge.Event
}

// DisconnectedMsg is sent when the event stream ends
type DisconnectedMsg struct{}

// ErrorMsg is sent when an error occurs
type ErrorMsg struct {
	Err error
}

// WaitForEvent reads the next event from events.
func WaitForEvent(events <-chan bridge.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return DisconnectedMsg{}
		}
		return EventMsg{Event: ev}
	}
}
