/*
 *   Copyright (c) 2021 Anton Brekhov
 *   All rights reserved.
 */
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/abrekhov/rtcbridge/pkg/bridge"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// logSize is how many events the monitor keeps.
const logSize = 12

// MonitorModel represents the live monitoring screen
type MonitorModel struct {
	startTime       time.Time
	url             string
	progress        progress.Model
	peerConnections map[string]string
	dataChannels    map[string]string
	log             []string
	messages        int64
	bytes           int64
	events          int64
	width           int
	height          int
}

// NewMonitorModel creates a new monitoring screen model
func NewMonitorModel(url string) *MonitorModel {
	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40

	return &MonitorModel{
		url:             url,
		progress:        p,
		startTime:       time.Now(),
		peerConnections: make(map[string]string),
		dataChannels:    make(map[string]string),
		width:           80,
		height:          24,
	}
}

// Update handles messages for the monitoring screen
func (m *MonitorModel) Update(msg tea.Msg) (MonitorModel, tea.Cmd) {
	switch msg := msg.(type) {
	case EventMsg:
		m.apply(msg.Event)
		return *m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.width > 20 {
			m.progress.Width = min(m.width-20, 60)
		}
		return *m, nil
	}

	return *m, nil
}

func (m *MonitorModel) apply(ev bridge.Event) {
	m.events++
	tag, _ := ev.Data["valueTag"].(string)

	switch ev.Name {
	case bridge.EventSignalingStateChanged, bridge.EventICEConnectionChanged,
		bridge.EventICEGatheringChanged, bridge.EventShouldNegotiate:
		if _, ok := m.peerConnections[tag]; !ok {
			m.peerConnections[tag] = "new"
		}
	case bridge.EventConnectionStateChanged:
		state, _ := ev.Data["connectionState"].(string)
		if state == "closed" {
			delete(m.peerConnections, tag)
		} else {
			m.peerConnections[tag] = state
		}
	case bridge.EventAddedDataChannel:
		if dc, ok := ev.Data["dataChannel"].(map[string]interface{}); ok {
			dcTag, _ := dc["valueTag"].(string)
			state, _ := dc["readyState"].(string)
			m.dataChannels[dcTag] = state
		}
	case bridge.EventDataChannelState:
		state, _ := ev.Data["readyState"].(string)
		if state == "closed" {
			delete(m.dataChannels, tag)
		} else {
			m.dataChannels[tag] = state
		}
	case bridge.EventDataChannelMessage:
		m.messages++
		data, _ := ev.Data["data"].(string)
		size := int64(len(data))
		if binary, _ := ev.Data["binary"].(bool); binary {
			size = size * 3 / 4
		}
		m.bytes += size
	}

	line := fmt.Sprintf("%s %s %s", time.Now().Format("15:04:05"), ev.Name, tag)
	m.log = append(m.log, line)
	if len(m.log) > logSize {
		m.log = m.log[len(m.log)-logSize:]
	}
}

// connected counts peer connections in the connected state.
func (m *MonitorModel) connected() int {
	n := 0
	for _, state := range m.peerConnections {
		if state == "connected" {
			n++
		}
	}
	return n
}

// View renders the monitoring screen
func (m *MonitorModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("RTC Bridge Monitor"))
	b.WriteString("\n\n")

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("7"))
	b.WriteString(infoStyle.Render(fmt.Sprintf("Bridge: %s", m.url)))
	b.WriteString("\n\n")

	var percent float64
	if len(m.peerConnections) > 0 {
		percent = float64(m.connected()) / float64(len(m.peerConnections))
	}
	b.WriteString(m.progress.ViewAs(percent))
	b.WriteString("\n\n")

	statsStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("14"))
	b.WriteString(statsStyle.Render(fmt.Sprintf("Peer connections: %d (%d connected)",
		len(m.peerConnections), m.connected())))
	b.WriteString("\n")
	b.WriteString(statsStyle.Render(fmt.Sprintf("Data channels: %d", len(m.dataChannels))))
	b.WriteString("\n")
	b.WriteString(statsStyle.Render(fmt.Sprintf("Messages received: %d (%s)", m.messages, formatBytes(m.bytes))))
	b.WriteString("\n")
	b.WriteString(statsStyle.Render(fmt.Sprintf("Events: %d  Elapsed: %s",
		m.events, formatDuration(time.Since(m.startTime)))))
	b.WriteString("\n\n")

	if len(m.peerConnections) > 0 {
		tags := make([]string, 0, len(m.peerConnections))
		for tag := range m.peerConnections {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		for _, tag := range tags {
			b.WriteString(infoStyle.Render(fmt.Sprintf("  %s  %s", tag, m.peerConnections[tag])))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	logStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8"))
	for _, line := range m.log {
		b.WriteString(logStyle.Render(line))
		b.WriteString("\n")
	}

	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Italic(true)
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("Press q to quit."))

	return b.String()
}

// Helper functions

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
