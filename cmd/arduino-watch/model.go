// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/arduino-utils/arduino/lib/clock"
	"github.com/arduino-utils/arduino/lib/tui"
)

// readingMsg carries one line pushed for a field.
type readingMsg struct {
	field int
	value string
	at    time.Time
}

// disconnectedMsg reports that a field's subscription ended.
type disconnectedMsg struct {
	field int
	err   error
}

// heatTickMsg drives the highlight decay while any field is hot.
type heatTickMsg struct{}

// ageTickMsg refreshes the "updated N ago" column.
type ageTickMsg struct{}

const ageTickInterval = time.Second

// fieldState is what the monitor knows about one input.
type fieldState struct {
	value   string
	updates uint64
	updated time.Time
	err     error
}

type model struct {
	socketPath string
	fields     []int
	states     map[int]*fieldState
	readings   <-chan tea.Msg
	theme      tui.Theme
	heat       *tui.HeatTracker
	clock      clock.Clock

	tickRunning bool
	width       int
}

func newModel(socketPath string, fields []int, readings <-chan tea.Msg, theme tui.Theme, clock clock.Clock) model {
	states := make(map[int]*fieldState, len(fields))
	for _, field := range fields {
		states[field] = &fieldState{}
	}
	return model{
		socketPath: socketPath,
		fields:     fields,
		states:     states,
		readings:   readings,
		theme:      theme,
		heat:       tui.NewHeatTracker(),
		clock:      clock,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(listenForReading(m.readings), scheduleAgeTick())
}

// listenForReading blocks until the next message from the subscription
// goroutines.
func listenForReading(channel <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		message, ok := <-channel
		if !ok {
			return nil
		}
		return message
	}
}

func scheduleHeatTick() tea.Cmd {
	return tea.Tick(tui.HeatTickInterval, func(time.Time) tea.Msg { return heatTickMsg{} })
}

func scheduleAgeTick() tea.Cmd {
	return tea.Tick(ageTickInterval, func(time.Time) tea.Msg { return ageTickMsg{} })
}

func (m model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		switch message.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = message.Width

	case readingMsg:
		state, ok := m.states[message.field]
		if !ok {
			return m, listenForReading(m.readings)
		}
		state.value = message.value
		state.updates++
		state.updated = message.at
		m.heat.Ignite(message.field, message.at)
		commands := []tea.Cmd{listenForReading(m.readings)}
		if !m.tickRunning {
			m.tickRunning = true
			commands = append(commands, scheduleHeatTick())
		}
		return m, tea.Batch(commands...)

	case disconnectedMsg:
		if state, ok := m.states[message.field]; ok {
			state.err = message.err
		}
		if m.allDisconnected() {
			return m, tea.Quit
		}
		return m, listenForReading(m.readings)

	case heatTickMsg:
		if m.heat.HasHot(m.clock.Now()) {
			return m, scheduleHeatTick()
		}
		m.tickRunning = false

	case ageTickMsg:
		return m, scheduleAgeTick()
	}
	return m, nil
}

func (m model) allDisconnected() bool {
	for _, state := range m.states {
		if state.err == nil {
			return false
		}
	}
	return true
}

const (
	inputColumnWidth   = 10
	valueColumnWidth   = 24
	updatesColumnWidth = 10
)

func (m model) View() string {
	now := m.clock.Now()
	theme := m.theme
	header := lipgloss.NewStyle().Bold(true).Foreground(theme.HeaderForeground)
	faint := lipgloss.NewStyle().Foreground(theme.FaintText)

	var builder strings.Builder
	builder.WriteString(header.Render("arduino-watch") + "  " + faint.Render(m.socketPath) + "\n\n")
	builder.WriteString(faint.Render(
		pad("input", inputColumnWidth)+pad("value", valueColumnWidth)+pad("updates", updatesColumnWidth)+"age") + "\n")

	for _, field := range m.fields {
		state := m.states[field]
		input := lipgloss.NewStyle().Width(inputColumnWidth).Bold(true).Foreground(theme.FieldColor(field)).
			Render(fmt.Sprintf("%d", field+1))

		valueStyle := lipgloss.NewStyle().Width(valueColumnWidth).MaxWidth(valueColumnWidth).Foreground(theme.NormalText)
		if m.heat.Heat(field, now) > 0 {
			valueStyle = valueStyle.Background(theme.HotAccent)
		}
		value := state.value
		if state.updates == 0 {
			value = "-"
		}

		var status string
		switch {
		case state.err != nil:
			status = lipgloss.NewStyle().Foreground(theme.Warning).Render("disconnected: " + state.err.Error())
		case state.updates == 0:
			status = faint.Render("waiting")
		default:
			status = faint.Render(formatAge(now.Sub(state.updated)))
		}

		builder.WriteString(input)
		builder.WriteString(valueStyle.Render(value))
		builder.WriteString(lipgloss.NewStyle().Width(updatesColumnWidth).Render(fmt.Sprintf("%d", state.updates)))
		builder.WriteString(status)
		builder.WriteByte('\n')
	}

	builder.WriteString("\n" + lipgloss.NewStyle().Foreground(theme.HelpText).Render("q quit"))
	return builder.String()
}

func pad(text string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(text)
}

// formatAge renders a short, coarse duration: "now", "4s ago", "3m ago".
func formatAge(age time.Duration) string {
	switch {
	case age < time.Second:
		return "now"
	case age < time.Minute:
		return fmt.Sprintf("%ds ago", int(age/time.Second))
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age/time.Minute))
	default:
		return fmt.Sprintf("%dh ago", int(age/time.Hour))
	}
}
