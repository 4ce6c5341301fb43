// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/arduino-utils/arduino/broker"
)

// Theme defines the color palette shared by the arduino terminal
// tools. All colors use lipgloss ANSI 256-color codes for broad
// terminal compatibility.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Per-input accent, indexed by field (input 1 is index 0).
	FieldColors [8]lipgloss.Color

	// Broker lifecycle colors.
	StateStarting lipgloss.Color
	StateSyncing  lipgloss.Color
	StateRunning  lipgloss.Color
	StateStopping lipgloss.Color
	StateStopped  lipgloss.Color

	// Failure counters that are non-zero.
	Warning lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	// Background tint for a field that just received a reading.
	HotAccent lipgloss.Color
}

// FieldColor returns the accent for a field index (0-7). Out-of-range
// values return NormalText.
func (theme Theme) FieldColor(field int) lipgloss.Color {
	if field < 0 || field >= len(theme.FieldColors) {
		return theme.NormalText
	}
	return theme.FieldColors[field]
}

// StateColor returns the color for a broker state name as reported in
// broker.Stats. Unknown names return FaintText.
func (theme Theme) StateColor(state string) lipgloss.Color {
	switch state {
	case broker.Starting.String():
		return theme.StateStarting
	case broker.Syncing.String():
		return theme.StateSyncing
	case broker.Running.String():
		return theme.StateRunning
	case broker.Stopping.String():
		return theme.StateStopping
	case broker.Stopped.String():
		return theme.StateStopped
	default:
		return theme.FaintText
	}
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	FieldColors: [8]lipgloss.Color{
		lipgloss.Color("75"),  // blue
		lipgloss.Color("114"), // green
		lipgloss.Color("220"), // amber
		lipgloss.Color("141"), // light purple
		lipgloss.Color("209"), // salmon
		lipgloss.Color("80"),  // teal
		lipgloss.Color("176"), // pink
		lipgloss.Color("186"), // khaki
	},

	StateStarting: lipgloss.Color("245"), // gray
	StateSyncing:  lipgloss.Color("220"), // amber
	StateRunning:  lipgloss.Color("114"), // green
	StateStopping: lipgloss.Color("208"), // orange
	StateStopped:  lipgloss.Color("196"), // red

	Warning: lipgloss.Color("208"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	HotAccent: lipgloss.Color("58"), // dark amber background tint
}
