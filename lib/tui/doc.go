// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui holds the pieces shared by the arduino terminal tools:
// the color theme and the heat tracker that tints a field for a moment
// after a new reading arrives. Each tool owns its own bubbletea model
// and layout.
package tui
