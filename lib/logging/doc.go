// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the slog.Logger shared by arduinod and the
// client commands.
package logging
