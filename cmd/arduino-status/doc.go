// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

// arduino-status queries the arduinod control socket and prints the
// broker's state and counters, either as a styled summary or, with
// --json, as the raw statistics object for scripts.
package main
