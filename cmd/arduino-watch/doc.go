// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

// arduino-watch is a full-screen live view of selected arduinod inputs.
// It opens one subscription per input so every line can be attributed
// to its field, then shows the latest value, how many readings have
// arrived and how long ago the last one was. A field briefly lights up
// when a new reading lands.
package main
