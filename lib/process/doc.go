// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the entrypoint error handler shared by
// arduinod and the client binaries. It is the one place outside the
// CLIs' own usage text that writes to stderr without the structured
// logger, because the logger may not exist yet when main fails.
package process
