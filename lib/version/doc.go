// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for --version.
//
//	go build -ldflags "-X github.com/arduino-utils/arduino/lib/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/arduinod
package version
