// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

// Package client speaks arduinod's socket protocol from Go. The
// command-line clients are thin wrappers around it.
package client
