// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for the broker, device
// and client packages.
//
// [SocketDir] and [SocketPath] place Unix domain sockets and FIFOs under
// a short-named /tmp directory; sun_path is limited to 108 bytes.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so that tests waiting on a subscriber push or a broker state
// change never hang forever.
//
// All helpers call t.Fatalf on failure.
package testutil
