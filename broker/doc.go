// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

// Package broker relays an Arduino's serial output to local socket
// clients.
//
// The device emits rows of up to eight fields. Fields end with the
// field separator ('\r' by default) and rows with the row separator
// ('\n'). Clients connect to a unix socket and send one handshake byte:
// a non-zero byte is a subscription bitmask (bit k selects field k),
// and a zero byte introduces a send request (one length byte, then that
// many payload bytes which are written to the device verbatim).
//
// A Broker runs one main loop that owns the Parser and the Registry.
// Handshakes happen on per-connection goroutines started by the
// Acceptor; completed subscriptions wait in the PendingQueue until the
// parser is between rows, so a subscriber's first line is always field
// data from the start of a row. The Broadcaster writes each completed
// field to that field's subscribers without blocking and drops any
// subscriber whose write fails.
package broker
