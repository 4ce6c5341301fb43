// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

// Package device opens the byte stream the daemon tails and exposes it as
// a [Device]: reads that wait a bounded time, arbitrary-length writes.
//
// Two drivers are available:
//
//   - "termios" opens the path with O_NONBLOCK, puts ttys into raw 8N1
//     mode at the configured baud rate, and waits for input with
//     poll(2). Non-tty paths (FIFOs, character devices without termios)
//     are used as-is, which is how the tests and `socat`-style
//     simulators feed the daemon.
//   - "serial" uses go.bug.st/serial and its read timeout.
//
// Both drivers return [ErrNoData] when the wait expires without input.
// That is the transient "nothing yet" condition: callers back off and
// retry. Every other error is fatal to the stream.
//
// [PacedWriter] serializes writes from concurrent send handshakes and
// optionally limits them to the UART's byte rate.
package device
