// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

// arduinod relays an Arduino's serial output to local clients over a
// unix socket.
//
// The board prints rows of up to eight fields: each field ends with a
// carriage return and each row with a newline. A client connects to
// the socket (default /tmp/arduino.sock) and writes one byte. A
// non-zero byte is a bitmask of the fields it wants; from the next row
// on, every selected field is pushed to it as a newline-terminated
// line. A zero byte is followed by a length byte and that many bytes,
// which arduinod writes to the board before closing the connection.
//
// Subscribers that stop reading are dropped rather than waited for: a
// slow client never delays the others.
//
// Optional extras: a CBOR status socket (--control-socket, used by
// arduino-status) and a Prometheus endpoint (--metrics-listen).
// Configuration may come from a YAML or JSONC file (--config or
// $ARDUINOD_CONFIG); flags override file values.
//
// arduinod runs in the foreground. Use a process supervisor to run it
// in the background.
package main
