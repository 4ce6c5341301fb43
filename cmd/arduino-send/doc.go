// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

// arduino-send writes a payload to the board through arduinod.
//
//	arduino-send -n "LED 1"
//
// The broker forwards the bytes unchanged and closes the connection;
// there is no reply from the board on this path.
package main
