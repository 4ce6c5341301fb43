// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

// Package handshake implements the one-shot handshake a client sends
// when it connects to the daemon's data socket.
//
//	byte 0: mode      0x00 = send, otherwise a subscribe bitmask
//	                  (bit k set => field index k)
//	send only:
//	byte 1: length n  0..255
//	bytes 2..2+n:     payload, forwarded verbatim to the device
//
// A subscribe connection sends nothing further; from then on the daemon
// pushes "<field text>\n" for every completed field the mask selects,
// with no other framing.
//
// [Mask] is the 8-bit field set. [MaskFromInputs] builds one from the
// 1-based input numbers the command line clients take (input k selects
// field k-1). [ReadRequest] is the server-side decoder; [EncodeSubscribe]
// and [EncodeSend] are the client-side encoders.
package handshake
