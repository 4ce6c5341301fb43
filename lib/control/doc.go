// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

// Package control implements arduinod's status socket: a CBOR
// request/response protocol on a unix socket separate from the data
// socket, so the one-byte data handshake stays untouched.
//
// Each connection carries one request, a CBOR map whose "action" key
// selects a handler registered with [Server.Handle], and one
// [Response]. arduinod registers [ActionStatus], which returns the
// broker's statistics; arduino-status is the matching client.
package control
