// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies socket errors. IsExpectedCloseError
// recognizes the errors a peer's ordinary disconnect produces (EOF,
// broken pipe, connection reset, closed listener) so callers can log
// them at debug instead of error. IsBackpressure recognizes a full
// non-blocking socket buffer.
package netutil
