// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/time/rate"
)

// PacedWriter forwards client payloads to the device one at a time. Each
// payload is written in full before the next begins, so concurrent send
// handshakes never interleave on the wire. With a non-zero rate, writes
// are additionally held to that many bytes per second.
type PacedWriter struct {
	mu      sync.Mutex
	writer  io.Writer
	limiter *rate.Limiter
}

// NewPacedWriter wraps writer. bytesPerSecond <= 0 disables pacing.
func NewPacedWriter(writer io.Writer, bytesPerSecond int) *PacedWriter {
	paced := &PacedWriter{writer: writer}
	if bytesPerSecond > 0 {
		// The burst must admit the largest single payload (255 bytes).
		burst := max(bytesPerSecond, 256)
		paced.limiter = rate.NewLimiter(rate.Limit(bytesPerSecond), burst)
	}
	return paced
}

// WritePayload writes payload to the device, waiting for pacing budget
// first. It returns early with ctx's error if ctx ends while waiting
// for budget or for an earlier payload to finish.
func (p *PacedWriter) WritePayload(ctx context.Context, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	if p.limiter != nil {
		if err := p.limiter.WaitN(ctx, len(payload)); err != nil {
			return fmt.Errorf("waiting for device write budget: %w", err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// A payload queued behind a slow write is dropped once shutdown
	// starts rather than extending it.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("device write abandoned: %w", err)
	}
	written, err := p.writer.Write(payload)
	if err != nil {
		return fmt.Errorf("writing %d bytes to device (wrote %d): %w", len(payload), written, err)
	}
	if written != len(payload) {
		return fmt.Errorf("short device write: %d of %d bytes", written, len(payload))
	}
	return nil
}
