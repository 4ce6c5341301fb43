// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/arduino-utils/arduino/broker"
	"github.com/arduino-utils/arduino/lib/control"
	"github.com/arduino-utils/arduino/lib/handshake"
)

// DefaultSocketPath is where arduinod listens unless configured
// otherwise.
const DefaultSocketPath = "/tmp/arduino.sock"

// DefaultControlSocketPath is arduinod's default status socket.
const DefaultControlSocketPath = "/tmp/arduino.control.sock"

// dialTimeout bounds connecting to the broker socket.
const dialTimeout = 5 * time.Second

// Subscription is an open subscribe connection. Lines arrive in field
// order within a row; lines from different fields carry no marker, so
// callers that need to attribute lines subscribe once per field.
type Subscription struct {
	conn   net.Conn
	reader *bufio.Reader
	mask   handshake.Mask
}

// Subscribe connects to the broker at socketPath and subscribes to the
// fields in mask.
func Subscribe(ctx context.Context, socketPath string, mask handshake.Mask) (*Subscription, error) {
	message, err := handshake.EncodeSubscribe(mask)
	if err != nil {
		return nil, err
	}
	conn, err := dial(ctx, socketPath)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(message); err != nil {
		conn.Close()
		return nil, fmt.Errorf("writing subscribe handshake: %w", err)
	}
	return &Subscription{conn: conn, reader: bufio.NewReader(conn), mask: mask}, nil
}

// Mask returns the subscribed fields.
func (s *Subscription) Mask() handshake.Mask { return s.mask }

// ReadLine blocks until the next line arrives and returns it without
// its trailing newline. It returns io.EOF when the broker closes the
// connection.
func (s *Subscription) ReadLine() (string, error) {
	line, err := s.reader.ReadString('\n')
	if err != nil {
		if line != "" {
			return "", fmt.Errorf("connection ended mid-line after %q: %w", line, err)
		}
		return "", err
	}
	return line[:len(line)-1], nil
}

// SetReadDeadline bounds the next ReadLine.
func (s *Subscription) SetReadDeadline(deadline time.Time) error {
	return s.conn.SetReadDeadline(deadline)
}

// Close ends the subscription. The broker notices on its next push to
// this connection.
func (s *Subscription) Close() error {
	return s.conn.Close()
}

// Send forwards payload to the device through the broker at socketPath.
// Payloads longer than handshake.MaxPayload are rejected before
// connecting.
func Send(ctx context.Context, socketPath string, payload []byte) error {
	message, err := handshake.EncodeSend(payload)
	if err != nil {
		return err
	}
	conn, err := dial(ctx, socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	}
	if _, err := conn.Write(message); err != nil {
		return fmt.Errorf("writing send handshake: %w", err)
	}
	return nil
}

// Status fetches broker statistics from the control socket.
func Status(ctx context.Context, controlSocketPath string) (broker.Stats, error) {
	var stats broker.Stats
	if err := control.NewClient(controlSocketPath).Call(ctx, control.ActionStatus, nil, &stats); err != nil {
		return broker.Stats{}, err
	}
	return stats, nil
}

func dial(ctx context.Context, socketPath string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", socketPath, err)
	}
	return conn, nil
}
