// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arduino-utils/arduino/lib/handshake"
	"github.com/arduino-utils/arduino/lib/netutil"
)

// DefaultHandshakeTimeout bounds how long a client may take to send its
// handshake after connecting.
const DefaultHandshakeTimeout = 5 * time.Second

// PayloadWriter forwards a send payload to the device. The device
// package's PacedWriter implements it.
type PayloadWriter interface {
	WritePayload(ctx context.Context, payload []byte) error
}

// Acceptor accepts client connections on the broker socket and performs
// each handshake on its own goroutine, so a client that connects and
// says nothing holds up only itself.
type Acceptor struct {
	// Listener is the bound broker socket. The acceptor closes it when
	// its context ends.
	Listener net.Listener

	// Queue receives completed subscribe handshakes.
	Queue *PendingQueue

	// Device receives send payloads.
	Device PayloadWriter

	// HandshakeTimeout bounds the handshake read. Zero means
	// DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// Logger receives structured log output. If nil, slog.Default() is
	// used. Per-connection events are logged at Debug level.
	Logger *slog.Logger

	connectionCount atomic.Uint64
	handshakes      sync.WaitGroup

	subscribeRequests atomic.Uint64
	sendRequests      atomic.Uint64
	handshakeFailures atomic.Uint64
	bytesForwarded    atomic.Uint64
}

func (a *Acceptor) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

func (a *Acceptor) handshakeTimeout() time.Duration {
	if a.HandshakeTimeout > 0 {
		return a.HandshakeTimeout
	}
	return DefaultHandshakeTimeout
}

// Run accepts connections until ctx is cancelled or accepting fails.
// It closes the listener and waits for in-flight handshakes before
// returning. Cancellation returns nil; an accept failure is returned
// and should stop the broker.
func (a *Acceptor) Run(ctx context.Context) error {
	if a.Listener == nil || a.Queue == nil || a.Device == nil {
		return errors.New("acceptor: Listener, Queue and Device are required")
	}

	stop := context.AfterFunc(ctx, func() {
		a.Listener.Close()
	})
	defer stop()

	err := a.acceptLoop(ctx)
	a.Listener.Close()
	a.handshakes.Wait()
	return err
}

func (a *Acceptor) acceptLoop(ctx context.Context) error {
	for {
		connection, err := a.Listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if netutil.IsTransientAcceptError(err) {
				a.logger().Debug("accept interrupted, retrying", "error", err)
				continue
			}
			return fmt.Errorf("accepting connection: %w", err)
		}

		connectionID := a.connectionCount.Add(1)
		a.handshakes.Add(1)
		go func() {
			defer a.handshakes.Done()
			a.handleConnection(ctx, connection, connectionID)
		}()
	}
}

func (a *Acceptor) handleConnection(ctx context.Context, connection net.Conn, connectionID uint64) {
	logger := a.logger().With("connection_id", connectionID)
	logger.Debug("connection accepted")

	if err := connection.SetReadDeadline(time.Now().Add(a.handshakeTimeout())); err != nil {
		logger.Debug("setting handshake deadline failed", "error", err)
		connection.Close()
		return
	}

	// Shutdown expires the deadline so a silent client cannot hold up
	// the handshake drain.
	stopInterrupt := context.AfterFunc(ctx, func() {
		connection.SetReadDeadline(time.Now())
	})
	request, err := handshake.ReadRequest(connection)
	interruptPending := stopInterrupt()
	if err == nil && !interruptPending {
		err = ctx.Err()
	}
	if err != nil {
		a.handshakeFailures.Add(1)
		if ctx.Err() != nil || netutil.IsExpectedCloseError(err) || netutil.IsBackpressure(err) {
			logger.Debug("handshake abandoned", "error", err)
		} else {
			logger.Warn("handshake failed", "error", err)
		}
		connection.Close()
		return
	}

	switch request.Kind {
	case handshake.Subscribe:
		a.subscribeRequests.Add(1)
		a.subscribe(connection, connectionID, request.Mask, logger)
	case handshake.Send:
		a.sendRequests.Add(1)
		a.send(ctx, connection, request.Payload, logger)
	}
}

func (a *Acceptor) subscribe(connection net.Conn, connectionID uint64, mask handshake.Mask, logger *slog.Logger) {
	if err := connection.SetReadDeadline(time.Time{}); err != nil {
		logger.Debug("clearing handshake deadline failed", "error", err)
		connection.Close()
		return
	}

	subscriber := newConnSubscriber(connectionID, connection)
	if !a.Queue.Enqueue(Request{Subscriber: subscriber, Mask: mask}) {
		logger.Debug("broker stopping, rejecting subscriber")
		subscriber.Close()
		return
	}
	logger.Debug("subscription queued", "fields", mask.Fields())
}

func (a *Acceptor) send(ctx context.Context, connection net.Conn, payload []byte, logger *slog.Logger) {
	defer connection.Close()

	if err := a.Device.WritePayload(ctx, payload); err != nil {
		if ctx.Err() != nil {
			logger.Debug("send abandoned during shutdown", "bytes", len(payload))
			return
		}
		logger.Error("forwarding payload to device failed", "bytes", len(payload), "error", err)
		return
	}
	a.bytesForwarded.Add(uint64(len(payload)))
	logger.Debug("payload forwarded to device", "bytes", len(payload))
}

// Connections returns the number of connections accepted.
func (a *Acceptor) Connections() uint64 { return a.connectionCount.Load() }

// SubscribeRequests returns the number of subscribe handshakes read.
func (a *Acceptor) SubscribeRequests() uint64 { return a.subscribeRequests.Load() }

// SendRequests returns the number of send handshakes read.
func (a *Acceptor) SendRequests() uint64 { return a.sendRequests.Load() }

// HandshakeFailures returns the number of connections closed because
// the handshake could not be read.
func (a *Acceptor) HandshakeFailures() uint64 { return a.handshakeFailures.Load() }

// BytesForwarded returns the number of payload bytes written to the
// device.
func (a *Acceptor) BytesForwarded() uint64 { return a.bytesForwarded.Load() }
