// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/arduino-utils/arduino/lib/clock"
	"github.com/arduino-utils/arduino/lib/device"
	"github.com/arduino-utils/arduino/lib/handshake"
)

// DefaultRetryInterval is how long the main loop waits after a read that
// returned no data.
const DefaultRetryInterval = 250 * time.Millisecond

// readBufferSize is the most bytes taken from the device per read.
const readBufferSize = 256

// State is the broker's lifecycle phase.
type State int32

const (
	Starting State = iota
	Syncing
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Syncing:
		return "syncing"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config wires a broker to its device and socket.
type Config struct {
	// Device is the open source stream. The broker owns it from Run
	// onward and closes it on exit.
	Device device.Device

	// Listener is the bound broker socket. Closed on exit.
	Listener net.Listener

	// Parser configures framing. The zero value means
	// DefaultParserConfig().
	Parser ParserConfig

	// HandshakeTimeout bounds each client handshake. Zero means
	// DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// RetryInterval is the wait after an empty device read. Zero means
	// DefaultRetryInterval.
	RetryInterval time.Duration

	// WriteRate paces send payloads to the device in bytes per second.
	// Zero disables pacing.
	WriteRate int

	// Clock drives the retry wait. Nil means the real clock.
	Clock clock.Clock

	// Logger receives structured log output. If nil, slog.Default() is
	// used.
	Logger *slog.Logger
}

// Broker reads rows from the device and fans fields out to subscribers.
// All registry and parser state belongs to the goroutine running Run;
// other goroutines observe it through State and Stats.
type Broker struct {
	device        device.Device
	listener      net.Listener
	retryInterval time.Duration
	clock         clock.Clock
	logger        *slog.Logger

	parser      *Parser
	registry    *Registry
	queue       *PendingQueue
	broadcaster *Broadcaster
	acceptor    *Acceptor

	state       atomic.Int32
	started     atomic.Bool
	subscribers [handshake.MaxFields]atomic.Int64
	unique      atomic.Int64
}

// New validates config and returns a broker in the Starting state.
func New(config Config) (*Broker, error) {
	if config.Device == nil {
		return nil, errors.New("broker: Device is required")
	}
	if config.Listener == nil {
		return nil, errors.New("broker: Listener is required")
	}
	if config.Parser.LineCapacity == 0 && config.Parser.Terminator == nil {
		config.Parser = DefaultParserConfig()
	}
	parser, err := NewParser(config.Parser)
	if err != nil {
		return nil, fmt.Errorf("broker: %w", err)
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = DefaultRetryInterval
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	registry := NewRegistry()
	queue := &PendingQueue{}
	return &Broker{
		device:        config.Device,
		listener:      config.Listener,
		retryInterval: config.RetryInterval,
		clock:         config.Clock,
		logger:        config.Logger,
		parser:        parser,
		registry:      registry,
		queue:         queue,
		broadcaster:   NewBroadcaster(registry, config.Logger),
		acceptor: &Acceptor{
			Listener:         config.Listener,
			Queue:            queue,
			Device:           device.NewPacedWriter(config.Device, config.WriteRate),
			HandshakeTimeout: config.HandshakeTimeout,
			Logger:           config.Logger,
		},
	}, nil
}

// State returns the current lifecycle phase.
func (b *Broker) State() State {
	return State(b.state.Load())
}

func (b *Broker) setState(state State) {
	b.state.Store(int32(state))
	b.logger.Debug("broker state changed", "state", state.String())
}

// Run syncs on the device, starts accepting clients, and streams until
// ctx is cancelled or a fatal error occurs. Cancellation returns nil.
// Run may be called once.
func (b *Broker) Run(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return errors.New("broker: Run called twice")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.setState(Syncing)
	b.logger.Info("waiting for row boundary on device")

	loop := &mainLoop{broker: b, acceptorErrors: make(chan error, 1)}
	runErr := loop.run(ctx)

	b.setState(Stopping)
	cancel()
	if acceptorErr := loop.stopAcceptor(); runErr == nil {
		runErr = acceptorErr
	}
	b.shutdown()
	b.setState(Stopped)

	if runErr != nil {
		b.logger.Error("broker stopped", "error", runErr)
	} else {
		b.logger.Info("broker stopped")
	}
	return runErr
}

// mainLoop carries the per-run bookkeeping of Run.
type mainLoop struct {
	broker         *Broker
	buffer         [readBufferSize]byte
	acceptorErrors chan error
	acceptorActive bool
	acceptorDone   bool
}

func (l *mainLoop) run(ctx context.Context) error {
	b := l.broker
	for {
		if err := l.checkAcceptor(ctx); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		n, err := b.device.Read(l.buffer[:])
		if n > 0 {
			if streamErr := l.consume(ctx, l.buffer[:n]); streamErr != nil {
				return streamErr
			}
		}
		if err != nil && !errors.Is(err, device.ErrNoData) {
			return fmt.Errorf("reading device: %w", err)
		}
		if n > 0 {
			continue
		}

		// Nothing arrived. Commit subscribers that connected while the
		// device was quiet, then wait before polling again.
		l.commitAtBoundary()
		select {
		case <-ctx.Done():
			return nil
		case err := <-l.acceptorErrors:
			l.acceptorDone = true
			return l.acceptorResult(ctx, err)
		case <-b.clock.After(b.retryInterval):
		}
	}
}

// consume feeds bytes through the parser, committing pending
// subscribers at each row boundary and broadcasting every completed
// field.
func (l *mainLoop) consume(ctx context.Context, data []byte) error {
	b := l.broker
	for _, c := range data {
		l.commitAtBoundary()

		event, ok, err := b.parser.Feed(c)
		if err != nil {
			return err
		}
		if !l.acceptorActive && b.parser.Synced() {
			l.startAcceptor(ctx)
		}
		if !ok {
			continue
		}
		if _, dropped := b.broadcaster.Broadcast(event); dropped > 0 {
			b.publishSubscriberCounts()
		}
	}
	return nil
}

func (l *mainLoop) commitAtBoundary() {
	b := l.broker
	if !b.parser.Synced() || !b.parser.AtRowBoundary() {
		return
	}
	requests := b.queue.Drain()
	if len(requests) == 0 {
		return
	}
	for _, request := range requests {
		b.registry.Subscribe(request.Subscriber, request.Mask)
		b.logger.Debug("subscriber registered",
			"subscriber", request.Subscriber.ID(),
			"fields", request.Mask.Fields(),
		)
	}
	b.publishSubscriberCounts()
}

func (l *mainLoop) startAcceptor(ctx context.Context) {
	b := l.broker
	l.acceptorActive = true
	go func() {
		l.acceptorErrors <- b.acceptor.Run(ctx)
	}()
	b.setState(Running)
	b.logger.Info("device synced, accepting clients", "socket", b.listener.Addr().String())
}

func (l *mainLoop) checkAcceptor(ctx context.Context) error {
	if !l.acceptorActive || l.acceptorDone {
		return nil
	}
	select {
	case err := <-l.acceptorErrors:
		l.acceptorDone = true
		return l.acceptorResult(ctx, err)
	default:
		return nil
	}
}

// stopAcceptor waits for the acceptor (and its handshakes) to finish
// after the run context is cancelled. Without an acceptor the listener
// is closed directly.
func (l *mainLoop) stopAcceptor() error {
	if !l.acceptorActive {
		l.broker.listener.Close()
		return nil
	}
	if l.acceptorDone {
		return nil
	}
	l.acceptorDone = true
	if err := <-l.acceptorErrors; err != nil {
		return acceptorFailure(err)
	}
	return nil
}

// acceptorResult interprets the acceptor's return while the main loop
// is still running. A nil return is only expected after cancellation.
func (l *mainLoop) acceptorResult(ctx context.Context, err error) error {
	if err == nil && ctx.Err() != nil {
		return nil
	}
	return acceptorFailure(err)
}

func acceptorFailure(err error) error {
	if err == nil {
		return errors.New("acceptor stopped unexpectedly")
	}
	return fmt.Errorf("acceptor: %w", err)
}

// shutdown closes queued and registered subscribers and the device.
func (b *Broker) shutdown() {
	for _, request := range b.queue.Close() {
		request.Subscriber.Close()
	}
	if err := b.registry.CloseAll(); err != nil {
		b.logger.Debug("closing subscribers", "error", err)
	}
	b.publishSubscriberCounts()
	if err := b.device.Close(); err != nil {
		b.logger.Warn("closing device", "error", err)
	}
}

func (b *Broker) publishSubscriberCounts() {
	for field := range b.subscribers {
		b.subscribers[field].Store(int64(b.registry.FieldLen(field)))
	}
	b.unique.Store(int64(b.registry.Len()))
}
