// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"errors"
	"io"
	"net"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/arduino-utils/arduino/lib/device"
	"github.com/arduino-utils/arduino/lib/testutil"
)

// recordingSubscriber captures pushed lines in memory. Setting failWith
// makes every TryWrite fail.
type recordingSubscriber struct {
	id uint64

	mu       sync.Mutex
	lines    []string
	failWith error
	closed   int
}

func (s *recordingSubscriber) ID() uint64 { return s.id }

func (s *recordingSubscriber) TryWrite(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.lines = append(s.lines, string(line))
	return nil
}

func (s *recordingSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *recordingSubscriber) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func (s *recordingSubscriber) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// scriptedDevice is an in-memory device. Bytes pushed with feed are
// returned by Read; an empty Read reports device.ErrNoData after a short
// wait, like a tty with VTIME set.
type scriptedDevice struct {
	incoming chan []byte
	failures chan error
	written  chan []byte
	closed   chan struct{}

	closeOnce sync.Once
	pending   []byte
	idleWait  time.Duration
}

func newScriptedDevice() *scriptedDevice {
	return &scriptedDevice{
		incoming: make(chan []byte, 64),
		failures: make(chan error, 1),
		written:  make(chan []byte, 64),
		closed:   make(chan struct{}),
		idleWait: 2 * time.Millisecond,
	}
}

func (d *scriptedDevice) feed(data string) {
	d.incoming <- []byte(data)
}

func (d *scriptedDevice) fail(err error) {
	d.failures <- err
}

func (d *scriptedDevice) Read(p []byte) (int, error) {
	if len(d.pending) == 0 {
		select {
		case data := <-d.incoming:
			d.pending = data
		case err := <-d.failures:
			return 0, err
		case <-d.closed:
			return 0, io.EOF
		case <-time.After(d.idleWait): //nolint:realclock simulated device read timeout
			return 0, device.ErrNoData
		}
	}
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

func (d *scriptedDevice) Write(p []byte) (int, error) {
	select {
	case <-d.closed:
		return 0, net.ErrClosed
	default:
	}
	d.written <- append([]byte(nil), p...)
	return len(p), nil
}

func (d *scriptedDevice) Close() error {
	d.closeOnce.Do(func() { close(d.closed) })
	return nil
}

// runningBroker is a broker on a real unix socket with its Run
// goroutine tracked.
type runningBroker struct {
	broker     *Broker
	device     *scriptedDevice
	socketPath string
	cancel     context.CancelFunc
	done       chan struct{}
	err        error
}

func startBroker(t *testing.T, mutate func(*Config)) *runningBroker {
	t.Helper()

	socketPath := filepath.Join(testutil.SocketDir(t), "arduino.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	scripted := newScriptedDevice()
	config := Config{
		Device:           scripted,
		Listener:         listener,
		Parser:           DefaultParserConfig(),
		HandshakeTimeout: 2 * time.Second,
		RetryInterval:    time.Millisecond,
	}
	if mutate != nil {
		mutate(&config)
	}
	broker, err := New(config)
	if err != nil {
		listener.Close()
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	running := &runningBroker{
		broker:     broker,
		device:     scripted,
		socketPath: socketPath,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go func() {
		defer close(running.done)
		running.err = broker.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-running.done
	})
	return running
}

// sync feeds a row separator and waits for the broker to start
// accepting clients.
func (r *runningBroker) sync(t *testing.T) {
	t.Helper()
	r.device.feed("\n")
	testutil.Eventually(t, 5*time.Second, func() bool {
		return r.broker.State() == Running
	}, "broker running after sync")
}

// stop cancels Run and returns its error.
func (r *runningBroker) stop(t *testing.T) error {
	t.Helper()
	r.cancel()
	testutil.RequireClosed(t, r.done, 5*time.Second, "broker Run returned")
	return r.err
}

func (r *runningBroker) waitForSubscribers(t *testing.T, unique int64) {
	t.Helper()
	testutil.Eventually(t, 5*time.Second, func() bool {
		return r.broker.Stats().UniqueSubscribers == unique
	}, "waiting for %d registered subscribers", unique)
}

func dial(t *testing.T, socketPath string, handshakeBytes []byte) net.Conn {
	t.Helper()
	connection, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		t.Fatalf("dial %s: %v", socketPath, err)
	}
	t.Cleanup(func() { connection.Close() })
	if len(handshakeBytes) > 0 {
		if _, err := connection.Write(handshakeBytes); err != nil {
			t.Fatalf("writing handshake: %v", err)
		}
	}
	return connection
}

// readExactly reads n bytes from connection within a deadline.
func readExactly(t *testing.T, connection net.Conn, n int) string {
	t.Helper()
	connection.SetReadDeadline(time.Now().Add(5 * time.Second)) //nolint:realclock socket deadline
	buffer := make([]byte, n)
	if _, err := io.ReadFull(connection, buffer); err != nil {
		t.Fatalf("reading %d bytes (got %q): %v", n, buffer, err)
	}
	return string(buffer)
}

var errBrokenPipe = &net.OpError{Op: "write", Net: "unix", Err: syscall.EPIPE}

var errTestDevice = errors.New("device unplugged")
