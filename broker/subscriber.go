// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"fmt"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// connSubscriber pushes lines to an accepted socket connection.
//
// Lines go out with exactly one write(2) on the socket descriptor. The
// runtime already holds the descriptor in non-blocking mode, so a full
// send buffer comes back as EAGAIN instead of stalling the main loop.
// Connections that do not expose a descriptor fall back to a short
// write deadline.
type connSubscriber struct {
	id           uint64
	conn         net.Conn
	raw          syscall.RawConn
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

// fallbackWriteTimeout bounds a push on connections without a
// descriptor.
const fallbackWriteTimeout = 10 * time.Millisecond

func newConnSubscriber(id uint64, conn net.Conn) *connSubscriber {
	subscriber := &connSubscriber{id: id, conn: conn, writeTimeout: fallbackWriteTimeout}
	if sc, ok := conn.(syscall.Conn); ok {
		if raw, err := sc.SyscallConn(); err == nil {
			subscriber.raw = raw
		}
	}
	return subscriber
}

func (s *connSubscriber) ID() uint64 { return s.id }

func (s *connSubscriber) TryWrite(line []byte) error {
	if s.raw == nil {
		return s.writeWithDeadline(line)
	}

	var written int
	var writeErr error
	err := s.raw.Write(func(fd uintptr) bool {
		for {
			written, writeErr = unix.Write(int(fd), line)
			if writeErr != unix.EINTR {
				return true
			}
		}
	})
	if err != nil {
		return err
	}
	if writeErr != nil {
		return os.NewSyscallError("write", writeErr)
	}
	if written != len(line) {
		return fmt.Errorf("partial write: %d of %d bytes", written, len(line))
	}
	return nil
}

func (s *connSubscriber) writeWithDeadline(line []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	written, err := s.conn.Write(line)
	if err != nil {
		return err
	}
	if written != len(line) {
		return fmt.Errorf("partial write: %d of %d bytes", written, len(line))
	}
	return nil
}

func (s *connSubscriber) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
