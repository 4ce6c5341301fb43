// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// baudRates maps line speeds to termios speed constants.
var baudRates = map[int]uint32{
	1200:   unix.B1200,
	2400:   unix.B2400,
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
}

type termiosDevice struct {
	fd           int
	path         string
	readTimeout  time.Duration
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeError   error
}

func openTermios(config Config) (Device, error) {
	fd, err := unix.Open(config.Path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("device: opening %s: %w", config.Path, os.NewSyscallError("open", err))
	}

	if isTerminal(fd) {
		if err := configureRaw(fd, config.BaudRate); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("device: configuring %s: %w", config.Path, err)
		}
	}

	return &termiosDevice{
		fd:           fd,
		path:         config.Path,
		readTimeout:  config.ReadTimeout,
		writeTimeout: config.WriteTimeout,
	}, nil
}

func isTerminal(fd int) bool {
	_, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	return err == nil
}

// configureRaw puts the tty into raw 8N1 mode without flow control.
// VMIN and VTIME are zero: waiting is done with poll(2) in Read.
func configureRaw(fd int, baudRate int) error {
	speed, ok := baudRates[baudRate]
	if !ok {
		return fmt.Errorf("unsupported baud rate %d", baudRate)
	}

	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return os.NewSyscallError("tcgets", err)
	}

	termios.Cflag &^= unix.PARENB | unix.CSTOPB | unix.CSIZE | unix.CRTSCTS | unix.CBAUD
	termios.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | speed
	termios.Iflag &^= unix.ICRNL | unix.IXON | unix.IXOFF | unix.IXANY
	termios.Lflag &^= unix.ICANON | unix.ECHO | unix.ECHOE | unix.ISIG
	termios.Oflag &^= unix.OPOST
	termios.Ispeed = speed
	termios.Ospeed = speed
	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return os.NewSyscallError("tcsets", err)
	}
	return nil
}

// Read waits up to the read timeout for input. A hangup with nothing
// left to read is io.EOF.
func (d *termiosDevice) Read(p []byte) (int, error) {
	pollDescriptors := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLIN}}
	count, err := unix.Poll(pollDescriptors, int(d.readTimeout/time.Millisecond))
	if err != nil {
		if err == unix.EINTR {
			return 0, ErrNoData
		}
		return 0, os.NewSyscallError("poll", err)
	}
	if count == 0 {
		return 0, ErrNoData
	}

	bytesRead, err := unix.Read(d.fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EINTR {
			return 0, ErrNoData
		}
		return 0, os.NewSyscallError("read", err)
	}
	if bytesRead == 0 {
		if pollDescriptors[0].Revents&unix.POLLHUP != 0 {
			return 0, io.EOF
		}
		return 0, ErrNoData
	}
	return bytesRead, nil
}

// Write writes all of p, waiting for the fd to become writable when the
// kernel buffer is full. A device that accepts nothing for the write
// timeout fails with ErrWriteTimeout.
func (d *termiosDevice) Write(p []byte) (int, error) {
	deadline := time.Now().Add(d.writeTimeout)
	written := 0
	for written < len(p) {
		n, err := unix.Write(d.fd, p[written:])
		if n > 0 {
			written += n
			deadline = time.Now().Add(d.writeTimeout)
		}
		if err == nil || err == unix.EINTR {
			continue
		}
		if err != unix.EAGAIN {
			return written, os.NewSyscallError("write", err)
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return written, fmt.Errorf("%w after %d of %d bytes to %s", ErrWriteTimeout, written, len(p), d.path)
		}
		pollDescriptors := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLOUT}}
		if _, err := unix.Poll(pollDescriptors, int(remaining/time.Millisecond)+1); err != nil && err != unix.EINTR {
			return written, os.NewSyscallError("poll", err)
		}
	}
	return written, nil
}

func (d *termiosDevice) Close() error {
	d.closeOnce.Do(func() {
		if err := unix.Close(d.fd); err != nil {
			d.closeError = os.NewSyscallError("close", err)
		}
	})
	return d.closeError
}
