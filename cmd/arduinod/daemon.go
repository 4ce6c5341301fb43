// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arduino-utils/arduino/broker"
	"github.com/arduino-utils/arduino/lib/config"
	"github.com/arduino-utils/arduino/lib/control"
	"github.com/arduino-utils/arduino/lib/device"
	"github.com/arduino-utils/arduino/lib/metrics"
)

// metricsShutdownTimeout bounds draining in-flight scrapes.
const metricsShutdownTimeout = 5 * time.Second

// daemon wires the broker to its sockets, device and optional servers.
type daemon struct {
	config *config.Config
	logger *slog.Logger
}

func (d *daemon) run(ctx context.Context) error {
	parserConfig, err := parserConfigFrom(d.config.Stream)
	if err != nil {
		return err
	}

	listener, err := listenSocket(d.config.Socket.Path, d.config.Socket.Mode.Perm())
	if err != nil {
		return err
	}

	source, err := device.Open(device.Config{
		Path:        d.config.Device.Path,
		Driver:      d.config.Device.Driver,
		BaudRate:    d.config.Device.Baud,
		ReadTimeout: d.config.Device.ReadTimeout.Std(),
	})
	if err != nil {
		listener.Close()
		return fmt.Errorf("opening device: %w", err)
	}
	d.logger.Info("device opened",
		"path", d.config.Device.Path,
		"driver", d.config.Device.Driver,
		"baud", d.config.Device.Baud,
	)

	relay, err := broker.New(broker.Config{
		Device:           source,
		Listener:         listener,
		Parser:           parserConfig,
		HandshakeTimeout: d.config.Socket.HandshakeTimeout.Std(),
		RetryInterval:    d.config.Device.RetryInterval.Std(),
		WriteRate:        d.config.Device.WriteRate,
		Logger:           d.logger,
	})
	if err != nil {
		listener.Close()
		source.Close()
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return relay.Run(groupCtx)
	})

	if path := d.config.Control.SocketPath; path != "" {
		server := control.NewServer(path, d.config.Socket.Mode.Perm(), d.logger)
		server.Handle(control.ActionStatus, func(context.Context, []byte) (any, error) {
			return relay.Stats(), nil
		})
		group.Go(func() error {
			return server.Serve(groupCtx)
		})
	}

	if address := d.config.Metrics.Listen; address != "" {
		d.serveMetrics(groupCtx, group, address, relay)
	}

	return group.Wait()
}

// serveMetrics runs the Prometheus endpoint until ctx ends.
func (d *daemon) serveMetrics(ctx context.Context, group *errgroup.Group, address string, source metrics.StatsSource) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(source))
	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	group.Go(func() error {
		d.logger.Info("serving metrics", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}

// listenSocket binds the client socket, replacing a stale socket file
// left by an earlier run, and applies mode so that unprivileged users
// can connect.
func listenSocket(path string, mode os.FileMode) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale socket %s: %w", path, err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", path, err)
	}
	if err := os.Chmod(path, mode); err != nil {
		listener.Close()
		return nil, fmt.Errorf("setting mode %#o on %s: %w", mode, path, err)
	}
	return listener, nil
}

// parserConfigFrom converts the validated stream section.
func parserConfigFrom(stream config.StreamConfig) (broker.ParserConfig, error) {
	overflow, err := broker.ParseOverflowPolicy(stream.Overflow)
	if err != nil {
		return broker.ParserConfig{}, err
	}
	parserConfig := broker.ParserConfig{
		FieldSeparator: stream.FieldSeparator[0],
		RowSeparator:   stream.RowSeparator[0],
		Terminator:     []byte(stream.LineTerminator),
		LineCapacity:   stream.LineCapacity,
		Overflow:       overflow,
	}
	if err := parserConfig.Validate(); err != nil {
		return broker.ParserConfig{}, err
	}
	return parserConfig, nil
}
