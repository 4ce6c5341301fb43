// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/arduino-utils/arduino/lib/client"
	"github.com/arduino-utils/arduino/lib/clock"
	"github.com/arduino-utils/arduino/lib/handshake"
	"github.com/arduino-utils/arduino/lib/process"
	"github.com/arduino-utils/arduino/lib/tui"
	"github.com/arduino-utils/arduino/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	var socketPath string

	flagSet := pflag.NewFlagSet("arduino-watch", pflag.ContinueOnError)
	flagSet.StringVarP(&socketPath, "socket", "s", client.DefaultSocketPath, "arduinod socket path")
	flagSet.Bool("version", false, "print version and exit")
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &process.ExitError{Code: 2, Err: err}
	}
	if showVersion, _ := flagSet.GetBool("version"); showVersion {
		version.Print("arduino-watch")
		return nil
	}

	inputs := make([]int, 0, flagSet.NArg())
	for _, arg := range flagSet.Args() {
		input, err := strconv.Atoi(arg)
		if err != nil {
			return &process.ExitError{Code: 2, Err: fmt.Errorf("input %q is not a number", arg)}
		}
		inputs = append(inputs, input)
	}
	mask, err := handshake.MaskFromInputs(inputs)
	if err != nil {
		printUsage(flagSet)
		return &process.ExitError{Code: 1, Err: err}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	wall := clock.Real()
	readings := make(chan tea.Msg, 64)
	var subscriptions []*client.Subscription
	defer func() {
		for _, subscription := range subscriptions {
			subscription.Close()
		}
	}()
	// One subscription per field: the broker does not label lines, so
	// a single-bit mask is the only way to attribute them.
	for _, field := range mask.Fields() {
		subscription, err := client.Subscribe(ctx, socketPath, handshake.Mask(1)<<field)
		if err != nil {
			return err
		}
		subscriptions = append(subscriptions, subscription)
		go forwardReadings(ctx, field, subscription, readings, wall)
	}

	model := newModel(socketPath, mask.Fields(), readings, tui.DefaultTheme, wall)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running monitor: %w", err)
	}
	return nil
}

// forwardReadings turns the subscription's lines into readingMsgs until
// the connection ends, then reports why with a disconnectedMsg.
func forwardReadings(ctx context.Context, field int, subscription *client.Subscription, readings chan<- tea.Msg, clock clock.Clock) {
	for {
		line, err := subscription.ReadLine()
		var message tea.Msg
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = errors.New("broker closed the connection")
			}
			message = disconnectedMsg{field: field, err: err}
		} else {
			message = readingMsg{field: field, value: line, at: clock.Now()}
		}
		select {
		case readings <- message:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `arduino-watch - live view of arduinod inputs

USAGE
    arduino-watch [flags] input [input...]

Shows the latest reading of each input with its update count and age.
Press q to quit.

FLAGS
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
