// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/arduino-utils/arduino/lib/client"
	"github.com/arduino-utils/arduino/lib/handshake"
	"github.com/arduino-utils/arduino/lib/process"
	"github.com/arduino-utils/arduino/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		process.Fatal(err)
	}
}

func run(args []string, stdout io.Writer) error {
	var socketPath string
	var testMode bool

	flagSet := pflag.NewFlagSet("arduino-read", pflag.ContinueOnError)
	flagSet.StringVarP(&socketPath, "socket", "s", client.DefaultSocketPath, "arduinod socket path")
	flagSet.BoolVarP(&testMode, "test", "t", false, "print one reading per selected input, then exit")
	flagSet.Bool("version", false, "print version and exit")
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &process.ExitError{Code: 2, Err: err}
	}
	if showVersion, _ := flagSet.GetBool("version"); showVersion {
		version.Print("arduino-read")
		return nil
	}

	mask, err := handshake.MaskFromInputs(parseInputs(flagSet.Args()))
	if err != nil {
		printUsage(flagSet)
		return &process.ExitError{Code: 1, Err: err}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	subscription, err := client.Subscribe(ctx, socketPath, mask)
	if err != nil {
		return err
	}
	defer subscription.Close()

	limit := 0
	if testMode {
		limit = mask.Count()
	}
	return copyLines(ctx, subscription, stdout, limit)
}

// parseInputs reads input numbers the way the original clients did
// with atoi: anything that is not a number counts as zero and is
// skipped.
func parseInputs(args []string) []int {
	inputs := make([]int, 0, len(args))
	for _, arg := range args {
		input, err := strconv.Atoi(arg)
		if err != nil {
			input = 0
		}
		inputs = append(inputs, input)
	}
	return inputs
}

// copyLines writes pushed lines to stdout until the broker disconnects,
// ctx ends, or limit lines have been copied (limit 0 means no limit).
func copyLines(ctx context.Context, subscription *client.Subscription, stdout io.Writer, limit int) error {
	stopRead := context.AfterFunc(ctx, func() {
		subscription.Close()
	})
	defer stopRead()

	for copied := 0; limit == 0 || copied < limit; copied++ {
		line, err := subscription.ReadLine()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				if limit > 0 && ctx.Err() == nil {
					return fmt.Errorf("broker closed the connection after %d of %d readings", copied, limit)
				}
				return nil
			}
			return fmt.Errorf("reading from broker: %w", err)
		}
		if _, err := fmt.Fprintln(stdout, line); err != nil {
			return err
		}
	}
	return nil
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `arduino-read - print readings from arduinod

USAGE
    arduino-read [flags] input [input...]

Inputs are numbered 1 to 8, matching the fields of each row the board
prints. Readings are printed one per line as they arrive. With -t, one
reading per input is printed and the command exits.

FLAGS
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
