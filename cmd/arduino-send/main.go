// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/arduino-utils/arduino/lib/client"
	"github.com/arduino-utils/arduino/lib/process"
	"github.com/arduino-utils/arduino/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	var socketPath string
	var newline bool
	var timeout time.Duration

	flagSet := pflag.NewFlagSet("arduino-send", pflag.ContinueOnError)
	flagSet.StringVarP(&socketPath, "socket", "s", client.DefaultSocketPath, "arduinod socket path")
	flagSet.BoolVarP(&newline, "newline", "n", false, "append a newline to DATA")
	flagSet.DurationVar(&timeout, "timeout", 5*time.Second, "give up if the broker does not accept the payload in time")
	flagSet.Bool("version", false, "print version and exit")
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &process.ExitError{Code: 2, Err: err}
	}
	if showVersion, _ := flagSet.GetBool("version"); showVersion {
		version.Print("arduino-send")
		return nil
	}
	if flagSet.NArg() != 1 {
		printUsage(flagSet)
		return &process.ExitError{Code: 1, Err: fmt.Errorf("expected exactly one DATA argument, got %d", flagSet.NArg())}
	}

	payload := flagSet.Arg(0)
	if newline {
		payload += "\n"
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Send(ctx, socketPath, []byte(payload)); err != nil {
		return fmt.Errorf("sending %d bytes: %w", len(payload), err)
	}
	return nil
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `arduino-send - write data to the board through arduinod

USAGE
    arduino-send [flags] DATA

DATA is written to the device verbatim, up to 255 bytes. Quote it if
it contains spaces.

FLAGS
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
