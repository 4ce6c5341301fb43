// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"github.com/arduino-utils/arduino/broker"
	"github.com/arduino-utils/arduino/lib/client"
	"github.com/arduino-utils/arduino/lib/process"
	"github.com/arduino-utils/arduino/lib/tui"
	"github.com/arduino-utils/arduino/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		process.Fatal(err)
	}
}

func run(args []string, stdout io.Writer) error {
	var controlSocket string
	var jsonOutput bool
	var timeout time.Duration

	flagSet := pflag.NewFlagSet("arduino-status", pflag.ContinueOnError)
	flagSet.StringVarP(&controlSocket, "control-socket", "c", client.DefaultControlSocketPath, "arduinod control socket path")
	flagSet.BoolVar(&jsonOutput, "json", false, "print the raw statistics as JSON")
	flagSet.DurationVar(&timeout, "timeout", 5*time.Second, "give up if arduinod does not answer in time")
	flagSet.Bool("version", false, "print version and exit")
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &process.ExitError{Code: 2, Err: err}
	}
	if showVersion, _ := flagSet.GetBool("version"); showVersion {
		version.Print("arduino-status")
		return nil
	}
	if flagSet.NArg() > 0 {
		return &process.ExitError{Code: 2, Err: fmt.Errorf("unexpected argument %q", flagSet.Arg(0))}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	stats, err := client.Status(ctx, controlSocket)
	if err != nil {
		return fmt.Errorf("querying arduinod: %w", err)
	}

	if jsonOutput {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(stats)
	}
	_, err = io.WriteString(stdout, render(stats, tui.DefaultTheme))
	return err
}

// labelWidth fits the longest row label plus padding.
const labelWidth = 22

// render lays out stats as labelled sections followed by a per-input
// subscriber table.
func render(stats broker.Stats, theme tui.Theme) string {
	header := lipgloss.NewStyle().Bold(true).Foreground(theme.HeaderForeground)
	label := lipgloss.NewStyle().Width(labelWidth).Foreground(theme.FaintText)
	value := lipgloss.NewStyle().Foreground(theme.NormalText)
	warning := lipgloss.NewStyle().Foreground(theme.Warning)

	var builder strings.Builder
	row := func(name string, rendered string) {
		builder.WriteString(label.Render(name))
		builder.WriteString(rendered)
		builder.WriteByte('\n')
	}
	count := func(n uint64) string { return value.Render(strconv.FormatUint(n, 10)) }
	// Failure counters stand out once they are non-zero.
	failures := func(n uint64) string {
		if n == 0 {
			return count(n)
		}
		return warning.Render(strconv.FormatUint(n, 10))
	}

	row("state", lipgloss.NewStyle().Bold(true).Foreground(theme.StateColor(stats.State)).Render(stats.State))
	builder.WriteByte('\n')

	builder.WriteString(header.Render("stream") + "\n")
	row("rows", count(stats.Rows))
	row("fields", count(stats.Fields))
	row("line overflows", failures(stats.Overflows))
	row("excess fields", failures(stats.ExcessFields))
	builder.WriteByte('\n')

	builder.WriteString(header.Render("delivery") + "\n")
	row("deliveries", count(stats.Deliveries))
	row("bytes delivered", count(stats.BytesDelivered))
	row("dropped subscribers", failures(stats.DroppedSubscribers))
	builder.WriteByte('\n')

	builder.WriteString(header.Render("connections") + "\n")
	row("accepted", count(stats.Connections))
	row("subscribe requests", count(stats.SubscribeRequests))
	row("send requests", count(stats.SendRequests))
	row("handshake failures", failures(stats.HandshakeFailures))
	row("device bytes written", count(stats.DeviceBytesWritten))
	builder.WriteByte('\n')

	builder.WriteString(header.Render("subscribers") + "\n")
	row("unique", value.Render(strconv.FormatInt(stats.UniqueSubscribers, 10)))
	row("pending", value.Render(strconv.Itoa(stats.PendingSubscriptions)))
	for field, subscribers := range stats.Subscribers {
		input := lipgloss.NewStyle().Width(labelWidth).Foreground(theme.FieldColor(field)).
			Render(fmt.Sprintf("input %d", field+1))
		builder.WriteString(input)
		builder.WriteString(value.Render(strconv.FormatInt(subscribers, 10)))
		builder.WriteByte('\n')
	}
	return builder.String()
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `arduino-status - show arduinod statistics

USAGE
    arduino-status [flags]

FLAGS
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
