// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/arduino-utils/arduino/lib/config"
	"github.com/arduino-utils/arduino/lib/device"
	"github.com/arduino-utils/arduino/lib/logging"
	"github.com/arduino-utils/arduino/lib/process"
	"github.com/arduino-utils/arduino/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

// flags holds the command line. Only flags the user actually set
// override the config file.
type flags struct {
	set *pflag.FlagSet

	configPath    string
	socketPath    string
	devicePath    string
	driver        string
	baud          int
	controlSocket string
	metricsListen string
	verbose       bool
	listPorts     bool
	showVersion   bool
}

func parseFlags(args []string) (*flags, error) {
	parsed := &flags{set: pflag.NewFlagSet("arduinod", pflag.ContinueOnError)}
	set := parsed.set
	set.StringVarP(&parsed.configPath, "config", "c", "", "config file (default: $"+config.EnvironmentVariable+", else built-in defaults)")
	set.StringVarP(&parsed.socketPath, "socket", "s", "", "client socket path (default /tmp/arduino.sock)")
	set.StringVarP(&parsed.devicePath, "device", "d", "", "serial device (default /dev/arduino)")
	set.StringVar(&parsed.driver, "driver", "", "device driver: termios or serial")
	set.IntVarP(&parsed.baud, "baud", "b", 0, "line speed (default 9600)")
	set.StringVar(&parsed.controlSocket, "control-socket", "", "status socket path; empty string disables")
	set.StringVar(&parsed.metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address, e.g. 127.0.0.1:9108")
	set.BoolVarP(&parsed.verbose, "verbose", "v", false, "log per-connection events")
	set.BoolVar(&parsed.listPorts, "list-ports", false, "list serial ports and exit")
	set.BoolVar(&parsed.showVersion, "version", false, "print version and exit")
	set.Usage = func() { printUsage(set) }

	if err := set.Parse(args); err != nil {
		return nil, err
	}
	if set.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", set.Arg(0))
	}
	return parsed, nil
}

// apply overrides cfg with the flags that were given.
func (f *flags) apply(cfg *config.Config) {
	if f.set.Changed("socket") {
		cfg.Socket.Path = f.socketPath
	}
	if f.set.Changed("device") {
		cfg.Device.Path = f.devicePath
	}
	if f.set.Changed("driver") {
		cfg.Device.Driver = f.driver
	}
	if f.set.Changed("baud") {
		cfg.Device.Baud = f.baud
	}
	if f.set.Changed("control-socket") {
		cfg.Control.SocketPath = f.controlSocket
	}
	if f.set.Changed("metrics-listen") {
		cfg.Metrics.Listen = f.metricsListen
	}
	if f.verbose {
		cfg.Log.Level = "debug"
	}
}

func (f *flags) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

func run() error {
	parsed, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &process.ExitError{Code: 2, Err: err}
	}

	if parsed.showVersion {
		version.Print("arduinod")
		return nil
	}
	if parsed.listPorts {
		return listPorts()
	}

	cfg, err := parsed.loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	logger.Info("arduinod starting", "version", version.Info())
	return (&daemon{config: cfg, logger: logger}).run(ctx)
}

func listPorts() error {
	ports, err := device.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(os.Stderr, "no serial ports found")
		return nil
	}
	for _, port := range ports {
		fmt.Println(port)
	}
	return nil
}

func printUsage(set *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `arduinod - relay an Arduino's serial output to local clients

USAGE
    arduinod [flags]

Reads rows of up to eight carriage-return separated fields from the
device and pushes each field to the clients subscribed to it on a unix
socket. Clients may also send bytes to the device through the same
socket. See arduino-read, arduino-send, arduino-watch and
arduino-status.

FLAGS
`)
	set.SetOutput(os.Stderr)
	set.PrintDefaults()
}
