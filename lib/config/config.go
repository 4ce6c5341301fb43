// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable Load reads the config path from.
const EnvironmentVariable = "ARDUINOD_CONFIG"

// Config is the daemon configuration.
type Config struct {
	// Socket configures the client socket.
	Socket SocketConfig `yaml:"socket" json:"socket"`

	// Control configures the status socket.
	Control ControlConfig `yaml:"control" json:"control"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Device configures the serial source.
	Device DeviceConfig `yaml:"device" json:"device"`

	// Stream configures framing of the device output.
	Stream StreamConfig `yaml:"stream" json:"stream"`

	// Log configures logging.
	Log LogConfig `yaml:"log" json:"log"`
}

// SocketConfig configures the unix socket clients connect to.
type SocketConfig struct {
	// Path is where the socket is created. A stale file at this path
	// is removed at startup.
	// Default: /tmp/arduino.sock
	Path string `yaml:"path" json:"path"`

	// Mode is the permission applied to the socket file, in octal.
	// Default: 0777 (any local user may read and send)
	Mode FileMode `yaml:"mode" json:"mode"`

	// HandshakeTimeout bounds how long a client may stay silent after
	// connecting.
	// Default: 5s
	HandshakeTimeout Duration `yaml:"handshake_timeout" json:"handshake_timeout"`
}

// ControlConfig configures the status socket.
type ControlConfig struct {
	// SocketPath is the CBOR status socket. Empty disables it.
	// Default: /tmp/arduino.control.sock
	SocketPath string `yaml:"socket_path" json:"socket_path"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the TCP address serving /metrics. Empty disables it.
	Listen string `yaml:"listen" json:"listen"`
}

// DeviceConfig configures the serial source.
type DeviceConfig struct {
	// Path is the device node.
	// Default: /dev/arduino
	Path string `yaml:"path" json:"path"`

	// Driver is "termios" or "serial".
	// Default: termios
	Driver string `yaml:"driver" json:"driver"`

	// Baud is the line speed.
	// Default: 9600
	Baud int `yaml:"baud" json:"baud"`

	// ReadTimeout bounds each device read. Shutdown waits at most this
	// long for the main loop to notice.
	// Default: 1s
	ReadTimeout Duration `yaml:"read_timeout" json:"read_timeout"`

	// RetryInterval is the pause after a read that returned nothing.
	// Default: 250ms
	RetryInterval Duration `yaml:"retry_interval" json:"retry_interval"`

	// WriteRate caps forwarded send payloads in bytes per second.
	// Zero disables pacing.
	WriteRate int `yaml:"write_rate" json:"write_rate"`
}

// StreamConfig configures framing of the device output.
type StreamConfig struct {
	// FieldSeparator ends a field. Exactly one byte.
	// Default: "\r"
	FieldSeparator string `yaml:"field_separator" json:"field_separator"`

	// RowSeparator ends a row. Exactly one byte.
	// Default: "\n"
	RowSeparator string `yaml:"row_separator" json:"row_separator"`

	// LineTerminator is appended to every line pushed to subscribers.
	// Default: "\n"
	LineTerminator string `yaml:"line_terminator" json:"line_terminator"`

	// LineCapacity bounds a pushed line, terminator included.
	// Default: 512
	LineCapacity int `yaml:"line_capacity" json:"line_capacity"`

	// Overflow is "fail" (stop the daemon) or "resync" (drop the row).
	// Default: fail
	Overflow string `yaml:"overflow" json:"overflow"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	// Default: info
	Level string `yaml:"level" json:"level"`

	// Format is auto, text or json. Auto picks text on a terminal.
	// Default: auto
	Format string `yaml:"format" json:"format"`
}

// Default returns the configuration used when no file is given. Every
// field has a usable value; a config file only needs the keys it
// changes.
func Default() *Config {
	return &Config{
		Socket: SocketConfig{
			Path:             "/tmp/arduino.sock",
			Mode:             0o777,
			HandshakeTimeout: Duration(5 * time.Second),
		},
		Control: ControlConfig{
			SocketPath: "/tmp/arduino.control.sock",
		},
		Device: DeviceConfig{
			Path:          "/dev/arduino",
			Driver:        "termios",
			Baud:          9600,
			ReadTimeout:   Duration(time.Second),
			RetryInterval: Duration(250 * time.Millisecond),
		},
		Stream: StreamConfig{
			FieldSeparator: "\r",
			RowSeparator:   "\n",
			LineTerminator: "\n",
			LineCapacity:   512,
			Overflow:       "fail",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads the file named by ARDUINOD_CONFIG, or returns Default when
// the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path over the defaults. Files ending
// in .json or .jsonc are parsed as JSON with comments; anything else is
// YAML. Path fields have ${VAR} and ${VAR:-default} expanded.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	cfg.expandVariables()
	return cfg, nil
}

// loadFile merges a single file into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return json.Unmarshal(jsonc.ToJSON(data), c)
	default:
		return yaml.Unmarshal(data, c)
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	c.Socket.Path = expandVars(c.Socket.Path)
	c.Control.SocketPath = expandVars(c.Control.SocketPath)
	c.Device.Path = expandVars(c.Device.Path)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

var (
	drivers         = []string{"termios", "serial"}
	overflowActions = []string{"fail", "resync"}
	logLevels       = []string{"debug", "info", "warn", "error"}
	logFormats      = []string{"auto", "text", "json"}
)

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Socket.Path == "" {
		errs = append(errs, errors.New("socket.path is required"))
	}
	if c.Socket.Mode > 0o777 {
		errs = append(errs, fmt.Errorf("socket.mode %s has bits outside 0777", c.Socket.Mode))
	}
	if c.Socket.HandshakeTimeout <= 0 {
		errs = append(errs, errors.New("socket.handshake_timeout must be positive"))
	}
	if c.Control.SocketPath != "" && c.Control.SocketPath == c.Socket.Path {
		errs = append(errs, errors.New("control.socket_path must differ from socket.path"))
	}

	if c.Device.Path == "" {
		errs = append(errs, errors.New("device.path is required"))
	}
	if !slices.Contains(drivers, c.Device.Driver) {
		errs = append(errs, fmt.Errorf("device.driver must be one of: %v", drivers))
	}
	if c.Device.Baud <= 0 {
		errs = append(errs, errors.New("device.baud must be positive"))
	}
	if c.Device.ReadTimeout <= 0 {
		errs = append(errs, errors.New("device.read_timeout must be positive"))
	}
	if c.Device.RetryInterval <= 0 {
		errs = append(errs, errors.New("device.retry_interval must be positive"))
	}
	if c.Device.WriteRate < 0 {
		errs = append(errs, errors.New("device.write_rate must not be negative"))
	}

	if len(c.Stream.FieldSeparator) != 1 {
		errs = append(errs, fmt.Errorf("stream.field_separator must be one byte, got %q", c.Stream.FieldSeparator))
	}
	if len(c.Stream.RowSeparator) != 1 {
		errs = append(errs, fmt.Errorf("stream.row_separator must be one byte, got %q", c.Stream.RowSeparator))
	}
	if c.Stream.FieldSeparator == c.Stream.RowSeparator {
		errs = append(errs, errors.New("stream.field_separator and stream.row_separator must differ"))
	}
	if c.Stream.LineCapacity <= len(c.Stream.LineTerminator) {
		errs = append(errs, fmt.Errorf("stream.line_capacity %d must exceed the terminator length", c.Stream.LineCapacity))
	}
	if !slices.Contains(overflowActions, c.Stream.Overflow) {
		errs = append(errs, fmt.Errorf("stream.overflow must be one of: %v", overflowActions))
	}

	if !slices.Contains(logLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", logLevels))
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", logFormats))
	}

	return errors.Join(errs...)
}

// Duration is a time.Duration written as a Go duration string ("250ms",
// "5s") in config files.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// FileMode is a permission mask written in octal ("0777", "0o660").
type FileMode os.FileMode

// Perm returns the value as an os.FileMode.
func (m FileMode) Perm() os.FileMode { return os.FileMode(m) }

func (m FileMode) String() string { return fmt.Sprintf("%#o", uint32(m)) }

// MarshalText implements encoding.TextMarshaler.
func (m FileMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *FileMode) UnmarshalText(text []byte) error {
	digits := strings.TrimPrefix(strings.TrimPrefix(string(text), "0o"), "0O")
	parsed, err := strconv.ParseUint(digits, 8, 32)
	if err != nil {
		return fmt.Errorf("invalid file mode %q (want octal, e.g. 0660): %w", text, err)
	}
	*m = FileMode(parsed)
	return nil
}
