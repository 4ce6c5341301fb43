// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads arduinod configuration.
//
// Configuration comes from a single file named by the ARDUINOD_CONFIG
// environment variable (via [Load]) or a --config flag (via
// [LoadFile]). There is no search path. Without a file the daemon runs
// on [Default], which reproduces the historical behavior: /dev/arduino
// at 9600 baud relayed on a world-writable /tmp/arduino.sock.
//
// Files ending in .json or .jsonc are read as JSON with comments;
// anything else is YAML. Durations are Go duration strings and the
// socket mode is an octal string. ${VAR} and ${VAR:-default} are
// expanded in path fields, so "${XDG_RUNTIME_DIR:-/tmp}/arduino.sock"
// works. Command-line flags are applied by the caller after loading.
//
// This package depends on no other packages in this module.
package config
