// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// maxSocketPath is the usable length of sockaddr_un.sun_path on Linux.
const maxSocketPath = 107

// SocketDir returns a fresh directory under /tmp for unix sockets and
// FIFOs, removed when the test ends. t.TempDir paths embed the test
// name and easily exceed the sun_path limit.
func SocketDir(t *testing.T) string {
	t.Helper()
	directory, err := os.MkdirTemp("/tmp", "arduinod-test-*")
	if err != nil {
		t.Fatalf("creating socket directory: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(directory) })
	return directory
}

// SocketPath returns a path for a socket called name inside a fresh
// SocketDir, failing the test if the kernel would reject it.
func SocketPath(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(SocketDir(t), name)
	if len(path) > maxSocketPath {
		t.Fatalf("socket path %q is %d bytes, limit %d", path, len(path), maxSocketPath)
	}
	return path
}
