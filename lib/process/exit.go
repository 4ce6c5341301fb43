// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"os"
)

// ExitError carries a specific exit status out of run(). Fatal exits
// with Code instead of 1 and prints Err only when it is non-nil.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// Fatal writes "error: err" to stderr and exits with code 1, or with
// the code carried by an *ExitError.
func Fatal(err error) {
	var exitError *ExitError
	if errors.As(err, &exitError) {
		if exitError.Err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", exitError.Err)
		}
		os.Exit(exitError.Code)
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
