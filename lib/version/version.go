// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags -X. Builds without ldflags fall back to the VCS
// stamp the go command embeds.
var (
	Version   = "0.1.0-dev"
	GitCommit = ""
	BuildTime = ""
)

// Info returns "<version> (<commit>[-dirty], <time>)". Unknown parts
// read "unknown".
func Info() string {
	commit, modified, built := GitCommit, false, BuildTime
	if commit == "" {
		commit, modified, built = vcsStamp()
	}
	if commit == "" {
		commit = "unknown"
	}
	if built == "" {
		built = "unknown"
	}
	if modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (%s, %s)", Version, commit, built)
}

// vcsStamp reads the revision, dirty flag and commit time recorded in
// the binary's build info.
func vcsStamp() (revision string, modified bool, committed string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false, ""
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
			if len(revision) > 12 {
				revision = revision[:12]
			}
		case "vcs.modified":
			modified = setting.Value == "true"
		case "vcs.time":
			committed = setting.Value
		}
	}
	return revision, modified, committed
}

// Print writes "<binary> <Info> <go version> <os>/<arch>" to stdout for
// --version.
func Print(binary string) {
	fmt.Printf("%s %s %s %s/%s\n", binary, Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
