// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

// arduino-read subscribes to arduinod and prints the selected inputs.
//
//	arduino-read 1 3      # stream inputs 1 and 3 until interrupted
//	arduino-read -t 2     # print one reading of input 2 and exit
//
// Lines from different inputs are interleaved in field order and carry
// no label; use arduino-watch to see inputs side by side.
package main
