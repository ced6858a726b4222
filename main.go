// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 czeck6
//
// loadctl - KUNKIN DC load and Kiprim power supply controller
//
// A CLI tool for driving a KUNKIN programmable DC load over its binary
// register protocol, with a live dashboard and bench-supply helpers.

package main

import (
	"os"

	"github.com/czeck6/KUNKIN-Load-Controller/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
