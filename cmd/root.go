// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 czeck6

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/czeck6/KUNKIN-Load-Controller/pkg/kunkin"
)

var (
	// Load serial connection flags
	loadPort    string
	loadBaud    int
	loadAddress int

	// Load WebSocket bridge flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Power supply serial connection flags
	psPort string
	psBaud int

	// Half-duplex timing policy flags
	settleMs  int
	gapMs     int
	maxWaitMs int
)

var rootCmd = &cobra.Command{
	Use:   "loadctl",
	Short: "KUNKIN DC Load Controller",
	Long: `Loadctl - control a KUNKIN programmable DC load and a Kiprim bench
power supply from the command line.

The load speaks a proprietary binary register protocol over RS232; the
supply speaks plain-text commands. Both are driven over local serial ports,
and the load can alternatively be reached through a WebSocket serial bridge.

Connection modes:
  Serial:    --load-port /dev/ttyUSB0 [--load-baud 9600]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the LOADCTL_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell
history.

The reply-framing heuristic (settle delay, inter-read gap, maximum wait) is
tunable with --settle-ms, --gap-ms and --max-wait-ms when a slow adapter
fragments replies.`,
	Version: "1.0.0",
}

func init() {
	// Load connection flags
	rootCmd.PersistentFlags().StringVarP(&loadPort, "load-port", "p", "", "Serial port of the DC load")
	rootCmd.PersistentFlags().IntVar(&loadBaud, "load-baud", 9600, "Baud rate for the load (serial only)")
	rootCmd.PersistentFlags().IntVarP(&loadAddress, "address", "a", kunkin.DefaultAddress, "Device address of the load")

	// WebSocket bridge flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket bridge URL for the load (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Power supply flags
	rootCmd.PersistentFlags().StringVar(&psPort, "ps-port", "", "Serial port of the power supply")
	rootCmd.PersistentFlags().IntVar(&psBaud, "ps-baud", 115200, "Baud rate for the power supply")

	// Timing flags
	rootCmd.PersistentFlags().IntVar(&settleMs, "settle-ms", 100, "Settle delay after transmit before reading (ms)")
	rootCmd.PersistentFlags().IntVar(&gapMs, "gap-ms", 50, "Quiet gap that ends a reply (ms)")
	rootCmd.PersistentFlags().IntVar(&maxWaitMs, "max-wait-ms", 2000, "Upper bound on waiting for one reply (ms)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
