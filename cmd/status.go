// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 czeck6

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Read the load's live status and measurements",
	Long: `Read the load's common register block once and print the decoded
status: on/off state, operating mode, measured voltage, current and the
derived power.

Examples:
  # Local serial connection
  loadctl status --load-port /dev/ttyUSB0

  # Through a WebSocket serial bridge
  loadctl status --url ws://bench.local/load

Exit codes:
  0 - Status read successfully
  1 - Device did not reply
  2 - Connection error`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	driver, connInfo, err := openLoadDriver()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer driver.Close()

	fmt.Printf("Connection: %s (device address %d)\n", connInfo, driver.Address())

	m, err := driver.GetMeasurements()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Channel error: %v\n", err)
		os.Exit(2)
	}
	if m == nil {
		fmt.Fprintln(os.Stderr, "No reply from the load")
		os.Exit(1)
	}

	fmt.Printf("Mode:    %s\n", m.Mode)
	fmt.Printf("Input:   %s\n", onOff(m.On))
	fmt.Printf("Voltage: %.3f V\n", m.VoltageV)
	fmt.Printf("Current: %.3f A\n", m.CurrentA)
	fmt.Printf("Power:   %.3f W\n", m.PowerW())
	return nil
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
