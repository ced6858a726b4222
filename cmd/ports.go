// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 czeck6

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.bug.st/serial"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List available serial ports",
	Long: `List the serial ports present on this machine.

Useful for finding the right --load-port / --ps-port values. USB-serial
adapters usually show up as /dev/ttyUSB* on Linux and COM* on Windows.`,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := serial.GetPortsList()
	if err != nil {
		return fmt.Errorf("failed to enumerate serial ports: %v", err)
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}

	for _, port := range ports {
		fmt.Println(port)
	}
	return nil
}
