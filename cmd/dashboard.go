// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 czeck6

package cmd

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI for the load and power supply",
	Long: `Control the KUNKIN load and the Kiprim power supply from a live
terminal dashboard.

Features:
  - Live load status at 1 Hz (mode, input state, voltage, current, power)
  - Live supply readback (measured voltage and current)
  - Per-mode setpoint entry (the input follows the load's active mode)
  - Supply voltage/current setpoint entry
  - One-key input/output switching
  - Event log of every write and its echo confirmation

Tab cycles between the input fields, Enter submits the focused one.
'o'/'f' switch the load input on/off, 'O'/'F' the supply output.

The power supply panel appears only when --ps-port is given; the load
connection (serial or WebSocket) is required.`,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	driver, connInfo, err := openLoadDriver()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer driver.Close()

	supply, err := openSupply()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Power supply connection error: %v\n", err)
		os.Exit(2)
	}
	if supply != nil {
		defer supply.Close()
	}

	m := initialDashModel(driver, supply, connInfo)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
