// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 czeck6

package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/czeck6/KUNKIN-Load-Controller/pkg/kunkin"
)

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Write a setpoint or switch the load input",
	Long: `Write one setpoint register on the load and report whether the
device confirmed the write (the firmware echoes the command frame back on
success).

Out-of-range values are rejected locally before anything is transmitted:
voltage 0-150 V, current 0-30 A, resistance 0-80 Ohm, power 0-250 W.

Examples:
  loadctl set mode 1 --load-port /dev/ttyUSB0       # CC mode
  loadctl set current 1.5 --load-port /dev/ttyUSB0
  loadctl set on --load-port /dev/ttyUSB0

Exit codes:
  0 - Write confirmed by the device
  1 - Write not confirmed (no or mismatched echo)
  2 - Invalid input or connection error`,
}

var setModeCmd = &cobra.Command{
	Use:   "mode <0|1|2|3>",
	Short: "Set the operating mode (0=CV, 1=CC, 2=CR, 3=CW)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := strconv.Atoi(args[0])
		if err != nil || mode < 0 || mode > 255 {
			fmt.Fprintf(os.Stderr, "Invalid mode %q\n", args[0])
			os.Exit(2)
		}
		return runSetpoint("mode", func(d *kunkin.Driver) (bool, error) {
			return d.SetMode(kunkin.Mode(mode))
		})
	},
}

var setVoltageCmd = &cobra.Command{
	Use:   "voltage <volts>",
	Short: "Set the CV setpoint in volts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFloatSetpoint("voltage", args[0], (*kunkin.Driver).SetVoltage)
	},
}

var setCurrentCmd = &cobra.Command{
	Use:   "current <amps>",
	Short: "Set the CC setpoint in amperes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFloatSetpoint("current", args[0], (*kunkin.Driver).SetCurrent)
	},
}

var setResistanceCmd = &cobra.Command{
	Use:   "resistance <ohms>",
	Short: "Set the CR setpoint in ohms",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFloatSetpoint("resistance", args[0], (*kunkin.Driver).SetResistance)
	},
}

var setPowerCmd = &cobra.Command{
	Use:   "power <watts>",
	Short: "Set the CW setpoint in watts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFloatSetpoint("power", args[0], (*kunkin.Driver).SetPower)
	},
}

var setOnCmd = &cobra.Command{
	Use:   "on",
	Short: "Turn the load input on",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetpoint("input on", func(d *kunkin.Driver) (bool, error) {
			return d.SetPowerState(true)
		})
	},
}

var setOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Turn the load input off",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetpoint("input off", func(d *kunkin.Driver) (bool, error) {
			return d.SetPowerState(false)
		})
	},
}

func init() {
	setCmd.AddCommand(setModeCmd, setVoltageCmd, setCurrentCmd,
		setResistanceCmd, setPowerCmd, setOnCmd, setOffCmd)
	rootCmd.AddCommand(setCmd)
}

func runFloatSetpoint(label, arg string, op func(*kunkin.Driver, float64) (bool, error)) error {
	value, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid %s value %q\n", label, arg)
		os.Exit(2)
	}
	return runSetpoint(label, func(d *kunkin.Driver) (bool, error) {
		return op(d, value)
	})
}

func runSetpoint(label string, op func(*kunkin.Driver) (bool, error)) error {
	driver, connInfo, err := openLoadDriver()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer driver.Close()

	fmt.Printf("Connection: %s (device address %d)\n", connInfo, driver.Address())

	confirmed, err := op(driver)
	if err != nil {
		// Range and mode validation errors arrive here before any I/O
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if !confirmed {
		fmt.Printf("%s: write NOT confirmed\n", label)
		os.Exit(1)
	}
	fmt.Printf("%s: confirmed\n", label)
	return nil
}
