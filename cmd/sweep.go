// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 czeck6

package cmd

import (
	"fmt"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
)

var (
	sweepAmplitude float64
	sweepOffset    float64
	sweepFrequency float64
	sweepPeriodSec int
	sweepCycles    int
	sweepHeadroom  float64
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Drive the power supply through a half-sine setpoint sweep",
	Long: `Step the power supply's current setpoint through a sine waveform,
with the voltage setpoint tracking slightly above it. Useful for exercising
a device under test with a slow, repeatable load profile.

The waveform is amplitude*sin(frequency*t) + offset over one full cycle,
sampled at 100 points per radian and stretched to --period seconds. Samples
below 10 mA are clamped to zero. Both setpoints are zeroed on exit, Ctrl+C
included.

Example:
  loadctl sweep --ps-port /dev/ttyUSB1 --amplitude 0.5 --offset 0.5 --cycles 3`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().Float64Var(&sweepAmplitude, "amplitude", 0.5, "Waveform amplitude in amperes")
	sweepCmd.Flags().Float64Var(&sweepOffset, "offset", 0.5, "Waveform offset in amperes")
	sweepCmd.Flags().Float64Var(&sweepFrequency, "frequency", 1, "Waveform frequency multiplier")
	sweepCmd.Flags().IntVar(&sweepPeriodSec, "period", 60, "Seconds one waveform cycle is stretched over")
	sweepCmd.Flags().IntVar(&sweepCycles, "cycles", 1, "Number of full cycles to run")
	sweepCmd.Flags().Float64Var(&sweepHeadroom, "headroom", 0.05, "Volts to keep the voltage setpoint above the current setpoint")
}

func runSweep(cmd *cobra.Command, args []string) error {
	if psPort == "" {
		fmt.Fprintln(os.Stderr, "--ps-port is required for sweep")
		os.Exit(2)
	}
	supply, err := openSupply()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer supply.Close()

	// The supply must never be left driving the last sample.
	defer func() {
		if err := supply.OutputOff(); err != nil {
			fmt.Fprintf(os.Stderr, "\nFailed to zero supply on exit: %v\n", err)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	// One full cycle sampled at ~100 points per unit of t
	duration := 2 * math.Pi
	samples := int(100 * duration)
	delay := time.Duration(float64(sweepPeriodSec) / float64(samples) * float64(time.Second))

	fmt.Printf("Loadctl - Supply Sweep\n")
	fmt.Printf("Port: %s @ %d baud\n", psPort, psBaud)
	fmt.Printf("Cycles: %d, %d samples per cycle, %v per step\n\n", sweepCycles, samples, delay)

	for cycle := 0; cycle < sweepCycles; cycle++ {
		for i := 0; i < samples; i++ {
			t := duration * float64(i) / float64(samples)
			value := sweepAmplitude*math.Sin(sweepFrequency*t) + sweepOffset
			if value < 0.01 {
				value = 0.0
			}

			if err := supply.SetCurrent(value); err != nil {
				return fmt.Errorf("set current: %w", err)
			}
			if err := supply.SetVoltage(value + sweepHeadroom); err != nil {
				return fmt.Errorf("set voltage: %w", err)
			}
			fmt.Printf("\rCycle %d/%d  step %3d/%d  setpoint %.4f A   ",
				cycle+1, sweepCycles, i+1, samples, value)

			select {
			case <-interrupt:
				fmt.Printf("\nInterrupted - zeroing supply\n")
				return nil
			case <-time.After(delay):
			}
		}
	}

	fmt.Printf("\nSweep complete - zeroing supply\n")
	return nil
}
