// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 czeck6

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var monitorInterval int

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Continuously poll and display load measurements",
	Long: `Poll the load's common register block on an interval and print the
decoded status on a single updating line.

While monitoring, pressing 'q' (or Ctrl+C) triggers the emergency stop: the
load input is switched off before the command exits. Never leave a powered
test unattended without this running.

Examples:
  loadctl monitor --load-port /dev/ttyUSB0
  loadctl monitor --load-port /dev/ttyUSB0 --interval-ms 500`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVar(&monitorInterval, "interval-ms", 1000, "Polling interval in milliseconds")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	driver, connInfo, err := openLoadDriver()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer driver.Close()

	fmt.Printf("Loadctl - Live Monitor\n")
	fmt.Printf("Connection: %s (device address %d)\n", connInfo, driver.Address())
	fmt.Printf("Press 'q' to kill the load and exit\n\n")

	// Raw mode so single keypresses arrive without Enter. If stdin is not a
	// terminal (piped), monitoring still works, just without the watchdog.
	var restore func()
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err == nil {
			restore = func() { term.Restore(fd, oldState) }
			defer restore()
		}
	}

	keys := make(chan byte, 1)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n > 0 {
				select {
				case keys <- buf[0]:
				default:
				}
			}
		}
	}()

	ticker := time.NewTicker(time.Duration(monitorInterval) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case key := <-keys:
			if key == 'q' || key == 'Q' || key == 0x03 { // 0x03 = Ctrl+C in raw mode
				if restore != nil {
					restore()
					restore = nil
				}
				fmt.Printf("\n[!] EMERGENCY SHUTDOWN ACTIVATED\n")
				confirmed, err := driver.SetPowerState(false)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Shutdown write failed: %v\n", err)
					os.Exit(2)
				}
				if !confirmed {
					fmt.Fprintln(os.Stderr, "Shutdown write NOT confirmed - check the load!")
					os.Exit(1)
				}
				fmt.Println("Load input off.")
				return nil
			}

		case <-ticker.C:
			m, err := driver.GetMeasurements()
			if err != nil {
				fmt.Printf("\r[channel error: %v]          ", err)
				continue
			}
			if m == nil {
				fmt.Printf("\r[no reply]                                                    ")
				continue
			}
			fmt.Printf("\rMode: %s | Load ON: %-5v | Voltage: %7.3f V | Current: %7.3f A | Power: %8.3f W   ",
				m.Mode, m.On, m.VoltageV, m.CurrentA, m.PowerW())
		}
	}
}
