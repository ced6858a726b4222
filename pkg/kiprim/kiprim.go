// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 czeck6

// Package kiprim drives a Kiprim bench power supply over its plain-text
// command protocol (SCPI-ish, newline terminated). It is a thin collaborator
// next to the load driver: setpoints, output control, and two measurement
// queries.
package kiprim

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Conn is the byte channel the supply driver owns. Reads must time out
// rather than block forever; a timed-out Read returns (0, nil).
// go.bug.st/serial.Port satisfies this interface directly.
type Conn interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Default query timing for the 115200 baud link.
const (
	defaultQueryGap  = 50 * time.Millisecond
	defaultQueryWait = 1 * time.Second
)

// Supply is a session with one power supply. Commands are serialized; the
// protocol has no request identifiers.
type Supply struct {
	mu        sync.Mutex
	conn      Conn
	queryGap  time.Duration // quiet gap that ends a query reply
	queryWait time.Duration // hard bound on waiting for a query reply
}

// NewSupply creates a supply driver owning conn.
func NewSupply(conn Conn) *Supply {
	return &Supply{
		conn:      conn,
		queryGap:  defaultQueryGap,
		queryWait: defaultQueryWait,
	}
}

// Close closes the owned channel.
func (s *Supply) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// SetVoltage sets the output voltage setpoint in volts.
func (s *Supply) SetVoltage(volts float64) error {
	return s.send("VOLT " + formatSetpoint(volts))
}

// SetCurrent sets the output current limit in amperes.
func (s *Supply) SetCurrent(amps float64) error {
	return s.send("CURR " + formatSetpoint(amps))
}

// OutputOn enables the output stage.
func (s *Supply) OutputOn() error {
	return s.send("OUTP ON")
}

// OutputOff zeroes both setpoints. The firmware keeps the output stage
// engaged, so driving both setpoints to zero is the reliable "off".
func (s *Supply) OutputOff() error {
	if err := s.send("CURR 0.0"); err != nil {
		return err
	}
	return s.send("VOLT 0.0")
}

// MeasureVoltage queries the measured output voltage in volts.
func (s *Supply) MeasureVoltage() (float64, error) {
	return s.query("MEAS:VOLT?")
}

// MeasureCurrent queries the measured output current in amperes.
func (s *Supply) MeasureCurrent() (float64, error) {
	return s.query("MEAS:CURR?")
}

// send writes one newline-terminated command.
func (s *Supply) send(cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.conn.Write([]byte(cmd + "\n")); err != nil {
		return fmt.Errorf("send %q: %w", cmd, err)
	}
	return nil
}

// query sends a command and reads the numeric line the supply answers with.
func (s *Supply) query(cmd string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.ResetInputBuffer(); err != nil {
		return 0, fmt.Errorf("reset input buffer: %w", err)
	}
	if _, err := s.conn.Write([]byte(cmd + "\n")); err != nil {
		return 0, fmt.Errorf("send %q: %w", cmd, err)
	}
	if err := s.conn.SetReadTimeout(s.queryGap); err != nil {
		return 0, fmt.Errorf("set read timeout: %w", err)
	}

	deadline := time.Now().Add(s.queryWait)
	buf := make([]byte, 64)
	var reply []byte
	for {
		n, err := s.conn.Read(buf)
		if err != nil {
			return 0, fmt.Errorf("read reply: %w", err)
		}
		if n > 0 {
			reply = append(reply, buf[:n]...)
			if reply[len(reply)-1] == '\n' {
				break
			}
		}
		if n == 0 && len(reply) > 0 {
			break
		}
		if time.Now().After(deadline) {
			break
		}
	}

	text := strings.TrimSpace(string(reply))
	if text == "" {
		return 0, fmt.Errorf("no reply to %q", cmd)
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("bad reply %q to %q: %w", text, cmd, err)
	}
	return value, nil
}

// formatSetpoint renders a setpoint the way the firmware expects: four
// decimal places, truncated to at most six characters. Longer arguments are
// silently ignored by the device.
func formatSetpoint(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	if len(s) > 6 {
		s = s[:6]
	}
	return s
}
