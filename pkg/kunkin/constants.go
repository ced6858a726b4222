// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 czeck6

// Package kunkin drives a KUNKIN KP-series programmable DC load over its
// proprietary binary register protocol.
//
// The protocol is Modbus-RTU-shaped but not Modbus: every setpoint register
// is written as a 4-byte big-endian word, a successful write is confirmed by
// the device echoing the command frame back, and live measurements are read
// through a single "common block" request rather than per-register reads.
// Frames carry a CRC-16 (Modbus polynomial) transmitted low byte first.
package kunkin

// Function codes
const (
	FuncWriteRegister = 0x06
	FuncReadRegisters = 0x03
)

// CommonBlockAddress is the special register address the device interprets
// as "return all live status/measurement registers in one reply".
const CommonBlockAddress = 0x0300

// CRC-16 (Modbus variant) configuration
const (
	crcPolynomial = 0xA001
	crcInitial    = 0xFFFF
)

// Frame size constants
const (
	WriteFrameSize     = 13 // addr + func + reg(2) + count(2) + len + data(4) + crc(2)
	ReadRequestSize    = 8  // addr + func + reg(2) + pad(2) + crc(2)
	MinReplySize       = 6  // anything shorter is treated as no reply
	MeasurementPayload = 8  // status + reserved + voltage(3) + current(3)
)

// DefaultAddress is the factory device address.
const DefaultAddress = 1

// Mode is the load's operating mode, as encoded in the mode register and in
// bits 1-2 of the status byte.
type Mode uint8

// Operating modes
const (
	ModeCV Mode = 0 // constant voltage
	ModeCC Mode = 1 // constant current
	ModeCR Mode = 2 // constant resistance
	ModeCW Mode = 3 // constant power
)

// String returns the conventional two-letter name for the mode.
func (m Mode) String() string {
	switch m {
	case ModeCV:
		return "CV"
	case ModeCC:
		return "CC"
	case ModeCR:
		return "CR"
	case ModeCW:
		return "CW"
	default:
		return "??"
	}
}

// Valid reports whether the mode is one the device accepts.
func (m Mode) Valid() bool {
	return m <= ModeCW
}
