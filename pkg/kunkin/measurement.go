// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 czeck6

package kunkin

import (
	"time"
)

// Measurements is an immutable snapshot decoded from one common-block read.
type Measurements struct {
	On        bool
	Mode      Mode
	VoltageV  float64
	CurrentA  float64
	Timestamp time.Time
}

// PowerW returns the dissipated power derived from the snapshot.
func (m *Measurements) PowerW() float64 {
	return m.VoltageV * m.CurrentA
}

// DecodeMeasurements parses a common-block read reply into a snapshot.
//
// Reply layout: {addr, 0x03, byteCount, payload..., crcLo, crcHi} where the
// payload is status byte (bit 0 on/off, bits 1-2 mode), one reserved byte,
// voltage in mV as a big-endian 3-byte integer, then current in mA the same
// way.
//
// A reply that is absent, shorter than the minimum, header-mismatched, or
// CRC-corrupt yields nil. Transient silence is expected on a polled
// half-duplex link, so absence is a result, not an error.
func DecodeMeasurements(address uint8, reply []byte) *Measurements {
	if len(reply) < MinReplySize {
		return nil
	}
	if reply[0] != address || reply[1] != FuncReadRegisters {
		return nil
	}
	if !VerifyCRC(reply) {
		return nil
	}

	end := 3 + int(reply[2])
	if end > len(reply)-2 {
		end = len(reply) - 2
	}
	payload := reply[3:end]
	if len(payload) < MeasurementPayload {
		return nil
	}

	status := payload[0]
	voltageMV := uint32(payload[2])<<16 | uint32(payload[3])<<8 | uint32(payload[4])
	currentMA := uint32(payload[5])<<16 | uint32(payload[6])<<8 | uint32(payload[7])

	return &Measurements{
		On:        status&0x01 != 0,
		Mode:      Mode((status >> 1) & 0x03),
		VoltageV:  float64(voltageMV) / 1000.0,
		CurrentA:  float64(currentMA) / 1000.0,
		Timestamp: time.Now(),
	}
}
