// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 czeck6

package kunkin

import (
	"math"
	"testing"
)

// buildReadReply assembles a common-block read reply with a valid CRC.
func buildReadReply(address uint8, payload []byte) []byte {
	reply := append([]byte{address, FuncReadRegisters, byte(len(payload))}, payload...)
	return AppendCRC(reply)
}

// referencePayload: on, mode CC, 5000 mV, 1000 mA
var referencePayload = []byte{
	0b00000011,       // status: bit0 on, bits1-2 mode = 1 (CC)
	0x00,             // reserved
	0x00, 0x13, 0x88, // 5000 mV
	0x00, 0x03, 0xE8, // 1000 mA
}

func TestDecodeMeasurements_KnownVector(t *testing.T) {
	reply := buildReadReply(1, referencePayload)

	m := DecodeMeasurements(1, reply)
	if m == nil {
		t.Fatal("expected snapshot, got nil")
	}
	if !m.On {
		t.Error("expected On=true")
	}
	if m.Mode != ModeCC {
		t.Errorf("expected mode CC, got %s", m.Mode)
	}
	if math.Abs(m.VoltageV-5.0) > 1e-9 {
		t.Errorf("expected 5.0 V, got %g", m.VoltageV)
	}
	if math.Abs(m.CurrentA-1.0) > 1e-9 {
		t.Errorf("expected 1.0 A, got %g", m.CurrentA)
	}
	if math.Abs(m.PowerW()-5.0) > 1e-9 {
		t.Errorf("expected 5.0 W derived power, got %g", m.PowerW())
	}
}

func TestDecodeMeasurements_StatusBits(t *testing.T) {
	tests := []struct {
		name   string
		status byte
		on     bool
		mode   Mode
	}{
		{"off CV", 0b00000000, false, ModeCV},
		{"on CV", 0b00000001, true, ModeCV},
		{"on CC", 0b00000011, true, ModeCC},
		{"off CR", 0b00000100, false, ModeCR},
		{"on CW", 0b00000111, true, ModeCW},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := append([]byte(nil), referencePayload...)
			payload[0] = tt.status
			m := DecodeMeasurements(1, buildReadReply(1, payload))
			if m == nil {
				t.Fatal("expected snapshot, got nil")
			}
			if m.On != tt.on || m.Mode != tt.mode {
				t.Errorf("got on=%v mode=%s, expected on=%v mode=%s", m.On, m.Mode, tt.on, tt.mode)
			}
		})
	}
}

func TestDecodeMeasurements_NoReply(t *testing.T) {
	tests := []struct {
		name  string
		reply []byte
	}{
		{"absent", nil},
		{"below minimum length", []byte{0x01, 0x03, 0x02, 0x00, 0x00}},
		{"truncated payload", buildReadReply(1, referencePayload[:7])},
		{"wrong address", buildReadReply(2, referencePayload)},
		{"wrong function code", func() []byte {
			reply := append([]byte{0x01, FuncWriteRegister, byte(len(referencePayload))}, referencePayload...)
			return AppendCRC(reply)
		}()},
		{"corrupt CRC", func() []byte {
			reply := buildReadReply(1, referencePayload)
			reply[len(reply)-1] ^= 0xFF
			return reply
		}()},
		{"corrupt payload byte", func() []byte {
			reply := buildReadReply(1, referencePayload)
			reply[5] ^= 0x10 // payload damage makes the CRC fail
			return reply
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if m := DecodeMeasurements(1, tt.reply); m != nil {
				t.Errorf("expected nil snapshot, got %+v", m)
			}
		})
	}
}

func TestDecodeMeasurements_OverlongByteCount(t *testing.T) {
	// A declared byte count past the end of the reply must not panic or
	// read into the CRC bytes.
	reply := append([]byte{0x01, FuncReadRegisters, 0xFF}, referencePayload...)
	reply = AppendCRC(reply)

	m := DecodeMeasurements(1, reply)
	if m == nil {
		t.Fatal("expected snapshot despite overlong declared count")
	}
	if m.Mode != ModeCC || math.Abs(m.VoltageV-5.0) > 1e-9 {
		t.Errorf("bad decode: %+v", m)
	}
}
