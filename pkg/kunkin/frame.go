// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 czeck6

package kunkin

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// BuildWriteFrame creates a complete write-single-register frame ready for
// transmission. The register value always travels as a 4-byte big-endian
// word; the register count (0x0001) and byte count (0x04) fields are fixed
// by the protocol. No range validation happens here - callers encode values
// through the register table first.
func BuildWriteFrame(address uint8, register uint16, value uint32) []byte {
	frame := make([]byte, 0, WriteFrameSize)
	frame = append(frame,
		address,
		FuncWriteRegister,
		byte(register>>8),
		byte(register&0xFF),
		0x00, 0x01, // number of registers, always 1
		0x04, // data byte count, always 4
	)
	frame = binary.BigEndian.AppendUint32(frame, value)
	return AppendCRC(frame)
}

// BuildReadCommonFrame creates the read request for the common register
// block. The trailing two pre-CRC bytes are ignored by the device but must
// be present.
func BuildReadCommonFrame(address uint8) []byte {
	frame := []byte{
		address,
		FuncReadRegisters,
		byte(CommonBlockAddress >> 8),
		byte(CommonBlockAddress & 0xFF),
		0x00, 0x00,
	}
	return AppendCRC(frame)
}

// EchoConfirms reports whether reply confirms the transmitted write frame.
// The device echoes the command back verbatim on success; some firmware
// revisions truncate the echo, so a non-empty prefix also confirms. Any
// differing byte means the write was not confirmed.
func EchoConfirms(cmd, reply []byte) bool {
	if len(reply) == 0 || len(reply) > len(cmd) {
		return false
	}
	return bytes.Equal(reply, cmd[:len(reply)])
}

// ParseWriteFrame decodes a write-single-register frame back into its
// register address and value, verifying structure and CRC. Mostly useful
// for loopback verification and tests.
func ParseWriteFrame(frame []byte) (address uint8, register uint16, value uint32, err error) {
	if len(frame) != WriteFrameSize {
		return 0, 0, 0, fmt.Errorf("bad frame length %d (want %d)", len(frame), WriteFrameSize)
	}
	if frame[1] != FuncWriteRegister {
		return 0, 0, 0, fmt.Errorf("unexpected function code 0x%02X", frame[1])
	}
	if frame[4] != 0x00 || frame[5] != 0x01 || frame[6] != 0x04 {
		return 0, 0, 0, fmt.Errorf("unexpected count fields % X", frame[4:7])
	}
	if !VerifyCRC(frame) {
		return 0, 0, 0, fmt.Errorf("CRC mismatch")
	}
	address = frame[0]
	register = uint16(frame[2])<<8 | uint16(frame[3])
	value = binary.BigEndian.Uint32(frame[7:11])
	return address, register, value, nil
}
