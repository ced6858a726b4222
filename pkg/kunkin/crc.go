// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 czeck6

package kunkin

// CalculateCRC computes the CRC-16 (Modbus variant) checksum for the given
// data: seed 0xFFFF, reflected polynomial 0xA001. The device firmware
// rejects any frame whose checksum differs from this exact variant.
func CalculateCRC(data []byte) uint16 {
	crc := uint16(crcInitial)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ crcPolynomial
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// AppendCRC returns frame with its CRC-16 appended, low byte first.
func AppendCRC(frame []byte) []byte {
	crc := CalculateCRC(frame)
	return append(frame, byte(crc&0xFF), byte(crc>>8))
}

// VerifyCRC reports whether the trailing two bytes of frame are the valid
// CRC-16 of everything preceding them.
func VerifyCRC(frame []byte) bool {
	if len(frame) < 3 {
		return false
	}
	crc := CalculateCRC(frame[:len(frame)-2])
	return frame[len(frame)-2] == byte(crc&0xFF) && frame[len(frame)-1] == byte(crc>>8)
}
