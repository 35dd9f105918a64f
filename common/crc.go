// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package common holds helpers shared by the register map and its
// producers.
package common

// CRC8 returns the CRC-8 (polynomial 0x31, init 0xff, no reflection) of b.
//
// Register map records carry it as their trailing byte.
func CRC8(b []byte) byte {
	var crc byte = 0xff
	for _, val := range b {
		crc ^= val
		for range 8 {
			if crc&0x80 == 0 {
				crc <<= 1
			} else {
				crc = (crc << 1) ^ 0x31
			}
		}
	}
	return crc
}

// AppendCRC8 appends the CRC8 of payload to it, producing a record ready to
// be written to a register map region.
func AppendCRC8(payload []byte) []byte {
	return append(payload, CRC8(payload))
}
