package crc

import "fmt"

const poly = 0x1021

// Checksum computes CRC-16/CCITT-FALSE over the code points of s and returns
// it as a 4-hex-digit uppercase string. Init 0xFFFF, no final XOR, no
// reflection; KHQR payloads pin this exact variant.
func Checksum(s string) string {
	reg := 0xFFFF
	for _, r := range s {
		reg ^= int(r) << 8
		for i := 0; i < 8; i++ {
			if reg&0x8000 != 0 {
				reg = (reg << 1) ^ poly
			} else {
				reg <<= 1
			}
			reg &= 0xFFFF
		}
	}
	return fmt.Sprintf("%04X", reg)
}
