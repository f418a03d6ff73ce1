package signer

import "sync"

// CRC-32/ISO-HDLC, the variant object-storage upload endpoints expect in
// their checksum header. The reflected table is built once per process.

const crcPoly = 0xedb88320

var (
	crcOnce  sync.Once
	crcTable [256]uint32
)

func buildTable() {
	for i := uint32(0); i < 256; i++ {
		c := i
		for k := 0; k < 8; k++ {
			if c&1 != 0 {
				c = crcPoly ^ (c >> 1)
			} else {
				c >>= 1
			}
		}
		crcTable[i] = c
	}
}

// Checksum computes the CRC-32/ISO-HDLC value of data.
func Checksum(data []byte) uint32 {
	crcOnce.Do(buildTable)
	crc := ^uint32(0)
	for _, b := range data {
		crc = crcTable[(crc^uint32(b))&0xff] ^ (crc >> 8)
	}
	return ^crc
}
