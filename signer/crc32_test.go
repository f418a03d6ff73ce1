package signer

import (
	"hash/crc32"
	"testing"
)

func TestChecksumReferenceValue(t *testing.T) {
	// Standard CRC-32/ISO-HDLC check value.
	if got := Checksum([]byte("123456789")); got != 0xcbf43926 {
		t.Fatalf("Checksum(123456789) = %#x; want 0xcbf43926", got)
	}
}

func TestChecksumMatchesIEEE(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		[]byte("a"),
		[]byte("hello crosspost"),
		{0x00, 0xff, 0x10, 0x20, 0x7f},
	}
	for _, data := range cases {
		if got, want := Checksum(data), crc32.ChecksumIEEE(data); got != want {
			t.Fatalf("Checksum(%v) = %#x; want %#x", data, got, want)
		}
	}
}
