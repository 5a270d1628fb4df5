package binlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDecodeDateTime2FractionalScenario exercises §8 scenario 3: a
// DATETIME2 value with fsp=3 decoding to "2024-06-15 07:45:22.100". The
// literal 8-byte array spec.md gives for this scenario packs a trailing
// 3-byte fraction (0x0186A0 = 100000 raw), which only arises for fsp 5
// or 6 under decodeFrac's ceil(fsp/2)-byte rule; fsp=3 reads exactly 2
// fractional bytes. The fixture below is the 5-byte date/time field plus
// the 2-byte fsp=3 fraction that actually encodes the scenario's target
// value (raw fraction 0x03E8 = 1000; odd fsp divides by 10 to 100, then
// 100 * 10^(6-3) = 100000us = ".100"), verified by reversing
// DecodeDateTime2's packing formula for 2024-06-15 07:45:22.
func TestDecodeDateTime2FractionalScenario(t *testing.T) {
	raw := []byte{0x99, 0xB3, 0x9E, 0x7B, 0x56, 0x03, 0xE8}
	s, n, err := DecodeDateTime2(raw, 3)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-15 07:45:22.100", s)
	assert.Equal(t, 7, n)
}

func TestDecodeDateTime2NoFraction(t *testing.T) {
	raw := []byte{0x99, 0xB3, 0x9E, 0x7B, 0x56}
	s, n, err := DecodeDateTime2(raw, 0)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-15 07:45:22", s)
	assert.Equal(t, 5, n)
}
