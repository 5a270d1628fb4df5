package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLenEncIntRoundTrip(t *testing.T) {
	values := []uint64{0, 250, 251, 0xFFFF, 0x10000, 0xFFFFFF, 0x1000000}
	for _, v := range values {
		enc := WriteLenEncInt(nil, v)
		got, rest, err := ReadLenEncInt(enc)
		require.NoError(t, err)
		assert.Empty(t, rest)
		assert.Equal(t, v, got)
	}
}

func TestLenEncStringRoundTrip(t *testing.T) {
	payloads := [][]byte{{}, []byte("hi"), make([]byte, 300)}
	for _, p := range payloads {
		enc := WriteLenEncString(nil, p)
		got, rest, err := ReadLenEncString(enc)
		require.NoError(t, err)
		assert.Empty(t, rest)
		assert.Equal(t, p, got)
	}
}

func TestLenEncIntRejectsFF(t *testing.T) {
	_, _, err := ReadLenEncInt([]byte{0xFF})
	assert.ErrorIs(t, err, ErrBadLenEnc)
}

func TestFixedWidthIntRoundTrips(t *testing.T) {
	b := WriteU24(nil, 0xABCDEF)
	v, rest, err := ReadU24(b)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, uint32(0xABCDEF), v)

	b = WriteU32(nil, 0x01020304)
	v2, rest, err := ReadU32(b)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, uint32(0x01020304), v2)
}

func TestReadU48(t *testing.T) {
	raw := []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00}
	v, rest, err := ReadU48(raw)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, uint64(1), v)
}

func TestReadBEIntSignExtends(t *testing.T) {
	v, _, err := ReadBEInt([]byte{0xFF, 0xFF, 0xFF, 0xFF}, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v)

	v2, _, err := ReadBEInt([]byte{0x7F, 0xFF}, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0x7FFF), v2)
}

func TestNullTerminatedString(t *testing.T) {
	b := WriteNullTerminatedString(nil, "hello")
	s, rest, err := ReadNullTerminatedString(b)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
	assert.Empty(t, rest)
}

func TestTruncatedReadsError(t *testing.T) {
	_, _, err := ReadU32([]byte{1, 2})
	assert.ErrorIs(t, err, ErrTruncated)

	_, _, err = ReadNullTerminatedString([]byte("no-terminator"))
	assert.ErrorIs(t, err, ErrTruncated)
}
