package binlog

import (
	"fmt"
	"strings"
)

const digitsPerInteger = 9

// compressedBytes maps a leftover digit count (0..9) to the number of
// bytes needed to store it, per the MySQL DECIMAL compact binary format.
var compressedBytes = [10]int{0, 1, 1, 2, 2, 3, 3, 4, 4, 4}

// DecodeDecimal decodes a MySQL compact-format DECIMAL value and returns
// its canonical string form plus the number of bytes consumed from buf.
//
// Layout: the integral part is split into full 9-digit groups (4 bytes
// each, most significant first) preceded by one leftover group of fewer
// than 9 digits; the fractional part mirrors this with the leftover
// group last. The sign occupies the high bit of the first byte: set for
// non-negative, clear for negative, and negative values have every byte
// bitwise-complemented before the rest of the decode runs.
func DecodeDecimal(buf []byte, precision, scale int) (string, int, error) {
	integral := precision - scale
	uncompIntegral := integral / digitsPerInteger
	uncompFractional := scale / digitsPerInteger
	compIntegral := integral - uncompIntegral*digitsPerInteger
	compFractional := scale - uncompFractional*digitsPerInteger

	binSize := uncompIntegral*4 + compressedBytes[compIntegral] +
		uncompFractional*4 + compressedBytes[compFractional]
	if binSize == 0 {
		binSize = 1
	}
	if len(buf) < binSize {
		return "", 0, fmt.Errorf("binlog: truncated decimal: have %d bytes, need %d", len(buf), binSize)
	}

	work := make([]byte, binSize)
	copy(work, buf[:binSize])

	positive := work[0]&0x80 != 0
	work[0] ^= 0x80
	if !positive {
		for i := range work {
			work[i] ^= 0xFF
		}
	}

	var sb strings.Builder
	if !positive {
		sb.WriteByte('-')
	}

	pos := 0
	wroteIntegral := false

	if compIntegral > 0 {
		size := compressedBytes[compIntegral]
		v := beUintN(work[pos : pos+size])
		if v != 0 {
			sb.WriteString(fmt.Sprintf("%d", v))
			wroteIntegral = true
		}
		pos += size
	}
	for i := 0; i < uncompIntegral; i++ {
		v := beUintN(work[pos : pos+4])
		if wroteIntegral {
			sb.WriteString(fmt.Sprintf("%09d", v))
		} else if v != 0 {
			sb.WriteString(fmt.Sprintf("%d", v))
			wroteIntegral = true
		}
		pos += 4
	}
	if !wroteIntegral {
		sb.WriteByte('0')
	}

	if scale > 0 {
		sb.WriteByte('.')
		for i := 0; i < uncompFractional; i++ {
			v := beUintN(work[pos : pos+4])
			sb.WriteString(fmt.Sprintf("%09d", v))
			pos += 4
		}
		if compFractional > 0 {
			size := compressedBytes[compFractional]
			v := beUintN(work[pos : pos+size])
			sb.WriteString(fmt.Sprintf("%0*d", compFractional, v))
			pos += size
		}
	}

	return sb.String(), binSize, nil
}

func beUintN(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
