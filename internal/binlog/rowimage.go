package binlog

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ipconfiger/ru-cdc/internal/wire"
)

// DecodeColumnValue decodes one column's value from buf given its type
// and metadata, returning the value plus the number of bytes consumed.
// TEXT/BLOB columns are returned as raw []byte; the Canal JSON builder
// is responsible for the UTF-8/UTF-16 coercion described in §4.4.
func DecodeColumnValue(buf []byte, t ColumnType, meta ColumnMeta) (interface{}, int, error) {
	switch t {
	case ColTiny:
		if len(buf) < 1 {
			return nil, 0, fmt.Errorf("binlog: truncated tinyint")
		}
		return int8(buf[0]), 1, nil
	case ColShort:
		v16, _, err := wire.ReadU16(buf)
		if err != nil {
			return nil, 0, fmt.Errorf("binlog: truncated smallint: %w", err)
		}
		return int16(v16), 2, nil
	case ColInt24:
		v, _, err := wire.ReadI24(buf)
		if err != nil {
			return nil, 0, fmt.Errorf("binlog: truncated int24: %w", err)
		}
		return v, 3, nil
	case ColLong:
		v, _, err := wire.ReadI32(buf)
		if err != nil {
			return nil, 0, fmt.Errorf("binlog: truncated int: %w", err)
		}
		return v, 4, nil
	case ColLongLong:
		v, _, err := wire.ReadI64(buf)
		if err != nil {
			return nil, 0, fmt.Errorf("binlog: truncated bigint: %w", err)
		}
		return v, 8, nil
	case ColFloat:
		if len(buf) < 4 {
			return nil, 0, fmt.Errorf("binlog: truncated float")
		}
		bits := binary.LittleEndian.Uint32(buf[:4])
		return math.Float32frombits(bits), 4, nil
	case ColDouble:
		if len(buf) < 8 {
			return nil, 0, fmt.Errorf("binlog: truncated double")
		}
		bits := binary.LittleEndian.Uint64(buf[:8])
		return math.Float64frombits(bits), 8, nil
	case ColDecimal, ColNewDecimal:
		return DecodeDecimal(buf, meta.Precision, meta.Scale)
	case ColDate, ColNewDate:
		s, n, isNull, err := DecodeDate(buf)
		if err != nil {
			return nil, 0, err
		}
		if isNull {
			return nil, n, nil
		}
		return s, n, nil
	case ColTime2:
		s, n, err := DecodeTime2(buf, meta.Fsp)
		return s, n, err
	case ColDateTime2:
		s, n, err := DecodeDateTime2(buf, meta.Fsp)
		return s, n, err
	case ColTimestamp2:
		s, n, err := DecodeTimestamp2(buf, meta.Fsp)
		return s, n, err
	case ColYear:
		y, n, err := DecodeYear(buf)
		return y, n, err
	case ColVarChar, ColString, ColVarString:
		return decodeCharColumn(buf, meta)
	case ColTinyBlob, ColMediumBlob, ColLongBlob, ColBlob, ColJSON:
		return decodeBlobColumn(buf, meta)
	case ColBit:
		return decodeBlobColumn(buf, ColumnMeta{LengthSize: 1})
	default:
		// Unknown/unsupported type codes decode as NULL and processing
		// proceeds, per the "silent" error policy.
		return nil, len(buf), nil
	}
}

func decodeCharColumn(buf []byte, meta ColumnMeta) (interface{}, int, error) {
	var length int
	var prefixLen int
	if meta.MaxLength > 255 {
		v, _, err := wire.ReadU16(buf)
		if err != nil {
			return nil, 0, fmt.Errorf("binlog: truncated varchar length: %w", err)
		}
		length = int(v)
		prefixLen = 2
	} else {
		v, _, err := wire.ReadU8(buf)
		if err != nil {
			return nil, 0, fmt.Errorf("binlog: truncated char length: %w", err)
		}
		length = int(v)
		prefixLen = 1
	}
	if len(buf) < prefixLen+length {
		return nil, 0, fmt.Errorf("binlog: truncated char/varchar value")
	}
	return string(buf[prefixLen : prefixLen+length]), prefixLen + length, nil
}

func decodeBlobColumn(buf []byte, meta ColumnMeta) (interface{}, int, error) {
	lengthSize := meta.LengthSize
	if lengthSize == 0 {
		lengthSize = 1
	}
	if len(buf) < lengthSize {
		return nil, 0, fmt.Errorf("binlog: truncated blob length")
	}
	length, err := readLE(buf[:lengthSize])
	if err != nil {
		return nil, 0, err
	}
	total := lengthSize + int(length)
	if len(buf) < total {
		return nil, 0, fmt.Errorf("binlog: truncated blob value")
	}
	out := make([]byte, length)
	copy(out, buf[lengthSize:total])
	return out, total, nil
}

func readLE(b []byte) (uint64, error) {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

// DecodeRowImage decodes one row: a null-bitmap of ceil(cols/8) bytes
// followed by one encoded value per non-null, present column.
func DecodeRowImage(buf []byte, table *TableMapEntry, presentCols []byte) (RowImage, int, error) {
	n := len(table.ColumnTypes)
	bitmapSize := NullBitmapSize(n)
	if len(buf) < bitmapSize {
		return nil, 0, fmt.Errorf("binlog: truncated null bitmap")
	}
	nullBitmap := buf[:bitmapSize]
	pos := bitmapSize

	row := make(RowImage, n)
	for i := 0; i < n; i++ {
		if presentCols != nil && !bitSet(presentCols, i) {
			// column absent from this row image entirely (UPDATE partial
			// image); leave as nil without consuming a value from buf.
			continue
		}
		if IsNull(nullBitmap, i) {
			row[i] = nil
			continue
		}
		v, n2, err := DecodeColumnValue(buf[pos:], table.ColumnTypes[i], table.ColumnMetas[i])
		if err != nil {
			return nil, 0, fmt.Errorf("binlog: decode column %d (%s.%s): %w", i, table.Schema, table.Table, err)
		}
		row[i] = v
		pos += n2
	}
	return row, pos, nil
}
