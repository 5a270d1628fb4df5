package binlog

import (
	"fmt"

	"github.com/ipconfiger/ru-cdc/internal/wire"
)

// DecodedRows is one WRITE/UPDATE/DELETE event's row images: Before is
// populated for UPDATE/DELETE, After for INSERT/UPDATE.
type DecodedRows struct {
	Before []RowImage
	After  []RowImage
}

// ParseRowsEvent decodes a WRITE_ROWS/UPDATE_ROWS/DELETE_ROWS event body
// against the given TABLE_MAP entry.
func ParseRowsEvent(body []byte, table *TableMapEntry, eventType EventType) (DecodedRows, error) {
	_, rest, err := ParseRowEventHeader(body)
	if err != nil {
		return DecodedRows{}, err
	}

	extraLen, rest, err := wire.ReadU16(rest)
	if err != nil {
		return DecodedRows{}, fmt.Errorf("binlog: read extra-data length: %w", err)
	}
	if int(extraLen) > 2 {
		skip := int(extraLen) - 2
		if len(rest) < skip {
			return DecodedRows{}, fmt.Errorf("binlog: truncated extra data")
		}
		rest = rest[skip:]
	}

	columnCount, rest, err := wire.ReadLenEncInt(rest)
	if err != nil {
		return DecodedRows{}, fmt.Errorf("binlog: read column count: %w", err)
	}
	bitmapSize := NullBitmapSize(int(columnCount))

	if len(rest) < bitmapSize {
		return DecodedRows{}, fmt.Errorf("binlog: truncated present-columns bitmap")
	}
	presentBefore := rest[:bitmapSize]
	rest = rest[bitmapSize:]

	var presentAfter []byte
	if eventType == EventTypeUpdate {
		if len(rest) < bitmapSize {
			return DecodedRows{}, fmt.Errorf("binlog: truncated second present-columns bitmap")
		}
		presentAfter = rest[:bitmapSize]
		rest = rest[bitmapSize:]
	}

	var out DecodedRows
	for len(rest) > 0 {
		switch eventType {
		case EventTypeWrite:
			row, n, err := DecodeRowImage(rest, table, presentBefore)
			if err != nil {
				return DecodedRows{}, err
			}
			out.After = append(out.After, row)
			rest = rest[n:]
		case EventTypeDelete:
			row, n, err := DecodeRowImage(rest, table, presentBefore)
			if err != nil {
				return DecodedRows{}, err
			}
			out.Before = append(out.Before, row)
			rest = rest[n:]
		case EventTypeUpdate:
			before, n1, err := DecodeRowImage(rest, table, presentBefore)
			if err != nil {
				return DecodedRows{}, err
			}
			rest = rest[n1:]
			after, n2, err := DecodeRowImage(rest, table, presentAfter)
			if err != nil {
				return DecodedRows{}, err
			}
			rest = rest[n2:]
			out.Before = append(out.Before, before)
			out.After = append(out.After, after)
		default:
			return DecodedRows{}, fmt.Errorf("binlog: ParseRowsEvent called with non-row event type %d", eventType)
		}
	}
	return out, nil
}

// ParseRotateEvent decodes a ROTATE event body: a 1-byte position tag
// (ignored; the real 8-byte position lives elsewhere in the header in
// modern MySQL, but this decoder follows the legacy single-byte tag
// convention used by the upstream source) then the new filename to EOF.
func ParseRotateEvent(body []byte) (string, error) {
	if len(body) < 1 {
		return "", fmt.Errorf("binlog: truncated rotate event")
	}
	return wire.ReadEOFString(body[1:]), nil
}

// ParseQueryEvent decodes a QUERY event body.
func ParseQueryEvent(body []byte) (*QueryEvent, error) {
	threadID, rest, err := wire.ReadU32(body)
	if err != nil {
		return nil, fmt.Errorf("binlog: read thread id: %w", err)
	}
	ts, rest, err := wire.ReadU32(rest)
	if err != nil {
		return nil, fmt.Errorf("binlog: read query timestamp: %w", err)
	}
	dbLen, rest, err := wire.ReadU8(rest)
	if err != nil {
		return nil, fmt.Errorf("binlog: read db name length: %w", err)
	}
	errCode, rest, err := wire.ReadU16(rest)
	if err != nil {
		return nil, fmt.Errorf("binlog: read error code: %w", err)
	}
	statusLen, rest, err := wire.ReadU16(rest)
	if err != nil {
		return nil, fmt.Errorf("binlog: read status-vars length: %w", err)
	}
	if len(rest) < int(statusLen) {
		return nil, fmt.Errorf("binlog: truncated status vars")
	}
	rest = rest[statusLen:]

	db, rest, err := wire.ReadFixedString(rest, int(dbLen))
	if err != nil {
		return nil, fmt.Errorf("binlog: read database name: %w", err)
	}
	// the database name is null-terminated
	_, rest, err = wire.ReadU8(rest)
	if err != nil {
		return nil, fmt.Errorf("binlog: read database name terminator: %w", err)
	}

	return &QueryEvent{
		ThreadID:  threadID,
		Timestamp: ts,
		ErrorCode: errCode,
		Database:  db,
		Statement: wire.ReadEOFString(rest),
	}, nil
}
