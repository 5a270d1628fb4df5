package binlog

import (
	"fmt"

	"github.com/ipconfiger/ru-cdc/internal/wire"
)

// headerSize is the fixed width of a binlog event header.
const headerSize = 19

// ParseEventHeader decodes the 19-byte event header from the front of
// payload and returns the header plus the remaining bytes (the event
// body). The caller is expected to have already stripped the leading
// 0x00 status byte that prefixes every packet in the replication stream.
func ParseEventHeader(payload []byte) (EventHeader, []byte, error) {
	if len(payload) < headerSize {
		return EventHeader{}, nil, fmt.Errorf("binlog: truncated event header: have %d bytes, need %d", len(payload), headerSize)
	}

	var h EventHeader
	var err error
	var rest = payload

	var ts uint32
	ts, rest, err = wire.ReadU32(rest)
	if err != nil {
		return EventHeader{}, nil, fmt.Errorf("binlog: read timestamp: %w", err)
	}
	h.Timestamp = ts

	var typ uint8
	typ, rest, err = wire.ReadU8(rest)
	if err != nil {
		return EventHeader{}, nil, fmt.Errorf("binlog: read event type: %w", err)
	}
	h.EventType = EventType(typ)

	var serverID uint32
	serverID, rest, err = wire.ReadU32(rest)
	if err != nil {
		return EventHeader{}, nil, fmt.Errorf("binlog: read server id: %w", err)
	}
	h.ServerID = serverID

	var size uint32
	size, rest, err = wire.ReadU32(rest)
	if err != nil {
		return EventHeader{}, nil, fmt.Errorf("binlog: read event size: %w", err)
	}
	h.EventSize = size

	var logPos uint32
	logPos, rest, err = wire.ReadU32(rest)
	if err != nil {
		return EventHeader{}, nil, fmt.Errorf("binlog: read log position: %w", err)
	}
	h.LogPos = logPos

	var flags uint16
	flags, rest, err = wire.ReadU16(rest)
	if err != nil {
		return EventHeader{}, nil, fmt.Errorf("binlog: read flags: %w", err)
	}
	h.Flags = flags

	return h, rest, nil
}

// ParseRowEventHeader decodes the table-id/flags prefix shared by
// TABLE_MAP and row events.
func ParseRowEventHeader(payload []byte) (RowEventHeader, []byte, error) {
	tableID, rest, err := wire.ReadU48(payload)
	if err != nil {
		return RowEventHeader{}, nil, fmt.Errorf("binlog: read table id: %w", err)
	}
	flags, rest, err := wire.ReadU16(rest)
	if err != nil {
		return RowEventHeader{}, nil, fmt.Errorf("binlog: read row event flags: %w", err)
	}
	return RowEventHeader{TableID: tableID, Flags: flags}, rest, nil
}

// StripChecksum drops the trailing 4-byte CRC32 checksum that MySQL
// appends to every binlog event when binlog_checksum is enabled. Per
// the Open Questions note, this implementation never verifies it.
func StripChecksum(body []byte) []byte {
	if len(body) < 4 {
		return body
	}
	return body[:len(body)-4]
}
