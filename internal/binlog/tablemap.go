package binlog

import (
	"fmt"
	"math/bits"
	"sync"

	"github.com/ipconfiger/ru-cdc/internal/wire"
)

// ParseTableMapEvent decodes a TABLE_MAP event body (the row-event-header
// prefix already consumed is NOT included here; callers pass the full
// body starting at the table-id).
func ParseTableMapEvent(body []byte) (*TableMapEntry, error) {
	rowHeader, rest, err := ParseRowEventHeader(body)
	if err != nil {
		return nil, err
	}

	schemaLen, rest, err := wire.ReadU8(rest)
	if err != nil {
		return nil, fmt.Errorf("binlog: read schema name length: %w", err)
	}
	schema, rest, err := wire.ReadFixedString(rest, int(schemaLen))
	if err != nil {
		return nil, fmt.Errorf("binlog: read schema name: %w", err)
	}
	// schema name is null-terminated; consume the terminator.
	_, rest, err = wire.ReadU8(rest)
	if err != nil {
		return nil, fmt.Errorf("binlog: read schema name terminator: %w", err)
	}

	tableLen, rest, err := wire.ReadU8(rest)
	if err != nil {
		return nil, fmt.Errorf("binlog: read table name length: %w", err)
	}
	table, rest, err := wire.ReadFixedString(rest, int(tableLen))
	if err != nil {
		return nil, fmt.Errorf("binlog: read table name: %w", err)
	}
	_, rest, err = wire.ReadU8(rest)
	if err != nil {
		return nil, fmt.Errorf("binlog: read table name terminator: %w", err)
	}

	columnCount, rest, err := wire.ReadLenEncInt(rest)
	if err != nil {
		return nil, fmt.Errorf("binlog: read column count: %w", err)
	}

	typeBytes, rest, err := wire.ReadFixedString(rest, int(columnCount))
	if err != nil {
		return nil, fmt.Errorf("binlog: read column types: %w", err)
	}
	colTypes := make([]ColumnType, columnCount)
	for i := 0; i < int(columnCount); i++ {
		colTypes[i] = ColumnType(typeBytes[i])
	}

	metaBlockLen, rest, err := wire.ReadLenEncInt(rest)
	if err != nil {
		return nil, fmt.Errorf("binlog: read meta block length: %w", err)
	}
	metaBlock, rest, err := wire.ReadFixedString(rest, int(metaBlockLen))
	if err != nil {
		return nil, fmt.Errorf("binlog: read meta block: %w", err)
	}

	colMetas, err := parseColumnMetaBlock(colTypes, []byte(metaBlock))
	if err != nil {
		return nil, err
	}

	// Remaining bytes are the null-bitmap (one bit per column, whether
	// the column may be NULL); not needed to build the value decoders.
	_ = rest

	return &TableMapEntry{
		TableID:     rowHeader.TableID,
		Schema:      schema,
		Table:       table,
		ColumnTypes: colTypes,
		ColumnMetas: colMetas,
	}, nil
}

// parseColumnMetaBlock walks the meta block per the byte-width table in
// §4.3 of the column-type catalog: each column type consumes a known,
// fixed number of meta bytes (0, 1, or 2).
func parseColumnMetaBlock(types []ColumnType, meta []byte) ([]ColumnMeta, error) {
	metas := make([]ColumnMeta, len(types))
	rest := meta
	var err error
	for i, t := range types {
		switch t {
		case ColVarChar, ColVarString:
			var v uint16
			v, rest, err = wire.ReadU16(rest)
			if err != nil {
				return nil, fmt.Errorf("binlog: read varchar meta for column %d: %w", i, err)
			}
			metas[i] = ColumnMeta{MaxLength: int(v)}
		case ColString, ColEnum, ColSet:
			// 2 bytes big-endian packed as real-type<<8|pack-length in
			// MySQL internals; the spec's CHAR formula derives the
			// effective max-length from it.
			var m uint64
			m, rest, err = wire.ReadBEUint(rest, 2)
			if err != nil {
				return nil, fmt.Errorf("binlog: read char meta for column %d: %w", i, err)
			}
			maxLen := ((int(m)>>4)&0x300 ^ 0x300) + int(m&0xFF)
			metas[i] = ColumnMeta{MaxLength: maxLen}
		case ColFloat, ColDouble:
			var v uint8
			v, rest, err = wire.ReadU8(rest)
			if err != nil {
				return nil, fmt.Errorf("binlog: read float/double meta for column %d: %w", i, err)
			}
			metas[i] = ColumnMeta{RealTypeSize: int(v)}
		case ColTimestamp2, ColDateTime2, ColTime2:
			var v uint8
			v, rest, err = wire.ReadU8(rest)
			if err != nil {
				return nil, fmt.Errorf("binlog: read temporal meta for column %d: %w", i, err)
			}
			metas[i] = ColumnMeta{Fsp: int(v)}
		case ColTinyBlob, ColMediumBlob, ColLongBlob, ColBlob, ColJSON:
			var v uint8
			v, rest, err = wire.ReadU8(rest)
			if err != nil {
				return nil, fmt.Errorf("binlog: read blob meta for column %d: %w", i, err)
			}
			metas[i] = ColumnMeta{LengthSize: int(v)}
		case ColDecimal, ColNewDecimal:
			var precision, scale uint8
			precision, rest, err = wire.ReadU8(rest)
			if err != nil {
				return nil, fmt.Errorf("binlog: read decimal precision for column %d: %w", i, err)
			}
			scale, rest, err = wire.ReadU8(rest)
			if err != nil {
				return nil, fmt.Errorf("binlog: read decimal scale for column %d: %w", i, err)
			}
			metas[i] = ColumnMeta{Precision: int(precision), Scale: int(scale)}
		default:
			// no meta bytes for this type
		}
	}
	return metas, nil
}

// NullBitmapSize returns the byte width of a null-bitmap covering n columns.
func NullBitmapSize(n int) int {
	return (n + 7) / 8
}

// IsNull reports whether bit i is set in a null-bitmap (LSB-first within
// each byte, as MySQL packs it).
func IsNull(bitmap []byte, i int) bool {
	byteIdx := i / 8
	bitIdx := uint(i % 8)
	if byteIdx >= len(bitmap) {
		return false
	}
	return bitmap[byteIdx]&(1<<bitIdx) != 0
}

// bitSet reports whether bit i is set in bitmap (LSB-first within each
// byte); shared by both null-bitmaps and present-column bitmaps, which
// use the same packing but opposite semantics.
func bitSet(bitmap []byte, i int) bool {
	return IsNull(bitmap, i)
}

// PopCount returns the number of set bits, used by present-column
// bitmaps to size row images.
func PopCount(bitmap []byte) int {
	n := 0
	for _, b := range bitmap {
		n += bits.OnesCount8(b)
	}
	return n
}

// TableMapStore is a mutex-guarded map from table-id to its latest
// TABLE_MAP entry. The server may reassign a table-id; each Put fully
// replaces the prior entry rather than merging.
type TableMapStore struct {
	mu      sync.Mutex
	entries map[uint64]*TableMapEntry
}

// NewTableMapStore returns an empty store.
func NewTableMapStore() *TableMapStore {
	return &TableMapStore{entries: make(map[uint64]*TableMapEntry)}
}

// Put records entry, replacing any prior entry for the same table-id.
func (s *TableMapStore) Put(entry *TableMapEntry) {
	s.mu.Lock()
	s.entries[entry.TableID] = entry
	s.mu.Unlock()
}

// Get returns the entry for tableID, or nil if none has been seen yet.
func (s *TableMapStore) Get(tableID uint64) *TableMapEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[tableID]
}

// Delete discards the entry for tableID, used when a ROTATE interrupts
// an AWAITING_ROW state and the pending map should not be reused.
func (s *TableMapStore) Delete(tableID uint64) {
	s.mu.Lock()
	delete(s.entries, tableID)
	s.mu.Unlock()
}
