package binlog

import (
	"fmt"
)

// state is the ingest-unit state: a TABLE_MAP must be paired with the
// row event that follows it before the pair is emitted.
type state int

const (
	stateIdle state = iota
	stateAwaitingRow
)

// Emitted is the result of feeding one raw event through the Decoder: at
// most one of Rows, RotateTo, or Query is populated.
type Emitted struct {
	Rows        *RowEventPair
	RotateTo    string
	Query       *QueryEvent
	Dropped     bool
	DropReason  string
}

// Decoder runs the ingest-unit state machine described in §4.3: TABLE_MAP
// primes AWAITING_ROW; a subsequent WRITE/UPDATE/DELETE completes the
// pair; ROTATE discards a pending map; QUERY passes through untouched.
type Decoder struct {
	store   *TableMapStore
	state   state
	pending *TableMapEntry
	nextSeq uint64
}

// NewDecoder returns a Decoder backed by store, which survives across
// many Decoder instances if callers want the TABLE_MAP cache shared
// (e.g. between the ingest loop and per-worker decoders).
func NewDecoder(store *TableMapStore) *Decoder {
	return &Decoder{store: store}
}

// Feed decodes one raw event and advances the state machine.
func (d *Decoder) Feed(raw RawEvent) (Emitted, error) {
	body := StripChecksum(raw.Payload)

	switch raw.Header.EventType {
	case EventTypeTableMap:
		entry, err := ParseTableMapEvent(body)
		if err != nil {
			return Emitted{}, fmt.Errorf("binlog: parse table_map: %w", err)
		}
		d.store.Put(entry)
		d.pending = entry
		d.state = stateAwaitingRow
		return Emitted{}, nil

	case EventTypeWrite, EventTypeUpdate, EventTypeDelete:
		if d.state != stateAwaitingRow || d.pending == nil {
			return Emitted{Dropped: true, DropReason: "row event with no preceding TABLE_MAP"}, nil
		}
		rows, err := ParseRowsEvent(body, d.pending, raw.Header.EventType)
		if err != nil {
			d.state = stateIdle
			d.pending = nil
			return Emitted{}, fmt.Errorf("binlog: parse row event: %w", err)
		}
		pair := &RowEventPair{
			Seq:     d.nextSeq,
			Table:   d.pending,
			LogPos:  raw.Header.LogPos,
			EventTS: raw.Header.Timestamp,
		}
		d.nextSeq++
		switch raw.Header.EventType {
		case EventTypeWrite:
			pair.DML = DMLInsert
			pair.NewRows = rows.After
		case EventTypeDelete:
			pair.DML = DMLDelete
			pair.OldRows = rows.Before
		case EventTypeUpdate:
			pair.DML = DMLUpdate
			pair.OldRows = rows.Before
			pair.NewRows = rows.After
		}
		d.state = stateIdle
		d.pending = nil
		return Emitted{Rows: pair}, nil

	case EventTypeRotate:
		filename, err := ParseRotateEvent(body)
		if err != nil {
			return Emitted{}, fmt.Errorf("binlog: parse rotate: %w", err)
		}
		if d.state == stateAwaitingRow && d.pending != nil {
			d.store.Delete(d.pending.TableID)
		}
		d.state = stateIdle
		d.pending = nil
		return Emitted{RotateTo: filename}, nil

	case EventTypeQuery:
		q, err := ParseQueryEvent(body)
		if err != nil {
			return Emitted{}, fmt.Errorf("binlog: parse query: %w", err)
		}
		return Emitted{Query: q}, nil

	default:
		// Unknown event types are ignored silently.
		return Emitted{}, nil
	}
}
