package mysqlproto

import (
	"fmt"

	"github.com/ipconfiger/ru-cdc/internal/wire"
)

// ResultSet is a decoded COM_QUERY text result set: column names in
// order, followed by rows of nullable string values in the same order.
// This is all internal/schema needs to read a DESC result.
type ResultSet struct {
	Columns []string
	Rows    [][]*string
}

// readResultSet reads the column count, column definitions, and row
// packets that follow a COM_QUERY, terminating at the first OK/EOF
// marker row (see IsEOFPacket).
func (c *Client) readResultSet() (*ResultSet, error) {
	first, err := c.pkt.ReadPacket()
	if err != nil {
		return nil, fmt.Errorf("mysqlproto: read result header: %w", err)
	}
	if IsErrPacket(first) {
		return nil, AsError(first)
	}
	if IsOKPacket(first) {
		// a COM_QUERY that affects no result set (e.g. an empty DESC is
		// never expected in practice, but handle it defensively).
		return &ResultSet{}, nil
	}

	columnCount, _, err := wire.ReadLenEncInt(first)
	if err != nil {
		return nil, fmt.Errorf("mysqlproto: read column count: %w", err)
	}

	rs := &ResultSet{Columns: make([]string, 0, columnCount)}
	for i := uint64(0); i < columnCount; i++ {
		colDef, err := c.pkt.ReadPacket()
		if err != nil {
			return nil, fmt.Errorf("mysqlproto: read column definition: %w", err)
		}
		name, err := parseColumnName(colDef)
		if err != nil {
			return nil, err
		}
		rs.Columns = append(rs.Columns, name)
	}

	// consume the EOF/metadata terminator that follows column definitions
	// unless DEPRECATE_EOF was negotiated and the server already skipped it.
	if c.Handshake == nil || c.Handshake.Capabilities&CapDeprecateEOF == 0 {
		term, err := c.pkt.ReadPacket()
		if err != nil {
			return nil, fmt.Errorf("mysqlproto: read column eof: %w", err)
		}
		if IsErrPacket(term) {
			return nil, AsError(term)
		}
	}

	for {
		row, err := c.pkt.ReadPacket()
		if err != nil {
			return nil, fmt.Errorf("mysqlproto: read row: %w", err)
		}
		if IsErrPacket(row) {
			return nil, AsError(row)
		}
		if IsEOFPacket(row) {
			break
		}
		values, err := parseTextRow(row, len(rs.Columns))
		if err != nil {
			return nil, err
		}
		rs.Rows = append(rs.Rows, values)
	}
	return rs, nil
}

// parseColumnName extracts the column's display name from a Column
// Definition 41 packet: catalog, schema, table, org_table, name, ...
func parseColumnName(payload []byte) (string, error) {
	rest := payload
	var err error
	for i := 0; i < 4; i++ {
		_, rest, err = wire.ReadLenEncString(rest)
		if err != nil {
			return "", fmt.Errorf("mysqlproto: read column definition field %d: %w", i, err)
		}
	}
	name, _, err := wire.ReadLenEncString(rest)
	if err != nil {
		return "", fmt.Errorf("mysqlproto: read column name: %w", err)
	}
	return string(name), nil
}

// parseTextRow decodes one text-protocol row: each value is either a
// length-encoded string, or 0xFB for SQL NULL.
func parseTextRow(payload []byte, columnCount int) ([]*string, error) {
	values := make([]*string, 0, columnCount)
	rest := payload
	for len(values) < columnCount {
		if len(rest) == 0 {
			return nil, fmt.Errorf("mysqlproto: truncated row: expected %d columns, got %d", columnCount, len(values))
		}
		if rest[0] == 0xFB {
			values = append(values, nil)
			rest = rest[1:]
			continue
		}
		b, next, err := wire.ReadLenEncString(rest)
		if err != nil {
			return nil, fmt.Errorf("mysqlproto: read row value: %w", err)
		}
		s := string(b)
		values = append(values, &s)
		rest = next
	}
	return values, nil
}
