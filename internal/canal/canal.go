// Package canal builds Canal-compatible JSON records from decoded row
// events. Key order is significant to downstream consumers, so the
// encoder is hand-written rather than driven by encoding/json's
// reflection-based struct marshaling.
package canal

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/ipconfiger/ru-cdc/internal/binlog"
	"github.com/ipconfiger/ru-cdc/internal/schema"
)

// sqlType maps a declared-type prefix to its JDBC-style type code, per
// §4.4's mapping table.
func sqlType(declaredType string) int {
	t := strings.ToLower(declaredType)
	switch {
	case strings.HasPrefix(t, "tinyint"):
		return -6
	case strings.HasPrefix(t, "smallint"):
		return 5
	case strings.HasPrefix(t, "mediumint"), strings.HasPrefix(t, "int"):
		return 4
	case strings.HasPrefix(t, "bigint"):
		return -5
	case strings.HasPrefix(t, "float"):
		return 7
	case strings.HasPrefix(t, "double"):
		return 8
	case strings.HasPrefix(t, "decimal"):
		return 3
	case strings.HasPrefix(t, "datetime"), strings.HasPrefix(t, "timestamp"):
		return 93
	case strings.HasPrefix(t, "date"):
		return 91
	case strings.HasPrefix(t, "time"):
		return 92
	case strings.HasPrefix(t, "year"):
		return 12
	case strings.HasPrefix(t, "char"):
		return 1
	case strings.HasPrefix(t, "varchar"):
		return 12
	case strings.HasSuffix(t, "blob"):
		return 2004
	case strings.HasSuffix(t, "text"):
		return 2005
	default:
		return -999
	}
}

// Record is one fully-resolved row change, ready to be rendered as
// Canal JSON.
type Record struct {
	Schema     string
	Table      string
	DML        binlog.DMLType
	EventTSms  int64
	LogPos     uint32
	Fields     []schema.Field
	OldRows    []binlog.RowImage
	NewRows    []binlog.RowImage
}

// Build renders r as the Canal JSON schema, with keys in the exact
// order: data, database, es, id, isDdl, mysqlType, old (only if
// non-empty), pkNames (null when empty), sql, sqlType, table, ts, type.
func Build(r Record, id int64) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	rows := r.NewRows
	if r.DML == binlog.DMLDelete {
		rows = r.OldRows
	}

	writeKey(&buf, "data", true)
	writeDataArray(&buf, r.Fields, rows)

	writeKey(&buf, "database", false)
	writeJSONString(&buf, r.Schema)

	writeKey(&buf, "es", false)
	buf.WriteString(strconv.FormatInt(r.EventTSms, 10))

	writeKey(&buf, "id", false)
	buf.WriteString(strconv.FormatInt(id, 10))

	writeKey(&buf, "isDdl", false)
	buf.WriteString("false")

	writeKey(&buf, "mysqlType", false)
	writeMySQLTypeMap(&buf, r.Fields)

	oldMap := computeOld(r.Fields, r.OldRows, r.NewRows, r.DML)
	if len(oldMap) > 0 {
		writeKey(&buf, "old", false)
		writeOldArray(&buf, r.Fields, oldMap)
	}

	writeKey(&buf, "pkNames", false)
	pkNames := schema.PKNames(r.Fields)
	if len(pkNames) == 0 {
		buf.WriteString("null")
	} else {
		writeStringArray(&buf, pkNames)
	}

	writeKey(&buf, "sql", false)
	writeJSONString(&buf, "")

	writeKey(&buf, "sqlType", false)
	writeSQLTypeMap(&buf, r.Fields)

	writeKey(&buf, "table", false)
	writeJSONString(&buf, r.Table)

	writeKey(&buf, "ts", false)
	buf.WriteString(strconv.FormatInt(r.EventTSms, 10))

	writeKey(&buf, "type", false)
	writeJSONString(&buf, string(r.DML))

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string, first bool) {
	if !first {
		buf.WriteByte(',')
	}
	buf.WriteByte('"')
	buf.WriteString(key)
	buf.WriteString(`":`)
}

func writeJSONString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}

func writeStringArray(buf *bytes.Buffer, vals []string) {
	buf.WriteByte('[')
	for i, v := range vals {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONString(buf, v)
	}
	buf.WriteByte(']')
}

func writeDataArray(buf *bytes.Buffer, fields []schema.Field, rows []binlog.RowImage) {
	buf.WriteByte('[')
	for ri, row := range rows {
		if ri > 0 {
			buf.WriteByte(',')
		}
		writeRowObject(buf, fields, row)
	}
	buf.WriteByte(']')
}

func writeRowObject(buf *bytes.Buffer, fields []schema.Field, row binlog.RowImage) {
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(f.Name)
		buf.WriteString(`":`)
		var v interface{}
		if i < len(row) {
			v = row[i]
		}
		writeValue(buf, v, sqlType(f.DeclaredType))
	}
	buf.WriteByte('}')
}

func writeValue(buf *bytes.Buffer, v interface{}, jdbcType int) {
	if v == nil {
		buf.WriteString("null")
		return
	}
	switch val := v.(type) {
	case []byte:
		buf.WriteString(coerceBytes(val, jdbcType))
	case string:
		writeJSONString(buf, val)
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		fmt.Fprintf(buf, "%d", val)
	case float32:
		buf.WriteString(strconv.FormatFloat(float64(val), 'g', -1, 32))
	case float64:
		buf.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	default:
		writeJSONString(buf, fmt.Sprintf("%v", val))
	}
}

// coerceBytes implements §4.4's TEXT/BLOB coercion: sqlType 2005 (TEXT)
// decodes the byte array as UTF-8; sqlType 2004 (BLOB) is rendered as a
// JSON array of UTF-16 code units, matching the source's observable
// behavior for binary columns.
func coerceBytes(b []byte, jdbcType int) string {
	if jdbcType == 2004 {
		units := utf16.Encode([]rune(string(b)))
		var sb strings.Builder
		sb.WriteByte('[')
		for i, u := range units {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Itoa(int(u)))
		}
		sb.WriteByte(']')
		return sb.String()
	}
	var sb strings.Builder
	writeJSONStringBuilder(&sb, string(b))
	return sb.String()
}

func writeJSONStringBuilder(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
}

func writeMySQLTypeMap(buf *bytes.Buffer, fields []schema.Field) {
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(f.Name)
		buf.WriteString(`":`)
		writeJSONString(buf, f.DeclaredType)
	}
	buf.WriteByte('}')
}

func writeSQLTypeMap(buf *bytes.Buffer, fields []schema.Field) {
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(f.Name)
		buf.WriteString(`":`)
		buf.WriteString(strconv.Itoa(sqlType(f.DeclaredType)))
	}
	buf.WriteByte('}')
}

func writeOldArray(buf *bytes.Buffer, fields []schema.Field, oldMap map[int]interface{}) {
	buf.WriteByte('[')
	buf.WriteByte('{')
	first := true
	for i, f := range fields {
		v, ok := oldMap[i]
		if !ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.WriteByte('"')
		buf.WriteString(f.Name)
		buf.WriteString(`":`)
		writeValue(buf, v, sqlType(f.DeclaredType))
	}
	buf.WriteByte('}')
	buf.WriteByte(']')
}

// computeOld returns, for UPDATE events, the column indices whose new
// value differs from the old one, mapped to the old value. DELETE and
// INSERT never populate `old`.
func computeOld(fields []schema.Field, oldRows, newRows []binlog.RowImage, dml binlog.DMLType) map[int]interface{} {
	if dml != binlog.DMLUpdate || len(oldRows) == 0 || len(newRows) == 0 {
		return nil
	}
	out := make(map[int]interface{})
	old := oldRows[0]
	newRow := newRows[0]
	for i := range fields {
		var ov, nv interface{}
		if i < len(old) {
			ov = old[i]
		}
		if i < len(newRow) {
			nv = newRow[i]
		}
		if !valuesEqual(ov, nv) {
			out[i] = ov
		}
	}
	return out
}

func valuesEqual(a, b interface{}) bool {
	ab, aIsBytes := a.([]byte)
	bb, bIsBytes := b.([]byte)
	if aIsBytes || bIsBytes {
		if !aIsBytes || !bIsBytes {
			return false
		}
		return bytes.Equal(ab, bb)
	}
	return a == b
}
