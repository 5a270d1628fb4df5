package tui

import "encoding/json"

// ddlTable is the synthetic Table value a DdlEvent is shown under in the
// list/inspector, since a QUERY event carries a schema but no single
// table.
const ddlTable = "(ddl)"

// Record is one Canal-shaped change event as delivered over the admin
// SSE stream (internal/admin's eventJSON wire shape, duplicated here
// rather than imported so the TUI only depends on the wire contract,
// not the server package). A DdlEvent is folded into this same shape
// with DML "DDL" and Table ddlTable, so the list/filter/inspector views
// need no DDL-specific code path.
type Record struct {
	EventID  string
	Instance string
	Topic    string
	Schema   string
	Table    string
	DML      string
	Payload  json.RawMessage
}

type sseEvent struct {
	Kind     string          `json:"kind"`
	EventID  string          `json:"event_id"`
	Instance string          `json:"instance"`
	Topic    string          `json:"topic"`
	Schema   string          `json:"schema"`
	Table    string          `json:"table"`
	DML      string          `json:"dml"`
	Record   json.RawMessage `json:"record"`

	Statement  string `json:"statement"`
	Normalized string `json:"normalized"`
}

func (e sseEvent) toRecord() Record {
	if e.Kind == "ddl" {
		payload, _ := json.Marshal(struct {
			Schema     string `json:"schema"`
			Statement  string `json:"statement"`
			Normalized string `json:"normalized"`
		}{e.Schema, e.Statement, e.Normalized})
		return Record{
			Schema:  e.Schema,
			Table:   ddlTable,
			DML:     "DDL",
			Payload: payload,
		}
	}
	return Record{
		EventID:  e.EventID,
		Instance: e.Instance,
		Topic:    e.Topic,
		Schema:   e.Schema,
		Table:    e.Table,
		DML:      e.DML,
		Payload:  e.Record,
	}
}
