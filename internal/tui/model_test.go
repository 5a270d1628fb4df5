package tui

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecvEventParsesSSEDataLine(t *testing.T) {
	ev := sseEvent{Instance: "mq1", Topic: "orders_topic", Schema: "db1", Table: "orders", DML: "INSERT", Record: json.RawMessage(`{"id":1}`)}
	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	body := "data: " + string(payload) + "\n\n"
	scanner := bufio.NewScanner(strings.NewReader(body))

	msg := recvEvent(scanner)()
	got, ok := msg.(eventMsg)
	require.True(t, ok)
	assert.Equal(t, "orders", got.Record.Table)
	assert.Equal(t, "INSERT", got.Record.DML)
}

func TestRecvEventParsesDdlSSEDataLine(t *testing.T) {
	ev := sseEvent{Kind: "ddl", Schema: "db1", Statement: "ALTER TABLE orders ADD COLUMN note VARCHAR(10)", Normalized: "ALTER TABLE orders ADD COLUMN note VARCHAR(?)"}
	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	body := "data: " + string(payload) + "\n\n"
	scanner := bufio.NewScanner(strings.NewReader(body))

	msg := recvEvent(scanner)()
	got, ok := msg.(eventMsg)
	require.True(t, ok)
	assert.Equal(t, ddlTable, got.Record.Table)
	assert.Equal(t, "DDL", got.Record.DML)
	assert.Equal(t, "db1", got.Record.Schema)
}

func TestRecvEventReturnsErrOnClosedStream(t *testing.T) {
	scanner := bufio.NewScanner(strings.NewReader(""))
	msg := recvEvent(scanner)()
	_, ok := msg.(errMsg)
	assert.True(t, ok)
}

func TestConnectFailsOnNonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	msg := connect(&http.Client{}, ts.URL)()
	_, ok := msg.(errMsg)
	assert.True(t, ok)
}

func TestVisibleIndicesAppliesFilterAndSearch(t *testing.T) {
	m := New("http://example.invalid")
	m.records = []Record{
		{Schema: "db1", Table: "orders", DML: "INSERT", Topic: "orders_topic"},
		{Schema: "db1", Table: "users", DML: "UPDATE", Topic: "users_topic"},
		{Schema: "db2", Table: "orders", DML: "DELETE", Topic: "orders_topic"},
	}

	m.filterQuery = "schema:db1"
	idx := m.visibleIndices()
	assert.Equal(t, []int{0, 1}, idx)

	m.searchQuery = "users"
	idx = m.visibleIndices()
	assert.Equal(t, []int{1}, idx)
}
