package admin

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipconfiger/ru-cdc/internal/broker"
	"github.com/ipconfiger/ru-cdc/internal/position"
	"github.com/ipconfiger/ru-cdc/internal/stats"
)

func newTestServer(t *testing.T) (*Server, *broker.Broker) {
	t.Helper()
	b := broker.New(4)
	posMgr := position.NewManager(filepath.Join(t.TempDir(), "meta.json"))
	collector := stats.NewCollector(time.Hour)
	collector.Record(5, 1024)
	return New(b, posMgr, collector), b
}

func TestHandleStatusReportsCounters(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest("GET", "/api/status", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	var resp statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, uint64(5), resp.LastSeq)
	assert.Equal(t, uint64(1024), resp.TotalBytes)
}

func TestHandleSSEStreamsPublishedRecords(t *testing.T) {
	s, b := newTestServer(t)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(ts.URL + "/api/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	// give the handler a moment to subscribe before publishing.
	time.Sleep(20 * time.Millisecond)
	b.Publish(broker.Record{Instance: "mq1", Topic: "orders_topic", Schema: "db1", Table: "orders", DML: "INSERT", Payload: []byte(`{"id":1}`)})

	scanner := bufio.NewScanner(resp.Body)
	var found bool
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) > 6 && line[:6] == "data: " {
			found = true
			var ev eventJSON
			require.NoError(t, json.Unmarshal([]byte(line[6:]), &ev))
			assert.Equal(t, "orders", ev.Table)
			break
		}
	}
	assert.True(t, found, "expected at least one SSE data line")
}

func TestHandleSSEStreamsDdlEvents(t *testing.T) {
	s, b := newTestServer(t)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(ts.URL + "/api/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	time.Sleep(20 * time.Millisecond)
	b.PublishDDL(broker.DdlEvent{
		Schema:     "db1",
		Statement:  "ALTER TABLE orders ADD COLUMN note VARCHAR(10) DEFAULT 'x'",
		Normalized: "ALTER TABLE orders ADD COLUMN note VARCHAR(?) DEFAULT '?'",
		LogPos:     500,
	})

	scanner := bufio.NewScanner(resp.Body)
	var found bool
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) > 6 && line[:6] == "data: " {
			var ev ddlEventJSON
			require.NoError(t, json.Unmarshal([]byte(line[6:]), &ev))
			if ev.Kind != "ddl" {
				continue
			}
			found = true
			assert.Equal(t, "db1", ev.Schema)
			assert.Equal(t, "ALTER TABLE orders ADD COLUMN note VARCHAR(?) DEFAULT '?'", ev.Normalized)
			break
		}
	}
	assert.True(t, found, "expected at least one ddl SSE data line")
}
