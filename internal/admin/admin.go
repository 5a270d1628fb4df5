// Package admin serves the agent's HTTP status and live-event API: a
// JSON status endpoint and an SSE stream of dispatched Canal records and
// DdlEvents, adapted from the teacher's web.Server (which served a
// query-proxy dashboard over the same SSE-plus-status shape).
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ipconfiger/ru-cdc/internal/broker"
	"github.com/ipconfiger/ru-cdc/internal/position"
	"github.com/ipconfiger/ru-cdc/internal/stats"
)

// Server serves the admin HTTP API.
type Server struct {
	httpServer *http.Server
	broker     *broker.Broker
	posMgr     *position.Manager
	collector  *stats.Collector
}

// New builds a Server backed by b for live events, posMgr for the
// current checkpoint, and collector for throughput counters.
func New(b *broker.Broker, posMgr *position.Manager, collector *stats.Collector) *Server {
	s := &Server{broker: b, posMgr: posMgr, collector: collector}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/events", s.handleSSE)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Serve starts the HTTP server on lis.
func (s *Server) Serve(lis net.Listener) error {
	if err := s.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("admin: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("admin: shutdown: %w", err)
	}
	return nil
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

type statusResponse struct {
	BinlogFile    string `json:"binlog_file"`
	BinlogOffset  uint32 `json:"binlog_offset"`
	TotalBytes    uint64 `json:"total_bytes"`
	LastSeq       uint64 `json:"last_seq"`
	Subscribers   int    `json:"subscribers"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	file, offset := s.posMgr.Current()
	snap := s.collector.Snapshot()
	resp := statusResponse{
		BinlogFile:   file,
		BinlogOffset: offset,
		TotalBytes:   snap.TotalBytes,
		LastSeq:      snap.LastSeq,
		Subscribers:  s.broker.SubscriberCount(),
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHealthz reports process liveness only; it does not check the
// replication connection, so a load balancer can use it without tripping
// on a transient upstream reconnect.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// eventJSON carries a dispatched Canal record. Kind discriminates it from
// ddlEventJSON on the shared /api/events stream.
type eventJSON struct {
	Kind     string          `json:"kind"`
	EventID  string          `json:"event_id"`
	Instance string          `json:"instance"`
	Topic    string          `json:"topic"`
	Schema   string          `json:"schema"`
	Table    string          `json:"table"`
	DML      string          `json:"dml"`
	Record   json.RawMessage `json:"record"`
}

// ddlEventJSON carries a normalized QUERY event. It never reaches a
// Kafka/Redis sink — this SSE stream and the TUI are its only consumers.
type ddlEventJSON struct {
	Kind       string `json:"kind"`
	Schema     string `json:"schema"`
	Statement  string `json:"statement"`
	Normalized string `json:"normalized"`
	EventTSms  int64  `json:"event_ts_ms"`
	LogPos     uint32 `json:"log_pos"`
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	flusher.Flush()

	ch, unsub := s.broker.Subscribe()
	defer unsub()
	ddlCh, unsubDDL := s.broker.SubscribeDDL()
	defer unsubDDL()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(eventJSON{
				Kind:     "record",
				EventID:  rec.EventID,
				Instance: rec.Instance,
				Topic:    rec.Topic,
				Schema:   rec.Schema,
				Table:    rec.Table,
				DML:      rec.DML,
				Record:   rec.Payload,
			})
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case ev, ok := <-ddlCh:
			if !ok {
				return
			}
			data, err := json.Marshal(ddlEventJSON{
				Kind:       "ddl",
				Schema:     ev.Schema,
				Statement:  ev.Statement,
				Normalized: ev.Normalized,
				EventTSms:  ev.EventTSms,
				LogPos:     ev.LogPos,
			})
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}
