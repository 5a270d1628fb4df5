// Package ingest drives the single-goroutine replication loop described
// in §4.8: connect, authenticate, resolve a start position, stream
// COM_BINLOG_DUMP events, decode them, and hand completed row events to
// the dispatch pool. The loop itself moves the persisted checkpoint only
// on ROTATE; sinks advance the offset after each successful publish.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/ipconfiger/ru-cdc/internal/binlog"
	"github.com/ipconfiger/ru-cdc/internal/broker"
	"github.com/ipconfiger/ru-cdc/internal/ddltext"
	"github.com/ipconfiger/ru-cdc/internal/dispatch"
	"github.com/ipconfiger/ru-cdc/internal/logging"
	"github.com/ipconfiger/ru-cdc/internal/mysqlproto"
	"github.com/ipconfiger/ru-cdc/internal/position"
	"github.com/ipconfiger/ru-cdc/internal/stats"
)

// readTimeout bounds a single ReadEvent call so the loop can notice a
// silently-dead connection instead of blocking forever. The replication
// stream itself carries no application-level heartbeat the client can
// wait on, so a stream that stays idle this long also ends Run with a
// read error.
const readTimeout = 60 * time.Second

// KeepaliveInterval is how often RunKeepalive pings the server on its
// own connection. A COM_BINLOG_DUMP connection only ever receives
// events once streaming starts, so COM_PING can't be interleaved on
// it; the keepalive runs as its own task against a separate
// connection instead, matching the "one keepalive ticker" concurrency
// context described alongside the ingest task, dispatch workers, and
// sink tasks. A var, not a const, so tests can shrink it.
var KeepaliveInterval = 10 * time.Minute

// Config holds everything the ingest loop needs to start streaming.
type Config struct {
	Addr      string
	User      string
	Password  string
	ServerID  uint32
	FromStart bool
}

// Loop is the running replication ingest: one MySQL connection, one
// binlog.Decoder, and the pool/position/stats/broker it feeds.
type Loop struct {
	cfg    Config
	client *mysqlproto.Client
	store  *binlog.TableMapStore
	pool   *dispatch.Pool
	posMgr *position.Manager
	stats  *stats.Collector
	feed   *broker.Broker

	currentFile string
}

// New wires a Loop; the caller is responsible for starting pool.Run and
// posMgr.Run in their own goroutines before calling Run. feed may be
// nil, in which case QUERY events are normalized and logged but no
// DdlEvent is published anywhere.
func New(cfg Config, pool *dispatch.Pool, posMgr *position.Manager, collector *stats.Collector, feed *broker.Broker) *Loop {
	return &Loop{
		cfg:    cfg,
		store:  binlog.NewTableMapStore(),
		pool:   pool,
		posMgr: posMgr,
		stats:  collector,
		feed:   feed,
	}
}

// Run connects, authenticates, resolves the start position, and streams
// binlog events until ctx is canceled or an unrecoverable error occurs.
func (l *Loop) Run(ctx context.Context) error {
	client, err := mysqlproto.Connect(l.cfg.Addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("ingest: connect: %w", err)
	}
	l.client = client
	defer func() { _ = client.Close() }()

	if err := client.Authenticate(l.cfg.User, l.cfg.Password); err != nil {
		return fmt.Errorf("ingest: authenticate: %w", err)
	}

	if _, err := client.Query("SET @master_binlog_checksum=@@global.binlog_checksum"); err != nil {
		return fmt.Errorf("ingest: set master_binlog_checksum: %w", err)
	}

	master, err := l.queryMasterStatus()
	if err != nil {
		return fmt.Errorf("ingest: query master status: %w", err)
	}
	first, err := l.queryFirstBinlogFile()
	if err != nil {
		return fmt.Errorf("ingest: query binary logs: %w", err)
	}

	file, offset := l.posMgr.ResolveStartPosition(master, first, l.cfg.FromStart)
	l.currentFile = file

	if err := client.BinlogDump(l.cfg.ServerID, file, offset); err != nil {
		return fmt.Errorf("ingest: binlog dump: %w", err)
	}
	logging.Infof("ingest: streaming from %s:%d", file, offset)

	decoder := binlog.NewDecoder(l.store)
	var eventCount uint64

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := client.SetDeadline(time.Now().Add(readTimeout)); err != nil {
			return fmt.Errorf("ingest: set read deadline: %w", err)
		}

		payload, err := client.ReadEvent()
		if err != nil {
			return fmt.Errorf("ingest: read event: %w", err)
		}

		header, body, err := binlog.ParseEventHeader(payload)
		if err != nil {
			return fmt.Errorf("ingest: parse event header: %w", err)
		}

		raw := binlog.RawEvent{Header: header, Payload: body}
		emitted, err := decoder.Feed(raw)
		if err != nil {
			logging.Warnf("ingest: decode event type %d: %v", header.EventType, err)
			continue
		}

		eventCount++
		l.stats.Record(eventCount, len(payload))

		switch {
		case emitted.Dropped:
			logging.Warnf("ingest: dropped event: %s", emitted.DropReason)
		case emitted.Rows != nil:
			l.pool.Submit(dispatch.Item{Pair: emitted.Rows, File: l.currentFile})
		case emitted.RotateTo != "":
			l.currentFile = emitted.RotateTo
			l.posMgr.UpdateFileAndOffset(emitted.RotateTo, 4)
		case emitted.Query != nil:
			normalized := ddltext.Normalize(emitted.Query.Statement)
			logging.Infof("ingest: query event on %s: %s", emitted.Query.Database, normalized)
			if l.feed != nil {
				l.feed.PublishDDL(broker.DdlEvent{
					Schema:     emitted.Query.Database,
					Statement:  emitted.Query.Statement,
					Normalized: normalized,
					EventTSms:  int64(header.Timestamp) * 1000,
					LogPos:     header.LogPos,
				})
			}
		}
	}
}

// RunKeepalive opens its own connection to addr and sends COM_PING
// every KeepaliveInterval until ctx is canceled, reconnecting after any
// ping failure. It runs as a task independent of the replication
// stream, so a stalled or slow-reconnecting ingest loop never starves
// this liveness check.
func RunKeepalive(ctx context.Context, cfg Config) {
	ticker := time.NewTicker(KeepaliveInterval)
	defer ticker.Stop()

	var client *mysqlproto.Client
	defer func() {
		if client != nil {
			_ = client.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if client == nil {
				c, err := mysqlproto.Connect(cfg.Addr, 10*time.Second)
				if err != nil {
					logging.Warnf("ingest: keepalive connect: %v", err)
					continue
				}
				if err := c.Authenticate(cfg.User, cfg.Password); err != nil {
					logging.Warnf("ingest: keepalive authenticate: %v", err)
					_ = c.Close()
					continue
				}
				client = c
			}
			if err := client.Ping(); err != nil {
				logging.Warnf("ingest: keepalive ping: %v", err)
				_ = client.Close()
				client = nil
			}
		}
	}
}

func (l *Loop) queryMasterStatus() (position.MasterStatus, error) {
	rs, err := l.client.Query("SHOW MASTER STATUS")
	if err != nil {
		return position.MasterStatus{}, err
	}
	if len(rs.Rows) == 0 {
		return position.MasterStatus{}, fmt.Errorf("ingest: SHOW MASTER STATUS returned no rows (is binary logging enabled?)")
	}
	row := rs.Rows[0]
	if len(row) < 2 || row[0] == nil || row[1] == nil {
		return position.MasterStatus{}, fmt.Errorf("ingest: SHOW MASTER STATUS returned unexpected columns")
	}
	var pos uint32
	if _, err := fmt.Sscanf(*row[1], "%d", &pos); err != nil {
		return position.MasterStatus{}, fmt.Errorf("ingest: parse master position %q: %w", *row[1], err)
	}
	return position.MasterStatus{File: *row[0], Position: pos}, nil
}

func (l *Loop) queryFirstBinlogFile() (position.FirstBinlogFile, error) {
	rs, err := l.client.Query("SHOW BINARY LOGS")
	if err != nil {
		return position.FirstBinlogFile{}, err
	}
	if len(rs.Rows) == 0 {
		return position.FirstBinlogFile{}, fmt.Errorf("ingest: SHOW BINARY LOGS returned no rows")
	}
	row := rs.Rows[0]
	if len(row) < 1 || row[0] == nil {
		return position.FirstBinlogFile{}, fmt.Errorf("ingest: SHOW BINARY LOGS returned unexpected columns")
	}
	return position.FirstBinlogFile{File: *row[0]}, nil
}
