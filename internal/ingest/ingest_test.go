package ingest

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipconfiger/ru-cdc/internal/broker"
	"github.com/ipconfiger/ru-cdc/internal/config"
	"github.com/ipconfiger/ru-cdc/internal/dispatch"
	"github.com/ipconfiger/ru-cdc/internal/position"
	"github.com/ipconfiger/ru-cdc/internal/schema"
	"github.com/ipconfiger/ru-cdc/internal/sink"
	"github.com/ipconfiger/ru-cdc/internal/stats"
	"github.com/ipconfiger/ru-cdc/internal/wire"
)

// stubResolver satisfies dispatch.Resolver with a fixed field list, no
// real DESC connection.
type stubResolver struct{ fields []schema.Field }

func (s *stubResolver) Resolve(ctx context.Context, tableID uint64, schemaName, tableName string, columnCount int) ([]schema.Field, error) {
	return s.fields, nil
}

// recordingSink is an in-memory sink.Sink that signals on recv for
// every published message.
type recordingSink struct {
	in   chan sink.Message
	recv chan sink.Message
}

func newRecordingSink() *recordingSink {
	return &recordingSink{in: make(chan sink.Message, 8), recv: make(chan sink.Message, 8)}
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Enqueue(msg sink.Message) bool {
	select {
	case r.in <- msg:
		return true
	default:
		return false
	}
}

func (r *recordingSink) Run(ctx context.Context) {
	for {
		select {
		case msg, ok := <-r.in:
			if !ok {
				return
			}
			r.recv <- msg
		case <-ctx.Done():
			return
		}
	}
}

func (r *recordingSink) Close() { close(r.in) }

// buildGreeting constructs a minimal HandshakeV10 payload, classic (no
// DEPRECATE_EOF) capability flags so the result-set reader expects the
// classic mid-result EOF marker.
func buildGreeting(salt []byte) []byte {
	var p []byte
	p = wire.WriteU8(p, 10)
	p = wire.WriteNullTerminatedString(p, "8.0.34-fake")
	p = wire.WriteU32(p, 42)
	p = append(p, salt[:8]...)
	p = wire.WriteU8(p, 0)
	p = wire.WriteU16(p, 0x0200) // CLIENT_PROTOCOL_41 only, lower 16 bits
	p = wire.WriteU8(p, 33)
	p = wire.WriteU16(p, 2)
	p = wire.WriteU16(p, 0) // upper 16 capability bits
	p = wire.WriteU8(p, uint8(len(salt)+1))
	p = append(p, make([]byte, 10)...)
	p = append(p, salt[8:]...)
	p = append(p, 0)
	p = wire.WriteNullTerminatedString(p, "mysql_native_password")
	return p
}

func buildColumnDef(name string) []byte {
	var p []byte
	p = wire.WriteLenEncString(p, []byte("def"))
	p = wire.WriteLenEncString(p, []byte("schema"))
	p = wire.WriteLenEncString(p, []byte("table"))
	p = wire.WriteLenEncString(p, []byte("table"))
	p = wire.WriteLenEncString(p, []byte(name))
	p = wire.WriteLenEncString(p, []byte(name))
	return p
}

// buildRawEvent wraps body in a 19-byte binlog event header plus a
// 4-byte zero checksum, and prefixes the 0x00 status byte every binlog
// stream packet carries.
func buildRawEvent(eventType byte, body []byte, logPos uint32) []byte {
	var h []byte
	h = wire.WriteU32(h, 0) // timestamp
	h = wire.WriteU8(h, eventType)
	h = wire.WriteU32(h, 0) // server id
	h = wire.WriteU32(h, uint32(19+len(body)+4))
	h = wire.WriteU32(h, logPos)
	h = wire.WriteU16(h, 0) // flags

	pkt := append([]byte{0x00}, h...)
	pkt = append(pkt, body...)
	pkt = append(pkt, 0, 0, 0, 0) // checksum, unverified
	return pkt
}

// buildTableMapBody encodes a TABLE_MAP for one table with a single INT
// column (no meta bytes needed for that type).
func buildTableMapBody(tableID uint64, schemaName, tableName string) []byte {
	var b []byte
	b = wire.WriteU48(b, tableID)
	b = wire.WriteU16(b, 0) // flags
	b = wire.WriteU8(b, uint8(len(schemaName)))
	b = append(b, schemaName...)
	b = append(b, 0)
	b = wire.WriteU8(b, uint8(len(tableName)))
	b = append(b, tableName...)
	b = append(b, 0)
	b = wire.WriteLenEncInt(b, 1) // column count
	b = append(b, 3)             // ColLong
	b = wire.WriteLenEncInt(b, 0) // meta block length, no meta bytes
	b = append(b, 0)              // null bitmap, 1 column -> 1 byte
	return b
}

// buildWriteRowBody encodes a WRITE_ROWS event for one table with one
// INT column, a single row, value 7.
func buildWriteRowBody(tableID uint64) []byte {
	var b []byte
	b = wire.WriteU48(b, tableID)
	b = wire.WriteU16(b, 0)       // flags
	b = wire.WriteU16(b, 2)       // extra-data-length: no extra data
	b = wire.WriteLenEncInt(b, 1) // column count
	b = append(b, 0x01)           // present-columns bitmap: column 0 present
	b = append(b, 0x00)           // row null bitmap: not null
	b = wire.WriteU32(b, 7)       // column value, little-endian int32
	return b
}

// buildQueryEventBody encodes a QUERY event for statement on database
// dbName, with no status-vars.
func buildQueryEventBody(dbName, statement string) []byte {
	var b []byte
	b = wire.WriteU32(b, 7)             // thread id
	b = wire.WriteU32(b, 0)             // query timestamp
	b = wire.WriteU8(b, uint8(len(dbName)))
	b = wire.WriteU16(b, 0) // error code
	b = wire.WriteU16(b, 0) // status-vars length
	b = append(b, dbName...)
	b = append(b, 0) // db name terminator
	b = append(b, statement...)
	return b
}

// runFakeServer accepts one connection and scripts a minimal MySQL
// replication session: greeting, immediate-OK auth, two SHOW queries,
// a COM_BINLOG_DUMP, then a TABLE_MAP followed by a WRITE_ROWS event.
func runFakeServer(ln net.Listener) error {
	conn, err := ln.Accept()
	if err != nil {
		return err
	}
	defer conn.Close()
	pc := wire.NewConn(conn)

	salt := []byte("01234567890123456789")
	if err := pc.WritePacket(buildGreeting(salt)); err != nil {
		return err
	}
	if _, err := pc.ReadPacket(); err != nil { // handshake response
		return err
	}
	if err := pc.WritePacket([]byte{0x00, 0x00, 0x00}); err != nil { // OK
		return err
	}

	// SET @master_binlog_checksum=@@global.binlog_checksum
	if _, err := pc.ReadPacket(); err != nil {
		return err
	}
	if err := pc.WritePacket([]byte{0x00, 0x00, 0x00}); err != nil { // OK
		return err
	}

	// SHOW MASTER STATUS
	if _, err := pc.ReadPacket(); err != nil {
		return err
	}
	if err := pc.WritePacket([]byte{0x02}); err != nil {
		return err
	}
	if err := pc.WritePacket(buildColumnDef("File")); err != nil {
		return err
	}
	if err := pc.WritePacket(buildColumnDef("Position")); err != nil {
		return err
	}
	if err := pc.WritePacket([]byte{0xFE, 0, 0, 2, 0}); err != nil {
		return err
	}
	row := wire.WriteLenEncString(nil, []byte("mysql-bin.000001"))
	row = wire.WriteLenEncString(row, []byte("4"))
	if err := pc.WritePacket(row); err != nil {
		return err
	}
	if err := pc.WritePacket([]byte{0xFE, 0, 0, 2, 0}); err != nil {
		return err
	}

	// SHOW BINARY LOGS
	if _, err := pc.ReadPacket(); err != nil {
		return err
	}
	if err := pc.WritePacket([]byte{0x01}); err != nil {
		return err
	}
	if err := pc.WritePacket(buildColumnDef("Log_name")); err != nil {
		return err
	}
	if err := pc.WritePacket([]byte{0xFE, 0, 0, 2, 0}); err != nil {
		return err
	}
	row2 := wire.WriteLenEncString(nil, []byte("mysql-bin.000001"))
	if err := pc.WritePacket(row2); err != nil {
		return err
	}
	if err := pc.WritePacket([]byte{0xFE, 0, 0, 2, 0}); err != nil {
		return err
	}

	// COM_BINLOG_DUMP
	if _, err := pc.ReadPacket(); err != nil {
		return err
	}

	tableMap := buildRawEvent(19, buildTableMapBody(42, "db1", "orders"), 200)
	if err := pc.WritePacket(tableMap); err != nil {
		return err
	}
	writeRows := buildRawEvent(30, buildWriteRowBody(42), 300)
	if err := pc.WritePacket(writeRows); err != nil {
		return err
	}

	// Keep the connection open briefly so the client isn't surprised by
	// an immediate close before it has processed both events, then let
	// the deferred Close tear the session down once the test cancels.
	time.Sleep(200 * time.Millisecond)
	return nil
}

// runQueryEventFakeServer scripts the same handshake/queries preamble
// as runFakeServer, then streams a single QUERY event instead of a
// TABLE_MAP/WRITE_ROWS pair.
func runQueryEventFakeServer(ln net.Listener) error {
	conn, err := ln.Accept()
	if err != nil {
		return err
	}
	defer conn.Close()
	pc := wire.NewConn(conn)

	salt := []byte("01234567890123456789")
	if err := pc.WritePacket(buildGreeting(salt)); err != nil {
		return err
	}
	if _, err := pc.ReadPacket(); err != nil {
		return err
	}
	if err := pc.WritePacket([]byte{0x00, 0x00, 0x00}); err != nil {
		return err
	}

	// SET @master_binlog_checksum=@@global.binlog_checksum
	if _, err := pc.ReadPacket(); err != nil {
		return err
	}
	if err := pc.WritePacket([]byte{0x00, 0x00, 0x00}); err != nil {
		return err
	}

	// SHOW MASTER STATUS
	if _, err := pc.ReadPacket(); err != nil {
		return err
	}
	if err := pc.WritePacket([]byte{0x02}); err != nil {
		return err
	}
	if err := pc.WritePacket(buildColumnDef("File")); err != nil {
		return err
	}
	if err := pc.WritePacket(buildColumnDef("Position")); err != nil {
		return err
	}
	if err := pc.WritePacket([]byte{0xFE, 0, 0, 2, 0}); err != nil {
		return err
	}
	row := wire.WriteLenEncString(nil, []byte("mysql-bin.000001"))
	row = wire.WriteLenEncString(row, []byte("4"))
	if err := pc.WritePacket(row); err != nil {
		return err
	}
	if err := pc.WritePacket([]byte{0xFE, 0, 0, 2, 0}); err != nil {
		return err
	}

	// SHOW BINARY LOGS
	if _, err := pc.ReadPacket(); err != nil {
		return err
	}
	if err := pc.WritePacket([]byte{0x01}); err != nil {
		return err
	}
	if err := pc.WritePacket(buildColumnDef("Log_name")); err != nil {
		return err
	}
	if err := pc.WritePacket([]byte{0xFE, 0, 0, 2, 0}); err != nil {
		return err
	}
	row2 := wire.WriteLenEncString(nil, []byte("mysql-bin.000001"))
	if err := pc.WritePacket(row2); err != nil {
		return err
	}
	if err := pc.WritePacket([]byte{0xFE, 0, 0, 2, 0}); err != nil {
		return err
	}

	// COM_BINLOG_DUMP
	if _, err := pc.ReadPacket(); err != nil {
		return err
	}

	queryEvent := buildRawEvent(2, buildQueryEventBody("db1", "ALTER TABLE orders ADD COLUMN note VARCHAR(10) DEFAULT 'x'"), 200)
	if err := pc.WritePacket(queryEvent); err != nil {
		return err
	}

	time.Sleep(200 * time.Millisecond)
	return nil
}

func TestLoopPublishesDdlEventForQueryEvent(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	fs := newRecordingSink()
	router := sink.NewRouter()
	router.Register("mq1", fs)
	instances := []config.Instance{
		{MQ: "mq1", Schemas: "*", Tables: "*", Topic: "orders_topic"},
	}

	serverErr := make(chan error, 1)
	go func() { serverErr <- runQueryEventFakeServer(ln) }()

	pool := dispatch.NewPool(1, 8, instances, &stubResolver{}, router, nil)
	posMgr := position.NewManager(t.TempDir() + "/meta.json")
	collector := stats.NewCollector(time.Hour)
	feed := broker.New(4)

	ctx, cancel := context.WithCancel(context.Background())
	go pool.Run(ctx)
	go posMgr.Run()

	ddlCh, unsub := feed.SubscribeDDL()
	defer unsub()

	loop := New(Config{Addr: ln.Addr().String(), User: "root", Password: "secret", ServerID: 1001}, pool, posMgr, collector, feed)

	runErr := make(chan error, 1)
	go func() { runErr <- loop.Run(ctx) }()

	select {
	case ev := <-ddlCh:
		assert.Equal(t, "db1", ev.Schema)
		assert.Equal(t, "ALTER TABLE orders ADD COLUMN note VARCHAR(?) DEFAULT '?'", ev.Normalized)
		assert.Contains(t, ev.Statement, "VARCHAR(10)")
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for ddl event")
	}

	select {
	case <-fs.recv:
		t.Fatal("a QUERY event must never be dispatched to a sink")
	default:
	}

	cancel()
	pool.Close()
	posMgr.Stop()
	<-serverErr
	<-runErr
}

func TestLoopStreamsTableMapAndWriteRowsIntoPool(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	fs := newRecordingSink()
	router := sink.NewRouter()
	router.Register("mq1", fs)
	instances := []config.Instance{
		{MQ: "mq1", Schemas: "*", Tables: "*", Topic: "orders_topic"},
	}

	serverErr := make(chan error, 1)
	go func() { serverErr <- runFakeServer(ln) }()

	pool := dispatch.NewPool(1, 8, instances, &stubResolver{fields: []schema.Field{{Name: "id", DeclaredType: "int", IsPrimary: true}}}, router, nil)
	posMgr := position.NewManager(t.TempDir() + "/meta.json")
	collector := stats.NewCollector(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go pool.Run(ctx)
	go fs.Run(ctx)
	go posMgr.Run()

	loop := New(Config{Addr: ln.Addr().String(), User: "root", Password: "secret", ServerID: 1001}, pool, posMgr, collector, nil)

	runErr := make(chan error, 1)
	go func() { runErr <- loop.Run(ctx) }()

	select {
	case msg := <-fs.recv:
		assert.Equal(t, "orders_topic", msg.Topic)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for dispatched record")
	}

	cancel()
	pool.Close()
	posMgr.Stop()
	<-serverErr
	<-runErr
}

// runKeepaliveFakeServer accepts one connection, completes the greeting
// and an immediate-OK auth, then answers every COM_PING with an OK
// packet until the connection is closed.
func runKeepaliveFakeServer(ln net.Listener, pings chan<- struct{}) error {
	conn, err := ln.Accept()
	if err != nil {
		return err
	}
	defer conn.Close()
	pc := wire.NewConn(conn)

	salt := []byte("01234567890123456789")
	if err := pc.WritePacket(buildGreeting(salt)); err != nil {
		return err
	}
	if _, err := pc.ReadPacket(); err != nil {
		return err
	}
	if err := pc.WritePacket([]byte{0x00, 0x00, 0x00}); err != nil {
		return err
	}

	for {
		if _, err := pc.ReadPacket(); err != nil {
			return nil
		}
		select {
		case pings <- struct{}{}:
		default:
		}
		if err := pc.WritePacket([]byte{0x00, 0x00, 0x00}); err != nil {
			return nil
		}
	}
}

func TestRunKeepaliveSendsPingOnItsOwnConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	pings := make(chan struct{}, 4)
	serverErr := make(chan error, 1)
	go func() { serverErr <- runKeepaliveFakeServer(ln, pings) }()

	orig := KeepaliveInterval
	KeepaliveInterval = 50 * time.Millisecond
	t.Cleanup(func() { KeepaliveInterval = orig })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunKeepalive(ctx, Config{Addr: ln.Addr().String(), User: "root", Password: "secret"})
		close(done)
	}()

	select {
	case <-pings:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for keepalive ping")
	}

	cancel()
	<-done
	<-serverErr
}
