// Package mysqlproto implements the subset of the MySQL client/server
// protocol this agent needs to act as a replication client: the v10
// handshake, mysql_native_password authentication, text result sets for
// COM_QUERY, and COM_BINLOG_DUMP streaming. It does not implement TLS,
// compression, or any auth plugin besides mysql_native_password.
package mysqlproto

import (
	"fmt"
	"net"
	"time"

	"github.com/ipconfiger/ru-cdc/internal/wire"
)

// Client is a single MySQL connection, used either for the long-lived
// binlog replication stream or for the keepalive ping connection.
type Client struct {
	conn net.Conn
	pkt  *wire.Conn

	Handshake *Handshake
}

// Connect opens a TCP connection to addr ("host:port") and reads the
// server's HandshakeV10 greeting.
func Connect(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("mysqlproto: dial %s: %w", addr, err)
	}
	c := &Client{conn: conn, pkt: wire.NewConn(conn)}

	greeting, err := c.pkt.ReadPacket()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("mysqlproto: read handshake: %w", err)
	}
	if IsErrPacket(greeting) {
		_ = conn.Close()
		return nil, AsError(greeting)
	}
	hs, err := ParseHandshakeV10(greeting)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	c.Handshake = hs
	return c, nil
}

// Close closes the underlying TCP connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Authenticate performs the HandshakeResponse41 / AuthSwitch / native
// password exchange described in §4.2.
func (c *Client) Authenticate(user, password string) error {
	if c.Handshake == nil {
		return fmt.Errorf("mysqlproto: authenticate called before handshake")
	}

	resp := BuildHandshakeResponse41(user, "", c.Handshake.Salt, password)
	if err := c.pkt.WritePacket(resp); err != nil {
		return fmt.Errorf("mysqlproto: write handshake response: %w", err)
	}

	reply, err := c.pkt.ReadPacket()
	if err != nil {
		return fmt.Errorf("mysqlproto: read auth reply: %w", err)
	}
	if IsOKPacket(reply) {
		return nil
	}
	if IsErrPacket(reply) {
		return AsError(reply)
	}

	asr, err := ParseAuthSwitchRequest(reply)
	if err != nil {
		return fmt.Errorf("mysqlproto: unexpected auth reply: %w", err)
	}
	if asr.PluginName != "mysql_native_password" {
		return fmt.Errorf("%w: server requested %q", ErrUnsupportedAuthPlugin, asr.PluginName)
	}

	token := NativePasswordToken(asr.Salt, password)
	if err := c.pkt.WritePacket(token); err != nil {
		return fmt.Errorf("mysqlproto: write auth switch response: %w", err)
	}

	final, err := c.pkt.ReadPacket()
	if err != nil {
		return fmt.Errorf("mysqlproto: read auth switch result: %w", err)
	}
	if IsErrPacket(final) {
		return AsError(final)
	}
	if !IsOKPacket(final) {
		return fmt.Errorf("mysqlproto: expected OK after auth switch, got header 0x%02x", final[0])
	}
	return nil
}

// Query sends a COM_QUERY and reads a text result set, per §4.2.
func (c *Client) Query(sql string) (*ResultSet, error) {
	c.pkt.ResetSeq()
	payload := append([]byte{ComQuery}, sql...)
	if err := c.pkt.WritePacket(payload); err != nil {
		return nil, fmt.Errorf("mysqlproto: write query: %w", err)
	}
	return c.readResultSet()
}

// BinlogDump sends COM_BINLOG_DUMP and puts the connection into streaming
// mode; every subsequent ReadEvent call returns one binlog event payload.
func (c *Client) BinlogDump(serverID uint32, filename string, offset uint32) error {
	c.pkt.ResetSeq()
	var payload []byte
	payload = append(payload, ComBinlogDump)
	payload = wire.WriteU32(payload, offset)
	payload = wire.WriteU16(payload, 0) // flags
	payload = wire.WriteU32(payload, serverID)
	// per the Open Questions note in §9, the filename is sent without a
	// trailing NUL terminator, matching the legacy behavior being modeled.
	payload = wire.WriteFixedString(payload, filename)
	if err := c.pkt.WritePacket(payload); err != nil {
		return fmt.Errorf("mysqlproto: write binlog dump: %w", err)
	}
	return nil
}

// ReadEvent reads one binlog event packet: a leading 0x00 status byte
// (discarded) followed by the raw event bytes.
func (c *Client) ReadEvent() ([]byte, error) {
	pkt, err := c.pkt.ReadPacket()
	if err != nil {
		return nil, fmt.Errorf("mysqlproto: read binlog event: %w", err)
	}
	if IsErrPacket(pkt) {
		return nil, AsError(pkt)
	}
	if len(pkt) == 0 {
		return nil, fmt.Errorf("mysqlproto: empty binlog event packet")
	}
	return pkt[1:], nil
}

// Ping sends COM_PING and waits for the OK response, used by the
// keepalive ticker described in §4.2/§5.
func (c *Client) Ping() error {
	c.pkt.ResetSeq()
	if err := c.pkt.WritePacket([]byte{ComPing}); err != nil {
		return fmt.Errorf("mysqlproto: write ping: %w", err)
	}
	reply, err := c.pkt.ReadPacket()
	if err != nil {
		return fmt.Errorf("mysqlproto: read ping reply: %w", err)
	}
	if IsErrPacket(reply) {
		return AsError(reply)
	}
	return nil
}

// SetDeadline forwards to the underlying connection, used to bound a
// single blocking read (e.g. the ingest loop's per-event read timeout).
func (c *Client) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}
