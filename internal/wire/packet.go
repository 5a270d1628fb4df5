package wire

import (
	"fmt"
	"io"
)

// MaxPayload is the largest payload a single frame can carry; a logical
// message whose payload is this long or longer is split across successive
// frames and must be reassembled by the reader.
const MaxPayload = 1<<24 - 1

// Conn is a minimal packet-oriented reader/writer over a MySQL connection,
// modeled on the teacher's readPacket/writePacket pair in proxy/mysql/conn.go,
// generalized here to reassemble multi-frame logical messages and to track
// the running sequence id the way a real client (rather than a relay) must.
type Conn struct {
	rw  io.ReadWriter
	seq uint8
}

// NewConn wraps rw for packet-framed reads and writes.
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{rw: rw}
}

// ResetSeq resets the sequence id to 0, as required at the start of each
// new command (query, binlog dump, ping, ...).
func (c *Conn) ResetSeq() {
	c.seq = 0
}

// Seq returns the next sequence id that will be used for a write; after a
// read it is one past the last id observed.
func (c *Conn) Seq() uint8 { return c.seq }

// ReadPacket reads one logical message, reassembling successive frames
// whenever a frame's payload length is exactly MaxPayload bytes.
func (c *Conn) ReadPacket() ([]byte, error) {
	var payload []byte
	for {
		var hdr [4]byte
		if _, err := io.ReadFull(c.rw, hdr[:]); err != nil {
			return nil, fmt.Errorf("wire: read packet header: %w", err)
		}
		length := int(hdr[0]) | int(hdr[1])<<8 | int(hdr[2])<<16
		seq := hdr[3]
		c.seq = seq + 1

		frame := make([]byte, length)
		if length > 0 {
			if _, err := io.ReadFull(c.rw, frame); err != nil {
				return nil, fmt.Errorf("wire: read packet payload: %w", err)
			}
		}
		payload = append(payload, frame...)
		if length < MaxPayload {
			return payload, nil
		}
		// exactly MaxPayload bytes: another frame follows with the same
		// logical message, continuing the sequence id.
	}
}

// WritePacket writes payload as one or more framed packets, splitting at
// MaxPayload boundaries (and writing a trailing zero-length frame when the
// payload is an exact multiple of MaxPayload, so the peer's reassembly loop
// terminates).
func (c *Conn) WritePacket(payload []byte) error {
	for {
		n := len(payload)
		if n > MaxPayload {
			n = MaxPayload
		}
		hdr := [4]byte{byte(n), byte(n >> 8), byte(n >> 16), c.seq}
		c.seq++
		if _, err := c.rw.Write(hdr[:]); err != nil {
			return fmt.Errorf("wire: write packet header: %w", err)
		}
		if n > 0 {
			if _, err := c.rw.Write(payload[:n]); err != nil {
				return fmt.Errorf("wire: write packet payload: %w", err)
			}
		}
		payload = payload[n:]
		if n < MaxPayload {
			return nil
		}
	}
}

// EncodePacket frames payload as a single packet with the given sequence id,
// without touching a Conn's running sequence counter. Used by tests that
// build fixtures and by callers that need a raw encoded frame.
func EncodePacket(seq uint8, payload []byte) []byte {
	n := len(payload)
	out := make([]byte, 0, 4+n)
	out = append(out, byte(n), byte(n>>8), byte(n>>16), seq)
	out = append(out, payload...)
	return out
}

// DecodePacket splits one encoded frame into (sequence id, payload, rest).
func DecodePacket(b []byte) (seq uint8, payload []byte, rest []byte, err error) {
	if len(b) < 4 {
		return 0, nil, b, ErrTruncated
	}
	length := int(b[0]) | int(b[1])<<8 | int(b[2])<<16
	seq = b[3]
	if len(b) < 4+length {
		return 0, nil, b, ErrTruncated
	}
	return seq, b[4 : 4+length], b[4+length:], nil
}
