package mysqlproto

import (
	"fmt"

	"github.com/ipconfiger/ru-cdc/internal/wire"
)

// ErrPacket is the decoded form of a 0xFF ERR packet.
type ErrPacket struct {
	Code     uint16
	SQLState string
	Message  string
}

func (e *ErrPacket) Error() string {
	return fmt.Sprintf("mysqlproto: ERR %d (%s): %s", e.Code, e.SQLState, e.Message)
}

// IsErrPacket reports whether payload's first byte marks it as an ERR packet.
func IsErrPacket(payload []byte) bool {
	return len(payload) > 0 && payload[0] == RespErr
}

// ParseErrPacket decodes an ERR packet.
func ParseErrPacket(payload []byte) (*ErrPacket, error) {
	if !IsErrPacket(payload) {
		return nil, fmt.Errorf("mysqlproto: not an ERR packet")
	}
	rest := payload[1:]
	code, rest, err := wire.ReadU16(rest)
	if err != nil {
		return nil, fmt.Errorf("mysqlproto: read error code: %w", err)
	}
	var sqlState string
	if len(rest) > 0 && rest[0] == '#' {
		sqlState, rest, err = wire.ReadFixedString(rest[1:], 5)
		if err != nil {
			return nil, fmt.Errorf("mysqlproto: read sql state: %w", err)
		}
	}
	return &ErrPacket{Code: code, SQLState: sqlState, Message: wire.ReadEOFString(rest)}, nil
}

// IsOKPacket reports whether payload is an OK packet: first byte 0x00, or
// 0xFE with a payload shorter than 9 bytes. No capability flag is
// consulted, so a short classic EOF marker also counts as OK.
func IsOKPacket(payload []byte) bool {
	if len(payload) == 0 {
		return false
	}
	if payload[0] == RespOK {
		return true
	}
	return payload[0] == RespEOF && len(payload) < 9
}

// IsEOFPacket reports whether payload is a terminator packet in a result
// set: header 0xFE with length < 9 (matches IsOKPacket deliberately, since
// DEPRECATE_EOF servers send OK where classic ones send EOF and the text
// result-set reader treats both as "end of rows").
func IsEOFPacket(payload []byte) bool {
	return IsOKPacket(payload)
}

// AsError converts an ERR payload into a Go error, or returns nil if
// payload is not an ERR packet.
func AsError(payload []byte) error {
	if !IsErrPacket(payload) {
		return nil
	}
	pkt, err := ParseErrPacket(payload)
	if err != nil {
		return err
	}
	return pkt
}
