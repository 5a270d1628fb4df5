package mysqlproto

import (
	"crypto/sha1"
	"fmt"

	"github.com/ipconfiger/ru-cdc/internal/wire"
)

// Handshake is the parsed HandshakeV10 packet sent by the server on connect.
type Handshake struct {
	ProtocolVersion uint8
	ServerVersion   string
	ThreadID        uint32
	Salt            []byte // the 20-byte auth-plugin-data, both regions concatenated
	Capabilities    uint32
	Charset         uint8
	StatusFlags     uint16
	AuthPluginName  string
}

// ErrUnsupportedProtocol is returned when the server does not speak
// protocol version 10.
var ErrUnsupportedProtocol = fmt.Errorf("mysqlproto: only protocol version 10 is supported")

// ErrUnsupportedAuthPlugin is returned when the server requests an auth
// plugin other than mysql_native_password.
var ErrUnsupportedAuthPlugin = fmt.Errorf("mysqlproto: only mysql_native_password is supported")

// ParseHandshakeV10 decodes the server greeting packet.
func ParseHandshakeV10(payload []byte) (*Handshake, error) {
	protoVer, rest, err := wire.ReadU8(payload)
	if err != nil {
		return nil, fmt.Errorf("mysqlproto: read protocol version: %w", err)
	}
	if protoVer != 10 {
		return nil, ErrUnsupportedProtocol
	}

	serverVersion, rest, err := wire.ReadNullTerminatedString(rest)
	if err != nil {
		return nil, fmt.Errorf("mysqlproto: read server version: %w", err)
	}

	threadID, rest, err := wire.ReadU32(rest)
	if err != nil {
		return nil, fmt.Errorf("mysqlproto: read thread id: %w", err)
	}

	authData1, rest, err := wire.ReadFixedString(rest, 8)
	if err != nil {
		return nil, fmt.Errorf("mysqlproto: read auth-plugin-data-1: %w", err)
	}

	// filler
	_, rest, err = wire.ReadU8(rest)
	if err != nil {
		return nil, fmt.Errorf("mysqlproto: read filler: %w", err)
	}

	capLower, rest, err := wire.ReadU16(rest)
	if err != nil {
		return nil, fmt.Errorf("mysqlproto: read capability flags (lower): %w", err)
	}

	charset, rest, err := wire.ReadU8(rest)
	if err != nil {
		return nil, fmt.Errorf("mysqlproto: read charset: %w", err)
	}

	status, rest, err := wire.ReadU16(rest)
	if err != nil {
		return nil, fmt.Errorf("mysqlproto: read status flags: %w", err)
	}

	capUpper, rest, err := wire.ReadU16(rest)
	if err != nil {
		return nil, fmt.Errorf("mysqlproto: read capability flags (upper): %w", err)
	}
	capabilities := uint32(capLower) | uint32(capUpper)<<16

	authDataLen, rest, err := wire.ReadU8(rest)
	if err != nil {
		return nil, fmt.Errorf("mysqlproto: read auth-plugin-data-len: %w", err)
	}

	// 10 reserved bytes
	if len(rest) < 10 {
		return nil, fmt.Errorf("mysqlproto: truncated handshake: missing reserved bytes")
	}
	rest = rest[10:]

	// second region of auth-plugin-data: max(13, authDataLen-8) bytes,
	// null-terminated.
	region2Len := int(authDataLen) - 8
	if region2Len < 13 {
		region2Len = 13
	}
	if len(rest) < region2Len {
		return nil, fmt.Errorf("mysqlproto: truncated handshake: missing auth-plugin-data-2")
	}
	authData2Raw := rest[:region2Len]
	rest = rest[region2Len:]
	// authData2Raw is NUL-terminated; trim the terminator and any padding
	// beyond the 12 real salt bytes it carries.
	authData2 := authData2Raw
	for i, c := range authData2Raw {
		if c == 0 {
			authData2 = authData2Raw[:i]
			break
		}
	}

	salt := append([]byte(authData1), authData2...)

	var pluginName string
	if capabilities&CapPluginAuth != 0 {
		pluginName, _, _ = wire.ReadNullTerminatedString(rest)
	}

	return &Handshake{
		ProtocolVersion: protoVer,
		ServerVersion:   serverVersion,
		ThreadID:        threadID,
		Salt:            salt,
		Capabilities:    capabilities,
		Charset:         charset,
		StatusFlags:     status,
		AuthPluginName:  pluginName,
	}, nil
}

// BuildHandshakeResponse41 encodes the client's HandshakeResponse41 packet
// using the native-password auth response computed by NativePasswordToken.
func BuildHandshakeResponse41(user, authResponse string, salt []byte, password string) []byte {
	var payload []byte
	payload = wire.WriteU32(payload, clientCapabilities)
	payload = wire.WriteU32(payload, 1<<24-1) // max packet size
	payload = wire.WriteU8(payload, 33)       // utf8_general_ci
	payload = append(payload, make([]byte, 23)...)
	payload = wire.WriteNullTerminatedString(payload, user)

	token := NativePasswordToken(salt, password)
	payload = wire.WriteU8(payload, uint8(len(token)))
	payload = append(payload, token...)
	payload = wire.WriteNullTerminatedString(payload, "mysql_native_password")
	return payload
}

// NativePasswordToken implements the mysql_native_password response:
// h1 = SHA1(password); h2 = SHA1(h1); token = h1 XOR SHA1(salt || h2).
func NativePasswordToken(salt []byte, password string) []byte {
	if password == "" {
		return nil
	}
	h1 := sha1.Sum([]byte(password))
	h2 := sha1.Sum(h1[:])

	hasher := sha1.New()
	hasher.Write(salt)
	hasher.Write(h2[:])
	saltedH2 := hasher.Sum(nil)

	token := make([]byte, len(h1))
	for i := range h1 {
		token[i] = h1[i] ^ saltedH2[i]
	}
	return token
}

// AuthSwitchRequest is sent by the server to request a specific plugin.
type AuthSwitchRequest struct {
	PluginName string
	Salt       []byte
}

// ParseAuthSwitchRequest decodes an AuthSwitchRequest packet (first byte 0xFE).
func ParseAuthSwitchRequest(payload []byte) (*AuthSwitchRequest, error) {
	if len(payload) < 1 || payload[0] != RespEOF {
		return nil, fmt.Errorf("mysqlproto: not an AuthSwitchRequest packet")
	}
	rest := payload[1:]
	pluginName, rest, err := wire.ReadNullTerminatedString(rest)
	if err != nil {
		return nil, fmt.Errorf("mysqlproto: read auth switch plugin name: %w", err)
	}
	// remaining bytes are the new salt, NUL-terminated in practice but the
	// trailing NUL is optional on some servers; strip it if present.
	salt := rest
	if n := len(salt); n > 0 && salt[n-1] == 0 {
		salt = salt[:n-1]
	}
	return &AuthSwitchRequest{PluginName: pluginName, Salt: salt}, nil
}
