package mysqlproto

// Client capability flags, as sent in HandshakeResponse41. Only the subset
// the agent actually negotiates is named; see §4.2.
const (
	CapLongPassword         uint32 = 1 << 0
	CapProtocol41           uint32 = 1 << 9
	CapReserved             uint32 = 1 << 13 // historically CLIENT_TRANSACTIONS
	CapReserved2            uint32 = 1 << 15 // historically CLIENT_SECURE_CONNECTION
	CapPluginAuth           uint32 = 1 << 19
	CapConnectAttrs         uint32 = 1 << 20
	CapPluginAuthLenEncData uint32 = 1 << 21
	CapDeprecateEOF         uint32 = 1 << 24
)

// clientCapabilities is the capability set the agent advertises in its
// HandshakeResponse41, per §4.2:
// LONG_PASSWORD, PROTOCOL_41, PLUGIN_AUTH_LENENC_CLIENT_DATA, RESERVED,
// RESERVED2, DEPRECATE_EOF, PLUGIN_AUTH.
const clientCapabilities = CapLongPassword |
	CapProtocol41 |
	CapPluginAuthLenEncData |
	CapReserved |
	CapReserved2 |
	CapDeprecateEOF |
	CapPluginAuth

// Command bytes used by the protocol layer.
const (
	ComQuery      byte = 0x03
	ComPing       byte = 0x0E
	ComBinlogDump byte = 0x12
)

// Response packet type indicators (first byte of payload).
const (
	RespOK  byte = 0x00
	RespEOF byte = 0xFE
	RespErr byte = 0xFF
)
