package mysqlproto

import "github.com/dbbouncer/dbclient/internal/wire"

// EncodeComQuery builds a COM_QUERY command packet body: the command byte
// followed by the raw SQL text (no NUL terminator, no length prefix — the
// packet framer supplies the length).
func EncodeComQuery(query string) []byte {
	b := wire.NewWriteBuffer(1 + len(query))
	b.WriteU8(ComQuery)
	b.WriteFixed([]byte(query))
	return b.Bytes()
}

// EncodeComPing builds a COM_PING command packet body. The server always
// replies with an OK_Packet.
func EncodeComPing() []byte {
	return []byte{ComPing}
}

// EncodeComInitDB builds a COM_INIT_DB command packet body, changing the
// connection's default schema.
func EncodeComInitDB(schema string) []byte {
	b := wire.NewWriteBuffer(1 + len(schema))
	b.WriteU8(ComInitDB)
	b.WriteFixed([]byte(schema))
	return b.Bytes()
}

// EncodeComQuit builds a COM_QUIT command packet body. The server closes
// the connection without replying.
func EncodeComQuit() []byte {
	return []byte{ComQuit}
}

// EncodeComResetConnection builds a COM_RESET_CONNECTION command packet
// body: resets session state (transactions, temp tables, prepared
// statements, user variables) while keeping the TCP connection and
// authentication in place. The server replies with an OK_Packet.
func EncodeComResetConnection() []byte {
	return []byte{ComResetConnection}
}

// EncodeComDebug builds a COM_DEBUG command packet body, asking the server
// to dump debug information to its own log (not returned to the client
// beyond an OK_Packet).
func EncodeComDebug() []byte {
	return []byte{ComDebug}
}

// EncodeComSetOption builds a COM_SET_OPTION command packet body.
// optionOperation is 0 to enable CLIENT_MULTI_STATEMENTS, 1 to disable it.
func EncodeComSetOption(optionOperation uint16) []byte {
	b := wire.NewWriteBuffer(3)
	b.WriteU8(ComSetOption)
	b.WriteU16LE(optionOperation)
	return b.Bytes()
}
