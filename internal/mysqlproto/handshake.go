package mysqlproto

import (
	"github.com/dbbouncer/dbclient/internal/wire"
)

// InitialHandshake is Protocol::HandshakeV10, the first packet the server
// sends after a new connection (spec §4.3).
type InitialHandshake struct {
	ProtocolVersion byte
	ServerVersion   string
	ConnectionID    uint32
	AuthPluginData  []byte // full scramble: part1(8) ++ part2(<=12, trailing NUL trimmed)
	Capabilities    Capability
	Collation       byte
	StatusFlags     uint16
	AuthPluginName  string
}

// DecodeInitialHandshake parses Protocol::HandshakeV10 from pkt.
func DecodeInitialHandshake(pkt []byte) (*InitialHandshake, error) {
	b := wire.NewBuffer(pkt)

	ver, err := b.ReadU8()
	if err != nil {
		return nil, err
	}
	serverVersion, err := b.ReadNulString()
	if err != nil {
		return nil, err
	}
	connID, err := b.ReadU32LE()
	if err != nil {
		return nil, err
	}
	authPart1, err := b.ReadFixed(8)
	if err != nil {
		return nil, err
	}
	if _, err := b.ReadU8(); err != nil { // filler
		return nil, err
	}
	capLow, err := b.ReadU16LE()
	if err != nil {
		return nil, err
	}

	h := &InitialHandshake{
		ProtocolVersion: ver,
		ServerVersion:   string(serverVersion),
		ConnectionID:    connID,
	}
	authData := append([]byte{}, authPart1...)

	if b.Len() == 0 {
		// Pre-4.1 servers stop here; not supported but decode what we can.
		h.Capabilities = Capability(capLow)
		h.AuthPluginData = authData
		return h, nil
	}

	collation, err := b.ReadU8()
	if err != nil {
		return nil, err
	}
	status, err := b.ReadU16LE()
	if err != nil {
		return nil, err
	}
	capHigh, err := b.ReadU16LE()
	if err != nil {
		return nil, err
	}
	caps := Capability(uint32(capLow) | uint32(capHigh)<<16)

	var authPluginDataLen byte
	if caps&ClientPluginAuth != 0 {
		authPluginDataLen, err = b.ReadU8()
		if err != nil {
			return nil, err
		}
	} else {
		if _, err := b.ReadU8(); err != nil { // unused, always 0x00
			return nil, err
		}
	}

	if _, err := b.ReadFixed(10); err != nil { // reserved
		return nil, err
	}

	if caps&ClientSecureConnection != 0 {
		part2Len := int(authPluginDataLen) - 8
		if part2Len < 13 {
			part2Len = 13
		}
		part2, err := b.ReadFixed(part2Len)
		if err != nil {
			return nil, err
		}
		if len(part2) > 0 && part2[len(part2)-1] == 0 {
			part2 = part2[:len(part2)-1]
		}
		authData = append(authData, part2...)
	}

	h.Capabilities = caps
	h.Collation = collation
	h.StatusFlags = status
	h.AuthPluginData = authData

	if caps&ClientPluginAuth != 0 && b.Len() > 0 {
		name, err := b.ReadNulString()
		if err != nil {
			// Some servers omit the trailing NUL; fall back to the rest.
			h.AuthPluginName = string(b.ReadRestAsEOFString())
		} else {
			h.AuthPluginName = string(name)
		}
	} else if h.AuthPluginName == "" {
		h.AuthPluginName = "mysql_native_password"
	}

	return h, nil
}

// HandshakeResponse is Protocol::HandshakeResponse41, the client's reply to
// InitialHandshake (spec §4.3).
type HandshakeResponse struct {
	Capabilities   Capability
	MaxPacketSize  uint32
	Collation      byte
	Username       string
	AuthResponse   []byte
	Database       string
	AuthPluginName string
}

// Encode serializes a HandshakeResponse41 packet body.
func (r *HandshakeResponse) Encode() ([]byte, error) {
	b := wire.NewWriteBuffer(64 + len(r.Username) + len(r.AuthResponse) + len(r.Database))
	b.WriteU32LE(uint32(r.Capabilities))
	b.WriteU32LE(r.MaxPacketSize)
	b.WriteU8(r.Collation)
	b.WriteZeros(23)
	b.WriteNulString(r.Username)

	if r.Capabilities&ClientPluginAuthLenEncClientData != 0 {
		b.WriteLenEncInt(uint64(len(r.AuthResponse)))
		b.WriteFixed(r.AuthResponse)
	} else if r.Capabilities&ClientSecureConnection != 0 {
		if len(r.AuthResponse) > 0xff {
			return nil, wire.Oversize("auth response length %d exceeds single-byte length prefix", len(r.AuthResponse))
		}
		b.WriteU8(byte(len(r.AuthResponse)))
		b.WriteFixed(r.AuthResponse)
	} else {
		b.WriteFixed(r.AuthResponse)
		b.WriteU8(0)
	}

	if r.Capabilities&ClientConnectWithDB != 0 {
		b.WriteNulString(r.Database)
	}
	if r.Capabilities&ClientPluginAuth != 0 {
		b.WriteNulString(r.AuthPluginName)
	}
	return b.Bytes(), nil
}

// AuthSwitchRequest is sent by the server (header 0xFE, length >= 2) when it
// wants the client to use a different auth plugin than it initially offered.
type AuthSwitchRequest struct {
	PluginName string
	PluginData []byte
}

// DecodeAuthSwitchRequest parses an AuthSwitchRequest packet body (the 0xFE
// header byte must already be stripped by the caller).
func DecodeAuthSwitchRequest(pkt []byte) (*AuthSwitchRequest, error) {
	b := wire.NewBuffer(pkt)
	name, err := b.ReadNulString()
	if err != nil {
		return nil, err
	}
	data := b.ReadRestAsEOFString()
	if len(data) > 0 && data[len(data)-1] == 0 {
		data = data[:len(data)-1]
	}
	return &AuthSwitchRequest{PluginName: string(name), PluginData: data}, nil
}
