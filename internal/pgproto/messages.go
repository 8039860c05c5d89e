package pgproto

import "github.com/dbbouncer/dbclient/internal/wire"

// EncodeQuery builds a simple-query message ('Q'): a single NUL-terminated
// SQL string, which may itself contain multiple ';'-separated statements.
func EncodeQuery(sql string) []byte {
	body := wire.NewWriteBuffer(len(sql) + 1)
	body.WriteNulString(sql)
	return frameMessage(TagQuery, body.Bytes())
}

// ParseMessage is the extended-query 'Parse' message: names a prepared
// statement (empty name = the unnamed statement) and its parameter types.
type ParseMessage struct {
	StatementName string
	Query         string
	ParamTypeOIDs []uint32 // 0 means "let the server infer"
}

func (m *ParseMessage) Encode() []byte {
	body := wire.NewWriteBuffer(32 + len(m.Query))
	body.WriteNulString(m.StatementName)
	body.WriteNulString(m.Query)
	body.WriteU16BE(uint16(len(m.ParamTypeOIDs)))
	for _, oid := range m.ParamTypeOIDs {
		body.WriteU32BE(oid)
	}
	return frameMessage(TagParse, body.Bytes())
}

// BindMessage is the extended-query 'Bind' message: binds a prepared
// statement to a portal with concrete parameter values and desired result
// formats.
type BindMessage struct {
	PortalName      string
	StatementName   string
	ParamFormats    []int16 // may be empty (all text), one entry (applies to all), or one per param
	Params          [][]byte // nil entry = SQL NULL
	ResultFormats   []int16  // same convention as ParamFormats, for returned columns
}

func (m *BindMessage) Encode() []byte {
	body := wire.NewWriteBuffer(64)
	body.WriteNulString(m.PortalName)
	body.WriteNulString(m.StatementName)

	body.WriteU16BE(uint16(len(m.ParamFormats)))
	for _, f := range m.ParamFormats {
		body.WriteU16BE(uint16(f))
	}

	body.WriteU16BE(uint16(len(m.Params)))
	for _, p := range m.Params {
		if p == nil {
			body.WriteI32BE(-1)
			continue
		}
		body.WriteI32BE(int32(len(p)))
		body.WriteFixed(p)
	}

	body.WriteU16BE(uint16(len(m.ResultFormats)))
	for _, f := range m.ResultFormats {
		body.WriteU16BE(uint16(f))
	}
	return frameMessage(TagBind, body.Bytes())
}

// EncodeDescribe builds a 'Describe' message for a statement or portal.
func EncodeDescribe(target byte, name string) []byte {
	body := wire.NewWriteBuffer(len(name) + 2)
	body.WriteU8(target)
	body.WriteNulString(name)
	return frameMessage(TagDescribe, body.Bytes())
}

// EncodeExecute builds an 'Execute' message: run the named portal
// (empty = unnamed), returning at most maxRows rows (0 = no limit).
func EncodeExecute(portalName string, maxRows uint32) []byte {
	body := wire.NewWriteBuffer(len(portalName) + 5)
	body.WriteNulString(portalName)
	body.WriteU32BE(maxRows)
	return frameMessage(TagExecute, body.Bytes())
}

// EncodeClose builds a 'Close' message for a statement or portal.
func EncodeClose(target byte, name string) []byte {
	body := wire.NewWriteBuffer(len(name) + 2)
	body.WriteU8(target)
	body.WriteNulString(name)
	return frameMessage(TagClose, body.Bytes())
}

// EncodeSync builds the zero-length 'Sync' message, closing out an
// extended-query exchange and requesting ReadyForQuery.
func EncodeSync() []byte { return frameMessage(TagSync, nil) }

// EncodeFlush builds the zero-length 'Flush' message, asking the backend
// to deliver anything pending without ending the query exchange.
func EncodeFlush() []byte { return frameMessage(TagFlush, nil) }

// EncodeTerminate builds the zero-length 'Terminate' message.
func EncodeTerminate() []byte { return frameMessage(TagTerminate, nil) }

// EncodeCopyFail builds a 'CopyFail' message aborting a COPY IN.
func EncodeCopyFail(reason string) []byte {
	body := wire.NewWriteBuffer(len(reason) + 1)
	body.WriteNulString(reason)
	return frameMessage(TagCopyFail, body.Bytes())
}

// ReadyForQuery is the backend's 'Z' message marking the connection free
// to accept a new query.
type ReadyForQuery struct {
	Status TransactionStatus
}

// DecodeReadyForQuery parses a ReadyForQuery message body.
func DecodeReadyForQuery(pkt []byte) (*ReadyForQuery, error) {
	b := wire.NewBuffer(pkt)
	status, err := b.ReadU8()
	if err != nil {
		return nil, err
	}
	return &ReadyForQuery{Status: TransactionStatus(status)}, nil
}

// ParameterStatus is a backend 'S' message reporting a runtime parameter's
// current value (e.g. "server_version", "TimeZone").
type ParameterStatus struct {
	Name  string
	Value string
}

func DecodeParameterStatus(pkt []byte) (*ParameterStatus, error) {
	b := wire.NewBuffer(pkt)
	name, err := b.ReadNulString()
	if err != nil {
		return nil, err
	}
	value, err := b.ReadNulString()
	if err != nil {
		return nil, err
	}
	return &ParameterStatus{Name: string(name), Value: string(value)}, nil
}

// BackendKeyData carries the process ID and secret key used to cancel a
// query in progress via a separate connection.
type BackendKeyData struct {
	ProcessID uint32
	SecretKey uint32
}

func DecodeBackendKeyData(pkt []byte) (*BackendKeyData, error) {
	b := wire.NewBuffer(pkt)
	pid, err := b.ReadU32BE()
	if err != nil {
		return nil, err
	}
	secret, err := b.ReadU32BE()
	if err != nil {
		return nil, err
	}
	return &BackendKeyData{ProcessID: pid, SecretKey: secret}, nil
}

// CommandComplete reports the tag of a just-finished SQL command (e.g.
// "SELECT 3", "UPDATE 1").
type CommandComplete struct {
	Tag string
}

func DecodeCommandComplete(pkt []byte) (*CommandComplete, error) {
	b := wire.NewBuffer(pkt)
	tag, err := b.ReadNulString()
	if err != nil {
		return nil, err
	}
	return &CommandComplete{Tag: string(tag)}, nil
}

// ParameterDescription is the backend's 't' response to Describe on a
// statement: the inferred OID of each parameter.
type ParameterDescription struct {
	OIDs []uint32
}

func DecodeParameterDescription(pkt []byte) (*ParameterDescription, error) {
	b := wire.NewBuffer(pkt)
	n, err := b.ReadU16BE()
	if err != nil {
		return nil, err
	}
	oids := make([]uint32, n)
	for i := range oids {
		if oids[i], err = b.ReadU32BE(); err != nil {
			return nil, err
		}
	}
	return &ParameterDescription{OIDs: oids}, nil
}
