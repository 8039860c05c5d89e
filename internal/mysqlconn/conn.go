// Package mysqlconn implements the MySQL/MariaDB connection state machine
// (spec §4.5: Handshaking -> Ready -> AwaitingResponse{cmd} -> Ready |
// Closed) on top of internal/framing and internal/mysqlproto, and registers
// itself as dbclient's mysql/mariadb backend.
package mysqlconn

import (
	"context"
	"fmt"
	"math"
	"net"
	"sync"
	"time"

	"github.com/dbbouncer/dbclient"
	"github.com/dbbouncer/dbclient/internal/framing"
	"github.com/dbbouncer/dbclient/internal/mysqlproto"
	"github.com/dbbouncer/dbclient/internal/wire"
)

func init() {
	dbclient.RegisterBackend(dbclient.BackendMySQL, open)
}

// desiredCapabilities is everything this driver knows how to speak; the
// effective set negotiated with a given server is this ANDed with whatever
// the server offers in InitialHandshake.
const desiredCapabilities = mysqlproto.ClientLongPassword |
	mysqlproto.ClientProtocol41 |
	mysqlproto.ClientSecureConnection |
	mysqlproto.ClientPluginAuth |
	mysqlproto.ClientPluginAuthLenEncClientData |
	mysqlproto.ClientDeprecateEOF |
	mysqlproto.ClientMultiResults |
	mysqlproto.ClientTransactions |
	mysqlproto.ClientSessionTrack

// Conn implements dbclient.Conn and dbclient.MySQLConn over one TCP
// connection. Never shared between goroutines.
type Conn struct {
	raw          net.Conn
	stream       *framing.MySQLStream
	caps         mysqlproto.Capability
	deprecateEOF bool
	pluginAuth   bool

	mu       sync.Mutex
	poisoned bool
}

func open(ctx context.Context, dsn *dbclient.DSN, raw net.Conn) (dbclient.Conn, error) {
	c := &Conn{raw: raw, stream: framing.NewMySQLStream(raw)}
	c.applyDeadline(ctx)
	if err := c.handshake(dsn); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Conn) applyDeadline(ctx context.Context) {
	if dl, ok := ctx.Deadline(); ok {
		c.raw.SetDeadline(dl)
	} else {
		c.raw.SetDeadline(time.Time{})
	}
}

func (c *Conn) poison(err error) error {
	c.mu.Lock()
	c.poisoned = true
	c.mu.Unlock()
	if pe, ok := err.(*wire.ProtocolError); ok {
		return pe
	}
	return &dbclient.IOError{Err: err}
}

// Poisoned reports whether a framing/IO error has left the connection
// unrecoverable (spec §4.5: only a well-formed ERR_Packet leaves the
// connection usable; anything else poisons it).
func (c *Conn) Poisoned() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.poisoned
}

// handshake runs Protocol::HandshakeV10 through to a successful
// authentication (spec §4.5 steps 1-2), including the mysql_native_password
// AuthSwitchRequest round trip.
func (c *Conn) handshake(dsn *dbclient.DSN) error {
	pkt, err := c.stream.ReadPacket()
	if err != nil {
		return c.poison(err)
	}
	hs, err := mysqlproto.DecodeInitialHandshake(pkt)
	if err != nil {
		return c.poison(err)
	}

	caps := desiredCapabilities & hs.Capabilities
	if dsn.Database != "" {
		caps |= mysqlproto.ClientConnectWithDB & hs.Capabilities
	}

	authResponse := mysqlproto.ScrambleNativePassword([]byte(dsn.Password), hs.AuthPluginData)
	resp := &mysqlproto.HandshakeResponse{
		Capabilities:   caps,
		MaxPacketSize:  0xffffff,
		Collation:      hs.Collation,
		Username:       dsn.User,
		AuthResponse:   authResponse,
		Database:       dsn.Database,
		AuthPluginName: "mysql_native_password",
	}
	body, err := resp.Encode()
	if err != nil {
		return c.poison(err)
	}
	// The server's InitialHandshake packet was sequence 0; the stream's
	// counter carries straight on, so this write is correctly sequence 1
	// without any explicit reset.
	if err := c.stream.WritePacket(body); err != nil {
		return c.poison(err)
	}

	reply, err := c.stream.ReadPacket()
	if err != nil {
		return c.poison(err)
	}

	if len(reply) > 0 && reply[0] == mysqlproto.HeaderEOF {
		sw, derr := mysqlproto.DecodeAuthSwitchRequest(reply[1:])
		if derr != nil {
			return c.poison(derr)
		}
		if sw.PluginName != "mysql_native_password" {
			return &dbclient.AuthUnsupportedError{Mechanism: sw.PluginName}
		}
		newResp := mysqlproto.ScrambleNativePassword([]byte(dsn.Password), sw.PluginData)
		if err := c.stream.WritePacket(newResp); err != nil {
			return c.poison(err)
		}
		reply, err = c.stream.ReadPacket()
		if err != nil {
			return c.poison(err)
		}
	}

	if len(reply) > 0 && reply[0] == mysqlproto.HeaderErr {
		e, derr := mysqlproto.DecodeErr(reply[1:])
		if derr != nil {
			return c.poison(derr)
		}
		return &dbclient.DatabaseError{Code: e.Code, SQLState: e.SQLState, Message: e.Message}
	}
	if len(reply) == 0 || reply[0] != mysqlproto.HeaderOK {
		return c.poison(wire.Malformed("handshake: unexpected response header 0x%02x", safeHeader(reply)))
	}
	if _, derr := mysqlproto.DecodeOK(reply[1:], caps&mysqlproto.ClientPluginAuth != 0); derr != nil {
		return c.poison(derr)
	}

	c.caps = caps
	c.deprecateEOF = caps&mysqlproto.ClientDeprecateEOF != 0
	c.pluginAuth = caps&mysqlproto.ClientPluginAuth != 0
	return nil
}

func safeHeader(pkt []byte) byte {
	if len(pkt) == 0 {
		return 0
	}
	return pkt[0]
}

// readOKOrErr reads one packet and expects it to be an OK_Packet, returning
// a DatabaseError for a well-formed ERR_Packet and poisoning on anything
// else.
func (c *Conn) readOKOrErr() error {
	pkt, err := c.stream.ReadPacket()
	if err != nil {
		return c.poison(err)
	}
	if len(pkt) > 0 && pkt[0] == mysqlproto.HeaderErr {
		e, derr := mysqlproto.DecodeErr(pkt[1:])
		if derr != nil {
			return c.poison(derr)
		}
		return &dbclient.DatabaseError{Code: e.Code, SQLState: e.SQLState, Message: e.Message}
	}
	if !mysqlproto.IsOKPacket(pkt, c.deprecateEOF) {
		return c.poison(wire.Malformed("expected OK_Packet, got header 0x%02x", safeHeader(pkt)))
	}
	if _, derr := mysqlproto.DecodeOK(pkt[1:], c.pluginAuth); derr != nil {
		return c.poison(derr)
	}
	return nil
}

// readColumnDefs reads n ColumnDefinition packets followed by the group's
// EOF marker, unless n is 0 (in which case the group, including its EOF, is
// entirely absent) or CLIENT_DEPRECATE_EOF suppresses the marker.
func (c *Conn) readColumnDefs(n int) ([]*mysqlproto.ColumnDefinition, error) {
	if n == 0 {
		return nil, nil
	}
	cols := make([]*mysqlproto.ColumnDefinition, n)
	for i := 0; i < n; i++ {
		pkt, err := c.stream.ReadPacket()
		if err != nil {
			return nil, c.poison(err)
		}
		col, derr := mysqlproto.DecodeColumnDefinition(pkt)
		if derr != nil {
			return nil, c.poison(derr)
		}
		cols[i] = col
	}
	if !c.deprecateEOF {
		if _, err := c.stream.ReadPacket(); err != nil {
			return nil, c.poison(err)
		}
	}
	return cols, nil
}

func columnKind(t mysqlproto.FieldType) dbclient.ColumnKind {
	switch t {
	case mysqlproto.TypeTiny, mysqlproto.TypeShort, mysqlproto.TypeLong,
		mysqlproto.TypeLongLong, mysqlproto.TypeInt24, mysqlproto.TypeYear:
		return dbclient.KindInteger
	case mysqlproto.TypeFloat, mysqlproto.TypeDouble, mysqlproto.TypeDecimal, mysqlproto.TypeNewDecima:
		return dbclient.KindFloat
	default:
		return dbclient.KindBytes
	}
}

func toColumnInfos(cols []*mysqlproto.ColumnDefinition) []dbclient.ColumnInfo {
	out := make([]dbclient.ColumnInfo, len(cols))
	for i, c := range cols {
		out[i] = dbclient.ColumnInfo{Name: c.Name, Kind: columnKind(c.Type)}
	}
	return out
}

func paramDescsFrom(cols []*mysqlproto.ColumnDefinition) []dbclient.ParamDescription {
	out := make([]dbclient.ParamDescription, len(cols))
	for i, c := range cols {
		out[i] = dbclient.ParamDescription{TypeID: uint32(c.Type)}
	}
	return out
}

// simpleQuery runs a COM_QUERY and reads its response header: an OK_Packet,
// an ERR_Packet, or a column-count packet starting a text result set (spec
// §4.5 step 3; concrete scenarios §8.1/§8.2/§8.3).
func (c *Conn) simpleQuery(sql string) (uint64, *dbclient.RowIter, error) {
	c.stream.ResetSequence()
	if err := c.stream.WritePacket(mysqlproto.EncodeComQuery(sql)); err != nil {
		return 0, nil, c.poison(err)
	}
	return c.readResultSetOrOK()
}

func (c *Conn) readResultSetOrOK() (uint64, *dbclient.RowIter, error) {
	pkt, err := c.stream.ReadPacket()
	if err != nil {
		return 0, nil, c.poison(err)
	}
	if len(pkt) == 0 {
		return 0, nil, c.poison(wire.Malformed("empty response packet"))
	}
	if pkt[0] == mysqlproto.HeaderErr {
		e, derr := mysqlproto.DecodeErr(pkt[1:])
		if derr != nil {
			return 0, nil, c.poison(derr)
		}
		return 0, nil, &dbclient.DatabaseError{Code: e.Code, SQLState: e.SQLState, Message: e.Message}
	}
	if mysqlproto.IsOKPacket(pkt, c.deprecateEOF) {
		ok, derr := mysqlproto.DecodeOK(pkt[1:], c.pluginAuth)
		if derr != nil {
			return 0, nil, c.poison(derr)
		}
		return ok.Affected(), nil, nil
	}

	b := wire.NewBuffer(pkt)
	n, isNull, derr := b.ReadLenEncInt()
	if derr != nil || isNull {
		return 0, nil, c.poison(wire.Malformed("malformed column-count packet"))
	}

	cols, err := c.readColumnDefs(int(n))
	if err != nil {
		return 0, nil, err
	}

	done := false
	pull := func() (*dbclient.Row, error) {
		if done {
			return nil, nil
		}
		rpkt, err := c.stream.ReadPacket()
		if err != nil {
			return nil, c.poison(err)
		}
		if len(rpkt) > 0 && rpkt[0] == mysqlproto.HeaderErr {
			done = true
			e, derr := mysqlproto.DecodeErr(rpkt[1:])
			if derr != nil {
				return nil, c.poison(derr)
			}
			return nil, &dbclient.DatabaseError{Code: e.Code, SQLState: e.SQLState, Message: e.Message}
		}
		if mysqlproto.IsOKPacket(rpkt, c.deprecateEOF) || mysqlproto.IsEOFPacket(rpkt, c.deprecateEOF) {
			done = true
			return nil, nil
		}
		row, derr := mysqlproto.DecodeTextRow(rpkt, cols)
		if derr != nil {
			done = true
			return nil, c.poison(derr)
		}
		return dbclient.NewRow(toColumnInfos(cols), row.Values), nil
	}
	return 0, dbclient.NewRowIter(pull), nil
}

// prepareStmt runs COM_STMT_PREPARE through COM_STMT_PREPARE_OK and the
// param/result ColumnDefinition groups (spec §4.5 step 4).
func (c *Conn) prepareStmt(sql string) (*mysqlStmt, error) {
	c.stream.ResetSequence()
	if err := c.stream.WritePacket(mysqlproto.EncodeStmtPrepare(sql)); err != nil {
		return nil, c.poison(err)
	}
	pkt, err := c.stream.ReadPacket()
	if err != nil {
		return nil, c.poison(err)
	}
	if len(pkt) > 0 && pkt[0] == mysqlproto.HeaderErr {
		e, derr := mysqlproto.DecodeErr(pkt[1:])
		if derr != nil {
			return nil, c.poison(derr)
		}
		return nil, &dbclient.DatabaseError{Code: e.Code, SQLState: e.SQLState, Message: e.Message}
	}
	ok, derr := mysqlproto.DecodeStmtPrepareOk(pkt)
	if derr != nil {
		return nil, c.poison(derr)
	}

	paramCols, err := c.readColumnDefs(int(ok.NumParams))
	if err != nil {
		return nil, err
	}
	resultCols, err := c.readColumnDefs(int(ok.NumColumns))
	if err != nil {
		return nil, err
	}

	return &mysqlStmt{
		conn: c,
		id:   ok.StatementID,
		describe: &dbclient.Describe{
			Params:  paramDescsFrom(paramCols),
			Columns: toColumnInfos(resultCols),
		},
	}, nil
}

// prepareAndExecute implicitly prepares sql, executes it once with params
// bound, and closes the statement once its result (if any) is fully
// consumed — the non-prepared-statement path for parameterized queries.
func (c *Conn) prepareAndExecute(sql string, params []dbclient.Param) (uint64, *dbclient.RowIter, error) {
	stmt, err := c.prepareStmt(sql)
	if err != nil {
		return 0, nil, err
	}
	affected, iter, err := stmt.executeRaw(params)
	if err != nil {
		stmt.closeRaw()
		return 0, nil, err
	}
	if iter == nil {
		return affected, nil, stmt.closeRaw()
	}
	wrapped := dbclient.NewRowIter(func() (*dbclient.Row, error) {
		row, err := iter.Next()
		if row == nil || err != nil {
			stmt.closeRaw()
		}
		return row, err
	})
	return 0, wrapped, nil
}

func (c *Conn) runQuery(sql string, params []dbclient.Param) (uint64, *dbclient.RowIter, error) {
	if len(params) == 0 {
		return c.simpleQuery(sql)
	}
	return c.prepareAndExecute(sql, params)
}

// Execute implements dbclient.Conn.
func (c *Conn) Execute(ctx context.Context, sql string, params []dbclient.Param) (uint64, error) {
	c.applyDeadline(ctx)
	affected, iter, err := c.runQuery(sql, params)
	if err != nil {
		return 0, err
	}
	if iter == nil {
		return affected, nil
	}
	var n uint64
	for {
		row, err := iter.Next()
		if err != nil {
			return n, err
		}
		if row == nil {
			return n, nil
		}
		n++
	}
}

// Fetch implements dbclient.Conn.
func (c *Conn) Fetch(ctx context.Context, sql string, params []dbclient.Param) (*dbclient.RowIter, error) {
	c.applyDeadline(ctx)
	_, iter, err := c.runQuery(sql, params)
	if err != nil {
		return nil, err
	}
	if iter == nil {
		return dbclient.NewRowIter(func() (*dbclient.Row, error) { return nil, nil }), nil
	}
	return iter, nil
}

// FetchOptional implements dbclient.Conn, draining any remaining rows after
// the first so the connection stays synchronized to its next idle boundary.
func (c *Conn) FetchOptional(ctx context.Context, sql string, params []dbclient.Param) (*dbclient.Row, error) {
	iter, err := c.Fetch(ctx, sql, params)
	if err != nil {
		return nil, err
	}
	row, err := iter.Next()
	if err != nil {
		return nil, err
	}
	for {
		next, derr := iter.Next()
		if derr != nil {
			return row, derr
		}
		if next == nil {
			return row, nil
		}
	}
}

// Describe implements dbclient.Conn by preparing sql purely to capture its
// metadata, then immediately closing the statement (spec §3 "Describe").
func (c *Conn) Describe(ctx context.Context, sql string) (*dbclient.Describe, error) {
	c.applyDeadline(ctx)
	stmt, err := c.prepareStmt(sql)
	if err != nil {
		return nil, err
	}
	d := stmt.describe
	if err := stmt.closeRaw(); err != nil {
		return nil, err
	}
	return d, nil
}

// Prepare implements dbclient.Conn.
func (c *Conn) Prepare(ctx context.Context, sql string) (dbclient.Stmt, error) {
	c.applyDeadline(ctx)
	return c.prepareStmt(sql)
}

// Ping implements dbclient.Conn.
func (c *Conn) Ping(ctx context.Context) error {
	c.applyDeadline(ctx)
	c.stream.ResetSequence()
	if err := c.stream.WritePacket(mysqlproto.EncodeComPing()); err != nil {
		return c.poison(err)
	}
	return c.readOKOrErr()
}

// Close implements dbclient.Conn, best-effort notifying the server with
// COM_QUIT (which draws no response) before closing the transport.
func (c *Conn) Close() error {
	c.stream.ResetSequence()
	_ = c.stream.WritePacket(mysqlproto.EncodeComQuit())
	return c.raw.Close()
}

// SelectDatabase implements dbclient.MySQLConn via COM_INIT_DB.
func (c *Conn) SelectDatabase(ctx context.Context, name string) error {
	c.applyDeadline(ctx)
	c.stream.ResetSequence()
	if err := c.stream.WritePacket(mysqlproto.EncodeComInitDB(name)); err != nil {
		return c.poison(err)
	}
	return c.readOKOrErr()
}

// Debug implements dbclient.MySQLConn via COM_DEBUG.
func (c *Conn) Debug(ctx context.Context) error {
	c.applyDeadline(ctx)
	c.stream.ResetSequence()
	if err := c.stream.WritePacket(mysqlproto.EncodeComDebug()); err != nil {
		return c.poison(err)
	}
	return c.readOKOrErr()
}

// SetOption implements dbclient.MySQLConn via COM_SET_OPTION.
func (c *Conn) SetOption(ctx context.Context, multiStatementsOff bool) error {
	c.applyDeadline(ctx)
	op := uint16(0)
	if multiStatementsOff {
		op = 1
	}
	c.stream.ResetSequence()
	if err := c.stream.WritePacket(mysqlproto.EncodeComSetOption(op)); err != nil {
		return c.poison(err)
	}
	return c.readOKOrErr()
}

// mysqlStmt implements dbclient.Stmt for a server-side prepared statement.
type mysqlStmt struct {
	conn     *Conn
	id       uint32
	describe *dbclient.Describe
}

func toBoundParam(p dbclient.Param) (mysqlproto.BoundParam, error) {
	switch p.Kind {
	case dbclient.ParamNull:
		return mysqlproto.BoundParam{Type: mysqlproto.TypeNull, IsNull: true}, nil
	case dbclient.ParamInt64:
		buf := make([]byte, 8)
		u := uint64(p.I64)
		for i := range buf {
			buf[i] = byte(u >> (8 * uint(i)))
		}
		return mysqlproto.BoundParam{Type: mysqlproto.TypeLongLong, Value: buf}, nil
	case dbclient.ParamUint64:
		buf := make([]byte, 8)
		for i := range buf {
			buf[i] = byte(p.U64 >> (8 * uint(i)))
		}
		return mysqlproto.BoundParam{Type: mysqlproto.TypeLongLong, Unsigned: true, Value: buf}, nil
	case dbclient.ParamFloat64:
		bits := math.Float64bits(p.F64)
		buf := make([]byte, 8)
		for i := range buf {
			buf[i] = byte(bits >> (8 * uint(i)))
		}
		return mysqlproto.BoundParam{Type: mysqlproto.TypeDouble, Value: buf}, nil
	case dbclient.ParamString:
		b := wire.NewWriteBuffer(len(p.Str) + 9)
		b.WriteLenEncString([]byte(p.Str))
		return mysqlproto.BoundParam{Type: mysqlproto.TypeVarString, Value: b.Bytes()}, nil
	case dbclient.ParamBytes:
		b := wire.NewWriteBuffer(len(p.Byt) + 9)
		b.WriteLenEncString(p.Byt)
		return mysqlproto.BoundParam{Type: mysqlproto.TypeBlob, Value: b.Bytes()}, nil
	case dbclient.ParamBool:
		v := byte(0)
		if p.I64 != 0 {
			v = 1
		}
		return mysqlproto.BoundParam{Type: mysqlproto.TypeTiny, Value: []byte{v}}, nil
	default:
		return mysqlproto.BoundParam{}, fmt.Errorf("mysqlconn: unsupported param kind %d", p.Kind)
	}
}

func (s *mysqlStmt) buildBoundParams(params []dbclient.Param) ([]mysqlproto.BoundParam, error) {
	out := make([]mysqlproto.BoundParam, len(params))
	for i, p := range params {
		bp, err := toBoundParam(p)
		if err != nil {
			return nil, err
		}
		out[i] = bp
	}
	return out, nil
}

// executeRaw runs COM_STMT_EXECUTE and reads its response header, mirroring
// readResultSetOrOK but decoding rows with the binary protocol against the
// column definitions the server re-sends with this execution (spec §4.5
// step 5; §4.3 ComStmtExecute table).
func (s *mysqlStmt) executeRaw(params []dbclient.Param) (uint64, *dbclient.RowIter, error) {
	c := s.conn
	bound, err := s.buildBoundParams(params)
	if err != nil {
		return 0, nil, err
	}

	c.stream.ResetSequence()
	pkt := mysqlproto.EncodeStmtExecute(s.id, mysqlproto.CursorTypeNoCursor, bound, true)
	if err := c.stream.WritePacket(pkt); err != nil {
		return 0, nil, c.poison(err)
	}

	first, rerr := c.stream.ReadPacket()
	if rerr != nil {
		return 0, nil, c.poison(rerr)
	}
	if len(first) == 0 {
		return 0, nil, c.poison(wire.Malformed("empty response packet"))
	}
	if first[0] == mysqlproto.HeaderErr {
		e, derr := mysqlproto.DecodeErr(first[1:])
		if derr != nil {
			return 0, nil, c.poison(derr)
		}
		return 0, nil, &dbclient.DatabaseError{Code: e.Code, SQLState: e.SQLState, Message: e.Message}
	}
	if mysqlproto.IsOKPacket(first, c.deprecateEOF) {
		ok, derr := mysqlproto.DecodeOK(first[1:], c.pluginAuth)
		if derr != nil {
			return 0, nil, c.poison(derr)
		}
		return ok.Affected(), nil, nil
	}

	b := wire.NewBuffer(first)
	n, isNull, derr := b.ReadLenEncInt()
	if derr != nil || isNull {
		return 0, nil, c.poison(wire.Malformed("malformed column-count packet"))
	}
	cols, err := c.readColumnDefs(int(n))
	if err != nil {
		return 0, nil, err
	}

	done := false
	pull := func() (*dbclient.Row, error) {
		if done {
			return nil, nil
		}
		rpkt, err := c.stream.ReadPacket()
		if err != nil {
			return nil, c.poison(err)
		}
		if len(rpkt) > 0 && rpkt[0] == mysqlproto.HeaderErr {
			done = true
			e, derr := mysqlproto.DecodeErr(rpkt[1:])
			if derr != nil {
				return nil, c.poison(derr)
			}
			return nil, &dbclient.DatabaseError{Code: e.Code, SQLState: e.SQLState, Message: e.Message}
		}
		// A binary row's own header byte is 0x00, so only the 0xFE rule
		// (EOF, or OK under CLIENT_DEPRECATE_EOF) ends the row stream here.
		if mysqlproto.IsEOFPacket(rpkt, c.deprecateEOF) {
			done = true
			return nil, nil
		}
		row, derr := mysqlproto.DecodeBinaryRow(rpkt, cols)
		if derr != nil {
			done = true
			return nil, c.poison(derr)
		}
		return dbclient.NewRow(toColumnInfos(cols), row.Values), nil
	}
	return 0, dbclient.NewRowIter(pull), nil
}

// Execute implements dbclient.Stmt.
func (s *mysqlStmt) Execute(ctx context.Context, params []dbclient.Param) (*dbclient.RowIter, error) {
	s.conn.applyDeadline(ctx)
	_, iter, err := s.executeRaw(params)
	if err != nil {
		return nil, err
	}
	if iter == nil {
		return dbclient.NewRowIter(func() (*dbclient.Row, error) { return nil, nil }), nil
	}
	return iter, nil
}

// Describe implements dbclient.Stmt.
func (s *mysqlStmt) Describe() *dbclient.Describe { return s.describe }

// Reset implements dbclient.Stmt via COM_STMT_RESET.
func (s *mysqlStmt) Reset(ctx context.Context) error {
	c := s.conn
	c.applyDeadline(ctx)
	c.stream.ResetSequence()
	if err := c.stream.WritePacket(mysqlproto.EncodeStmtReset(s.id)); err != nil {
		return c.poison(err)
	}
	return c.readOKOrErr()
}

// Close implements dbclient.Stmt via COM_STMT_CLOSE, to which the server
// sends no response.
func (s *mysqlStmt) Close(ctx context.Context) error {
	s.conn.applyDeadline(ctx)
	return s.closeRaw()
}

func (s *mysqlStmt) closeRaw() error {
	c := s.conn
	c.stream.ResetSequence()
	if err := c.stream.WritePacket(mysqlproto.EncodeStmtClose(s.id)); err != nil {
		return c.poison(err)
	}
	return nil
}
