// Package pgconn implements the PostgreSQL connection state machine (spec
// §4.6: StartupSent -> Authenticating -> ReceivingParams -> Ready ->
// InQuery -> Ready | Closed) on top of internal/framing and
// internal/pgproto, and registers itself as dbclient's postgres backend.
package pgconn

import (
	"context"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dbbouncer/dbclient"
	"github.com/dbbouncer/dbclient/internal/framing"
	"github.com/dbbouncer/dbclient/internal/pgproto"
	"github.com/dbbouncer/dbclient/internal/wire"
)

func init() {
	dbclient.RegisterBackend(dbclient.BackendPostgres, open)
}

// Conn implements dbclient.Conn over one TCP connection speaking the
// Postgres frontend/backend protocol v3.0. Never shared between
// goroutines.
type Conn struct {
	raw    net.Conn
	stream *framing.PGStream

	txStatus      pgproto.TransactionStatus
	paramStatus   map[string]string
	backendPID    uint32
	backendSecret uint32

	mu       sync.Mutex
	stmtSeq  uint64
	poisoned bool
}

func open(ctx context.Context, dsn *dbclient.DSN, raw net.Conn) (dbclient.Conn, error) {
	c := &Conn{raw: raw, stream: framing.NewPGStream(raw)}
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
// unrecoverable.
func (c *Conn) Poisoned() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.poisoned
}

func (c *Conn) nextName(prefix string) string {
	c.mu.Lock()
	c.stmtSeq++
	n := c.stmtSeq
	c.mu.Unlock()
	return fmt.Sprintf("%s%d", prefix, n)
}

func authKindName(kind uint32) string {
	switch kind {
	case pgproto.AuthKerberosV5:
		return "kerberos-v5"
	case pgproto.AuthSCMCredential:
		return "scm-credential"
	case pgproto.AuthGSS, pgproto.AuthGSSContinue:
		return "gssapi"
	case pgproto.AuthSSPI:
		return "sspi"
	default:
		return fmt.Sprintf("auth-kind-%d", kind)
	}
}

func containsStr(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// handshake runs StartupMessage through authentication and ParameterStatus
// collection to the first ReadyForQuery (spec §4.6 steps 1-3), dispatching
// every Authentication sub-type the driver supports and returning
// AuthUnsupportedError for the rest (Kerberos/SCM/GSS/SSPI).
func (c *Conn) handshake(dsn *dbclient.DSN) error {
	params := map[string]string{"user": dsn.User}
	if dsn.Database != "" {
		params["database"] = dsn.Database
	}
	msg := &pgproto.StartupMessage{Parameters: params}
	if err := c.stream.WriteRaw(msg.Encode()); err != nil {
		return c.poison(err)
	}

	var scram *pgproto.ScramClient
	for {
		tag, payload, err := c.stream.ReadMessage()
		if err != nil {
			return c.poison(err)
		}
		switch tag {
		case pgproto.TagErrorResponse:
			notice, derr := pgproto.DecodeErrorResponse(payload)
			if derr != nil {
				return c.poison(derr)
			}
			return &dbclient.DatabaseError{SQLState: notice.SQLState(), Message: notice.Message()}
		case pgproto.TagNoticeResponse:
			continue
		case pgproto.TagParameterStatus:
			ps, derr := pgproto.DecodeParameterStatus(payload)
			if derr != nil {
				return c.poison(derr)
			}
			if c.paramStatus == nil {
				c.paramStatus = make(map[string]string)
			}
			c.paramStatus[ps.Name] = ps.Value
		case pgproto.TagBackendKeyData:
			bkd, derr := pgproto.DecodeBackendKeyData(payload)
			if derr != nil {
				return c.poison(derr)
			}
			c.backendPID, c.backendSecret = bkd.ProcessID, bkd.SecretKey
		case pgproto.TagAuthentication:
			req, derr := pgproto.DecodeAuthRequest(payload)
			if derr != nil {
				return c.poison(derr)
			}
			switch req.Kind {
			case pgproto.AuthOK:
				// continue; StartupSent proceeds into ReceivingParams
			case pgproto.AuthCleartextPassword:
				if werr := c.stream.WriteRaw(pgproto.EncodePasswordMessage(dsn.Password)); werr != nil {
					return c.poison(werr)
				}
			case pgproto.AuthMD5Password:
				hash := pgproto.HashMD5Password(dsn.User, dsn.Password, req.Salt)
				if werr := c.stream.WriteRaw(pgproto.EncodePasswordMessage(hash)); werr != nil {
					return c.poison(werr)
				}
			case pgproto.AuthSASL:
				mechs := pgproto.ParseSASLMechanisms(req.Extra)
				if !containsStr(mechs, "SCRAM-SHA-256") {
					return &dbclient.AuthUnsupportedError{Mechanism: strings.Join(mechs, ",")}
				}
				sc, serr := pgproto.NewScramClient(dsn.User, dsn.Password)
				if serr != nil {
					return c.poison(serr)
				}
				scram = sc
				if werr := c.stream.WriteRaw(pgproto.EncodeSASLInitialResponse("SCRAM-SHA-256", scram.ClientFirstMessage())); werr != nil {
					return c.poison(werr)
				}
			case pgproto.AuthSASLContinue:
				if scram == nil {
					return c.poison(wire.Malformed("AuthenticationSASLContinue without a prior AuthenticationSASL"))
				}
				clientFinal, serr := scram.ReceiveServerFirst(req.Extra)
				if serr != nil {
					return c.poison(serr)
				}
				if werr := c.stream.WriteRaw(pgproto.EncodeSASLResponse(clientFinal)); werr != nil {
					return c.poison(werr)
				}
			case pgproto.AuthSASLFinal:
				if scram == nil {
					return c.poison(wire.Malformed("AuthenticationSASLFinal without a prior AuthenticationSASL"))
				}
				if serr := scram.VerifyServerFinal(req.Extra); serr != nil {
					return c.poison(serr)
				}
			default:
				return &dbclient.AuthUnsupportedError{Mechanism: authKindName(req.Kind)}
			}
		case pgproto.TagReadyForQuery:
			rfq, derr := pgproto.DecodeReadyForQuery(payload)
			if derr != nil {
				return c.poison(derr)
			}
			c.txStatus = rfq.Status
			return nil
		default:
			return c.poison(wire.Malformed("unexpected message %q during startup", tag))
		}
	}
}

// drainToReady reads and discards messages until ReadyForQuery, the
// mandatory re-synchronization after an ErrorResponse (spec §4.6 point 4:
// "skipping it desynchronises the connection and is a fatal bug").
func (c *Conn) drainToReady() error {
	for {
		tag, payload, err := c.stream.ReadMessage()
		if err != nil {
			return c.poison(err)
		}
		if tag == pgproto.TagReadyForQuery {
			rfq, derr := pgproto.DecodeReadyForQuery(payload)
			if derr != nil {
				return c.poison(derr)
			}
			c.txStatus = rfq.Status
			return nil
		}
	}
}

func pgColumnKind(oid uint32) dbclient.ColumnKind {
	switch oid {
	case 21, 23, 20, 26, 28: // int2, int4, int8, oid, xid
		return dbclient.KindInteger
	case 700, 701, 1700: // float4, float8, numeric
		return dbclient.KindFloat
	default:
		return dbclient.KindBytes
	}
}

func toColumnInfosPG(fields []pgproto.FieldDescription) []dbclient.ColumnInfo {
	out := make([]dbclient.ColumnInfo, len(fields))
	for i, f := range fields {
		out[i] = dbclient.ColumnInfo{Name: f.Name, Kind: pgColumnKind(f.TypeOID)}
	}
	return out
}

// paramToBinary renders p in Postgres's binary parameter wire format (spec
// §4.6 step 3: "param formats = binary"), mirroring how the MySQL side's
// ComStmtExecute binds binary-protocol parameters in mysqlconn — except
// where Postgres's wire format genuinely differs: MySQL's COM_STMT_EXECUTE
// sends a type tag alongside every value, so a fixed int8/double width
// always works, but Postgres infers each parameter's type ahead of time
// (ParameterDescription) and expects the bound value's byte width to match
// that type's send function exactly, so numeric params are encoded per their
// declared OID (oid, from the statement's ParameterDescription; 0 if the
// server left it unspecified) rather than a single fixed width. Strings and
// byte slices are sent as raw bytes with no text-format quoting or
// escaping, since the length is carried by Bind's own per-parameter length
// prefix.
func paramToBinary(p dbclient.Param, oid uint32) []byte {
	switch p.Kind {
	case dbclient.ParamNull:
		return nil
	case dbclient.ParamInt64, dbclient.ParamUint64:
		v := p.I64
		if p.Kind == dbclient.ParamUint64 {
			v = int64(p.U64)
		}
		b := wire.NewWriteBuffer(8)
		switch oid {
		case 21: // int2
			b.WriteU16BE(uint16(v))
		case 23, 26, 28: // int4, oid, xid
			b.WriteU32BE(uint32(v))
		default: // int8 (20), or unspecified: widest safe encoding
			b.WriteI64BE(v)
		}
		return b.Bytes()
	case dbclient.ParamFloat64:
		if oid == 700 { // float4
			b := wire.NewWriteBuffer(4)
			b.WriteU32BE(math.Float32bits(float32(p.F64)))
			return b.Bytes()
		}
		b := wire.NewWriteBuffer(8)
		b.WriteU64BE(math.Float64bits(p.F64))
		return b.Bytes()
	case dbclient.ParamString:
		return []byte(p.Str)
	case dbclient.ParamBytes:
		return p.Byt
	case dbclient.ParamBool:
		if p.I64 != 0 {
			return []byte{1}
		}
		return []byte{0}
	default:
		return nil
	}
}

// paramOID returns the OID the server inferred for parameter index i during
// Parse/Describe, or 0 if the statement has no (or a shorter) parameter
// description for that position.
func paramOID(describe *dbclient.Describe, i int) uint32 {
	if describe == nil || i >= len(describe.Params) {
		return 0
	}
	return describe.Params[i].TypeID
}

// reverseFixedWidthBinaryValues flips the byte order of each binary-format
// field that is exactly 2, 4, or 8 bytes wide and belongs to an integer or
// float column, converting Postgres's network-byte-order (big-endian)
// int2/int4/int8/float4/float8 wire values into the little-endian layout
// dbclient.Row's decodeFixedWidthInt/Float64 expect — the same fixed-width
// decoder MySQL's naturally little-endian binary protocol feeds directly.
// Variable-length fields (text, bytea) are left untouched whatever their
// length: the column's OID-derived ColumnKind decides, not the field length.
func reverseFixedWidthBinaryValues(cols []dbclient.ColumnInfo, values [][]byte) {
	for i, v := range values {
		if i >= len(cols) || cols[i].Kind == dbclient.KindBytes {
			continue
		}
		switch len(v) {
		case 2, 4, 8:
			for i, j := 0, len(v)-1; i < j; i, j = i+1, j-1 {
				v[i], v[j] = v[j], v[i]
			}
		}
	}
}

// parseAffectedFromTag extracts the row count from a CommandComplete tag
// such as "SELECT 3" or "INSERT 0 3"; tags with no trailing count (e.g.
// "CREATE TABLE") yield 0.
func parseAffectedFromTag(tag string) uint64 {
	fields := strings.Fields(tag)
	if len(fields) == 0 {
		return 0
	}
	n, err := strconv.ParseUint(fields[len(fields)-1], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// rowIterFromStream builds a RowIter pulling DataRow messages until
// CommandComplete/ReadyForQuery, shared by the simple-query and
// extended-query (Bind/Execute) paths alike. binary must match the
// ResultFormats negotiated for this result set: the simple-query path is
// always text, the extended-query path always binary (spec §4.6 step 3).
func (c *Conn) rowIterFromStream(cols []dbclient.ColumnInfo, binary bool) (uint64, *dbclient.RowIter, error) {
	done := false
	pull := func() (*dbclient.Row, error) {
		if done {
			return nil, nil
		}
		for {
			tag, payload, err := c.stream.ReadMessage()
			if err != nil {
				return nil, c.poison(err)
			}
			switch tag {
			case pgproto.TagDataRow:
				dr, derr := pgproto.DecodeDataRow(payload)
				if derr != nil {
					return nil, c.poison(derr)
				}
				if binary {
					reverseFixedWidthBinaryValues(cols, dr.Values)
				}
				return dbclient.NewRow(cols, dr.Values), nil
			case pgproto.TagCommandComplete, pgproto.TagNoticeResponse, pgproto.TagPortalSuspended:
				continue
			case pgproto.TagErrorResponse:
				notice, derr := pgproto.DecodeErrorResponse(payload)
				if derr != nil {
					return nil, c.poison(derr)
				}
				done = true
				if rerr := c.drainToReady(); rerr != nil {
					return nil, rerr
				}
				return nil, &dbclient.DatabaseError{SQLState: notice.SQLState(), Message: notice.Message()}
			case pgproto.TagReadyForQuery:
				rfq, derr := pgproto.DecodeReadyForQuery(payload)
				if derr != nil {
					return nil, c.poison(derr)
				}
				c.txStatus = rfq.Status
				done = true
				return nil, nil
			default:
				return nil, c.poison(wire.Malformed("unexpected message %q in result stream", tag))
			}
		}
	}
	return 0, dbclient.NewRowIter(pull), nil
}

// simpleQuery runs sql through the simple-query protocol (spec §4.6 step
// 4): a single 'Q' message, the server deciding for itself whether a
// ReadyForQuery follows immediately or after a result set.
func (c *Conn) simpleQuery(sql string) (uint64, *dbclient.RowIter, error) {
	if err := c.stream.WriteRaw(pgproto.EncodeQuery(sql)); err != nil {
		return 0, nil, c.poison(err)
	}
	for {
		tag, payload, err := c.stream.ReadMessage()
		if err != nil {
			return 0, nil, c.poison(err)
		}
		switch tag {
		case pgproto.TagNoticeResponse, pgproto.TagParameterStatus, pgproto.TagEmptyQueryResp:
			continue
		case pgproto.TagErrorResponse:
			notice, derr := pgproto.DecodeErrorResponse(payload)
			if derr != nil {
				return 0, nil, c.poison(derr)
			}
			if rerr := c.drainToReady(); rerr != nil {
				return 0, nil, rerr
			}
			return 0, nil, &dbclient.DatabaseError{SQLState: notice.SQLState(), Message: notice.Message()}
		case pgproto.TagCommandComplete:
			cc, derr := pgproto.DecodeCommandComplete(payload)
			if derr != nil {
				return 0, nil, c.poison(derr)
			}
			affected := parseAffectedFromTag(cc.Tag)
			if rerr := c.drainToReady(); rerr != nil {
				return 0, nil, rerr
			}
			return affected, nil, nil
		case pgproto.TagRowDescription:
			rd, derr := pgproto.DecodeRowDescription(payload)
			if derr != nil {
				return 0, nil, c.poison(derr)
			}
			return c.rowIterFromStream(toColumnInfosPG(rd.Fields), false)
		default:
			return 0, nil, c.poison(wire.Malformed("unexpected message %q in simple query result", tag))
		}
	}
}

// prepareStmt runs Parse+Describe(statement)+Sync (spec §4.6 extended-query
// message set), returning a pgStmt carrying the cached parameter/result
// metadata.
func (c *Conn) prepareStmt(sql string) (*pgStmt, error) {
	name := c.nextName("dbc_stmt_")
	parse := &pgproto.ParseMessage{StatementName: name, Query: sql}
	if err := c.stream.WriteRaw(parse.Encode()); err != nil {
		return nil, c.poison(err)
	}
	if err := c.stream.WriteRaw(pgproto.EncodeDescribe(pgproto.TargetStatement, name)); err != nil {
		return nil, c.poison(err)
	}
	if err := c.stream.WriteRaw(pgproto.EncodeSync()); err != nil {
		return nil, c.poison(err)
	}

	var paramOIDs []uint32
	var fields []pgproto.FieldDescription
	for {
		tag, payload, err := c.stream.ReadMessage()
		if err != nil {
			return nil, c.poison(err)
		}
		switch tag {
		case pgproto.TagParseComplete, pgproto.TagNoData, pgproto.TagNoticeResponse:
			continue
		case pgproto.TagParameterDesc:
			pd, derr := pgproto.DecodeParameterDescription(payload)
			if derr != nil {
				return nil, c.poison(derr)
			}
			paramOIDs = pd.OIDs
		case pgproto.TagRowDescription:
			rd, derr := pgproto.DecodeRowDescription(payload)
			if derr != nil {
				return nil, c.poison(derr)
			}
			fields = rd.Fields
		case pgproto.TagErrorResponse:
			notice, derr := pgproto.DecodeErrorResponse(payload)
			if derr != nil {
				return nil, c.poison(derr)
			}
			if rerr := c.drainToReady(); rerr != nil {
				return nil, rerr
			}
			return nil, &dbclient.DatabaseError{SQLState: notice.SQLState(), Message: notice.Message()}
		case pgproto.TagReadyForQuery:
			rfq, derr := pgproto.DecodeReadyForQuery(payload)
			if derr != nil {
				return nil, c.poison(derr)
			}
			c.txStatus = rfq.Status
			paramDescs := make([]dbclient.ParamDescription, len(paramOIDs))
			for i, oid := range paramOIDs {
				paramDescs[i] = dbclient.ParamDescription{TypeID: oid}
			}
			return &pgStmt{
				conn:   c,
				name:   name,
				fields: fields,
				describe: &dbclient.Describe{
					Params:  paramDescs,
					Columns: toColumnInfosPG(fields),
				},
			}, nil
		default:
			return nil, c.poison(wire.Malformed("unexpected message %q during Parse/Describe", tag))
		}
	}
}

// prepareAndExecute implicitly prepares sql, binds params to the unnamed
// portal, runs it once, and closes the statement once its result (if any)
// is fully consumed — the non-prepared-statement path for parameterized
// queries.
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
// the first so the connection stays synchronized to its next idle
// boundary.
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
// metadata, then immediately closing the statement.
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

// Ping implements dbclient.Conn. Postgres has no dedicated ping command;
// this runs a trivial round trip instead, matching common Postgres driver
// practice.
func (c *Conn) Ping(ctx context.Context) error {
	c.applyDeadline(ctx)
	_, iter, err := c.simpleQuery("SELECT 1")
	if err != nil {
		return err
	}
	if iter == nil {
		return nil
	}
	for {
		row, err := iter.Next()
		if err != nil {
			return err
		}
		if row == nil {
			return nil
		}
	}
}

// Close implements dbclient.Conn, best-effort notifying the server with
// Terminate before closing the transport.
func (c *Conn) Close() error {
	_ = c.stream.WriteRaw(pgproto.EncodeTerminate())
	return c.raw.Close()
}

// pgStmt implements dbclient.Stmt for a named prepared statement.
type pgStmt struct {
	conn     *Conn
	name     string
	fields   []pgproto.FieldDescription
	describe *dbclient.Describe
}

func (s *pgStmt) readBindComplete() error {
	c := s.conn
	for {
		tag, payload, err := c.stream.ReadMessage()
		if err != nil {
			return c.poison(err)
		}
		switch tag {
		case pgproto.TagBindComplete, pgproto.TagNoticeResponse:
			if tag == pgproto.TagBindComplete {
				return nil
			}
			continue
		case pgproto.TagErrorResponse:
			notice, derr := pgproto.DecodeErrorResponse(payload)
			if derr != nil {
				return c.poison(derr)
			}
			if rerr := c.drainToReady(); rerr != nil {
				return rerr
			}
			return &dbclient.DatabaseError{SQLState: notice.SQLState(), Message: notice.Message()}
		default:
			return c.poison(wire.Malformed("unexpected message %q after Bind", tag))
		}
	}
}

// executeRaw runs Bind+Execute+Sync against the unnamed portal (spec §4.6
// extended-query flow), binding parameters and requesting results in the
// binary wire format (spec §4.6 step 3, §1 scope), and returns a lazy row
// sequence decoded against the statement's cached column metadata.
func (s *pgStmt) executeRaw(params []dbclient.Param) (uint64, *dbclient.RowIter, error) {
	c := s.conn
	values := make([][]byte, len(params))
	for i, p := range params {
		values[i] = paramToBinary(p, paramOID(s.describe, i))
	}
	bind := &pgproto.BindMessage{
		StatementName: s.name,
		ParamFormats:  []int16{pgproto.FormatBinary},
		Params:        values,
		ResultFormats: []int16{pgproto.FormatBinary},
	}
	if err := c.stream.WriteRaw(bind.Encode()); err != nil {
		return 0, nil, c.poison(err)
	}
	if err := c.stream.WriteRaw(pgproto.EncodeExecute("", 0)); err != nil {
		return 0, nil, c.poison(err)
	}
	if err := c.stream.WriteRaw(pgproto.EncodeSync()); err != nil {
		return 0, nil, c.poison(err)
	}

	if err := s.readBindComplete(); err != nil {
		return 0, nil, err
	}
	return c.rowIterFromStream(toColumnInfosPG(s.fields), true)
}

// Execute implements dbclient.Stmt.
func (s *pgStmt) Execute(ctx context.Context, params []dbclient.Param) (*dbclient.RowIter, error) {
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
func (s *pgStmt) Describe() *dbclient.Describe { return s.describe }

func (c *Conn) readCloseCompleteAndReady() error {
	for {
		tag, payload, err := c.stream.ReadMessage()
		if err != nil {
			return c.poison(err)
		}
		switch tag {
		case pgproto.TagCloseComplete, pgproto.TagNoticeResponse:
			continue
		case pgproto.TagErrorResponse:
			notice, derr := pgproto.DecodeErrorResponse(payload)
			if derr != nil {
				return c.poison(derr)
			}
			if rerr := c.drainToReady(); rerr != nil {
				return rerr
			}
			return &dbclient.DatabaseError{SQLState: notice.SQLState(), Message: notice.Message()}
		case pgproto.TagReadyForQuery:
			rfq, derr := pgproto.DecodeReadyForQuery(payload)
			if derr != nil {
				return c.poison(derr)
			}
			c.txStatus = rfq.Status
			return nil
		default:
			return c.poison(wire.Malformed("unexpected message %q after Close", tag))
		}
	}
}

// Reset implements dbclient.Stmt by closing the unnamed portal, discarding
// any bound-parameter/cursor state without destroying the statement itself.
func (s *pgStmt) Reset(ctx context.Context) error {
	c := s.conn
	c.applyDeadline(ctx)
	if err := c.stream.WriteRaw(pgproto.EncodeClose(pgproto.TargetPortal, "")); err != nil {
		return c.poison(err)
	}
	if err := c.stream.WriteRaw(pgproto.EncodeSync()); err != nil {
		return c.poison(err)
	}
	return c.readCloseCompleteAndReady()
}

// Close implements dbclient.Stmt.
func (s *pgStmt) Close(ctx context.Context) error {
	s.conn.applyDeadline(ctx)
	return s.closeRaw()
}

func (s *pgStmt) closeRaw() error {
	c := s.conn
	if err := c.stream.WriteRaw(pgproto.EncodeClose(pgproto.TargetStatement, s.name)); err != nil {
		return c.poison(err)
	}
	if err := c.stream.WriteRaw(pgproto.EncodeSync()); err != nil {
		return c.poison(err)
	}
	return c.readCloseCompleteAndReady()
}
