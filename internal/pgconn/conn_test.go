package pgconn

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/dbbouncer/dbclient"
	"github.com/dbbouncer/dbclient/internal/pgproto"
)

// --- fake-server wire helpers ---
//
// These build raw backend messages by hand (tag + big-endian length +
// body) rather than going through pgproto's frontend-only Encode helpers,
// since the test plays the server side of the handshake.

func beMessage(tag byte, body []byte) []byte {
	out := make([]byte, 0, 5+len(body))
	out = append(out, tag)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(4+len(body)))
	out = append(out, lenBuf[:]...)
	out = append(out, body...)
	return out
}

func cstr(s string) []byte { return append([]byte(s), 0) }

func beU32(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

func beU16(v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return b[:]
}

func beI32(v int32) []byte { return beU32(uint32(v)) }

func authOK() []byte { return beMessage(pgproto.TagAuthentication, beU32(pgproto.AuthOK)) }

func readyForQuery(status byte) []byte {
	return beMessage(pgproto.TagReadyForQuery, []byte{status})
}

func errorResponse(sqlState, message string) []byte {
	body := append([]byte{}, byte('C'))
	body = append(body, cstr(sqlState)...)
	body = append(body, byte('M'))
	body = append(body, cstr(message)...)
	body = append(body, 0)
	return beMessage(pgproto.TagErrorResponse, body)
}

func commandComplete(tag string) []byte {
	return beMessage(pgproto.TagCommandComplete, cstr(tag))
}

func rowDescriptionOneIntCol(name string) []byte {
	body := beU16(1)
	body = append(body, cstr(name)...)
	body = append(body, beU32(0)...)   // table OID
	body = append(body, beU16(0)...)   // attr no
	body = append(body, beU32(23)...)  // type OID: int4
	body = append(body, beU16(4)...)   // type size
	body = append(body, beI32(-1)...)  // type modifier
	body = append(body, beU16(0)...)   // format: text
	return beMessage(pgproto.TagRowDescription, body)
}

func dataRowOneInt(val string) []byte {
	body := beU16(1)
	body = append(body, beI32(int32(len(val)))...)
	body = append(body, []byte(val)...)
	return beMessage(pgproto.TagDataRow, body)
}

func parseComplete() []byte { return beMessage(pgproto.TagParseComplete, nil) }
func bindComplete() []byte  { return beMessage(pgproto.TagBindComplete, nil) }
func closeComplete() []byte { return beMessage(pgproto.TagCloseComplete, nil) }

func parameterDescription(oids ...uint32) []byte {
	body := beU16(uint16(len(oids)))
	for _, oid := range oids {
		body = append(body, beU32(oid)...)
	}
	return beMessage(pgproto.TagParameterDesc, body)
}

// rowDescriptionOneIntColBinary is like rowDescriptionOneIntCol but declares
// the column's format code as binary (1), matching what the extended-query
// path negotiates in Bind's ResultFormats.
func rowDescriptionOneIntColBinary(name string) []byte {
	body := beU16(1)
	body = append(body, cstr(name)...)
	body = append(body, beU32(0)...)  // table OID
	body = append(body, beU16(0)...)  // attr no
	body = append(body, beU32(23)...) // type OID: int4
	body = append(body, beU16(4)...)  // type size
	body = append(body, beI32(-1)...) // type modifier
	body = append(body, beU16(1)...)  // format: binary
	return beMessage(pgproto.TagRowDescription, body)
}

// dataRowOneInt4Binary builds a DataRow carrying a single binary int4 field
// holding val, encoded network-byte-order as a real Postgres server would.
func dataRowOneInt4Binary(val int32) []byte {
	body := beU16(1)
	body = append(body, beI32(4)...)
	body = append(body, beI32(val)...)
	return beMessage(pgproto.TagDataRow, body)
}

// readFrontendMessage reads one tagged, length-prefixed message the client
// sent (Parse/Bind/Describe/Execute/Sync/Close/Query all share this
// framing), returning its tag and raw body.
func readFrontendMessage(t *testing.T, conn net.Conn) (byte, []byte) {
	t.Helper()
	header := make([]byte, 5)
	if _, err := io.ReadFull(conn, header); err != nil {
		t.Fatalf("reading frontend message header: %v", err)
	}
	bodyLen := binary.BigEndian.Uint32(header[1:]) - 4
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(conn, body); err != nil {
		t.Fatalf("reading frontend message body: %v", err)
	}
	return header[0], body
}

// consumeStartupMessage reads and discards the client's untagged
// StartupMessage (4-byte length, no tag byte).
func consumeStartupMessage(t *testing.T, conn net.Conn) {
	t.Helper()
	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		t.Fatalf("reading startup length: %v", err)
	}
	length := binary.BigEndian.Uint32(header)
	body := make([]byte, length-4)
	if _, err := io.ReadFull(conn, body); err != nil {
		t.Fatalf("reading startup body: %v", err)
	}
}

func dialPair(t *testing.T) (client, server net.Conn) {
	t.Helper()
	client, server = net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

func TestHandshakeTrustAuth(t *testing.T) {
	client, server := dialPair(t)

	go func() {
		consumeStartupMessage(t, server)
		server.Write(authOK())
		server.Write(readyForQuery('I'))
	}()

	dsn := &dbclient.DSN{User: "alice", Database: "testdb"}
	conn, err := open(context.Background(), dsn, client)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if conn.Poisoned() {
		t.Fatal("fresh connection should not be poisoned")
	}
}

func TestHandshakeCleartextPassword(t *testing.T) {
	client, server := dialPair(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		consumeStartupMessage(t, server)
		server.Write(beMessage(pgproto.TagAuthentication, beU32(pgproto.AuthCleartextPassword)))

		// Expect a PasswordMessage('p') carrying the cleartext password.
		header := make([]byte, 5)
		io.ReadFull(server, header)
		bodyLen := binary.BigEndian.Uint32(header[1:]) - 4
		body := make([]byte, bodyLen)
		io.ReadFull(server, body)
		got := string(body[:len(body)-1]) // strip trailing NUL
		if got != "s3cret" {
			t.Errorf("password = %q, want s3cret", got)
		}

		server.Write(authOK())
		server.Write(readyForQuery('I'))
	}()

	dsn := &dbclient.DSN{User: "alice", Password: "s3cret"}
	if _, err := open(context.Background(), dsn, client); err != nil {
		t.Fatalf("open: %v", err)
	}
	<-done
}

func TestHandshakeErrorResponseSurfacesDatabaseError(t *testing.T) {
	client, server := dialPair(t)

	go func() {
		consumeStartupMessage(t, server)
		server.Write(errorResponse("28000", "invalid authorization"))
	}()

	dsn := &dbclient.DSN{User: "alice"}
	_, err := open(context.Background(), dsn, client)
	if err == nil {
		t.Fatal("expected an error")
	}
	dbErr, ok := err.(*dbclient.DatabaseError)
	if !ok {
		t.Fatalf("expected *dbclient.DatabaseError, got %T: %v", err, err)
	}
	if dbErr.SQLState != "28000" {
		t.Errorf("SQLState = %q, want 28000", dbErr.SQLState)
	}
}

func TestHandshakeUnsupportedAuthMechanism(t *testing.T) {
	client, server := dialPair(t)

	go func() {
		consumeStartupMessage(t, server)
		server.Write(beMessage(pgproto.TagAuthentication, beU32(pgproto.AuthKerberosV5)))
	}()

	dsn := &dbclient.DSN{User: "alice"}
	_, err := open(context.Background(), dsn, client)
	if _, ok := err.(*dbclient.AuthUnsupportedError); !ok {
		t.Fatalf("expected *dbclient.AuthUnsupportedError, got %T: %v", err, err)
	}
}

func handshakeTrust(t *testing.T, server net.Conn) {
	t.Helper()
	consumeStartupMessage(t, server)
	server.Write(authOK())
	server.Write(readyForQuery('I'))
}

func TestSimpleQueryExecuteReturnsAffectedRows(t *testing.T) {
	client, server := dialPair(t)

	go func() {
		handshakeTrust(t, server)
		// Expect a simple Query ('Q') message; don't bother decoding it.
		header := make([]byte, 5)
		io.ReadFull(server, header)
		bodyLen := binary.BigEndian.Uint32(header[1:]) - 4
		io.ReadFull(server, make([]byte, bodyLen))

		server.Write(commandComplete("INSERT 0 3"))
		server.Write(readyForQuery('I'))
	}()

	conn, err := open(context.Background(), &dbclient.DSN{User: "alice"}, client)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	n, err := conn.Execute(context.Background(), "insert into t values (1),(2),(3)", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n != 3 {
		t.Fatalf("affected = %d, want 3", n)
	}
}

func TestSimpleQueryFetchDecodesRows(t *testing.T) {
	client, server := dialPair(t)

	go func() {
		handshakeTrust(t, server)
		header := make([]byte, 5)
		io.ReadFull(server, header)
		bodyLen := binary.BigEndian.Uint32(header[1:]) - 4
		io.ReadFull(server, make([]byte, bodyLen))

		server.Write(rowDescriptionOneIntCol("id"))
		server.Write(dataRowOneInt("1"))
		server.Write(dataRowOneInt("2"))
		server.Write(commandComplete("SELECT 2"))
		server.Write(readyForQuery('I'))
	}()

	conn, err := open(context.Background(), &dbclient.DSN{User: "alice"}, client)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	iter, err := conn.Fetch(context.Background(), "select id from t", nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	var got []string
	for {
		row, err := iter.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if row == nil {
			break
		}
		s, _, _ := row.String(0)
		got = append(got, s)
	}
	if len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("got %v, want [1 2]", got)
	}
}

func TestSimpleQueryErrorResponseResyncsAndIsNotPoisoned(t *testing.T) {
	client, server := dialPair(t)

	go func() {
		handshakeTrust(t, server)
		header := make([]byte, 5)
		io.ReadFull(server, header)
		bodyLen := binary.BigEndian.Uint32(header[1:]) - 4
		io.ReadFull(server, make([]byte, bodyLen))

		server.Write(errorResponse("42601", "syntax error at or near \"nonsense\""))
		server.Write(readyForQuery('I'))
	}()

	conn, err := open(context.Background(), &dbclient.DSN{User: "alice"}, client)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	_, err = conn.Execute(context.Background(), "nonsense", nil)
	if _, ok := err.(*dbclient.DatabaseError); !ok {
		t.Fatalf("expected *dbclient.DatabaseError, got %T: %v", err, err)
	}
	if conn.Poisoned() {
		t.Fatal("a well-formed DatabaseError must not poison the connection")
	}
}

func TestApplyDeadlineClearsWhenContextHasNoDeadline(t *testing.T) {
	client, server := dialPair(t)
	go handshakeTrust(t, server)

	conn, err := open(context.Background(), &dbclient.DSN{User: "alice"}, client)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	pc := conn.(*Conn)
	// Must not hang or error: applyDeadline should clear any prior deadline.
	pc.applyDeadline(context.Background())
}

func TestPingRunsSelectOneAndDrains(t *testing.T) {
	client, server := dialPair(t)

	go func() {
		handshakeTrust(t, server)
		header := make([]byte, 5)
		io.ReadFull(server, header)
		bodyLen := binary.BigEndian.Uint32(header[1:]) - 4
		io.ReadFull(server, make([]byte, bodyLen))

		server.Write(rowDescriptionOneIntCol("?column?"))
		server.Write(dataRowOneInt("1"))
		server.Write(commandComplete("SELECT 1"))
		server.Write(readyForQuery('I'))
	}()

	conn, err := open(context.Background(), &dbclient.DSN{User: "alice"}, client)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestCloseSendsTerminate(t *testing.T) {
	client, server := dialPair(t)

	readDone := make(chan byte, 1)
	go func() {
		handshakeTrust(t, server)
		tagBuf := make([]byte, 1)
		if _, err := io.ReadFull(server, tagBuf); err == nil {
			readDone <- tagBuf[0]
		}
	}()

	conn, err := open(context.Background(), &dbclient.DSN{User: "alice"}, client)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	conn.Close()

	select {
	case tag := <-readDone:
		if tag != pgproto.TagTerminate {
			t.Fatalf("expected Terminate tag %q, got %q", pgproto.TagTerminate, tag)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed a Terminate message")
	}
}

// TestExtendedQueryBindsAndDecodesBinary exercises the prepared-statement
// path end to end: Parse/Describe/Sync followed by Bind/Execute/Sync, both
// parameters and results in binary format (spec §4.6 step 3). It asserts
// the wire-level Bind message actually negotiates binary format codes and
// encodes the int4 parameter as a 4-byte big-endian value (matching the
// server-inferred OID from ParameterDescription, not a fixed 8-byte width),
// and that the binary int4 DataRow that comes back decodes correctly
// through dbclient.Row despite Postgres's big-endian wire order.
func TestExtendedQueryBindsAndDecodesBinary(t *testing.T) {
	client, server := dialPair(t)

	go func() {
		handshakeTrust(t, server)

		readFrontendMessage(t, server) // Parse
		readFrontendMessage(t, server) // Describe
		readFrontendMessage(t, server) // Sync
		server.Write(parseComplete())
		server.Write(parameterDescription(23)) // int4
		server.Write(rowDescriptionOneIntColBinary("n"))
		server.Write(readyForQuery('I'))

		tag, body := readFrontendMessage(t, server) // Bind
		if tag != pgproto.TagBind {
			t.Errorf("expected Bind, got tag %q", tag)
		}
		paramFormat, paramBytes, resultFormat := decodeBindBody(t, body)
		if paramFormat != pgproto.FormatBinary {
			t.Errorf("param format = %d, want FormatBinary", paramFormat)
		}
		if resultFormat != pgproto.FormatBinary {
			t.Errorf("result format = %d, want FormatBinary", resultFormat)
		}
		want := []byte{0x00, 0x00, 0x00, 0x07} // int4, big-endian 7
		if string(paramBytes) != string(want) {
			t.Errorf("param bytes = %x, want %x (4-byte big-endian per int4 OID)", paramBytes, want)
		}

		readFrontendMessage(t, server) // Execute
		readFrontendMessage(t, server) // Sync
		server.Write(bindComplete())
		server.Write(dataRowOneInt4Binary(7))
		server.Write(commandComplete("SELECT 1"))
		server.Write(readyForQuery('I'))

		readFrontendMessage(t, server) // Close
		readFrontendMessage(t, server) // Sync
		server.Write(closeComplete())
		server.Write(readyForQuery('I'))
	}()

	conn, err := open(context.Background(), &dbclient.DSN{User: "alice"}, client)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	iter, err := conn.Fetch(context.Background(), "select n from t where n = $1", []dbclient.Param{dbclient.Int64Param(7)})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	row, err := iter.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if row == nil {
		t.Fatal("expected one row, got none")
	}
	n, isNull, err := row.Int64(0)
	if err != nil {
		t.Fatalf("Int64: %v", err)
	}
	if isNull || n != 7 {
		t.Fatalf("n = %d (null=%v), want 7", n, isNull)
	}
	if end, err := iter.Next(); err != nil || end != nil {
		t.Fatalf("Next after last row = (%v, %v), want (nil, nil)", end, err)
	}
}

// decodeBindBody parses a Bind message body just enough to recover the
// first parameter's format code and bytes and the first result format code.
func decodeBindBody(t *testing.T, body []byte) (paramFormat int16, paramBytes []byte, resultFormat int16) {
	t.Helper()
	pos := 0
	readCStr := func() string {
		start := pos
		for body[pos] != 0 {
			pos++
		}
		s := string(body[start:pos])
		pos++
		return s
	}
	readCStr() // portal name
	readCStr() // statement name

	numParamFormats := int(binary.BigEndian.Uint16(body[pos:]))
	pos += 2
	for i := 0; i < numParamFormats; i++ {
		if i == 0 {
			paramFormat = int16(binary.BigEndian.Uint16(body[pos:]))
		}
		pos += 2
	}

	numParams := int(binary.BigEndian.Uint16(body[pos:]))
	pos += 2
	for i := 0; i < numParams; i++ {
		length := int32(binary.BigEndian.Uint32(body[pos:]))
		pos += 4
		if length < 0 {
			continue
		}
		v := body[pos : pos+int(length)]
		pos += int(length)
		if i == 0 {
			paramBytes = v
		}
	}

	numResultFormats := binary.BigEndian.Uint16(body[pos:])
	pos += 2
	if numResultFormats > 0 {
		resultFormat = int16(binary.BigEndian.Uint16(body[pos:]))
	}
	return paramFormat, paramBytes, resultFormat
}
