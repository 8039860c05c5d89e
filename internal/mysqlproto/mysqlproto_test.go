package mysqlproto

import (
	"bytes"
	"testing"

	"github.com/dbbouncer/dbclient/internal/wire"
)

func TestDecodeOK(t *testing.T) {
	b := wire.NewWriteBuffer(16)
	b.WriteLenEncInt(5)
	b.WriteLenEncInt(0)
	b.WriteU16LE(StatusAutocommit)
	b.WriteU16LE(0)
	b.WriteFixed([]byte("Rows matched: 5"))

	ok, err := DecodeOK(b.Bytes(), false)
	if err != nil {
		t.Fatalf("DecodeOK: %v", err)
	}
	if ok.Affected() != 5 || ok.StatusFlags != StatusAutocommit || ok.Info != "Rows matched: 5" {
		t.Fatalf("unexpected OK: %+v", ok)
	}
}

// TestDecodeOKNullAffectedAndLastInsertID is spec.md §8 concrete scenario 1
// ("MySQL OK decode"): input body `00 FB FB 01 00 00 00 "info"` (header
// byte, lenenc-NULL affected_rows, lenenc-NULL last_insert_id, status=
// IN_TRANS, warnings=0, info) decodes to Ok{affected=None,
// last_insert_id=None, status=IN_TRANS, warnings=0, info=b"info"}; the
// lenenc NULL sentinel 0xFB is valid in this field and must not error.
func TestDecodeOKNullAffectedAndLastInsertID(t *testing.T) {
	pkt := []byte{0xfb, 0xfb} // affected_rows=NULL, last_insert_id=NULL
	pkt = append(pkt, byte(StatusInTrans), byte(StatusInTrans>>8))
	pkt = append(pkt, 0x00, 0x00) // warnings = 0
	pkt = append(pkt, []byte("info")...)

	ok, err := DecodeOK(pkt, false)
	if err != nil {
		t.Fatalf("DecodeOK: %v", err)
	}
	if ok.AffectedRows != nil {
		t.Fatalf("AffectedRows = %v, want nil", ok.AffectedRows)
	}
	if ok.LastInsertID != nil {
		t.Fatalf("LastInsertID = %v, want nil", ok.LastInsertID)
	}
	if ok.Affected() != 0 {
		t.Fatalf("Affected() = %d, want 0", ok.Affected())
	}
	if ok.StatusFlags != StatusInTrans {
		t.Fatalf("StatusFlags = %#x, want StatusInTrans", ok.StatusFlags)
	}
	if ok.Info != "info" {
		t.Fatalf("Info = %q, want %q", ok.Info, "info")
	}
}

func TestDecodeErrWithSQLState(t *testing.T) {
	b := wire.NewWriteBuffer(16)
	b.WriteU16LE(1045)
	b.WriteFixed([]byte("#28000"))
	b.WriteFixed([]byte("Access denied"))

	e, err := DecodeErr(b.Bytes())
	if err != nil {
		t.Fatalf("DecodeErr: %v", err)
	}
	if e.Code != 1045 || e.SQLState != "28000" || e.Message != "Access denied" {
		t.Fatalf("unexpected Err: %+v", e)
	}
	if e.Error() != "Access denied" {
		t.Fatalf("Error() = %q", e.Error())
	}
}

func TestDecodeErrWithoutSQLState(t *testing.T) {
	b := wire.NewWriteBuffer(16)
	b.WriteU16LE(2006)
	b.WriteFixed([]byte("MySQL server has gone away"))

	e, err := DecodeErr(b.Bytes())
	if err != nil {
		t.Fatalf("DecodeErr: %v", err)
	}
	if e.SQLState != "" || e.Message != "MySQL server has gone away" {
		t.Fatalf("unexpected Err: %+v", e)
	}
}

func TestIsEOFAndOKPacket(t *testing.T) {
	shortEOF := []byte{0xfe, 0x00, 0x00, 0x02, 0x00}
	if !IsEOFPacket(shortEOF, false) {
		t.Fatal("expected short 0xFE packet to be EOF when deprecateEOF=false")
	}
	if IsOKPacket(shortEOF, false) {
		t.Fatal("short 0xFE packet must not be OK when deprecateEOF=false")
	}
	if !IsOKPacket(shortEOF, true) {
		t.Fatal("0xFE packet must be OK once CLIENT_DEPRECATE_EOF is negotiated")
	}

	ok := []byte{0x00, 0x01, 0x02}
	if !IsOKPacket(ok, false) {
		t.Fatal("0x00-header packet must be OK regardless of deprecateEOF")
	}
	if IsEOFPacket(ok, false) {
		t.Fatal("0x00-header packet must never be EOF")
	}
}

func TestScrambleNativePassword(t *testing.T) {
	seed := []byte("01234567890123456789")[:20]
	out := ScrambleNativePassword([]byte("s3cr3t"), seed)
	if len(out) != 20 {
		t.Fatalf("scramble length = %d, want 20", len(out))
	}
	again := ScrambleNativePassword([]byte("s3cr3t"), seed)
	if !bytes.Equal(out, again) {
		t.Fatal("scramble must be deterministic for the same password/seed")
	}
	if ScrambleNativePassword(nil, seed) != nil {
		t.Fatal("empty password must scramble to nil")
	}
}

func TestHandshakeResponseEncodeSecureConnection(t *testing.T) {
	r := &HandshakeResponse{
		Capabilities:  ClientProtocol41 | ClientSecureConnection | ClientConnectWithDB,
		MaxPacketSize: 1 << 24,
		Collation:     0x21,
		Username:      "root",
		AuthResponse:  []byte{1, 2, 3, 4},
		Database:      "test",
	}
	out, err := r.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(out) < 32+len("root")+1 {
		t.Fatalf("encoded response too short: %d bytes", len(out))
	}
}

func TestHandshakeResponseEncodeOversizeAuthResponse(t *testing.T) {
	r := &HandshakeResponse{
		Capabilities: ClientProtocol41 | ClientSecureConnection,
		Username:     "root",
		AuthResponse: make([]byte, 300),
	}
	_, err := r.Encode()
	pe, ok := err.(*wire.ProtocolError)
	if !ok || pe.Kind != wire.KindOversize {
		t.Fatalf("expected KindOversize ProtocolError, got %v", err)
	}
}

func TestDecodeColumnDefinition(t *testing.T) {
	b := wire.NewWriteBuffer(64)
	b.WriteLenEncString([]byte("def"))
	b.WriteLenEncString([]byte("testdb"))
	b.WriteLenEncString([]byte("users"))
	b.WriteLenEncString([]byte("users"))
	b.WriteLenEncString([]byte("id"))
	b.WriteLenEncString([]byte("id"))
	b.WriteLenEncInt(0x0c)
	b.WriteU16LE(0x3f) // binary collation
	b.WriteU32LE(11)
	b.WriteU8(byte(TypeLong))
	b.WriteU16LE(FlagNotNull | FlagPrimaryKey | FlagAutoInc)
	b.WriteU8(0)

	col, err := DecodeColumnDefinition(b.Bytes())
	if err != nil {
		t.Fatalf("DecodeColumnDefinition: %v", err)
	}
	if col.Name != "id" || col.Table != "users" || col.Type != TypeLong {
		t.Fatalf("unexpected column: %+v", col)
	}
	if col.IsUnsigned() {
		t.Fatal("column must not be unsigned")
	}
}

func TestDecodeTextRowWithNull(t *testing.T) {
	b := wire.NewWriteBuffer(32)
	b.WriteLenEncString([]byte("42"))
	b.WriteLenEncNull()
	b.WriteLenEncString([]byte("hello"))

	cols := []*ColumnDefinition{{Type: TypeLong}, {Type: TypeVarString}, {Type: TypeVarString}}
	row, err := DecodeTextRow(b.Bytes(), cols)
	if err != nil {
		t.Fatalf("DecodeTextRow: %v", err)
	}
	if string(row.Values[0]) != "42" {
		t.Fatalf("Values[0] = %q", row.Values[0])
	}
	if !row.IsNull(1) {
		t.Fatal("Values[1] should be NULL")
	}
	if string(row.Values[2]) != "hello" {
		t.Fatalf("Values[2] = %q", row.Values[2])
	}
}

func TestNullBitmapLenAndBit(t *testing.T) {
	if n := NullBitmapLen(1); n != 1 {
		t.Fatalf("NullBitmapLen(1) = %d, want 1", n)
	}
	if n := NullBitmapLen(7); n != 2 {
		t.Fatalf("NullBitmapLen(7) = %d, want 2", n)
	}
	// column 0 -> bit 2 -> byte 0 mask 0x04
	bitmap := []byte{0x04}
	if !bitmapIsNull(bitmap, 0) {
		t.Fatal("column 0 should read NULL from bit 2")
	}
	if bitmapIsNull(bitmap, 1) {
		t.Fatal("column 1 must not be NULL")
	}
}

func TestDecodeBinaryRow(t *testing.T) {
	cols := []*ColumnDefinition{
		{Type: TypeLong},
		{Type: TypeVarString},
		{Type: TypeDouble},
	}
	bitmapLen := NullBitmapLen(len(cols))
	bitmap := make([]byte, bitmapLen)
	// mark column 1 (string) NULL: bit index 1+2=3 -> byte 0 mask 0x08
	bitmap[0] |= 1 << 3

	b := wire.NewWriteBuffer(32)
	b.WriteU8(0x00)
	b.WriteFixed(bitmap)
	b.WriteU32LE(123456) // column 0: LONG
	// column 1 skipped (NULL)
	b.WriteU64LE(0x3ff0000000000000) // column 2: DOUBLE = 1.0

	row, err := DecodeBinaryRow(b.Bytes(), cols)
	if err != nil {
		t.Fatalf("DecodeBinaryRow: %v", err)
	}
	v0, null0, err := row.Uint64(0)
	if err != nil || null0 || v0 != 123456 {
		t.Fatalf("column 0 = %d null=%v err=%v", v0, null0, err)
	}
	if !row.IsNull(1) {
		t.Fatal("column 1 must be NULL")
	}
	v2, null2, err := row.Float64(2)
	if err != nil || null2 || v2 != 1.0 {
		t.Fatalf("column 2 = %v null=%v err=%v", v2, null2, err)
	}
}

func TestEncodeStmtExecuteWithParams(t *testing.T) {
	params := []BoundParam{
		{Type: TypeLong, Value: []byte{1, 0, 0, 0}},
		{Type: TypeVarString, IsNull: true},
	}
	out := EncodeStmtExecute(7, CursorTypeNoCursor, params, true)
	if out[0] != ComStmtExecute {
		t.Fatalf("command byte = 0x%02x", out[0])
	}
	b := wire.NewBuffer(out[1:])
	stmtID, _ := b.ReadU32LE()
	if stmtID != 7 {
		t.Fatalf("stmtID = %d, want 7", stmtID)
	}
	cursorType, _ := b.ReadU8()
	if cursorType != CursorTypeNoCursor {
		t.Fatalf("cursorType = %d", cursorType)
	}
	iter, _ := b.ReadU32LE()
	if iter != 1 {
		t.Fatalf("iteration_count = %d, want 1", iter)
	}
	bitmap, _ := b.ReadFixed(1) // ceil(2/8) = 1
	if bitmap[0]&0x02 == 0 {
		t.Fatal("param 1 NULL bit not set")
	}
	newParamsBound, _ := b.ReadU8()
	if newParamsBound != NewParamsBoundFlag {
		t.Fatalf("new_params_bound_flag = %d", newParamsBound)
	}
}

func TestEncodeStmtExecuteNoParams(t *testing.T) {
	out := EncodeStmtExecute(1, CursorTypeNoCursor, nil, true)
	if len(out) != 1+4+1+4 {
		t.Fatalf("no-param COM_STMT_EXECUTE length = %d, want %d", len(out), 10)
	}
}

func TestDecodeStmtPrepareOk(t *testing.T) {
	b := wire.NewWriteBuffer(16)
	b.WriteU8(HeaderOK)
	b.WriteU32LE(42)
	b.WriteU16LE(2)
	b.WriteU16LE(1)
	b.WriteU8(0)
	b.WriteU16LE(0)

	ok, err := DecodeStmtPrepareOk(b.Bytes())
	if err != nil {
		t.Fatalf("DecodeStmtPrepareOk: %v", err)
	}
	if ok.StatementID != 42 || ok.NumColumns != 2 || ok.NumParams != 1 {
		t.Fatalf("unexpected prepare-ok: %+v", ok)
	}
}

func TestEncodeCommands(t *testing.T) {
	if got := EncodeComQuery("SELECT 1"); got[0] != ComQuery || string(got[1:]) != "SELECT 1" {
		t.Fatalf("EncodeComQuery = %v", got)
	}
	if got := EncodeComPing(); len(got) != 1 || got[0] != ComPing {
		t.Fatalf("EncodeComPing = %v", got)
	}
	if got := EncodeComInitDB("mydb"); got[0] != ComInitDB || string(got[1:]) != "mydb" {
		t.Fatalf("EncodeComInitDB = %v", got)
	}
	if got := EncodeComQuit(); len(got) != 1 || got[0] != ComQuit {
		t.Fatalf("EncodeComQuit = %v", got)
	}
	if got := EncodeComResetConnection(); len(got) != 1 || got[0] != ComResetConnection {
		t.Fatalf("EncodeComResetConnection = %v", got)
	}
	if got := EncodeStmtClose(9); len(got) != 5 || got[0] != ComStmtClose {
		t.Fatalf("EncodeStmtClose = %v", got)
	}
	if got := EncodeStmtReset(9); len(got) != 5 || got[0] != ComStmtReset {
		t.Fatalf("EncodeStmtReset = %v", got)
	}
	if got := EncodeStmtFetch(9, 100); len(got) != 9 || got[0] != ComStmtFetch {
		t.Fatalf("EncodeStmtFetch = %v", got)
	}
}

func TestDecodeInitialHandshake(t *testing.T) {
	b := wire.NewWriteBuffer(64)
	b.WriteU8(10)
	b.WriteNulString("8.0.33")
	b.WriteU32LE(99)
	b.WriteFixed([]byte("AUTHDATA"))
	b.WriteU8(0)
	caps := ClientProtocol41 | ClientSecureConnection | ClientPluginAuth
	b.WriteU16LE(uint16(caps))
	b.WriteU8(0x21)
	b.WriteU16LE(StatusAutocommit)
	b.WriteU16LE(uint16(caps >> 16))
	b.WriteU8(21) // auth_plugin_data_len
	b.WriteZeros(10)
	b.WriteFixed([]byte("PARTTWODATAX\x00")) // 13 bytes incl trailing NUL trimmed
	b.WriteNulString("mysql_native_password")

	h, err := DecodeInitialHandshake(b.Bytes())
	if err != nil {
		t.Fatalf("DecodeInitialHandshake: %v", err)
	}
	if h.ServerVersion != "8.0.33" || h.ConnectionID != 99 {
		t.Fatalf("unexpected handshake: %+v", h)
	}
	if h.AuthPluginName != "mysql_native_password" {
		t.Fatalf("AuthPluginName = %q", h.AuthPluginName)
	}
	if len(h.AuthPluginData) != 8+12 {
		t.Fatalf("AuthPluginData len = %d, want %d", len(h.AuthPluginData), 20)
	}
}

func TestDecodeAuthSwitchRequest(t *testing.T) {
	b := wire.NewWriteBuffer(32)
	b.WriteNulString("caching_sha2_password")
	b.WriteFixed([]byte("0123456789012345678901"))

	req, err := DecodeAuthSwitchRequest(b.Bytes())
	if err != nil {
		t.Fatalf("DecodeAuthSwitchRequest: %v", err)
	}
	if req.PluginName != "caching_sha2_password" {
		t.Fatalf("PluginName = %q", req.PluginName)
	}
}
