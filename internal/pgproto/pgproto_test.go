package pgproto

import (
	"bytes"
	"testing"

	"github.com/dbbouncer/dbclient/internal/wire"
)

func TestStartupMessageEncode(t *testing.T) {
	s := &StartupMessage{Parameters: map[string]string{"user": "alice"}}
	out := s.Encode()
	b := wire.NewBuffer(out)
	length, err := b.ReadI32BE()
	if err != nil {
		t.Fatalf("ReadI32BE: %v", err)
	}
	if int(length) != len(out) {
		t.Fatalf("declared length %d != actual %d", length, len(out))
	}
	version, err := b.ReadI32BE()
	if err != nil || version != ProtocolVersion3 {
		t.Fatalf("version = %d, err = %v", version, err)
	}
	key, _ := b.ReadNulString()
	val, _ := b.ReadNulString()
	if string(key) != "user" || string(val) != "alice" {
		t.Fatalf("key=%q val=%q", key, val)
	}
}

func TestEncodeSSLRequest(t *testing.T) {
	out := EncodeSSLRequest()
	if len(out) != 8 {
		t.Fatalf("SSLRequest length = %d, want 8", len(out))
	}
}

func TestDecodeAuthRequestMD5(t *testing.T) {
	b := wire.NewWriteBuffer(8)
	b.WriteU32BE(AuthMD5Password)
	b.WriteFixed([]byte{1, 2, 3, 4})
	req, err := DecodeAuthRequest(b.Bytes())
	if err != nil {
		t.Fatalf("DecodeAuthRequest: %v", err)
	}
	if req.Kind != AuthMD5Password || !bytes.Equal(req.Salt, []byte{1, 2, 3, 4}) {
		t.Fatalf("unexpected AuthRequest: %+v", req)
	}
}

func TestHashMD5Password(t *testing.T) {
	hash := HashMD5Password("alice", "s3cret", []byte{0xde, 0xad, 0xbe, 0xef})
	if len(hash) != 3+32 || hash[:3] != "md5" {
		t.Fatalf("unexpected MD5 hash form: %q", hash)
	}
	again := HashMD5Password("alice", "s3cret", []byte{0xde, 0xad, 0xbe, 0xef})
	if hash != again {
		t.Fatal("MD5 password hash must be deterministic")
	}
}

func TestScramClientFlow(t *testing.T) {
	client, err := NewScramClient("alice", "wonderland")
	if err != nil {
		t.Fatalf("NewScramClient: %v", err)
	}
	first := client.ClientFirstMessage()
	if len(first) == 0 {
		t.Fatal("ClientFirstMessage must be non-empty")
	}

	// A malformed server-first-message must be rejected before any crypto
	// runs, proving the parser validates required fields.
	if _, err := client.ReceiveServerFirst([]byte("not-a-valid-message")); err == nil {
		t.Fatal("expected error for malformed server-first-message")
	}
}

func TestParseSASLMechanisms(t *testing.T) {
	data := []byte("SCRAM-SHA-256\x00SCRAM-SHA-256-PLUS\x00\x00")
	mechs := ParseSASLMechanisms(data)
	if len(mechs) != 2 || mechs[0] != "SCRAM-SHA-256" || mechs[1] != "SCRAM-SHA-256-PLUS" {
		t.Fatalf("unexpected mechanisms: %v", mechs)
	}
}

func TestParseMessageEncode(t *testing.T) {
	m := &ParseMessage{StatementName: "stmt1", Query: "SELECT $1", ParamTypeOIDs: []uint32{23}}
	out := m.Encode()
	if out[0] != TagParse {
		t.Fatalf("tag = %c, want P", out[0])
	}
}

func TestBindMessageEncodeWithNullParam(t *testing.T) {
	m := &BindMessage{
		PortalName:    "",
		StatementName: "stmt1",
		Params:        [][]byte{[]byte("hello"), nil},
	}
	out := m.Encode()
	if out[0] != TagBind {
		t.Fatalf("tag = %c, want B", out[0])
	}
}

func TestDecodeRowDescriptionAndDataRow(t *testing.T) {
	b := wire.NewWriteBuffer(64)
	b.WriteU16BE(2)
	b.WriteNulString("id")
	b.WriteU32BE(0)
	b.WriteU16BE(1)
	b.WriteU32BE(23) // int4 OID
	b.WriteU16BE(4)
	b.WriteI32BE(-1)
	b.WriteU16BE(uint16(FormatText))
	b.WriteNulString("name")
	b.WriteU32BE(0)
	b.WriteU16BE(2)
	b.WriteU32BE(25) // text OID
	b.WriteU16BE(0xffff)
	b.WriteI32BE(-1)
	b.WriteU16BE(uint16(FormatText))

	rd, err := DecodeRowDescription(b.Bytes())
	if err != nil {
		t.Fatalf("DecodeRowDescription: %v", err)
	}
	if len(rd.Fields) != 2 || rd.Fields[0].Name != "id" || rd.Fields[1].Name != "name" {
		t.Fatalf("unexpected fields: %+v", rd.Fields)
	}

	row := wire.NewWriteBuffer(32)
	row.WriteU16BE(2)
	row.WriteI32BE(1)
	row.WriteFixed([]byte("1"))
	row.WriteI32BE(-1)

	dr, err := DecodeDataRow(row.Bytes())
	if err != nil {
		t.Fatalf("DecodeDataRow: %v", err)
	}
	if string(dr.Values[0]) != "1" || dr.Values[1] != nil {
		t.Fatalf("unexpected values: %v", dr.Values)
	}
}

func TestDecodeReadyForQuery(t *testing.T) {
	rfq, err := DecodeReadyForQuery([]byte{byte(TransStatusInTrans)})
	if err != nil {
		t.Fatalf("DecodeReadyForQuery: %v", err)
	}
	if rfq.Status != TransStatusInTrans {
		t.Fatalf("status = %c, want T", rfq.Status)
	}
}

func TestDecodeErrorResponse(t *testing.T) {
	b := wire.NewWriteBuffer(32)
	b.WriteU8(FieldSeverity)
	b.WriteNulString("ERROR")
	b.WriteU8(FieldSQLState)
	b.WriteNulString("42601")
	b.WriteU8(FieldMessage)
	b.WriteNulString("syntax error")
	b.WriteU8(0)

	n, err := DecodeErrorResponse(b.Bytes())
	if err != nil {
		t.Fatalf("DecodeErrorResponse: %v", err)
	}
	if n.Severity() != "ERROR" || n.SQLState() != "42601" || n.Message() != "syntax error" {
		t.Fatalf("unexpected notice: %+v", n.Fields)
	}
	if n.Error() != "42601: syntax error" {
		t.Fatalf("Error() = %q", n.Error())
	}
}

func TestDecodeCommandComplete(t *testing.T) {
	b := wire.NewWriteBuffer(16)
	b.WriteNulString("INSERT 0 1")
	cc, err := DecodeCommandComplete(b.Bytes())
	if err != nil {
		t.Fatalf("DecodeCommandComplete: %v", err)
	}
	if cc.Tag != "INSERT 0 1" {
		t.Fatalf("Tag = %q", cc.Tag)
	}
}
