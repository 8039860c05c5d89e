// Package pgproto implements the PostgreSQL frontend/backend wire protocol
// (protocol version 3.0): message framing constants, authentication
// sub-dispatch, SCRAM-SHA-256, and the Parse/Bind/Execute extended-query
// message set (spec §4.4).
package pgproto

// ProtocolVersion3 is the startup-message protocol version number
// (major 3, minor 0) packed as a single int32.
const ProtocolVersion3 int32 = 3 << 16

// SSLRequestCode is the magic startup code a client sends to ask whether
// the server supports SSL before sending a real StartupMessage.
const SSLRequestCode int32 = 80877103

// Backend message tags (the single byte every backend message starts with,
// except the very first server reply to SSLRequest which has no tag).
const (
	TagAuthentication    byte = 'R'
	TagBackendKeyData    byte = 'K'
	TagBindComplete      byte = '2'
	TagCloseComplete     byte = '3'
	TagCommandComplete   byte = 'C'
	TagCopyData          byte = 'd'
	TagCopyDone          byte = 'c'
	TagCopyInResponse    byte = 'G'
	TagCopyOutResponse   byte = 'H'
	TagDataRow           byte = 'D'
	TagEmptyQueryResp    byte = 'I'
	TagErrorResponse     byte = 'E'
	TagNoData            byte = 'n'
	TagNoticeResponse    byte = 'N'
	TagNotificationResp  byte = 'A'
	TagParameterDesc     byte = 't'
	TagParameterStatus   byte = 'S'
	TagParseComplete     byte = '1'
	TagPortalSuspended   byte = 's'
	TagReadyForQuery     byte = 'Z'
	TagRowDescription    byte = 'T'
	TagFunctionCallResp  byte = 'V'
	TagNegotiateProtocol byte = 'v'
)

// Frontend message tags.
const (
	TagBind        byte = 'B'
	TagClose       byte = 'C'
	TagCopyFail    byte = 'f'
	TagDescribe    byte = 'D'
	TagExecute     byte = 'E'
	TagFlush       byte = 'H'
	TagParse       byte = 'P'
	TagPasswordMsg byte = 'p'
	TagQuery       byte = 'Q'
	TagSync        byte = 'S'
	TagTerminate   byte = 'X'
)

// Authentication message sub-types (the int32 immediately following the
// 'R' tag and length).
const (
	AuthOK                uint32 = 0
	AuthKerberosV5        uint32 = 2
	AuthCleartextPassword uint32 = 3
	AuthMD5Password       uint32 = 5
	AuthSCMCredential     uint32 = 6
	AuthGSS               uint32 = 7
	AuthGSSContinue       uint32 = 8
	AuthSSPI              uint32 = 9
	AuthSASL              uint32 = 10
	AuthSASLContinue      uint32 = 11
	AuthSASLFinal         uint32 = 12
)

// TransactionStatus is the byte ReadyForQuery carries, reporting the
// backend's transaction state (spec §3 "TransactionStatus").
type TransactionStatus byte

const (
	TransStatusIdle    TransactionStatus = 'I'
	TransStatusInTrans TransactionStatus = 'T'
	TransStatusInError TransactionStatus = 'E'
)

// Describe/Close target kinds (the byte following the tag in those
// messages): 'S' for a prepared statement, 'P' for a portal.
const (
	TargetStatement byte = 'S'
	TargetPortal    byte = 'P'
)

// FormatCode selects text (0) or binary (1) wire representation for a
// bound parameter or a returned column.
const (
	FormatText   int16 = 0
	FormatBinary int16 = 1
)
