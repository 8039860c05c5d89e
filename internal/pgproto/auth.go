package pgproto

import (
	"crypto/md5" //nolint:gosec // the wire protocol mandates MD5 for this auth method
	"encoding/hex"

	"github.com/dbbouncer/dbclient/internal/wire"
)

// AuthRequest is a parsed Authentication message (spec §4.4 "Authentication
// sub-dispatch"). Kind selects which of Salt/Extra is populated.
type AuthRequest struct {
	Kind  uint32
	Salt  []byte // AuthMD5Password: 4-byte salt
	Extra []byte // AuthSASL: NUL-separated mechanism list; AuthGSSContinue/AuthSASLContinue/AuthSASLFinal: opaque payload
}

// DecodeAuthRequest parses an Authentication message body (the 'R' tag and
// length are not included in pkt).
func DecodeAuthRequest(pkt []byte) (*AuthRequest, error) {
	b := wire.NewBuffer(pkt)
	kind, err := b.ReadU32BE()
	if err != nil {
		return nil, err
	}
	req := &AuthRequest{Kind: kind}
	switch kind {
	case AuthOK, AuthKerberosV5, AuthCleartextPassword, AuthSCMCredential, AuthGSS, AuthSSPI:
		// no additional payload
	case AuthMD5Password:
		salt, err := b.ReadFixed(4)
		if err != nil {
			return nil, err
		}
		req.Salt = append([]byte{}, salt...)
	case AuthSASL, AuthSASLContinue, AuthSASLFinal, AuthGSSContinue:
		req.Extra = append([]byte{}, b.Bytes()...)
	default:
		return nil, wire.Malformed("unsupported Authentication sub-type %d", kind)
	}
	return req, nil
}

// EncodePasswordMessage builds a PasswordMessage ('p') carrying a
// NUL-terminated password string, used for both cleartext and MD5 auth.
func EncodePasswordMessage(password string) []byte {
	body := wire.NewWriteBuffer(len(password) + 1)
	body.WriteNulString(password)
	return frameMessage(TagPasswordMsg, body.Bytes())
}

// HashMD5Password computes the PostgreSQL MD5 password hash:
// "md5" + hex(md5(hex(md5(password+username)) + salt)).
func HashMD5Password(username, password string, salt []byte) string {
	inner := md5.Sum([]byte(password + username)) //nolint:gosec
	innerHex := hex.EncodeToString(inner[:])
	outer := md5.Sum(append([]byte(innerHex), salt...)) //nolint:gosec
	return "md5" + hex.EncodeToString(outer[:])
}

// frameMessage prepends a tagged message's 1-byte tag and 4-byte big-endian
// length (the length includes itself but not the tag) to body.
func frameMessage(tag byte, body []byte) []byte {
	b := wire.NewWriteBuffer(1 + 4 + len(body))
	b.WriteU8(tag)
	b.WriteI32BE(int32(4 + len(body)))
	b.WriteFixed(body)
	return b.Bytes()
}
