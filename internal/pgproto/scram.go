package pgproto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// ScramClient drives the SASL SCRAM-SHA-256 exchange (RFC 5802) as a pure
// state machine over message bytes, leaving all I/O to the caller — unlike
// a direct net.Conn-driven implementation, this lets pgconn interleave the
// exchange with its own framed read/write loop.
type ScramClient struct {
	username    string
	password    string
	clientNonce string
	gs2Header   string

	clientFirstBare string
	serverFirstMsg  string
	authMessage     string
	saltedPassword  []byte
}

// NewScramClient creates a client ready to produce the initial SASL
// response. clientNonce must be cryptographically random and unique per
// exchange; NewScramClient generates one via crypto/rand.
func NewScramClient(username, password string) (*ScramClient, error) {
	nonceBytes := make([]byte, 18)
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, fmt.Errorf("generating SCRAM nonce: %w", err)
	}
	return &ScramClient{
		username:    username,
		password:    password,
		clientNonce: base64.StdEncoding.EncodeToString(nonceBytes),
		gs2Header:   "n,,",
	}, nil
}

// ClientFirstMessage returns the client-first-message (GS2 header plus
// client-first-message-bare); the caller passes it, together with the
// mechanism name, to EncodeSASLInitialResponse to build the PasswordMessage.
func (s *ScramClient) ClientFirstMessage() []byte {
	s.clientFirstBare = fmt.Sprintf("n=%s,r=%s", scramEscapeUsername(s.username), s.clientNonce)
	return []byte(s.gs2Header + s.clientFirstBare)
}

// ReceiveServerFirst processes AuthenticationSASLContinue's payload and
// returns the SASLResponse payload (client-final-message) to send next.
func (s *ScramClient) ReceiveServerFirst(payload []byte) ([]byte, error) {
	s.serverFirstMsg = string(payload)
	serverNonce, salt, iterations, err := parseServerFirst(s.serverFirstMsg)
	if err != nil {
		return nil, fmt.Errorf("parsing server-first-message: %w", err)
	}
	if !strings.HasPrefix(serverNonce, s.clientNonce) {
		return nil, fmt.Errorf("SCRAM server nonce does not start with client nonce")
	}

	s.saltedPassword = pbkdf2.Key([]byte(s.password), salt, iterations, 32, sha256.New)
	clientKey := hmacSHA256(s.saltedPassword, []byte("Client Key"))
	storedKey := sha256Sum(clientKey)

	channelBinding := "c=" + base64.StdEncoding.EncodeToString([]byte(s.gs2Header))
	clientFinalWithoutProof := fmt.Sprintf("%s,r=%s", channelBinding, serverNonce)
	s.authMessage = s.clientFirstBare + "," + s.serverFirstMsg + "," + clientFinalWithoutProof

	clientSignature := hmacSHA256(storedKey, []byte(s.authMessage))
	clientProof := xorBytes(clientKey, clientSignature)

	clientFinalMsg := clientFinalWithoutProof + ",p=" + base64.StdEncoding.EncodeToString(clientProof)
	return []byte(clientFinalMsg), nil
}

// VerifyServerFinal checks AuthenticationSASLFinal's payload against the
// expected server signature, completing mutual authentication.
func (s *ScramClient) VerifyServerFinal(payload []byte) error {
	serverKey := hmacSHA256(s.saltedPassword, []byte("Server Key"))
	expectedSig := hmacSHA256(serverKey, []byte(s.authMessage))
	expected := "v=" + base64.StdEncoding.EncodeToString(expectedSig)
	if string(payload) != expected {
		return fmt.Errorf("SCRAM server signature mismatch")
	}
	return nil
}

// EncodeSASLInitialResponse builds a PasswordMessage ('p') carrying the
// chosen SASL mechanism name and the client-first-message.
func EncodeSASLInitialResponse(mechanism string, clientFirstMsg []byte) []byte {
	body := make([]byte, 0, len(mechanism)+1+4+len(clientFirstMsg))
	body = append(body, mechanism...)
	body = append(body, 0)
	var lenBuf [4]byte
	n := uint32(len(clientFirstMsg))
	lenBuf[0], lenBuf[1], lenBuf[2], lenBuf[3] = byte(n>>24), byte(n>>16), byte(n>>8), byte(n)
	body = append(body, lenBuf[:]...)
	body = append(body, clientFirstMsg...)
	return frameMessage(TagPasswordMsg, body)
}

// EncodeSASLResponse builds a PasswordMessage ('p') carrying a raw SASL
// response payload (used for the client-final-message).
func EncodeSASLResponse(data []byte) []byte {
	return frameMessage(TagPasswordMsg, data)
}

// ParseSASLMechanisms splits an AuthenticationSASL payload (the list of
// NUL-terminated mechanism names the server offers) into a slice.
func ParseSASLMechanisms(data []byte) []string {
	var mechs []string
	for len(data) > 0 {
		idx := 0
		for idx < len(data) && data[idx] != 0 {
			idx++
		}
		if idx > 0 {
			mechs = append(mechs, string(data[:idx]))
		}
		if idx >= len(data) {
			break
		}
		data = data[idx+1:]
	}
	return mechs
}

func parseServerFirst(msg string) (nonce string, salt []byte, iterations int, err error) {
	for _, part := range strings.Split(msg, ",") {
		switch {
		case strings.HasPrefix(part, "r="):
			nonce = part[2:]
		case strings.HasPrefix(part, "s="):
			salt, err = base64.StdEncoding.DecodeString(part[2:])
			if err != nil {
				return "", nil, 0, fmt.Errorf("decoding salt: %w", err)
			}
		case strings.HasPrefix(part, "i="):
			iterations, err = strconv.Atoi(part[2:])
			if err != nil {
				return "", nil, 0, fmt.Errorf("parsing iteration count: %w", err)
			}
		}
	}
	if nonce == "" || salt == nil || iterations == 0 {
		return "", nil, 0, fmt.Errorf("incomplete server-first-message: %q", msg)
	}
	return nonce, salt, iterations, nil
}

func scramEscapeUsername(user string) string {
	user = strings.ReplaceAll(user, "=", "=3D")
	user = strings.ReplaceAll(user, ",", "=2C")
	return user
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func sha256Sum(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
