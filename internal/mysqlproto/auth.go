package mysqlproto

import "crypto/sha1" //nolint:gosec // mysql_native_password is defined in terms of SHA-1

// ScrambleNativePassword computes the mysql_native_password auth response:
// SHA1(password) XOR SHA1(seed || SHA1(SHA1(password))) (spec §4.5 step 1).
// An empty password yields an empty response, matching the server's
// expectation for anonymous/no-password accounts.
func ScrambleNativePassword(password, seed []byte) []byte {
	if len(password) == 0 {
		return nil
	}
	stage1 := sha1.Sum(password) //nolint:gosec
	stage2 := sha1.Sum(stage1[:]) //nolint:gosec

	h := sha1.New() //nolint:gosec
	h.Write(seed)
	h.Write(stage2[:])
	mixed := h.Sum(nil)

	out := make([]byte, len(stage1))
	for i := range out {
		out[i] = stage1[i] ^ mixed[i]
	}
	return out
}
