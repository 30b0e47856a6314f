package token

import (
	"encoding/base64"
	"strings"
)

// The wire format uses base64url without padding for all three token
// segments. Decoding tolerates padded input from older clients.

func encodeSegment(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeSegment(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
