// Package token issues and verifies compact HMAC-SHA256 signed bearer
// credentials. The format follows the JWT segment layout
// (base64url(header).base64url(payload).base64url(signature)) but is not a
// general JWT implementation: there is no algorithm negotiation on verify,
// no key rotation and no issuer/audience checks. The verifier always
// recomputes HMAC-SHA256 regardless of what the header claims.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"strings"
	"time"

	"github.com/cristidraghici/open-file-sharing/internal/common"
)

type header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// Service creates and validates signed tokens. It is stateless apart from
// the process-wide secret, so a single instance is safe for unlimited
// concurrent callers.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService constructs a Service with the given signing secret and token
// lifetime.
func NewService(secret string, ttl time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// CreateToken signs the given claims, adding "iat" (now) and "exp"
// (now + ttl) as Unix timestamps. Caller-supplied "iat"/"exp" values are
// overwritten.
func (s *Service) CreateToken(claims map[string]any) (string, error) {
	now := s.now().Unix()

	payload := make(map[string]any, len(claims)+2)
	for k, v := range claims {
		payload[k] = v
	}
	payload["iat"] = now
	payload["exp"] = now + int64(s.ttl/time.Second)

	headerJSON, err := json.Marshal(header{Alg: "HS256", Typ: "JWT"})
	if err != nil {
		return "", err
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	signingInput := encodeSegment(headerJSON) + "." + encodeSegment(payloadJSON)
	return signingInput + "." + encodeSegment(s.sign(signingInput)), nil
}

// VerifyToken checks the token structure, signature and expiry, and returns
// the decoded payload claims on success. Every failure yields the same
// common.ErrInvalidToken so callers cannot distinguish a bad signature from
// an expired token.
func (s *Service) VerifyToken(tok string) (map[string]any, error) {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return nil, common.ErrInvalidToken
	}

	headerRaw, err := decodeSegment(parts[0])
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	payloadRaw, err := decodeSegment(parts[1])
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	signature, err := decodeSegment(parts[2])
	if err != nil {
		return nil, common.ErrInvalidToken
	}

	var hdr map[string]any
	if err := json.Unmarshal(headerRaw, &hdr); err != nil {
		return nil, common.ErrInvalidToken
	}
	var payload map[string]any
	if err := json.Unmarshal(payloadRaw, &payload); err != nil {
		return nil, common.ErrInvalidToken
	}

	expected := s.sign(parts[0] + "." + parts[1])
	if !hmac.Equal(expected, signature) {
		return nil, common.ErrInvalidToken
	}

	if exp, ok := numericClaim(payload, "exp"); ok && s.now().Unix() >= exp {
		return nil, common.ErrInvalidToken
	}

	return payload, nil
}

func (s *Service) sign(input string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(input))
	return mac.Sum(nil)
}

// numericClaim reads a claim that may arrive as a JSON number (float64) or
// as an int64 set by CreateToken when the payload round-trips in process.
func numericClaim(payload map[string]any, key string) (int64, bool) {
	switch v := payload[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}
