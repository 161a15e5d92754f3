package token

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrInvalidEnvelope is returned when an envelope is malformed or its signature does not match.
var ErrInvalidEnvelope = errors.New("invalid signed envelope")

type envelope struct {
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

// Signer wraps arbitrary JSON payloads in a signed envelope:
// base64url({"data": payload, "signature": hex(HMAC-SHA256(compact payload))}).
// encoding/json emits struct fields in declaration order and map keys sorted,
// so the same payload always signs the same bytes.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Encode signs payload.
func (s *Signer) Encode(payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}
	raw, err := json.Marshal(envelope{Data: data, Signature: s.sign(data)})
	if err != nil {
		return "", fmt.Errorf("failed to encode envelope: %w", err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// Decode verifies token and unmarshals its payload into out.
func (s *Signer) Decode(token string, out any) error {
	raw, err := decodeBase64URL(token)
	if err != nil || !gjson.ValidBytes(raw) {
		return ErrInvalidEnvelope
	}

	data := gjson.GetBytes(raw, "data")
	sig := gjson.GetBytes(raw, "signature")
	if !data.Exists() || sig.Type != gjson.String {
		return ErrInvalidEnvelope
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(data.Raw)); err != nil {
		return ErrInvalidEnvelope
	}
	if !hmac.Equal([]byte(sig.String()), []byte(s.sign(compact.Bytes()))) {
		return ErrInvalidEnvelope
	}

	if err := json.Unmarshal(compact.Bytes(), out); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}

func (s *Signer) sign(data []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}
