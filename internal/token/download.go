// Package token produces and verifies the stateless tokens handed to users:
// card download tokens, miniapp route tokens, signed data envelopes and admin
// session tokens.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultDownloadTTL is the lifetime of a download token.
const DefaultDownloadTTL = 5 * time.Minute

// signatureLen is the number of hex characters of the HMAC kept in a download token.
const signatureLen = 32

// Downloads issues and checks card download tokens.
// Tokens are base64url("card_id:expiry_unix:sig") where sig is the first 32
// hex characters of HMAC-SHA256(secret, "card_id:expiry_unix").
type Downloads struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewDownloads creates a Downloads signer. A non-positive ttl means DefaultDownloadTTL.
func NewDownloads(secret string, ttl time.Duration) *Downloads {
	if ttl <= 0 {
		ttl = DefaultDownloadTTL
	}
	return &Downloads{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the lifetime of issued tokens.
func (d *Downloads) TTL() time.Duration {
	return d.ttl
}

// Issue returns a token for cardID and its expiry.
func (d *Downloads) Issue(cardID int64) (string, time.Time) {
	expires := d.now().Add(d.ttl).Truncate(time.Second)
	return CreateDownloadToken(d.secret, cardID, expires), expires
}

// Validate reports whether token is a valid, unexpired token for cardID.
func (d *Downloads) Validate(token string, cardID int64) bool {
	return ValidateDownloadToken(d.secret, token, cardID, d.now())
}

// CreateDownloadToken builds a token for cardID valid until expires.
func CreateDownloadToken(secret []byte, cardID int64, expires time.Time) string {
	payload := fmt.Sprintf("%d:%d", cardID, expires.Unix())
	raw := payload + ":" + downloadSignature(secret, payload)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// ValidateDownloadToken checks token against cardID at now. Every failure,
// structural or cryptographic, yields false.
func ValidateDownloadToken(secret []byte, token string, cardID int64, now time.Time) bool {
	raw, err := decodeBase64URL(token)
	if err != nil {
		return false
	}
	parts := strings.Split(string(raw), ":")
	if len(parts) != 3 {
		return false
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id != cardID {
		return false
	}
	expiry, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || now.Unix() > expiry {
		return false
	}

	want := downloadSignature(secret, parts[0]+":"+parts[1])
	return hmac.Equal([]byte(parts[2]), []byte(want))
}

func downloadSignature(secret []byte, payload string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))[:signatureLen]
}

// decodeBase64URL accepts URL-safe base64 with or without padding. Trailing
// bits must be zero so that every encoded character is significant.
func decodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.Strict().DecodeString(strings.TrimRight(s, "="))
}
