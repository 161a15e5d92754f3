package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessions_IssueAndParse(t *testing.T) {
	s := NewSessions("jwt-secret", time.Hour)
	tok, expires, err := s.Issue(7, "root")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := s.Parse(tok)
	require.NoError(t, err)
	id, err := claims.AdminID()
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, "root", claims.Username)
	assert.NotEmpty(t, claims.ID)
}

func TestSessions_RejectsExpiredAndForeign(t *testing.T) {
	s := NewSessions("jwt-secret", time.Hour)
	tok, _, err := s.Issue(7, "root")
	require.NoError(t, err)

	later := NewSessions("jwt-secret", time.Hour)
	later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = later.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = NewSessions("other", time.Hour).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidSession)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "7"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.Parse(none)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = s.Parse("garbage")
	assert.ErrorIs(t, err, ErrInvalidSession)
}
