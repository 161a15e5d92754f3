package token

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type slotSession struct {
	UserID int64    `json:"user_id"`
	ChatID string   `json:"chat_id"`
	Spins  int64    `json:"spins"`
	Tags   []string `json:"tags,omitempty"`
}

func TestSigner_RoundTrip(t *testing.T) {
	s := NewSigner("secret")
	in := slotSession{UserID: 1, ChatID: "-100", Spins: 10, Tags: []string{"a", "<b>"}}

	tok, err := s.Encode(in)
	require.NoError(t, err)

	var out slotSession
	require.NoError(t, s.Decode(tok, &out))
	assert.Equal(t, in, out)
}

func TestSigner_RejectsTampering(t *testing.T) {
	s := NewSigner("secret")
	tok, err := s.Encode(map[string]int{"spins": 10})
	require.NoError(t, err)

	raw, err := base64.URLEncoding.DecodeString(tok)
	require.NoError(t, err)
	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &env))
	env["data"] = json.RawMessage(`{"spins":1000}`)
	forged, err := json.Marshal(env)
	require.NoError(t, err)

	var out map[string]int
	assert.ErrorIs(t, s.Decode(base64.URLEncoding.EncodeToString(forged), &out), ErrInvalidEnvelope)
	assert.ErrorIs(t, NewSigner("other").Decode(tok, &out), ErrInvalidEnvelope)
	assert.ErrorIs(t, s.Decode("not-base64!", &out), ErrInvalidEnvelope)
	assert.ErrorIs(t, s.Decode(base64.URLEncoding.EncodeToString([]byte(`{"data":1}`)), &out), ErrInvalidEnvelope)
}

func TestSigner_ToleratesReformattedData(t *testing.T) {
	s := NewSigner("secret")
	data := []byte(`{"a":1,"b":[1,2]}`)
	env := []byte(`{"data": {"a": 1, "b": [1, 2]}, "signature": "` + s.sign(data) + `"}`)

	var out map[string]any
	require.NoError(t, s.Decode(base64.URLEncoding.EncodeToString(env), &out))
	assert.Equal(t, float64(1), out["a"])
}

func TestSignerRoundTripProperty(t *testing.T) {
	s := NewSigner("secret")
	rapid.Check(t, func(t *rapid.T) {
		in := map[string]slotSession{}
		n := rapid.IntRange(0, 5).Draw(t, "n")
		for i := 0; i < n; i++ {
			key := rapid.String().Draw(t, "key")
			in[key] = slotSession{
				UserID: rapid.Int64().Draw(t, "user"),
				ChatID: rapid.String().Draw(t, "chat"),
				Spins:  rapid.Int64Range(0, 1000).Draw(t, "spins"),
			}
		}

		tok, err := s.Encode(in)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		out := map[string]slotSession{}
		if err := s.Decode(tok, &out); err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if len(out) != len(in) {
			t.Fatalf("len mismatch: %d != %d", len(out), len(in))
		}
		for k, v := range in {
			got := out[k]
			if got.UserID != v.UserID || got.ChatID != v.ChatID || got.Spins != v.Spins {
				t.Fatalf("value mismatch for %q: %+v != %+v", k, got, v)
			}
		}
	})
}
