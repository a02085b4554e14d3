package auth

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSealer(t *testing.T) *TokenSealer {
	t.Helper()
	s, err := NewTokenSealer("correlation-secret-at-least-32-chars", time.Minute)
	require.NoError(t, err)
	return s
}

func TestNewTokenSealer(t *testing.T) {
	_, err := NewTokenSealer("", time.Minute)
	assert.ErrorIs(t, err, ErrSealerMissingSecret)

	s, err := NewTokenSealer("secret", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultSealMaxAge, s.maxAge)
}

func TestTokenSealer_RoundTrip(t *testing.T) {
	s := newTestSealer(t)

	tests := []struct {
		name    string
		seal    func(string) (string, error)
		subject string
		kind    SealedKind
	}{
		{"user", s.SealUser, "user-1", SealedUser},
		{"session", s.SealSession, "session-abc", SealedSession},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := tt.seal(tt.subject)
			require.NoError(t, err)
			assert.NotContains(t, token, "=")
			assert.NotContains(t, token, tt.subject)

			claims, err := s.Open(token)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, claims.Kind)
			assert.Equal(t, tt.subject, claims.Subject)
			assert.NotEmpty(t, claims.Nonce)

			kind, subject, err := s.OpenToken(context.Background(), token)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.subject, subject)
		})
	}
}

func TestTokenSealer_TokensAreUnique(t *testing.T) {
	s := newTestSealer(t)

	a, err := s.SealUser("user-1")
	require.NoError(t, err)
	b, err := s.SealUser("user-1")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestTokenSealer_RejectsSubjectWithSeparator(t *testing.T) {
	s := newTestSealer(t)

	_, err := s.SealUser("user|admin")
	assert.ErrorIs(t, err, ErrSealedTokenInvalid)

	_, err = s.SealSession("")
	assert.ErrorIs(t, err, ErrSealedTokenInvalid)
}

func TestTokenSealer_OpenFailures(t *testing.T) {
	s := newTestSealer(t)

	token, err := s.SealUser("user-1")
	require.NoError(t, err)

	other, err := NewTokenSealer("another-secret-entirely", time.Minute)
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.RawURLEncoding.EncodeToString(raw)

	t.Run("wrong key", func(t *testing.T) {
		_, err := other.Open(token)
		assert.ErrorIs(t, err, ErrSealedTokenInvalid)
	})

	t.Run("tampered", func(t *testing.T) {
		_, err := s.Open(tampered)
		assert.ErrorIs(t, err, ErrSealedTokenInvalid)
	})

	t.Run("not base64", func(t *testing.T) {
		_, err := s.Open("!!!")
		assert.ErrorIs(t, err, ErrSealedTokenInvalid)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := s.Open(base64.RawURLEncoding.EncodeToString([]byte("short")))
		assert.ErrorIs(t, err, ErrSealedTokenInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		defer func() { s.now = time.Now }()

		_, err := s.Open(token)
		assert.ErrorIs(t, err, ErrSealedTokenExpired)
	})
}
