package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/nacl/secretbox"
)

// DefaultSealMaxAge bounds how long a sealed correlation token can be opened
const DefaultSealMaxAge = 10 * time.Minute

const (
	sealNonceSize = 24
	sealSeparator = "|"
)

var (
	ErrSealerMissingSecret = errors.New("auth: sealer secret is required")
	ErrSealedTokenInvalid  = errors.New("auth: sealed token is invalid")
	ErrSealedTokenExpired  = errors.New("auth: sealed token has expired")
)

// SealedKind tells what a sealed token carries
type SealedKind string

const (
	SealedUser    SealedKind = "u"
	SealedSession SealedKind = "s"
)

// SealedClaims is the content of an opened correlation token
type SealedClaims struct {
	Kind     SealedKind
	Subject  string // user ID for SealedUser, session ID for SealedSession
	Nonce    string
	IssuedAt time.Time
}

// TokenSealer seals and opens correlation tokens with NaCl secretbox.
// The token is opaque to the provider and can only be opened by a holder of the secret.
type TokenSealer struct {
	key    [32]byte
	maxAge time.Duration
	now    func() time.Time
}

// NewTokenSealer derives the box key from secret. maxAge <= 0 uses DefaultSealMaxAge.
func NewTokenSealer(secret string, maxAge time.Duration) (*TokenSealer, error) {
	if secret == "" {
		return nil, ErrSealerMissingSecret
	}
	if maxAge <= 0 {
		maxAge = DefaultSealMaxAge
	}
	return &TokenSealer{
		key:    sha256.Sum256([]byte(secret)),
		maxAge: maxAge,
		now:    time.Now,
	}, nil
}

// SealUser seals a user ID into a correlation token
func (s *TokenSealer) SealUser(userID string) (string, error) {
	return s.seal(SealedUser, userID)
}

// SealSession seals a session identifier into a correlation token
func (s *TokenSealer) SealSession(sessionID string) (string, error) {
	return s.seal(SealedSession, sessionID)
}

func (s *TokenSealer) seal(kind SealedKind, subject string) (string, error) {
	if subject == "" || strings.Contains(subject, sealSeparator) {
		return "", fmt.Errorf("%w: subject must be non-empty and must not contain %q", ErrSealedTokenInvalid, sealSeparator)
	}

	plain := strings.Join([]string{
		string(kind),
		subject,
		strings.ReplaceAll(uuid.NewString(), "-", ""),
		strconv.FormatInt(s.now().Unix(), 10),
	}, sealSeparator)

	var nonce [sealNonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(box), nil
}

// Open verifies and decodes a correlation token. Tokens older than the max age are rejected.
func (s *TokenSealer) Open(token string) (*SealedClaims, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) <= sealNonceSize+secretbox.Overhead {
		return nil, ErrSealedTokenInvalid
	}

	var nonce [sealNonceSize]byte
	copy(nonce[:], raw[:sealNonceSize])
	plain, ok := secretbox.Open(nil, raw[sealNonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrSealedTokenInvalid
	}

	parts := strings.Split(string(plain), sealSeparator)
	if len(parts) != 4 || parts[1] == "" {
		return nil, ErrSealedTokenInvalid
	}
	kind := SealedKind(parts[0])
	if kind != SealedUser && kind != SealedSession {
		return nil, ErrSealedTokenInvalid
	}
	issued, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return nil, ErrSealedTokenInvalid
	}

	issuedAt := time.Unix(issued, 0)
	if s.now().Sub(issuedAt) > s.maxAge {
		return nil, ErrSealedTokenExpired
	}

	return &SealedClaims{
		Kind:     kind,
		Subject:  parts[1],
		Nonce:    parts[2],
		IssuedAt: issuedAt,
	}, nil
}

// OpenToken adapts Open to the shape the correlation chain consumes
func (s *TokenSealer) OpenToken(_ context.Context, token string) (SealedKind, string, error) {
	claims, err := s.Open(token)
	if err != nil {
		return "", "", err
	}
	return claims.Kind, claims.Subject, nil
}
