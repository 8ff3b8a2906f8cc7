// ABOUTME: Unit tests for JWT device token verification and generation
// ABOUTME: Tests valid, invalid, expired and claim-less tokens

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("token-test-secret-at-least-32-b!")

func newTestVerifier(t *testing.T) *JWTVerifier {
	t.Helper()
	v, err := NewJWTVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}
	return v
}

func TestNewJWTVerifier_RejectsShortSecret(t *testing.T) {
	if _, err := NewJWTVerifier([]byte("short")); !errors.Is(err, ErrWeakSecret) {
		t.Errorf("NewJWTVerifier(short) error = %v, want ErrWeakSecret", err)
	}
}

func TestJWTVerifier_ValidToken(t *testing.T) {
	verifier := newTestVerifier(t)

	token, err := verifier.Generate("phone-1", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	got, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got != "phone-1" {
		t.Errorf("Verify() = %q, want %q", got, "phone-1")
	}
}

func TestJWTVerifier_InvalidToken(t *testing.T) {
	verifier := newTestVerifier(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "garbage token", token: "not-a-jwt-token"},
		{name: "malformed JWT", token: "header.payload.signature"},
		{
			name: "wrong secret",
			token: func() string {
				other, _ := NewJWTVerifier([]byte("a-completely-different-secret-32b"))
				token, _ := other.Generate("phone-1", time.Hour)
				return token
			}(),
		},
		{
			name: "none algorithm",
			token: func() string {
				tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "phone-1"})
				s, _ := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
				return s
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	verifier := newTestVerifier(t)

	token, err := verifier.Generate("phone-1", -time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

func TestJWTVerifier_MissingSub(t *testing.T) {
	verifier := newTestVerifier(t)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString(testSecret)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	if _, err := verifier.Verify(s); !errors.Is(err, ErrMissingClaim) {
		t.Errorf("Verify() error = %v, want ErrMissingClaim", err)
	}
}
