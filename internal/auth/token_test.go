// ABOUTME: Unit tests for JWT token verification and generation
// ABOUTME: Tests valid, tampered, foreign-issuer and expired tokens

package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret-key-for-jwt-signing-0123456789")

func newTestVerifier(t *testing.T) *JWTVerifier {
	t.Helper()
	v, err := NewJWTVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}
	return v
}

func TestNewJWTVerifier_WeakSecret(t *testing.T) {
	if _, err := NewJWTVerifier([]byte("short")); !errors.Is(err, ErrWeakSecret) {
		t.Errorf("NewJWTVerifier() error = %v, want ErrWeakSecret", err)
	}
}

func TestJWTVerifier_ValidToken(t *testing.T) {
	verifier := newTestVerifier(t)

	token, err := verifier.Generate("chat-assistant", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	gotID, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if gotID != "chat-assistant" {
		t.Errorf("Verify() = %q, want %q", gotID, "chat-assistant")
	}
}

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

func TestJWTVerifier_InvalidToken(t *testing.T) {
	verifier := newTestVerifier(t)
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	valid, err := verifier.Generate("chat-assistant", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"empty", "", ErrInvalidToken},
		{"garbage", "not-a-jwt", ErrInvalidToken},
		{"tampered", valid[:len(valid)-2] + "xx", ErrInvalidToken},
		{
			"wrong secret",
			sign(t, jwt.SigningMethodHS256, []byte(strings.Repeat("x", 40)), jwt.RegisteredClaims{Issuer: Issuer, Subject: "a", ExpiresAt: exp}),
			ErrInvalidToken,
		},
		{
			"wrong issuer",
			sign(t, jwt.SigningMethodHS256, testSecret, jwt.RegisteredClaims{Issuer: "someone-else", Subject: "a", ExpiresAt: exp}),
			ErrInvalidToken,
		},
		{
			"HS512 rejected",
			sign(t, jwt.SigningMethodHS512, testSecret, jwt.RegisteredClaims{Issuer: Issuer, Subject: "a", ExpiresAt: exp}),
			ErrInvalidToken,
		},
		{
			"no expiry",
			sign(t, jwt.SigningMethodHS256, testSecret, jwt.RegisteredClaims{Issuer: Issuer, Subject: "a"}),
			ErrInvalidToken,
		},
		{
			"missing sub",
			sign(t, jwt.SigningMethodHS256, testSecret, jwt.RegisteredClaims{Issuer: Issuer, ExpiresAt: exp}),
			ErrMissingClaim,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	verifier := newTestVerifier(t)

	token, err := verifier.Generate("chat-assistant", -time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	_, err = verifier.Verify(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

func TestJWTVerifier_GenerateRequiresSubject(t *testing.T) {
	verifier := newTestVerifier(t)

	if _, err := verifier.Generate("", time.Hour); !errors.Is(err, ErrMissingClaim) {
		t.Errorf("Generate() error = %v, want ErrMissingClaim", err)
	}
}

func TestJWTVerifier_DifferentPrincipals(t *testing.T) {
	verifier := newTestVerifier(t)

	for _, id := range []string{"assistant-a", "assistant-b", "ops"} {
		token, err := verifier.Generate(id, time.Hour)
		if err != nil {
			t.Fatalf("Generate(%q) error = %v", id, err)
		}
		got, err := verifier.Verify(token)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if got != id {
			t.Errorf("Verify() = %q, want %q", got, id)
		}
	}
}
