package auth

import (
	"testing"
	"time"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")

	tok, err := GenerateToken("user-123", "sess-1", secret, time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	claims, err := ParseToken(tok, secret, time.Now())
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if claims.UserID != "user-123" {
		t.Fatalf("userID mismatch: got %q want %q", claims.UserID, "user-123")
	}
	if claims.SessionID != "sess-1" {
		t.Fatalf("sessionID mismatch: got %q want %q", claims.SessionID, "sess-1")
	}
}

func TestParseToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")

	tok, err := GenerateToken("u1", "s1", secret, time.Now().Add(-2*time.Hour), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = ParseToken(tok, secret, time.Now())
	if err != ErrTokenExpired {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken("u2", "s2", []byte("right-secret"), time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	if _, err := ParseToken(tok, []byte("wrong-secret"), time.Now()); err == nil {
		t.Fatalf("expected error for invalid signature, got nil")
	}
}

func TestParseToken_Malformed(t *testing.T) {
	t.Parallel()

	if _, err := ParseToken("not.a.jwt", []byte("k"), time.Now()); err == nil {
		t.Fatalf("expected error for malformed token, got nil")
	}
}

func TestParseToken_UsesGivenTime(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tok, err := GenerateToken("u3", "s3", secret, issued, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	if _, err := ParseToken(tok, secret, issued.Add(30*time.Minute)); err != nil {
		t.Fatalf("expected token valid at issue+30m, got %v", err)
	}
	if _, err := ParseToken(tok, secret, issued.Add(2*time.Hour)); err != ErrTokenExpired {
		t.Fatalf("expected ErrTokenExpired at issue+2h, got %v", err)
	}
}
