package auth

import "testing"

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	token, expiresAt, err := tm.GenerateToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if expiresAt.IsZero() {
		t.Fatal("expiry not set")
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Role != roleAdmin {
		t.Fatalf("role=%s, want %s", claims.Role, roleAdmin)
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	token, _, err := NewTokenManager("secret-a", 60).GenerateToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewTokenManager("secret-b", 60).ParseToken(token); err == nil {
		t.Fatal("token signed with another secret was accepted")
	}
}

func TestPasscodeHashing(t *testing.T) {
	hashed, err := HashPasscode("demo", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := ComparePasscode(hashed, "demo"); err != nil {
		t.Fatalf("correct passcode rejected: %v", err)
	}
	if err := ComparePasscode(hashed, "wrong"); err == nil {
		t.Fatal("wrong passcode accepted")
	}
}
