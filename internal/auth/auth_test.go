package auth

import (
	"testing"
	"time"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier("test-secret")

	token, err := v.IssueToken("u-1", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	userID, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != "u-1" {
		t.Fatalf("userID = %q, want u-1", userID)
	}
}

func TestVerifier_RejectsWrongSecret(t *testing.T) {
	token, err := NewVerifier("secret-a").IssueToken("u-1", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewVerifier("secret-b").Verify(token); err == nil {
		t.Fatalf("token signed with another secret must not verify")
	}
}

func TestVerifier_RejectsExpired(t *testing.T) {
	v := NewVerifier("test-secret")
	token, err := v.IssueToken("u-1", -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := v.Verify(token); err == nil {
		t.Fatalf("expired token must not verify")
	}
}

func TestVerifier_RejectsGarbage(t *testing.T) {
	if _, err := NewVerifier("test-secret").Verify("not-a-token"); err == nil {
		t.Fatalf("garbage must not verify")
	}
}
