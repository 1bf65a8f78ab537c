package server

import (
	"context"
	"testing"
	"time"

	"questlog/internal/party"
)

func TestTokenRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	user := User{ID: "u1", Username: "morgana", Role: party.RoleDM}
	token, err := srv.issueToken(user)
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}

	ident, err := srv.VerifyToken(context.Background(), token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if ident.ID != "u1" || ident.Username != "morgana" || ident.Role != party.RoleDM {
		t.Fatalf("unexpected identity: %+v", ident)
	}
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	srv := newTestServer(t)
	if _, err := srv.VerifyToken(context.Background(), "not-a-jwt"); err == nil {
		t.Fatalf("expected error for malformed token")
	}
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	srv := newTestServer(t)
	srv.cfg.TokenTTL = -time.Minute

	token, err := srv.issueToken(User{ID: "u1", Username: "morgana", Role: party.RoleDM})
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}
	if _, err := srv.VerifyToken(context.Background(), token); err == nil {
		t.Fatalf("expected error for expired token")
	}
}

func TestVerifyTokenRejectsForeignSecret(t *testing.T) {
	srv := newTestServer(t)
	other := newTestServer(t)
	other.cfg.TokenSecret = "a-different-secret"

	token, err := other.issueToken(User{ID: "u1", Username: "morgana", Role: party.RoleDM})
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}
	if _, err := srv.VerifyToken(context.Background(), token); err == nil {
		t.Fatalf("expected error for token signed with another secret")
	}
}

func TestVerifyTokenRejectsUnknownRole(t *testing.T) {
	srv := newTestServer(t)

	token, err := srv.issueToken(User{ID: "u1", Username: "morgana", Role: "wizard"})
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}
	if _, err := srv.VerifyToken(context.Background(), token); err == nil {
		t.Fatalf("expected error for unknown role claim")
	}
}
