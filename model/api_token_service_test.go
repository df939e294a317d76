package model_test

import (
	"testing"

	"github.com/parasocial/parasocial/fixtures"
)

func TestAPITokenRoundtrip(t *testing.T) {
	store := fixtures.NewTestStore(t)
	seed := fixtures.SeedTestData(t, store)

	plain, rec, err := store.CreateAPIToken(seed.User.ID, "ci", "read write", nil)
	if err != nil {
		t.Fatalf("CreateAPIToken error: %v", err)
	}
	if plain == "" || rec.TokenPrefix == "" {
		t.Fatal("token material missing")
	}
	if rec.TokenHash == plain {
		t.Fatal("plaintext must not be persisted")
	}

	got, err := store.ValidateAPIToken(plain)
	if err != nil {
		t.Fatalf("ValidateAPIToken error: %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("validated token ID = %d, want %d", got.ID, rec.ID)
	}
	if !got.HasScope("write") {
		t.Error("token should carry the write scope")
	}
	if got.HasScope("admin") {
		t.Error("token should not carry the admin scope")
	}
}

func TestValidateAPITokenRejectsGarbage(t *testing.T) {
	store := fixtures.NewTestStore(t)
	seed := fixtures.SeedTestData(t, store)

	plain, _, err := store.CreateAPIToken(seed.User.ID, "ci", "", nil)
	if err != nil {
		t.Fatalf("CreateAPIToken error: %v", err)
	}

	for _, raw := range []string{
		"",
		"short",
		plain + "x",
		plain[:len(plain)-1] + "!",
	} {
		if _, err := store.ValidateAPIToken(raw); err == nil {
			t.Errorf("ValidateAPIToken(%q) accepted an invalid token", raw)
		}
	}
}

func TestValidateAPITokenExpired(t *testing.T) {
	store := fixtures.NewTestStore(t)
	seed := fixtures.SeedTestData(t, store)

	plain, _, err := store.CreateAPIToken(seed.User.ID, "old", "", fixtures.ExpiredAt())
	if err != nil {
		t.Fatalf("CreateAPIToken error: %v", err)
	}
	if _, err := store.ValidateAPIToken(plain); err == nil {
		t.Error("expired token validated")
	}
}

func TestRevokeAPIToken(t *testing.T) {
	store := fixtures.NewTestStore(t)
	seed := fixtures.SeedTestData(t, store)

	plain, rec, err := store.CreateAPIToken(seed.User.ID, "temp", "", nil)
	if err != nil {
		t.Fatalf("CreateAPIToken error: %v", err)
	}
	if err := store.RevokeAPIToken(seed.User.ID, rec.ID); err != nil {
		t.Fatalf("RevokeAPIToken error: %v", err)
	}
	if _, err := store.ValidateAPIToken(plain); err == nil {
		t.Error("revoked token validated")
	}
}
