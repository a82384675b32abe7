package auth

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryUpdateEmailConflict(t *testing.T) {
	store := NewMemoryStore()
	seedUser(t, store, "u1", "T1", RoleStandard, "a@t1.example", "pw")
	target := seedUser(t, store, "u2", "T1", RoleStandard, "b@t1.example", "pw")

	target.Email = "a@t1.example"
	if err := store.Update(context.Background(), target); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	// The colliding user's index entry must be untouched.
	u, err := store.FindByEmail(context.Background(), "a@t1.example")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if u.ID != "u1" {
		t.Fatalf("index now points at %s, want u1", u.ID)
	}

	target.Email = "c@t1.example"
	if err := store.Update(context.Background(), target); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if u, err := store.FindByEmail(context.Background(), "c@t1.example"); err != nil || u.ID != "u2" {
		t.Fatalf("expected u2 under new email, got %+v, %v", u, err)
	}
}
