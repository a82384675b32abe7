package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	withSecret(t)
	store := NewMemoryStore()
	svc := NewService(store, WithTokenTTL(time.Hour))
	return svc, store
}

func seedUser(t *testing.T, store *MemoryStore, id string, tenant string, role Role, email, password string) *User {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	u := &User{ID: id, TenantID: tenant, Name: id, Email: email, PasswordHash: hash, Role: role}
	if err := store.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestLoginIssuesTenantScopedToken(t *testing.T) {
	svc, store := newTestService(t)
	seedUser(t, store, "u1", "T1", RoleTenantAdmin, "admin@t1.example", "s3cret")

	session, err := svc.Login(context.Background(), "Admin@T1.example", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	id, err := ParseAndValidate(session.Token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if id.Subject != "u1" || id.Role != RoleTenantAdmin || id.TenantID != "T1" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, store := newTestService(t)
	seedUser(t, store, "u1", "T1", RoleStandard, "user@t1.example", "right")

	if _, err := svc.Login(context.Background(), "user@t1.example", "wrong"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "ghost@t1.example", "right"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected unknown user rejection, got %v", err)
	}
}

func TestLoginMissingSecretIsNotACredentialFailure(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, WithTokenTTL(time.Hour))
	t.Setenv(secretEnvVariable, "")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)
	seedUser(t, store, "u1", "T1", RoleStandard, "user@t1.example", "right")

	_, err := svc.Login(context.Background(), "user@t1.example", "right")
	if err == nil {
		t.Fatal("expected an error with no signing secret configured")
	}
	if errors.Is(err, ErrInvalidToken) {
		t.Fatalf("signing failure must not read as bad credentials, got %v", err)
	}
}

func TestCreateUserForcesActorTenant(t *testing.T) {
	svc, _ := newTestService(t)
	actor := Identity{Subject: "admin", Role: RoleTenantAdmin, TenantID: "T1"}

	user, err := svc.CreateUser(context.Background(), actor, NewUser{
		Name: "Tech", Email: "tech@t1.example", Password: "pw", Role: RoleTechnician, TenantID: "T2",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.TenantID != "T1" {
		t.Fatalf("expected tenant forced to T1, got %s", user.TenantID)
	}
	if user.PasswordHash == "pw" || user.PasswordHash == "" {
		t.Fatal("password must be stored hashed")
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	svc, store := newTestService(t)
	seedUser(t, store, "u1", "T1", RoleStandard, "dup@t1.example", "pw")
	actor := Identity{Subject: "root", Role: RoleElevated}

	_, err := svc.CreateUser(context.Background(), actor, NewUser{
		Name: "Dup", Email: "dup@t1.example", Password: "pw", Role: RoleStandard, TenantID: "T1",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected Conflict, got %v", err)
	}
}

func TestUpdateUserGuardsElevatedTarget(t *testing.T) {
	svc, store := newTestService(t)
	seedUser(t, store, "root2", "", RoleElevated, "root@hq.example", "pw")

	name := "renamed"
	_, err := svc.UpdateUser(context.Background(), Identity{Subject: "root", Role: RoleElevated}, "root2", UserPatch{Name: &name})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected Forbidden for elevated target, got %v", err)
	}
}

func TestDeleteUserCrossTenant(t *testing.T) {
	svc, store := newTestService(t)
	seedUser(t, store, "u2", "T2", RoleStandard, "user@t2.example", "pw")

	err := svc.DeleteUser(context.Background(), Identity{Subject: "admin", Role: RoleTenantAdmin, TenantID: "T1"}, "u2")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected Forbidden, got %v", err)
	}
	if err := svc.DeleteUser(context.Background(), Identity{Subject: "root", Role: RoleElevated}, "u2"); err != nil {
		t.Fatalf("elevated delete: %v", err)
	}
}

func TestListUsersScoped(t *testing.T) {
	svc, store := newTestService(t)
	seedUser(t, store, "u1", "T1", RoleStandard, "a@t1.example", "pw")
	seedUser(t, store, "u2", "T2", RoleStandard, "b@t2.example", "pw")
	seedUser(t, store, "root2", "", RoleElevated, "root@hq.example", "pw")

	all, err := svc.ListUsers(context.Background(), Identity{Subject: "root", Role: RoleElevated})
	if err != nil {
		t.Fatalf("ListUsers elevated: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 users, got %d", len(all))
	}

	scoped, err := svc.ListUsers(context.Background(), Identity{Subject: "u1", Role: RoleTenantAdmin, TenantID: "T1"})
	if err != nil {
		t.Fatalf("ListUsers scoped: %v", err)
	}
	if len(scoped) != 1 || scoped[0].TenantID != "T1" {
		t.Fatalf("expected only T1 users, got %+v", scoped)
	}
}
