package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"maintrack.org/internal/ids"
)

const defaultTokenTTL = 12 * time.Hour

// Service verifies credentials, issues tokens and manages user accounts
// under the identity-management rules.
type Service struct {
	users    UserStore
	now      func() time.Time
	tokenTTL time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithTokenTTL configures issued token lifetime.
func WithTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// NewService constructs a Service backed by the given user store.
func NewService(users UserStore, opts ...ServiceOption) *Service {
	svc := &Service{
		users:    users,
		now:      time.Now,
		tokenTTL: defaultTokenTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Session is the result of a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

// Login verifies the email/password pair and mints a bearer token whose
// claims carry the user's role and tenant.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Session{}, ErrInvalidToken
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrInvalidToken
		}
		return Session{}, fmt.Errorf("look up user: %w", err)
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return Session{}, ErrInvalidToken
	}
	id := Identity{Subject: user.ID, Role: user.Role, TenantID: user.TenantID}
	token, err := GenerateToken(id, s.tokenTTL)
	if err != nil {
		// Signing failures are infrastructure problems (missing secret),
		// never a statement about the credentials.
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{
		Token:     token,
		ExpiresAt: s.now().UTC().Add(s.tokenTTL),
		User:      user,
	}, nil
}

// NewUser is the input for CreateUser.
type NewUser struct {
	Name     string
	Email    string
	Password string
	Role     Role
	TenantID string
}

// CreateUser creates an account after applying the identity-management rule:
// only Elevated or TenantAdmin actors may create users, TenantAdmins only
// inside their own tenant and never with the Elevated role.
func (s *Service) CreateUser(ctx context.Context, actor Identity, input NewUser) (*User, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	input.Name = strings.TrimSpace(input.Name)
	if input.Email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if input.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	role, err := ParseRole(string(input.Role))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	tenantID := strings.TrimSpace(input.TenantID)
	if role != RoleElevated {
		tenantID, err = ResolveTenantID(actor, tenantID)
		if err != nil {
			return nil, err
		}
	} else {
		tenantID = ""
	}
	if err := CanCreateIdentity(actor, role, tenantID); err != nil {
		return nil, err
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := s.now().UTC()
	user := &User{
		ID:           ids.New(),
		TenantID:     tenantID,
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UserPatch holds optional fields for UpdateUser.
type UserPatch struct {
	Name *string
	Role *Role
}

// UpdateUser modifies name and role of an existing user. Elevated targets are
// immutable for everyone.
func (s *Service) UpdateUser(ctx context.Context, actor Identity, userID string, patch UserPatch) (*User, error) {
	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := CanManageIdentity(actor, user.Role, user.TenantID); err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		user.Name = name
	}
	if patch.Role != nil {
		role, err := ParseRole(string(*patch.Role))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if role == RoleElevated {
			return nil, fmt.Errorf("%w: users cannot be promoted to elevated", ErrForbidden)
		}
		user.Role = role
	}
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes a user account. Elevated targets cannot be deleted.
func (s *Service) DeleteUser(ctx context.Context, actor Identity, userID string) error {
	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return err
	}
	if err := CanManageIdentity(actor, user.Role, user.TenantID); err != nil {
		return err
	}
	return s.users.Delete(ctx, userID)
}

// ListUsers returns accounts visible to the actor under its tenant scope.
func (s *Service) ListUsers(ctx context.Context, actor Identity) ([]*User, error) {
	scope, err := ReadScope(actor)
	if err != nil {
		return nil, err
	}
	return s.users.List(ctx, scope)
}

// SetPassword lets an identity manager reset a user's password.
func (s *Service) SetPassword(ctx context.Context, actor Identity, userID, password string) error {
	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return err
	}
	if err := CanManageIdentity(actor, user.Role, user.TenantID); err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.now().UTC()
	return s.users.Update(ctx, user)
}

// IsNotFound reports whether err is the store's not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
