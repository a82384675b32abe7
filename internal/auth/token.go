package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer            = "maintrack"
	secretEnvVariable = "MAINTRACK_AUTH_SECRET"
)

var (
	errMissingSecret = errors.New("auth secret is not configured")

	secretMu sync.Mutex
	secret   cachedSecret
)

type cachedSecret struct {
	value []byte
	err   error
	ready bool
}

// ErrInvalidToken indicates the credential failed verification.
var ErrInvalidToken = errors.New("invalid token")

// Claims represents the JWT claims carried by a bearer credential.
type Claims struct {
	Role     string `json:"role"`
	TenantID string `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken signs a JWT for the given identity using HS256. The identity
// is embedded entirely in the claims; verification needs no external lookup.
func GenerateToken(id Identity, ttl time.Duration) (string, error) {
	if strings.TrimSpace(id.Subject) == "" {
		return "", errors.New("subject is required")
	}
	if _, err := ParseRole(string(id.Role)); err != nil {
		return "", err
	}
	if !id.Elevated() && strings.TrimSpace(id.TenantID) == "" {
		return "", errors.New("tenant id is required for non-elevated identities")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be greater than zero")
	}
	secretBytes, err := loadSecret()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	claims := Claims{
		Role:     string(id.Role),
		TenantID: id.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secretBytes)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseAndValidate verifies the token signature and claims and returns the
// Identity encoded in it. Pure verification, no side effects.
func ParseAndValidate(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	secretBytes, err := loadSecret()
	if err != nil {
		return Identity{}, err
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return secretBytes, nil
	})
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	id, err := identityFromClaims(claims)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}

func identityFromClaims(claims *Claims) (Identity, error) {
	if claims.Issuer != issuer {
		return Identity{}, fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return Identity{}, errors.New("timestamps missing")
	}
	now := time.Now().UTC()
	// Expiry at or before the current time is rejected.
	if !claims.ExpiresAt.Time.After(now) {
		return Identity{}, errors.New("token expired")
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return Identity{}, errors.New("token issued in the future")
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return Identity{}, err
	}
	tenantID := strings.TrimSpace(claims.TenantID)
	if role != RoleElevated && tenantID == "" {
		return Identity{}, errors.New("tenant id missing")
	}
	return Identity{
		Subject:   claims.Subject,
		Role:      role,
		TenantID:  tenantID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func loadSecret() ([]byte, error) {
	secretMu.Lock()
	defer secretMu.Unlock()
	if secret.ready {
		return secret.value, secret.err
	}
	raw := strings.TrimSpace(os.Getenv(secretEnvVariable))
	if raw == "" {
		secret.err = errMissingSecret
		secret.ready = true
		return nil, secret.err
	}
	secret.value = []byte(raw)
	secret.err = nil
	secret.ready = true
	return secret.value, nil
}

// ResetSecretForTests clears the cached secret value. Only intended for test use.
func ResetSecretForTests() {
	secretMu.Lock()
	defer secretMu.Unlock()
	secret = cachedSecret{}
}
