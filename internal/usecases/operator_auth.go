package usecases

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin  = "admin"
	RoleTenant = "tenant"
)

var ErrInvalidToken = errors.New("invalid operator token")

// OperatorClaims scope a control-surface token. Tenant tokens only reach
// their own tenant.
type OperatorClaims struct {
	Role     string `json:"role"`
	TenantID int    `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

func (c *OperatorClaims) CanAccess(tenantID int) bool {
	return c.Role == RoleAdmin || (c.Role == RoleTenant && c.TenantID == tenantID)
}

// OperatorAuth issues and verifies HS256 operator tokens.
type OperatorAuth struct {
	secret []byte
	now    func() time.Time
}

func NewOperatorAuth(secret string) *OperatorAuth {
	return &OperatorAuth{secret: []byte(secret), now: time.Now}
}

func (a *OperatorAuth) Issue(subject, role string, tenantID int, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", fmt.Errorf("%w: no signing secret configured", ErrInvalidToken)
	}
	if role != RoleAdmin && role != RoleTenant {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidToken, role)
	}
	if role == RoleTenant && tenantID <= 0 {
		return "", fmt.Errorf("%w: tenant token needs a tenant id", ErrInvalidToken)
	}

	now := a.now()
	claims := OperatorClaims{
		Role:     role,
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (a *OperatorAuth) Verify(tokenString string) (*OperatorClaims, error) {
	if len(a.secret) == 0 {
		return nil, fmt.Errorf("%w: no signing secret configured", ErrInvalidToken)
	}
	claims := &OperatorClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Role != RoleAdmin && claims.Role != RoleTenant {
		return nil, fmt.Errorf("%w: unknown role", ErrInvalidToken)
	}
	return claims, nil
}
