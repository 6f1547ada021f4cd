// Package auth validates the HS256 bearer tokens issued by the platform's
// identity service.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleAdmin   = "admin"
	RoleCompany = "company"
)

// ErrInvalidToken is returned for any token that fails parsing or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// Principal is the authenticated caller.
type Principal struct {
	Subject   uuid.UUID
	Role      string
	CompanyID uuid.UUID
}

func (p *Principal) IsAdmin() bool { return p != nil && p.Role == RoleAdmin }

type Service interface {
	Issue(p Principal, ttl time.Duration) (string, error)
	ValidateToken(ctx context.Context, token string) (*Principal, error)
}

type service struct {
	secret []byte
	now    func() time.Time
}

// NewService signs and checks tokens with secret. An empty secret validates
// nothing.
func NewService(secret string) *service {
	return &service{secret: []byte(secret), now: time.Now}
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

type claims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	CompanyID string `json:"company_id,omitempty"`
}

// Issue signs a token for p. Used by tooling and tests; production tokens come
// from the identity service with the same secret.
func (s *service) Issue(p Principal, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("auth: empty signing secret")
	}
	now := s.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: p.Role,
	}
	if p.CompanyID != uuid.Nil {
		c.CompanyID = p.CompanyID.String()
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

func (s *service) ValidateToken(ctx context.Context, token string) (*Principal, error) {
	if len(s.secret) == 0 {
		return nil, ErrInvalidToken
	}
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	p := &Principal{Subject: id, Role: c.Role}
	switch c.Role {
	case RoleAdmin:
		if c.CompanyID != "" {
			p.CompanyID, _ = uuid.Parse(c.CompanyID)
		}
	case RoleCompany:
		if p.CompanyID, err = uuid.Parse(c.CompanyID); err != nil {
			return nil, fmt.Errorf("%w: company token without company_id", ErrInvalidToken)
		}
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, c.Role)
	}
	return p, nil
}
