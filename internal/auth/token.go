// Package auth verifies caller tokens. Tokens are issued elsewhere; this
// service only checks them and reads the caller's organization and role.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"certflow/internal/config"
	"certflow/internal/domain"
)

// Role is the caller's role within its organization.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleReviewer Role = "reviewer"
	RoleViewer   Role = "viewer"
)

const accessAudience = "access"

// Claims are the JWT claims carried by an access token.
type Claims struct {
	jwt.RegisteredClaims
	OrgID  uuid.UUID `json:"org_id"`
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
}

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(tokenString string) (*Claims, error)
}

type verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates an HMAC TokenVerifier.
func NewVerifier(cfg config.JWTConfig) TokenVerifier {
	return &verifier{secret: []byte(cfg.Secret), issuer: cfg.Issuer}
}

func (v *verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(accessAudience),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, errors.Join(domain.ErrUnauthorized, fmt.Errorf("parsing token: %w", err))
	}
	if !token.Valid || claims.OrgID == uuid.Nil || claims.UserID == uuid.Nil {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}

// Sign mints an access token. It exists for operators and tests; the
// service never issues tokens to end users.
func Sign(cfg config.JWTConfig, orgID, userID uuid.UUID, role Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Audience:  jwt.ClaimStrings{accessAudience},
		},
		OrgID:  orgID,
		UserID: userID,
		Role:   role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
