// Package auth adapts bearer credentials to principals. Identity
// issuance (registration, login) lives in the external user service;
// this package only verifies what it minted.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/firasmosbehi/microservice-chatapp/internal/domain"
)

// Claims are the custom claims the user service puts in access tokens.
type Claims struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 bearer tokens.
type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (domain.Principal, error) {
	if token == "" {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrUnauthenticated
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	if v.issuer != "" {
		if iss, err := claims.GetIssuer(); err != nil || iss != v.issuer {
			return domain.Principal{}, domain.ErrUnauthenticated
		}
	}
	uid := claims.UserID
	if uid == "" {
		uid = claims.Subject
	}
	if uid == "" || len(uid) > domain.MaxUserIDLen {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	name := claims.DisplayName
	if name == "" {
		name = uid
	}
	if len(name) > domain.MaxDisplayNameLen {
		name = name[:domain.MaxDisplayNameLen]
	}
	return domain.Principal{UserID: domain.UserID(uid), DisplayName: name}, nil
}

// MintToken signs a short-lived token for the given principal. Used by
// tests and local development; production tokens come from the user
// service, signed with the shared secret.
func MintToken(secret, issuer string, p domain.Principal, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}
	now := time.Now()
	claims := Claims{
		UserID:      string(p.UserID),
		DisplayName: p.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   string(p.UserID),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
