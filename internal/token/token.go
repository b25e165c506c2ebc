// Package token issues and verifies the signed bearer tokens that carry a
// caller's identity and role.
//
// The role claim is fixed at issuance. A role change made through the admin
// surface only affects tokens issued after it, so callers must log in again to
// pick up new privileges.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ticketdesk/internal/models"
	"ticketdesk/internal/uuid"
)

var (
	// ErrInvalidToken covers malformed, tampered, expired or foreign tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidSubject means the token verified but its subject is not a user id.
	ErrInvalidSubject = errors.New("invalid token subject")
)

// Claims represents the claims in the JWT
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity is what a verified token asserts about its bearer.
type Identity struct {
	UserID uint
	Role   models.Role
}

// Service signs and verifies HS256 tokens with a server-held secret.
type Service struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates a token service. A ttl of zero issues tokens without an
// expiry claim.
func NewService(secret, issuer string, ttl time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue generates a token binding the user's id and current role.
func (s *Service) Issue(user *models.User) (string, error) {
	now := s.now()
	claims := &Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New(),
			Issuer:    s.issuer,
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses tokenString and returns the identity it asserts.
func (s *Service) Verify(tokenString string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil || id == 0 {
		return Identity{}, ErrInvalidSubject
	}

	return Identity{UserID: uint(id), Role: claims.Role}, nil
}
