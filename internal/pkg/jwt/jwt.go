// Package jwt verifies the access tokens issued by the identity service and mints them for tooling.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

const (
	issuer     = "quizbirr"
	accessType = "access"
	leeway     = 30 * time.Second
)

// Claims is the payload of a QuizBirr access token. Money endpoints trust only
// UserID and Role; Inactive accounts are refused before any handler runs.
type Claims struct {
	UserID   uuid.UUID `json:"uid"`
	Role     string    `json:"role"`
	Inactive bool      `json:"inactive,omitempty"`
	Type     string    `json:"typ"`
	jwt.RegisteredClaims
}

// Service signs and verifies HS256 access tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
}

// NewService creates JWT service
func NewService(secret string, accessTTL time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    accessTTL,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithLeeway(leeway),
			jwt.WithExpirationRequired(),
		),
	}
}

// GenerateAccessToken signs a token for userID valid for the configured TTL.
func (s *Service) GenerateAccessToken(userID uuid.UUID, role string, inactive bool) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Role:     role,
		Inactive: inactive,
		Type:     accessType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateAccessToken parses raw and returns its claims.
// Expired tokens yield ErrExpiredToken; every other failure is ErrInvalidToken.
func (s *Service) ValidateAccessToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil:
		return nil, ErrInvalidToken
	}
	if claims.Type != accessType || claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
