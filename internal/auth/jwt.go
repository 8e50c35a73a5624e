// Package auth resolves the caller from HS256 bearer tokens minted by the identity service.
// The token subject is the user id.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers every reason a token is refused.
var ErrInvalidToken = errors.New("invalid token")

const clockSkew = 30 * time.Second

// Claims are the registered claims plus the caller's platform role.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller.
type Identity struct {
	UserID uuid.UUID
	Role   string
}

// JWTService signs and verifies tokens with a shared secret.
type JWTService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	parser *jwt.Parser
}

// NewJWTService creates a JWT service. An empty issuer disables the iss check.
func NewJWTService(secret, issuer string, expireHours int) *JWTService {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(clockSkew),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &JWTService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    time.Duration(expireHours) * time.Hour,
		parser: jwt.NewParser(opts...),
	}
}

// Generate mints a token for userID. Production tokens come from the identity service;
// this serves local tooling and tests.
func (s *JWTService) Generate(userID uuid.UUID, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate verifies the signature, expiry and issuer and returns the caller.
// Tokens without an expiry or with a subject that is not a user id are refused.
func (s *JWTService) Validate(token string) (*Identity, error) {
	var claims Claims
	parsed, err := s.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: userID, Role: claims.Role}, nil
}
