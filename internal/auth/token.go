// ABOUTME: JWT group tokens for authenticating cross-agent requests
// ABOUTME: HS256 signed GroupClaims; the sub claim names the requester group

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// TokenIssuer is the iss claim of tokens minted by Generate.
const TokenIssuer = "coven-bdi"

// TokenVerifier verifies a bearer token and returns the group it was
// issued to.
type TokenVerifier interface {
	Verify(tokenString string) (group string, err error)
}

// GroupClaims are the claims of a group token. Expiry is optional and iss
// is not checked.
type GroupClaims struct {
	jwt.RegisteredClaims
}

// Group is the requester group the token was issued to.
func (c GroupClaims) Group() string {
	return c.Subject
}

// Validate is called by the parser after the registered claims pass.
func (c GroupClaims) Validate() error {
	if c.Subject == "" {
		return fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	return nil
}

// JWTVerifier implements TokenVerifier using HS256 signed JWTs
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTVerifier creates a new JWT verifier with the given secret
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{
		secret: secret,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuedAt()),
	}
}

// Claims parses and validates the token.
func (v *JWTVerifier) Claims(tokenString string) (*GroupClaims, error) {
	claims := &GroupClaims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case errors.Is(err, ErrMissingClaim):
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
}

// Verify validates the token and returns its group.
func (v *JWTVerifier) Verify(tokenString string) (string, error) {
	claims, err := v.Claims(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Group(), nil
}

// Generate issues a token for group. A zero expiresIn issues a token
// without expiry.
func (v *JWTVerifier) Generate(group string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := GroupClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:  group,
		Issuer:   TokenIssuer,
		IssuedAt: jwt.NewNumericDate(now),
	}}
	if expiresIn != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(expiresIn))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
