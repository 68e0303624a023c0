package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token modes accepted by NewTokenGenerator
const (
	TokenModeDigest = "digest"
	TokenModeRandom = "random"
	TokenModeJWT    = "jwt"
)

// TokenGenerator produces the login token handed to a user on login
type TokenGenerator interface {
	Generate(mail string, now time.Time) (string, error)
}

// NewTokenGenerator returns the generator for mode
func NewTokenGenerator(mode string, jwtSecret []byte) (TokenGenerator, error) {
	switch mode {
	case TokenModeDigest, "":
		return DigestTokens{}, nil
	case TokenModeRandom:
		return RandomTokens{}, nil
	case TokenModeJWT:
		return NewJWTTokens(jwtSecret)
	default:
		return nil, fmt.Errorf("unknown token mode %q", mode)
	}
}

// DigestTokens derives the token from the mail address alone, so every login
// of one account yields the same token.
type DigestTokens struct{}

// Generate implements TokenGenerator
func (DigestTokens) Generate(mail string, _ time.Time) (string, error) {
	return Digest(mail), nil
}

// RandomTokens issues a fresh random nonce per login
type RandomTokens struct{}

// Generate implements TokenGenerator
func (RandomTokens) Generate(_ string, _ time.Time) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// SessionClaims represents the claims in a JWT login token
type SessionClaims struct {
	Mail string `json:"mail"`
	jwt.RegisteredClaims
}

// JWTTokens issues signed HS256 tokens. Validity is still decided by the
// login record store; the signature only makes tokens unforgeable.
type JWTTokens struct {
	secret []byte
}

// NewJWTTokens creates a JWT generator signing with secret
func NewJWTTokens(secret []byte) (*JWTTokens, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTTokens{secret: secret}, nil
}

// Generate implements TokenGenerator
func (g *JWTTokens) Generate(mail string, now time.Time) (string, error) {
	claims := &SessionClaims{
		Mail: mail,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Subject:  mail,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.secret)
}

// Parse validates a token's signature and returns its claims
func (g *JWTTokens) Parse(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return g.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}
