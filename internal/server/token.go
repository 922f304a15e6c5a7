// Package server issues and verifies the signed bearer tokens that carry a
// user's identity between login and the realtime channel.
package server

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates a token whose signature, shape, or expiry failed
// verification.
var ErrInvalidToken = errors.New("invalid or expired token")

// identityClaims is the payload signed into every issued token.
type identityClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// IssueToken creates a signed HS256 token naming the given username, stamped
// with issue time and the configured expiry. It is a pure function of the
// configured secret; nothing is stored server-side.
func IssueToken(username string) (string, error) {
	cfg := currentConfig()

	now := time.Now()
	claims := &identityClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TokenTTL)),
			Issuer:    "nexus-chat-server",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// VerifyToken checks the signature and expiry of a token string and returns
// the username it was issued for. Any failure maps to ErrInvalidToken.
func VerifyToken(tokenString string) (string, error) {
	cfg := currentConfig()

	token, err := jwt.ParseWithClaims(tokenString, &identityClaims{}, func(token *jwt.Token) (any, error) {
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*identityClaims)
	if !ok || !token.Valid || claims.Username == "" {
		return "", ErrInvalidToken
	}
	return claims.Username, nil
}
