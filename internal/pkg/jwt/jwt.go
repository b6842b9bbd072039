package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const TokenTypeRefresh = "refresh"

var ErrWrongTokenType = errors.New("wrong token type")

type Claims struct {
	Type string `json:"type,omitempty"`
	jwtlib.RegisteredClaims
}

func (c *Claims) UserID() string {
	return c.Subject
}

func GenerateAccessToken(userID string, secret []byte, ttl time.Duration) (string, error) {
	return generate(userID, "", secret, ttl)
}

func GenerateRefreshToken(userID string, secret []byte, ttl time.Duration) (string, error) {
	return generate(userID, TokenTypeRefresh, secret, ttl)
}

func generate(userID, tokenType string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Type: tokenType,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ParseToken(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenString, &Claims{}, func(token *jwtlib.Token) (interface{}, error) {
		if token.Method.Alg() != jwtlib.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// ParseAccessToken rejects refresh tokens presented as bearer credentials.
func ParseAccessToken(tokenString string, secret []byte) (*Claims, error) {
	claims, err := ParseToken(tokenString, secret)
	if err != nil {
		return nil, err
	}
	if claims.Type == TokenTypeRefresh {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

func ParseRefreshToken(tokenString string, secret []byte) (*Claims, error) {
	claims, err := ParseToken(tokenString, secret)
	if err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeRefresh {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
