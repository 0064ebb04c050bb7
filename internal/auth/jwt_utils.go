package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims defines what is inside the token (the "ID card").
type Claims struct {
	UserID       uint       `json:"user_id"`
	Name         string     `json:"name"`
	Role         Role       `json:"role"`
	Capabilities Capability `json:"caps"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for a user. Capabilities are resolved
// at login, so permission changes apply from the next login.
func GenerateToken(secret []byte, ttl time.Duration, userID uint, name string, role Role, caps Capability) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:       userID,
		Name:         name,
		Role:         role,
		Capabilities: caps,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken checks if a token is forged or expired.
func ValidateToken(secret []byte, tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
