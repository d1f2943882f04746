// Package auth validates bearer tokens issued by the platform's identity
// service. This service only verifies; it never issues access tokens.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the platform's standard access-token claims
type Claims struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	Email    string `json:"email,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for the given user. Used by tests and
// local tooling; production tokens come from the identity service.
func GenerateToken(userID, role, email, deviceID, secret string, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID:   userID,
		Role:     role,
		Email:    email,
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   userID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies a token and returns its claims
func ValidateToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	return claims, nil
}
