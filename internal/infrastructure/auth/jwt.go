package auth

import (
	"fmt"
	"time"

	"github.com/campuspoints/loyalty-service/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 24 * time.Hour

// GenerateToken issues an HS256 JWT carrying the caller's resolved identity.
func GenerateToken(user *models.User, secret string) (string, time.Time, error) {
	expiresAt := time.Now().Add(tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"utorid":  user.Utorid,
		"role":    string(user.Role),
		"exp":     expiresAt.Unix(),
		"iat":     time.Now().Unix(),
	})
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates the signature and expiry and returns the embedded
// identity claims.
func ParseToken(tokenStr, secret string) (userID int32, utorid string, role models.Role, err error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method.Alg())
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return 0, "", "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", "", fmt.Errorf("invalid token claims")
	}

	id, ok := claims["user_id"].(float64)
	if !ok {
		return 0, "", "", fmt.Errorf("invalid user_id in token")
	}
	utorid, ok = claims["utorid"].(string)
	if !ok {
		return 0, "", "", fmt.Errorf("invalid utorid in token")
	}
	roleStr, ok := claims["role"].(string)
	if !ok || !models.Role(roleStr).Valid() {
		return 0, "", "", fmt.Errorf("invalid role in token")
	}

	return int32(id), utorid, models.Role(roleStr), nil
}
