package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// InviteClaims scope an invite token to one room. The token stops
// being honored once the room starts regardless of its expiry.
type InviteClaims struct {
	RoomID string `json:"room_id"`
	jwt.RegisteredClaims
}

func GenerateInviteToken(roomID, secret string, lifetime time.Duration) (string, error) {
	claims := &InviteClaims{
		RoomID: roomID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(lifetime)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign invite token: %w", err)
	}
	return signed, nil
}

func ValidateInviteToken(tokenString, secret string) (*InviteClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &InviteClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse invite token: %w", err)
	}

	if claims, ok := token.Claims.(*InviteClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid invite token")
}
