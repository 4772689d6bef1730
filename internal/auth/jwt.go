package auth

import (
	"errors"
	"time"

	"campuspay/internal/model"

	"github.com/golang-jwt/jwt/v4"
)

type Claims struct {
	UserID int64      `json:"id"`
	USN    string     `json:"usn"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

const TokenExp = time.Hour * 24

var ErrInvalidToken = errors.New("invalid token")

func GenerateToken(secret string, user *model.User) (string, error) {
	claims := &Claims{
		UserID: user.ID,
		USN:    user.USN,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(TokenExp)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
