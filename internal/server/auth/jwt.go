// Package auth issues and validates the HS256 session tokens handed out
// after a successful login.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aturbins/hushwire/internal/common"
)

// Token kinds. A refresh token must never be accepted where an access
// token is expected, and vice versa.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Claims carries the standard registered claims plus the authenticated
// user's id and email and the token kind.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Email  string `json:"eml"`
	Kind   string `json:"knd"`
}

func GenerateToken(userID, email, kind string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: userID,
		Email:  email,
		Kind:   kind,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken returns the claims if the token is valid, unexpired and of the
// expected kind.
func ParseToken(tokenString, kind string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, common.ErrSessionInvalid
		}
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrSessionExpired
		}
		return nil, common.ErrSessionInvalid
	}

	if !token.Valid || claims.Kind != kind {
		return nil, common.ErrSessionInvalid
	}

	return claims, nil
}

// GetUserIDFromToken parses the token and returns just the user id.
func GetUserIDFromToken(tokenString, kind string, secretKey []byte) (string, error) {
	claims, err := ParseToken(tokenString, kind, secretKey)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}
