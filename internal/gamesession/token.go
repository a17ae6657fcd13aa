package gamesession

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// playClaims is what a play token carries: owner, game, issue time, and a
// nonce so two sessions started in the same second stay distinct.
type playClaims struct {
	UserID int64  `json:"uid"`
	GameID string `json:"gid"`
	Nonce  string `json:"nce"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies play-session tokens. The token itself is the
// session ID: a forged or truncated ID fails signature verification before
// any store lookup happens.
type TokenCodec struct {
	secret []byte
}

func NewTokenCodec(secret []byte) *TokenCodec {
	return &TokenCodec{secret: secret}
}

// Issue creates a signed token for (userID, gameID) valid until expiresAt.
func (c *TokenCodec) Issue(userID int64, gameID string, issuedAt, expiresAt time.Time) (string, error) {
	claims := playClaims{
		UserID: userID,
		GameID: gameID,
		Nonce:  uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign play token: %w", err)
	}
	return signed, nil
}

// Verify checks the token's signature and expiry and returns the embedded
// owner and game. It does not consult the session store.
func (c *TokenCodec) Verify(tokenString string) (userID int64, gameID string, err error) {
	var claims playClaims
	_, err = jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return 0, "", fmt.Errorf("parse play token: %w", err)
	}
	return claims.UserID, claims.GameID, nil
}
