package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// TokenIssuer signs and verifies the two token kinds. Access and
// refresh tokens share the signing primitive but never a secret, so a
// refresh token can never pass as an access token even if the typ
// claim were stripped.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (t *TokenIssuer) AccessTTL() time.Duration  { return t.accessTTL }
func (t *TokenIssuer) RefreshTTL() time.Duration { return t.refreshTTL }

func (t *TokenIssuer) IssueAccess(username, userID string) (string, error) {
	return t.sign(username, userID, tokenTypeAccess, t.accessSecret, t.accessTTL)
}

func (t *TokenIssuer) IssueRefresh(username, userID string) (string, error) {
	return t.sign(username, userID, tokenTypeRefresh, t.refreshSecret, t.refreshTTL)
}

func (t *TokenIssuer) sign(username, userID, typ string, secret []byte, ttl time.Duration) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"username": username,
		"id":       userID,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
		"typ":      typ,
	}
	encoded, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return encoded, nil
}

// ParseAccess validates signature, expiry, and token type. Denylist
// membership is the caller's concern.
func (t *TokenIssuer) ParseAccess(raw string) (Identity, error) {
	return t.parse(raw, tokenTypeAccess, t.accessSecret, ErrInvalidAccessToken)
}

func (t *TokenIssuer) ParseRefresh(raw string) (Identity, error) {
	return t.parse(raw, tokenTypeRefresh, t.refreshSecret, ErrInvalidRefreshToken)
}

func (t *TokenIssuer) parse(raw, typ string, secret []byte, invalid error) (Identity, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return Identity{}, invalid
	}
	if tokenType, _ := claims["typ"].(string); tokenType != typ {
		return Identity{}, invalid
	}

	username, _ := claims["username"].(string)
	userID, _ := claims["id"].(string)
	exp, _ := claims["exp"].(float64)
	if username == "" || userID == "" {
		return Identity{}, invalid
	}

	return Identity{
		Username:    username,
		UserID:      userID,
		TokenExpiry: int64(exp),
	}, nil
}
