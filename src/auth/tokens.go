package auth

import (
	"fmt"
	"time"

	"trading-backbone/src/helpers"
	"trading-backbone/src/models"

	"github.com/golang-jwt/jwt/v5"
)

// -----------------------------------------------------------------------------
// TokenIssuer
// -----------------------------------------------------------------------------

// tokenTypeRefresh is the type discriminator carried by refresh tokens so
// the two token kinds cannot be used interchangeably.
const tokenTypeRefresh = "refresh"

type platformClaims struct {
	TokenType string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// -----------------------------------------------------------------------------

// TokenIssuer mints and verifies the platform's own signed bearer tokens.
// Access tokens are short-lived (minutes); refresh tokens are long-lived
// (weeks) and carry the refresh type claim.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// -----------------------------------------------------------------------------

func NewTokenIssuer(cfg models.MAuthConfig) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  time.Duration(cfg.AccessTokenExpireMin) * time.Minute,
		refreshTTL: time.Duration(cfg.RefreshTokenExpireDays) * 24 * time.Hour,
		now:        time.Now,
	}
}

// -----------------------------------------------------------------------------

// AccessToken mints a short-lived access token for subject.
func (t *TokenIssuer) AccessToken(subject string) (string, error) {
	return t.sign(subject, "", t.accessTTL)
}

// -----------------------------------------------------------------------------

// RefreshToken mints a long-lived refresh token for subject.
func (t *TokenIssuer) RefreshToken(subject string) (string, error) {
	return t.sign(subject, tokenTypeRefresh, t.refreshTTL)
}

// -----------------------------------------------------------------------------

func (t *TokenIssuer) sign(subject, tokenType string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := platformClaims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// -----------------------------------------------------------------------------

// VerifyAccess validates an access token and returns its subject.
// Refresh tokens presented here are rejected.
func (t *TokenIssuer) VerifyAccess(tokenString string) (string, error) {
	claims, err := t.parse(tokenString)
	if err != nil {
		return "", err
	}
	if claims.TokenType == tokenTypeRefresh {
		return "", helpers.NewTokenError("refresh token used as access token", nil)
	}
	return claims.Subject, nil
}

// -----------------------------------------------------------------------------

// VerifyRefresh validates a refresh token (type claim required) and returns
// its subject.
func (t *TokenIssuer) VerifyRefresh(tokenString string) (string, error) {
	claims, err := t.parse(tokenString)
	if err != nil {
		return "", err
	}
	if claims.TokenType != tokenTypeRefresh {
		return "", helpers.NewTokenError("token is not a refresh token", nil)
	}
	return claims.Subject, nil
}

// -----------------------------------------------------------------------------

func (t *TokenIssuer) parse(tokenString string) (*platformClaims, error) {
	claims := &platformClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return t.now() }))
	if err != nil {
		return nil, helpers.NewTokenError("could not validate credentials", err)
	}
	if !token.Valid {
		return nil, helpers.NewTokenError("could not validate credentials", nil)
	}
	if claims.Subject == "" {
		return nil, helpers.NewTokenError("token missing subject", nil)
	}
	return claims, nil
}
