package oauth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenClaims holds the identity claims that can be read from an access
// token when the authorization server issues JWTs. They are informational
// only: the signature is NOT verified, so they must never drive authorization
// decisions.
type AccessTokenClaims struct {
	Subject           string
	Issuer            string
	PreferredUsername string
	IssuedAt          time.Time
	ExpiresAt         time.Time
}

type accessTokenJWTClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string `json:"preferred_username,omitempty"`
}

// ParseAccessTokenClaims decodes the claims of a JWT access token without
// verifying its signature. Opaque (non-JWT) tokens return an error.
func ParseAccessTokenClaims(accessToken string) (*AccessTokenClaims, error) {
	var claims accessTokenJWTClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return nil, fmt.Errorf("access token is not a readable JWT: %w", err)
	}

	result := &AccessTokenClaims{
		Subject:           claims.Subject,
		Issuer:            claims.Issuer,
		PreferredUsername: claims.PreferredUsername,
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result, nil
}
