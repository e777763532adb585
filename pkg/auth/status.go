package auth

import (
	"time"

	"tokensession/pkg/oauth"
)

// Status is the machine-readable description of a session printed by
// `tokensession status --output json`. It never carries token values.
type Status struct {
	Endpoint string `json:"endpoint"`

	// State is one of: "newSession", "loggingIn", "loggedIn", "loggedOut"
	State         string `json:"state"`
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`

	// ExpiresAt is the access token expiry, when an access token is held.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	RefreshAvailable bool `json:"refresh_available"`
	RememberMe       bool `json:"remember_me"`

	// Identity is present when the access token is a readable JWT.
	Identity *Identity `json:"identity,omitempty"`
}

// Identity holds unverified claims read from a JWT access token.
type Identity struct {
	Subject  string     `json:"subject,omitempty"`
	Issuer   string     `json:"issuer,omitempty"`
	IssuedAt *time.Time `json:"issued_at,omitempty"`
}

// SetExpiry records the access token expiry; the zero time clears it.
func (s *Status) SetExpiry(expiry time.Time) {
	if expiry.IsZero() {
		s.ExpiresAt = nil
		return
	}
	utc := expiry.UTC()
	s.ExpiresAt = &utc
}

// SetIdentityFromToken fills Identity from a JWT access token. Opaque tokens
// leave Identity unset and report false.
func (s *Status) SetIdentityFromToken(accessToken string) bool {
	if accessToken == "" {
		return false
	}
	claims, err := oauth.ParseAccessTokenClaims(accessToken)
	if err != nil {
		return false
	}

	identity := &Identity{
		Subject: claims.Subject,
		Issuer:  claims.Issuer,
	}
	if !claims.IssuedAt.IsZero() {
		issued := claims.IssuedAt.UTC()
		identity.IssuedAt = &issued
	}
	s.Identity = identity
	return true
}
