package tokenstore

import (
	"encoding/json"
	"time"
)

// Record is the token state of one session.
//
// RefreshToken is always held in memory for the lifetime of the session but
// is only written to persistent storage when RememberMe is true.
type Record struct {
	Username          string
	AccessToken       string
	AccessTokenExpiry time.Time
	RefreshToken      string
	RememberMe        bool
}

// recordJSON is the persisted shape of a Record.
type recordJSON struct {
	Username          string     `json:"username"`
	AccessToken       string     `json:"accessToken,omitempty"`
	AccessTokenExpiry *time.Time `json:"accessTokenExpiry,omitempty"`
	RememberMe        bool       `json:"rememberMe"`
	RefreshToken      *string    `json:"refreshToken"`
}

// MarshalJSON writes the persisted form: refreshToken is null unless the
// record is remembered.
func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		Username:    r.Username,
		AccessToken: r.AccessToken,
		RememberMe:  r.RememberMe,
	}
	if !r.AccessTokenExpiry.IsZero() {
		expiry := r.AccessTokenExpiry.UTC()
		out.AccessTokenExpiry = &expiry
	}
	if r.RememberMe && r.RefreshToken != "" {
		refreshToken := r.RefreshToken
		out.RefreshToken = &refreshToken
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Record{
		Username:    in.Username,
		AccessToken: in.AccessToken,
		RememberMe:  in.RememberMe,
	}
	if in.AccessTokenExpiry != nil {
		r.AccessTokenExpiry = *in.AccessTokenExpiry
	}
	if in.RefreshToken != nil {
		r.RefreshToken = *in.RefreshToken
	}
	return nil
}

// Clone returns a copy of the record. A nil record clones to nil.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// HasAccessToken reports whether an access token is held.
func (r *Record) HasAccessToken() bool {
	return r != nil && r.AccessToken != ""
}

// HasRefreshToken reports whether a refresh token is held.
func (r *Record) HasRefreshToken() bool {
	return r != nil && r.RefreshToken != ""
}

// Expired reports whether the access token must not be used at now. A record
// without an access token, or with an access token but no expiry, is expired.
func (r *Record) Expired(now time.Time) bool {
	if !r.HasAccessToken() || r.AccessTokenExpiry.IsZero() {
		return true
	}
	return !now.Before(r.AccessTokenExpiry)
}

// DropAccessToken forgets the access token and its expiry, keeping the
// identity and refresh credential.
func (r *Record) DropAccessToken() {
	r.AccessToken = ""
	r.AccessTokenExpiry = time.Time{}
}
