package oauth

import (
	"strings"
	"time"
)

const (
	// DefaultRefreshClientID is the client_id sent with refresh-grant requests
	// when none is configured. It matches the resource-owner client registered
	// on the reference deployment.
	DefaultRefreshClientID = "res_owner@invend.eu"

	// DefaultRefreshClientSecret is the client_secret paired with DefaultRefreshClientID.
	DefaultRefreshClientSecret = "res_owner"

	// DefaultTokenLifetime is assumed when a token response omits expires_in.
	DefaultTokenLifetime = time.Hour
)

// NormalizeEndpoint strips trailing slashes from an endpoint URL so that the
// same endpoint always maps to the same storage key and host.
func NormalizeEndpoint(endpoint string) string {
	return strings.TrimRight(strings.TrimSpace(endpoint), "/")
}
