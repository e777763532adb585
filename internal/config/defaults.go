package config

import (
	"tokensession/internal/authn"
	"tokensession/pkg/oauth"
)

const (
	// DefaultLogLevel is used when no log level is configured.
	DefaultLogLevel = "info"

	// DefaultTokenDirName is the file store directory inside the config directory.
	DefaultTokenDirName = "tokens"

	// DefaultDatabaseName is the SQLite database file inside the config directory.
	DefaultDatabaseName = "tokens.db"
)

// GetDefaultConfig returns the default configuration. The endpoint has no
// default and must be configured.
func GetDefaultConfig() TokenSessionConfig {
	return TokenSessionConfig{
		ClientID:                oauth.DefaultRefreshClientID,
		ClientSecret:            oauth.DefaultRefreshClientSecret,
		RefreshLead:             authn.DefaultRefreshLead,
		HardExpiryMargin:        authn.DefaultHardExpiryMargin,
		RetryDelay:              authn.DefaultRetryDelay,
		OnDemandRefreshInterval: authn.DefaultOnDemandRefreshInterval,
		DefaultTokenLifetime:    oauth.DefaultTokenLifetime,
		HTTPTimeout:             oauth.DefaultHTTPTimeout,
		Store: StoreConfig{
			Type: StoreTypeFile,
		},
		LogLevel: DefaultLogLevel,
	}
}
