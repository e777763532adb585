package config

import "time"

// StoreType selects the token store backend.
type StoreType string

const (
	StoreTypeFile   StoreType = "file"
	StoreTypeSQLite StoreType = "sqlite"
	StoreTypeMemory StoreType = "memory"
)

// TokenSessionConfig is the top-level configuration structure for tokensession.
type TokenSessionConfig struct {
	// Endpoint is the OAuth token endpoint. Its host is also the host of the
	// protected API that receives bearer tokens.
	Endpoint string `yaml:"endpoint"`

	// ClientID and ClientSecret are sent with refresh grants.
	ClientID     string `yaml:"clientId,omitempty"`
	ClientSecret string `yaml:"clientSecret,omitempty"`

	RefreshLead             time.Duration `yaml:"refreshLead,omitempty"`             // Refresh this long before expiry (default: 25m)
	HardExpiryMargin        time.Duration `yaml:"hardExpiryMargin,omitempty"`        // Expire this long before expiry (default: 5s)
	RetryDelay              time.Duration `yaml:"retryDelay,omitempty"`              // Delay before retrying a failed refresh (default: 5m)
	OnDemandRefreshInterval time.Duration `yaml:"onDemandRefreshInterval,omitempty"` // Minimum interval between request-triggered refreshes, 0 disables (default: 10s)
	DefaultTokenLifetime    time.Duration `yaml:"defaultTokenLifetime,omitempty"`    // Lifetime when expires_in is missing (default: 1h)
	HTTPTimeout             time.Duration `yaml:"httpTimeout,omitempty"`             // Token endpoint request timeout (default: 30s)

	Store StoreConfig `yaml:"store"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel,omitempty"`
}

// StoreConfig defines where token records are persisted.
type StoreConfig struct {
	Type StoreType `yaml:"type,omitempty"` // file, sqlite or memory (default: file)
	Path string    `yaml:"path,omitempty"` // Directory (file) or database file (sqlite); defaults inside the config directory
}
