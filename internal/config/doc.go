// Package config loads the tokensession configuration.
//
// Configuration is read from config.yaml in a single directory, by default
// ~/.config/tokensession, selectable with the --config-path flag. Values
// missing from the file keep their defaults. The environment variables
// TOKENSESSION_ENDPOINT, TOKENSESSION_CLIENT_ID, TOKENSESSION_CLIENT_SECRET
// and TOKENSESSION_LOG_LEVEL override the file.
//
// # Example
//
//	endpoint: https://api.example.com/oauth/token
//	clientId: res_owner@invend.eu
//	clientSecret: res_owner
//	refreshLead: 25m
//	retryDelay: 5m
//	store:
//	  type: sqlite
//	logLevel: debug
//
// When store.path is empty the token store lives inside the configuration
// directory: tokens/ for the file store, tokens.db for SQLite.
//
// Loading failures are reported as ConfigurationError values; validation
// failures are collected into a ConfigurationErrorCollection.
package config
