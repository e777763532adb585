// Package cmd implements the tokensession command line interface.
//
// Every subcommand loads the configuration from --config-path, opens the
// configured token store and works on the session stored for the endpoint.
// Errors map to exit codes: 2 when a session is required but missing and 3
// when the token endpoint rejected the credentials.
package cmd
