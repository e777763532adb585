// Package auth provides the session status type shared by the CLI's table
// and JSON output.
package auth
