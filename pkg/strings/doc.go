// Package strings holds small text helpers for CLI output.
package strings
