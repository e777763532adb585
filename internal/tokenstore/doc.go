// Package tokenstore persists session token records.
//
// A Record is stored under Key(endpoint), so each OAuth endpoint has at most
// one session. Three Store backends are provided: FileStore (one 0600 JSON
// file per key), SQLiteStore (a token_records table) and MemoryStore.
//
// All backends share the same JSON encoding:
//
//	{"username":"alice","accessToken":"T1","accessTokenExpiry":"2026-01-01T10:00:00Z","rememberMe":true,"refreshToken":"R1"}
//
// refreshToken is null unless rememberMe is true.
package tokenstore
