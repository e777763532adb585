// Package session contains the session state machine and the emitter that
// publishes its state changes.
//
// The machine has four states and five events:
//
//	useToken, useCredentials   newSession|loggedOut  -> loggingIn
//	tokenValid                 loggingIn|loggedIn    -> loggedIn
//	tokenExpired               any                   -> loggedOut
//	tokenInvalidated           any                   -> loggedOut
//
// Event handlers run on every accepted event; enter handlers and the
// stateChanged emission happen only when the state actually changes.
package session
