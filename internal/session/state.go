package session

// State is the authentication state of a session.
type State int

const (
	// NewSession is the initial state before any token has been seen.
	NewSession State = iota
	// LoggingIn means credentials or a token are being verified.
	LoggingIn
	// LoggedIn means a valid access token is held.
	LoggedIn
	// LoggedOut means the session has no usable access token.
	LoggedOut
)

// States lists every declared state.
var States = []State{NewSession, LoggingIn, LoggedIn, LoggedOut}

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case NewSession:
		return "newSession"
	case LoggingIn:
		return "loggingIn"
	case LoggedIn:
		return "loggedIn"
	case LoggedOut:
		return "loggedOut"
	default:
		return "unknown"
	}
}

// Event is an input to the state machine.
type Event int

const (
	// UseToken starts verification of a stored or refreshed token.
	UseToken Event = iota
	// UseCredentials starts a password login.
	UseCredentials
	// TokenValid confirms that a valid access token is held.
	TokenValid
	// TokenExpired reports that the access token can no longer be used.
	TokenExpired
	// TokenInvalidated reports that the session was revoked or rejected.
	TokenInvalidated
)

// String returns a human-readable representation of the event.
func (e Event) String() string {
	switch e {
	case UseToken:
		return "useToken"
	case UseCredentials:
		return "useCredentials"
	case TokenValid:
		return "tokenValid"
	case TokenExpired:
		return "tokenExpired"
	case TokenInvalidated:
		return "tokenInvalidated"
	default:
		return "unknown"
	}
}

// Transition is one row of the transition table.
type Transition struct {
	From []State
	To   State
}

// DefaultTransitions is the session transition table.
func DefaultTransitions() map[Event]Transition {
	return map[Event]Transition{
		UseToken:         {From: []State{NewSession, LoggedOut}, To: LoggingIn},
		UseCredentials:   {From: []State{NewSession, LoggedOut}, To: LoggingIn},
		TokenValid:       {From: []State{LoggingIn, LoggedIn}, To: LoggedIn},
		TokenExpired:     {From: States, To: LoggedOut},
		TokenInvalidated: {From: States, To: LoggedOut},
	}
}
