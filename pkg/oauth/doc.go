// Package oauth implements the OAuth 2.0 token endpoint protocol used by the
// tokensession coordinator.
//
// It is a thin layer over golang.org/x/oauth2 that adds what the coordinator
// needs on top of it:
//   - resource-owner password grant without client credentials
//   - refresh grant with client credentials in the form body
//   - revocation by DELETE on the token endpoint with the bearer credential
//   - failure classification: 400/401 responses are terminal
//     (ErrAuthRejected), everything else is transient
//   - unverified inspection of JWT access token claims for display purposes
//
// # Usage
//
//	client := oauth.NewClient("https://auth.example.com/oauth/token",
//	    oauth.WithClientCredentials(clientID, clientSecret),
//	)
//
//	token, err := client.PasswordGrant(ctx, "alice", password)
//	if oauth.IsAuthRejected(err) {
//	    // wrong username or password
//	}
package oauth
