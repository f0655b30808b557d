package transport

import "net/http"

// Authenticator applies authentication to an outgoing request.
type Authenticator interface {
	Apply(req *http.Request)
}

// NoAuth performs no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface.
func (a *NoAuth) Apply(_ *http.Request) {}

// BasicAuth authenticates with HTTP basic auth. Toggl uses the API
// token as username with the literal password "api_token"; Jira uses
// email and API token.
type BasicAuth struct {
	Username string
	Password string
}

// Apply implements the Authenticator interface.
func (a *BasicAuth) Apply(req *http.Request) {
	req.SetBasicAuth(a.Username, a.Password)
}

// BearerAuth authenticates with a bearer token header.
type BearerAuth struct {
	Token string
}

// Apply implements the Authenticator interface.
func (a *BearerAuth) Apply(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.Token)
}
