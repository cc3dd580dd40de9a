package oauth

import (
	"golang.org/x/oauth2"
)

const (
	// APIBaseURL is the Dida365 open API root used for authenticated calls.
	APIBaseURL = "https://api.dida365.com/open/v1"

	// DefaultRedirectURI is the localhost callback registered with the
	// authorization server. Its port decides where the callback listener
	// binds.
	DefaultRedirectURI = "http://localhost:38000/callback"

	// DefaultScope grants task read and write access.
	DefaultScope = "tasks:read tasks:write"

	// defaultCallbackPort is the bind port used when the redirect URI
	// cannot be parsed.
	defaultCallbackPort = 38000
)

// Endpoint defines the Dida365 OAuth2 endpoints. The token endpoint takes
// form-encoded requests with client credentials in the body
// (AuthStyleInParams).
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://dida365.com/oauth/authorize",
	TokenURL:  "https://dida365.com/oauth/token",
	AuthStyle: oauth2.AuthStyleInParams,
}
