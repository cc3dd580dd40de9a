package tokenstore

import "context"

// Credentials is the token pair issued by a successful OAuth exchange or
// refresh. RefreshToken may be empty; some deployments never issue one.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Store reads and writes issued credentials to persistent storage.
type Store interface {
	// Load returns the stored credentials. Returns an error when storage
	// holds no access token.
	Load(ctx context.Context) (Credentials, error)

	// Save persists the credentials, replacing any previous values. An
	// empty refresh token is persisted as such, not skipped.
	Save(ctx context.Context, creds Credentials) error
}
