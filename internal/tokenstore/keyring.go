package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringStore provides OS-native secure credential storage. Uses macOS
// Keychain, Windows Credential Manager, or Linux Secret Service. The token
// pair is stored as a single JSON entry.
type KeyringStore struct {
	service string
	user    string
}

// Compile-time check to ensure KeyringStore implements Store
var _ Store = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore using the given service and user
// identifiers.
func NewKeyringStore(service, user string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}

	return &KeyringStore{
		service: service,
		user:    user,
	}, nil
}

// keyringEntry is the JSON document stored in the keyring.
type keyringEntry struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Load returns the credentials from the system keyring. Returns an error
// if the entry is missing, malformed, or holds no access token.
func (k *KeyringStore) Load(ctx context.Context) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}

	raw, err := keyring.Get(k.service, k.user)
	if err != nil {
		return Credentials{}, err
	}

	var e keyringEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Credentials{}, fmt.Errorf("malformed keyring entry for service %s, user %s: %w", k.service, k.user, err)
	}

	if e.AccessToken == "" {
		return Credentials{}, fmt.Errorf("no access token in keyring for service %s, user %s", k.service, k.user)
	}

	return Credentials{AccessToken: e.AccessToken, RefreshToken: e.RefreshToken}, nil
}

// Save persists the credentials to the system keyring, overwriting any
// existing entry.
func (k *KeyringStore) Save(ctx context.Context, creds Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := json.Marshal(keyringEntry{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
	})
	if err != nil {
		return err
	}

	return keyring.Set(k.service, k.user, string(raw))
}
