package oauth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// session is the JSON document produced by SaveSession.
type session struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// SaveSession serializes the full session (credentials, redirect URI and
// tokens) to a JSON file with 0600 permissions. Refuses to persist a
// session without an access token.
func (c *Client) SaveSession(path string) error {
	if c.accessToken == "" {
		return ErrUnauthenticated
	}

	data, err := json.MarshalIndent(session{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		RedirectURI:  c.cfg.RedirectURL,
		AccessToken:  c.accessToken,
		RefreshToken: c.refreshToken,
	}, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tempFile, err := os.CreateTemp(dir, "*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if _, err := tempFile.Write(append(data, '\n')); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tempName, path); err != nil {
		return err
	}

	return os.Chmod(path, 0600)
}

// LoadSession restores session state from a JSON file. Fields absent from
// the file leave the current values untouched. A file without an access
// token is an error and leaves the session unchanged.
func (c *Client) LoadSession(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var s session
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("malformed session file %s: %w", path, err)
	}

	if s.AccessToken == "" {
		return fmt.Errorf("no access token in session file %s", path)
	}

	if s.ClientID != "" {
		c.cfg.ClientID = s.ClientID
	}
	if s.ClientSecret != "" {
		c.cfg.ClientSecret = s.ClientSecret
	}
	if s.RedirectURI != "" {
		c.cfg.RedirectURL = s.RedirectURI
	}
	c.accessToken = s.AccessToken
	if s.RefreshToken != "" {
		c.refreshToken = s.RefreshToken
	}

	return nil
}
