package tokenstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Keys written to the env file by the OAuth flow. Anything else in the
// file belongs to the application and is preserved verbatim.
const (
	EnvKeyAccessToken  = "DIDA_ACCESS_TOKEN"
	EnvKeyRefreshToken = "DIDA_REFRESH_TOKEN"
)

// EnvFileStore persists credentials as assignments in a dotenv-style file
// (typically the application's .env). Writes use temp file + rename for
// crash safety and are idempotent: saving the same credentials twice
// yields byte-identical file contents.
type EnvFileStore struct {
	filePath string
}

// Compile-time check to ensure EnvFileStore implements Store
var _ Store = (*EnvFileStore)(nil)

// NewEnvFileStore creates an EnvFileStore for the given path, creating
// parent directories with 0700 permissions if they don't exist.
func NewEnvFileStore(filePath string) (*EnvFileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
	}

	return &EnvFileStore{filePath: filePath}, nil
}

// Load reads the token assignments from the file. A missing file or a
// file without an access token is an error; the refresh token may be
// absent or empty.
func (s *EnvFileStore) Load(ctx context.Context) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return Credentials{}, err
	}

	doc := ParseDocument(data)

	access, _ := doc.Get(EnvKeyAccessToken)
	if access == "" {
		return Credentials{}, fmt.Errorf("no %s in %s", EnvKeyAccessToken, s.filePath)
	}

	refresh, _ := doc.Get(EnvKeyRefreshToken)
	return Credentials{AccessToken: access, RefreshToken: refresh}, nil
}

// Save upserts the token assignments, rewriting the file atomically. All
// unrelated lines are preserved in place and the file ends with a single
// trailing newline. An absent refresh token is written as an empty value;
// the line is never removed.
func (s *EnvFileStore) Save(ctx context.Context, creds Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	doc := ParseDocument(data)
	doc.Set(EnvKeyAccessToken, creds.AccessToken)
	doc.Set(EnvKeyRefreshToken, creds.RefreshToken)

	return writeFileAtomic(ctx, s.filePath, doc.Serialize())
}

// writeFileAtomic writes data via a temp file in the target directory and
// renames it into place with 0600 permissions.
func writeFileAtomic(ctx context.Context, path string, data []byte) error {
	dir := filepath.Dir(path)
	tempFile, err := os.CreateTemp(dir, "*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	// Cleanup deferred for all exit paths
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if _, err := tempFile.Write(data); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
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
