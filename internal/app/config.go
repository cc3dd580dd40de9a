package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os/user"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/didatodolist/dida-mcp/internal/oauth"
	"github.com/didatodolist/dida-mcp/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText       LogFormat = "text"
	LogFormatJSON       LogFormat = "json"
	LogFormatOTLPHTTP   LogFormat = "otlp-http"
	LogFormatOTLPGRPC   LogFormat = "otlp-grpc"
	LogFormatOTLPStdout LogFormat = "otlp-stdout"
)

// CredentialStorageType represents the storage backends for issued tokens.
type CredentialStorageType string

const (
	CredentialStorageEnvFile CredentialStorageType = "envfile"
	CredentialStorageKeyring CredentialStorageType = "keyring"
)

// Default configuration values
const (
	DefaultConfigLogFormat       = LogFormatText
	DefaultConfigServerHost      = "0.0.0.0"
	DefaultConfigServerPort      = 3000
	DefaultConfigShutdownTimeout = 5 * time.Second
	DefaultConfigStorage         = CredentialStorageEnvFile
	DefaultConfigEnvFile         = ".env"
	DefaultConfigExternalPath    = "/mcp"
	DefaultConfigGatewayHeader   = "x-api-key"

	keyringService = "dida-mcp"
)

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// UpstreamConfig holds the Dida365 open API configuration.
type UpstreamConfig struct {
	BaseURL string `json:"base_url" validate:"required,url"`
}

// OAuthConfig identifies the registered application for the
// authorization-code flow. ClientID and ClientSecret come from the
// Dida365 developer console; both are required to start a flow.
type OAuthConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri" validate:"omitempty,url"`
	Scope        string `json:"scope"`
}

// CredentialsConfig describes where issued tokens are persisted.
type CredentialsConfig struct {
	Storage CredentialStorageType `json:"storage" validate:"required,oneof=envfile keyring"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	EnvFile     string `json:"env_file,omitempty"`     // For envfile storage: path to the .env file
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier
}

// NewStore creates a token Store from the credentials configuration.
func (c *CredentialsConfig) NewStore() (tokenstore.Store, error) {
	switch c.Storage {
	case CredentialStorageEnvFile:
		return tokenstore.NewEnvFileStore(c.EnvFile)
	case CredentialStorageKeyring:
		return tokenstore.NewKeyringStore(keyringService, c.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.Storage)
	}
}

// GatewayConfig configures the request-boundary authentication.
type GatewayConfig struct {
	// APIKey is the shared secret. Empty falls back to the insecure
	// development default for the path gateway and disables the MCP
	// bearer check.
	APIKey string `json:"api_key,omitempty"`

	// Header is the secret header name, x-api-key when empty.
	Header string `json:"header,omitempty"`

	// ExternalPath is the externally advertised endpoint.
	ExternalPath string `json:"external_path" validate:"required,startswith=/"`

	// InternalPath, when set, is the internal endpoint the external path
	// is rewritten to (e.g. /sse).
	InternalPath string `json:"internal_path,omitempty" validate:"omitempty,startswith=/"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel    slog.Level        `json:"log_level"`
	LogFormat   LogFormat         `json:"log_format" validate:"oneof=text json otlp-http otlp-grpc otlp-stdout"`
	Server      ServerConfig      `json:"server"`
	Shutdown    ShutdownConfig    `json:"shutdown"`
	Upstream    UpstreamConfig    `json:"upstream"`
	OAuth       OAuthConfig       `json:"oauth"`
	Credentials CredentialsConfig `json:"credentials"`
	Gateway     GatewayConfig     `json:"gateway"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = oauth.APIBaseURL
	}
	if c.OAuth.RedirectURI == "" {
		c.OAuth.RedirectURI = oauth.DefaultRedirectURI
	}
	if c.OAuth.Scope == "" {
		c.OAuth.Scope = oauth.DefaultScope
	}
	if c.Gateway.ExternalPath == "" {
		c.Gateway.ExternalPath = DefaultConfigExternalPath
	}
	if c.Gateway.Header == "" {
		c.Gateway.Header = DefaultConfigGatewayHeader
	}
	if c.Credentials.Storage == "" {
		c.Credentials.Storage = DefaultConfigStorage
	}

	// Dynamic defaults based on storage type
	switch c.Credentials.Storage {
	case CredentialStorageEnvFile:
		if c.Credentials.EnvFile == "" {
			c.Credentials.EnvFile = DefaultConfigEnvFile
		}
	case CredentialStorageKeyring:
		if c.Credentials.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("credentials.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Credentials.KeyringUser = currentUser.Username
		}
	}

	return nil
}

// Validate validates the configuration using struct tags and
// cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	// A client secret without an ID (or vice versa) can never complete a
	// flow; catch the half-configured case early.
	if (c.OAuth.ClientID == "") != (c.OAuth.ClientSecret == "") {
		return errors.New("oauth.client_id and oauth.client_secret must be configured together")
	}

	switch c.Credentials.Storage {
	case CredentialStorageEnvFile:
		if c.Credentials.EnvFile == "" {
			return errors.New("env_file path required for envfile storage")
		}
	case CredentialStorageKeyring:
		if c.Credentials.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	if c.Gateway.InternalPath != "" && c.Gateway.InternalPath == c.Gateway.ExternalPath {
		return errors.New("gateway.internal_path must differ from gateway.external_path")
	}

	return nil
}
