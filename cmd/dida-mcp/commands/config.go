package commands

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/didatodolist/dida-mcp/internal/app"
)

// envPrefix is stripped from environment variables during config loading (e.g., DIDA_MCP_SERVER__HOST → server.host)
const envPrefix = "DIDA_MCP_"

// legacyEnvKeys maps flat environment variables from earlier releases to
// their config keys. They apply only when the key was not set through a
// prefixed variable or config file.
var legacyEnvKeys = map[string]string{
	"DIDA_CLIENT_ID":     "oauth.client_id",
	"DIDA_CLIENT_SECRET": "oauth.client_secret",
	"DIDA_REDIRECT_URI":  "oauth.redirect_uri",
	"MCP_API_KEY":        "gateway.api_key",
}

// loadConfig loads application configuration from various sources with precedence:
// config file → environment variables → CLI flags → defaults
func loadConfig(configPath string, cmd *cli.Command, environFunc func() []string) (*app.Config, error) {
	k := koanf.New(".")

	// 1. Load from config file if provided
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// 2. Load from environment variables
	envProvider := env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			stripped := strings.TrimPrefix(key, envPrefix)
			nested := strings.ToLower(strings.ReplaceAll(stripped, "__", "."))
			return nested, value
		},
		EnvironFunc: environFunc,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	// 3. Overlay legacy flat variables for keys still unset
	if legacy := collectLegacyEnv(k, environFunc); len(legacy) > 0 {
		if err := k.Load(confmap.Provider(legacy, "."), nil); err != nil {
			return nil, fmt.Errorf("loading legacy environment variables: %w", err)
		}
	}

	// 4. Load from CLI flags if provided
	if cmd != nil {
		flagValues := extractAndTransformFlags(cmd)
		if err := k.Load(confmap.Provider(flagValues, "."), nil); err != nil {
			return nil, fmt.Errorf("loading CLI flags: %w", err)
		}
	}

	config := &app.Config{}
	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// collectLegacyEnv returns config values from legacy flat environment
// variables, skipping keys already populated by a higher-fidelity source.
func collectLegacyEnv(k *koanf.Koanf, environFunc func() []string) map[string]any {
	values := make(map[string]any)

	for _, pair := range environFunc() {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || value == "" {
			continue
		}
		key, isLegacy := legacyEnvKeys[name]
		if !isLegacy || k.Exists(key) {
			continue
		}
		values[key] = value
	}

	return values
}

// extractAndTransformFlags transforms CLI flag names to match config structure.
// Includes parent flags. Examples: --server--host → server.host, --log-level → log_level
func extractAndTransformFlags(cmd *cli.Command) map[string]any {
	values := make(map[string]any)

	// FlagNames() includes flags from parent commands (via lineage)
	for _, name := range cmd.FlagNames() {
		// Skip unset flags to preserve precedence from earlier config sources
		if !cmd.IsSet(name) {
			continue
		}

		if value := cmd.Value(name); value != nil {
			key := strings.ReplaceAll(name, "--", ".")
			key = strings.ReplaceAll(key, "-", "_")
			values[key] = value
		}
	}

	return values
}
