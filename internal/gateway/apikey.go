package gateway

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	// DefaultHeaderName is the header carrying the shared secret.
	DefaultHeaderName = "x-api-key"

	// DefaultExternalPath is the externally advertised endpoint path.
	DefaultExternalPath = "/mcp"

	// InsecureDefaultKey is the development fallback used when no secret
	// is configured. Deliberately weak; startup logs a loud warning so it
	// never goes unnoticed in a production configuration.
	InsecureDefaultKey = "123"
)

// Config describes the path-scoped API key gateway.
type Config struct {
	// HeaderName is the expected secret header, DefaultHeaderName when
	// empty. Lookup is case-insensitive.
	HeaderName string

	// ExpectedKey is the shared secret every guarded request must present.
	ExpectedKey string

	// ExternalPath scopes the check: only requests under it (or under
	// InternalPath) are inspected.
	ExternalPath string

	// InternalPath, when set, is substituted for the ExternalPath prefix
	// before the request is forwarded.
	InternalPath string
}

// APIKeyGateway returns middleware enforcing Config. Requests outside the
// guarded paths pass through untouched. A wrong or missing secret ends the
// request with a plain-text 401 and no downstream call. A valid secret on
// the external path is forwarded with the path rewritten to the internal
// one when configured.
func APIKeyGateway(cfg Config) func(http.Handler) http.Handler {
	headerName := cfg.HeaderName
	if headerName == "" {
		headerName = DefaultHeaderName
	}
	externalPath := cfg.ExternalPath
	if externalPath == "" {
		externalPath = DefaultExternalPath
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path

			guarded := strings.HasPrefix(path, externalPath) ||
				(cfg.InternalPath != "" && strings.HasPrefix(path, cfg.InternalPath))
			if !guarded {
				next.ServeHTTP(w, r)
				return
			}

			// Header.Get canonicalizes the name, so the lookup is
			// case-insensitive regardless of how the caller spells it.
			if r.Header.Get(headerName) != cfg.ExpectedKey {
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, fmt.Sprintf("Unauthorized: missing or invalid %s", strings.ToLower(headerName)))
				return
			}

			if cfg.InternalPath != "" && strings.HasPrefix(path, externalPath) {
				r2 := r.Clone(r.Context())
				r2.URL.Path = cfg.InternalPath + strings.TrimPrefix(path, externalPath)
				// RawPath held the escaped form of the old path; drop it so
				// the rewritten Path is authoritative for routing.
				r2.URL.RawPath = ""
				next.ServeHTTP(w, r2)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
