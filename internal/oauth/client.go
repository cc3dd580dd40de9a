package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

var (
	// ErrUnauthenticated is returned when an operation needs an access
	// token and none has been obtained.
	ErrUnauthenticated = errors.New("no access token available")

	// ErrNoRefreshToken is returned by Refresh when the session holds no
	// refresh token. No network call is made in that case.
	ErrNoRefreshToken = errors.New("no refresh token available")
)

// Client drives the Dida365 authorization-code flow and owns the session
// state it produces. Client credentials and the redirect URI are immutable
// after construction; token fields are only populated from successful
// exchange or refresh responses.
//
// Client is not safe for concurrent use. The interactive flow is a
// single-flight operation and callers must serialize it.
type Client struct {
	cfg        *oauth2.Config
	state      string
	scope      string
	httpClient *http.Client

	accessToken  string
	refreshToken string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for token endpoint calls.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithEndpoint overrides the OAuth2 endpoints, primarily for tests.
func WithEndpoint(ep oauth2.Endpoint) ClientOption {
	return func(c *Client) {
		c.cfg.Endpoint = ep
	}
}

// WithScope sets the scope requested during authorization instead of
// DefaultScope.
func WithScope(scope string) ClientOption {
	return func(c *Client) {
		c.scope = scope
	}
}

// NewClient creates a Client for the registered application. Missing
// client credentials are a configuration error: no flow can start without
// them.
func NewClient(clientID, clientSecret, redirectURI string, opts ...ClientOption) (*Client, error) {
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("client_id and client_secret are required; set oauth.client_id and oauth.client_secret (DIDA_CLIENT_ID / DIDA_CLIENT_SECRET)")
	}
	if redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}

	c := &Client{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Endpoint:     Endpoint,
		},
		state:      uuid.NewString(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// AuthCodeURL assembles the authorization endpoint URL with client_id,
// scope, state, redirect_uri and response_type=code, all percent-encoded.
// Pure function of session state: the same Client always produces the same
// URL for a given scope.
func (c *Client) AuthCodeURL(scope string) string {
	if scope == "" {
		scope = c.scope
	}
	if scope == "" {
		scope = DefaultScope
	}

	cfg := *c.cfg
	cfg.Scopes = strings.Fields(scope)
	return cfg.AuthCodeURL(c.state)
}

// callbackPort derives the listener bind port from the redirect URI: its
// explicit port if present, otherwise the scheme default, otherwise the
// registered fallback.
func (c *Client) callbackPort() int {
	u, err := url.Parse(c.cfg.RedirectURL)
	if err != nil {
		return defaultCallbackPort
	}

	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			return n
		}
	}

	switch u.Scheme {
	case "https":
		return 443
	case "http":
		return 80
	}
	return defaultCallbackPort
}

// Authorize runs the full interactive flow: display (and optionally open)
// the authorization URL, capture the redirected code on a local listener,
// and exchange it for tokens. The wait is bounded by the context deadline,
// defaulting to DefaultAuthorizeTimeout when the caller sets none.
func (c *Client) Authorize(ctx context.Context, openBrowser bool) error {
	authURL := c.AuthCodeURL("")

	slog.InfoContext(ctx, "authorization required, open this URL in a browser", "url", authURL)
	if openBrowser {
		if err := openInBrowser(authURL); err != nil {
			slog.WarnContext(ctx, "could not open browser, open the URL manually", "error", err)
		}
	}

	listener := NewCallbackListener(c.callbackPort())
	if err := listener.Start(); err != nil {
		return fmt.Errorf("starting callback listener: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = listener.Shutdown(shutdownCtx)
	}()
	slog.InfoContext(ctx, "callback listener started", "addr", listener.Addr())

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultAuthorizeTimeout)
		defer cancel()
	}

	code, err := listener.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for authorization code: %w", err)
	}
	slog.InfoContext(ctx, "authorization code received")

	return c.Exchange(ctx, code)
}

// Exchange trades an authorization code for tokens via a form-encoded POST
// with client_id, client_secret, code, grant_type=authorization_code and
// redirect_uri. Session fields are only updated when the response carries
// a non-empty access token; an absent refresh token is tolerated. Non-2xx
// responses are logged with whatever structured detail the body provides.
func (c *Client) Exchange(ctx context.Context, code string) error {
	tok, err := c.cfg.Exchange(c.oauthContext(ctx), code)
	if err != nil {
		logTokenEndpointError(ctx, "token exchange failed", err)
		return fmt.Errorf("token exchange: %w", err)
	}

	c.accessToken = tok.AccessToken
	c.refreshToken = tok.RefreshToken
	if c.refreshToken == "" {
		slog.InfoContext(ctx, "token response carried no refresh_token; refresh will be unavailable")
	}

	return nil
}

// Refresh renews the access token using the stored refresh token. Without
// one it fails immediately, before any network call. The refresh token is
// replaced only when the server rotates it.
func (c *Client) Refresh(ctx context.Context) error {
	if c.refreshToken == "" {
		return ErrNoRefreshToken
	}

	ts := c.cfg.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: c.refreshToken})
	tok, err := ts.Token()
	if err != nil {
		logTokenEndpointError(ctx, "token refresh failed", err)
		return fmt.Errorf("token refresh: %w", err)
	}

	c.accessToken = tok.AccessToken
	if tok.RefreshToken != "" && tok.RefreshToken != c.refreshToken {
		c.refreshToken = tok.RefreshToken
	}

	return nil
}

// AuthHeaders returns the headers for authenticated Dida365 API calls.
func (c *Client) AuthHeaders() (http.Header, error) {
	if c.accessToken == "" {
		return nil, ErrUnauthenticated
	}

	h := make(http.Header)
	h.Set("Authorization", "Bearer "+c.accessToken)
	h.Set("Content-Type", "application/json")
	return h, nil
}

// AccessToken returns the current access token, empty when
// unauthenticated.
func (c *Client) AccessToken() string {
	return c.accessToken
}

// RefreshToken returns the current refresh token, possibly empty.
func (c *Client) RefreshToken() string {
	return c.refreshToken
}

// SetTokens seeds the session from previously persisted credentials.
func (c *Client) SetTokens(accessToken, refreshToken string) {
	c.accessToken = accessToken
	c.refreshToken = refreshToken
}

// oauthContext injects the configured HTTP client into ctx the way the
// oauth2 package expects.
func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// logTokenEndpointError logs a failed token endpoint call. HTTP-level
// rejections carry the parsed OAuth error fields and the raw body;
// transport failures only have the wrapped error.
func logTokenEndpointError(ctx context.Context, msg string, err error) {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		status := 0
		if rErr.Response != nil {
			status = rErr.Response.StatusCode
		}
		slog.ErrorContext(ctx, msg,
			"status", status,
			"error_code", rErr.ErrorCode,
			"error_description", rErr.ErrorDescription,
			"body", string(rErr.Body),
		)
		return
	}

	slog.ErrorContext(ctx, msg, "error", err)
}
