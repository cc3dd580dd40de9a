package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// DefaultAuthorizeTimeout bounds how long Authorize waits for the browser
// redirect to deliver an authorization code.
const DefaultAuthorizeTimeout = 300 * time.Second

// ErrCallbackTimeout is returned when no authorization code arrives before
// the listener's deadline.
var ErrCallbackTimeout = errors.New("timed out waiting for authorization code")

const successPage = `<!DOCTYPE html>
<html>
<head><title>Authorization Successful</title></head>
<body>
<h1>Authorization Success!</h1>
<p>You can close this window and return to the terminal.</p>
<script>window.close();</script>
</body>
</html>
`

const failurePage = `<!DOCTYPE html>
<html>
<head><title>Authorization Failed</title></head>
<body>
<h1>Authorization Failed!</h1>
<p>No authorization code received. Please retry in the browser.</p>
</body>
</html>
`

// CallbackListener is a one-shot local HTTP listener whose sole job is to
// capture exactly one authorization code from the redirected browser
// request. The captured code is scoped to the listener instance: two
// listener lifetimes never share a result slot.
//
// Requests without a code parameter (browser retries, favicon fetches) get
// a 400 page and leave the listener accepting; the first request carrying
// a code gets the success page and wins the slot. Everything after that is
// rejected so the delivered value is never altered.
type CallbackListener struct {
	server *http.Server
	addr   string

	code  chan string
	once  sync.Once
	errCh <-chan error
}

// NewCallbackListener creates a listener for localhost:port. Port 0 binds
// an ephemeral port, available via Addr after Start.
func NewCallbackListener(port int) *CallbackListener {
	l := &CallbackListener{
		code: make(chan string, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", l.handleCallback)

	l.server = &http.Server{
		Addr:        net.JoinHostPort("localhost", strconv.Itoa(port)),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	return l
}

// handleCallback serves one redirect request. Only a request carrying a
// code parameter ends the listening state.
func (l *CallbackListener) handleCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	code := r.URL.Query().Get("code")
	if code == "" {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, failurePage)
		return
	}

	captured := false
	l.once.Do(func() {
		l.code <- code
		captured = true
	})

	if !captured {
		// A code was already delivered to the waiting caller.
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, failurePage)
		return
	}

	_, _ = io.WriteString(w, successPage)
}

// Start binds the listener synchronously so port conflicts surface
// immediately, then serves in the background. The caller must call
// Shutdown to release the port.
func (l *CallbackListener) Start() error {
	listener, err := net.Listen("tcp", l.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.server.Addr, err)
	}
	l.addr = listener.Addr().String()

	errCh := make(chan error, 1)
	go func() {
		err := l.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	l.errCh = errCh

	return nil
}

// Addr returns the bound address after Start.
func (l *CallbackListener) Addr() string {
	return l.addr
}

// Wait blocks until a code is captured, the listener fails, or ctx is
// done. A deadline expiry is reported as ErrCallbackTimeout.
func (l *CallbackListener) Wait(ctx context.Context) (string, error) {
	select {
	case code := <-l.code:
		return code, nil
	case err := <-l.errCh:
		if err == nil {
			return "", errors.New("callback listener closed before a code was captured")
		}
		return "", fmt.Errorf("callback listener failed: %w", err)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrCallbackTimeout
		}
		return "", ctx.Err()
	}
}

// Shutdown performs graceful shutdown of the listener.
func (l *CallbackListener) Shutdown(ctx context.Context) error {
	if err := l.server.Shutdown(ctx); err != nil {
		_ = l.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
