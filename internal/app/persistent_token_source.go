package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/oauth2"

	"github.com/didatodolist/dida-mcp/internal/tokenstore"
)

// TokenSourceFactory creates an oauth2.TokenSource from stored credentials.
type TokenSourceFactory func(creds tokenstore.Credentials) oauth2.TokenSource

// PersistentTokenSource wraps an oauth2.TokenSource with credential
// persistence: tokens renewed by the underlying source are written back to
// the Store, so a rotated refresh token survives process restarts.
// Initialization is deferred to avoid I/O during application startup.
type PersistentTokenSource struct {
	factory TokenSourceFactory
	store   tokenstore.Store

	tokenSource func() (oauth2.TokenSource, error)

	last    atomic.Pointer[tokenstore.Credentials]
	writeMu sync.Mutex
}

// Compile-time check to ensure PersistentTokenSource implements oauth2.TokenSource
var _ oauth2.TokenSource = (*PersistentTokenSource)(nil)

// NewPersistentTokenSource creates a PersistentTokenSource.
// No I/O is performed until the first Token call.
func NewPersistentTokenSource(factory TokenSourceFactory, store tokenstore.Store) (*PersistentTokenSource, error) {
	if factory == nil {
		return nil, fmt.Errorf("missing token source factory")
	}
	if store == nil {
		return nil, fmt.Errorf("missing token store")
	}

	p := &PersistentTokenSource{
		factory: factory,
		store:   store,
	}

	p.tokenSource = sync.OnceValues(p.createTokenSource)

	return p, nil
}

// createTokenSource performs one-time initialization of the TokenSource.
func (p *PersistentTokenSource) createTokenSource() (oauth2.TokenSource, error) {
	// oauth2.TokenSource.Token() has no context parameter (legacy
	// interface limitation), so the initial read uses the background
	// context.
	ctx := context.Background()

	initial, err := p.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored credentials: %w", err)
	}

	// Remember the initial credentials to avoid an unnecessary write-back
	// on the first call to Token()
	p.last.Store(&initial)

	return p.factory(initial), nil
}

// Token returns a valid token, refreshing if necessary and persisting
// renewed credentials.
func (p *PersistentTokenSource) Token() (*oauth2.Token, error) {
	ts, err := p.tokenSource()
	if err != nil {
		return nil, err
	}

	fresh, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("getting token from token source: %w", err)
	}

	current := tokenstore.Credentials{
		AccessToken:  fresh.AccessToken,
		RefreshToken: fresh.RefreshToken,
	}

	// Hot path: lock-free atomic read for minimal contention
	lastPtr := p.last.Load()
	if lastPtr != nil && *lastPtr == current {
		return fresh, nil
	}

	// oauth2.TokenSource.Token() is contractually thread-safe, so
	// concurrent callers receive identical tokens. Worst case: multiple
	// goroutines write the same credentials.
	if current.AccessToken != "" {
		p.writeMu.Lock()
		ctx := context.Background()
		if err := p.store.Save(ctx, current); err != nil {
			// A failed write-back is data loss: the access token still
			// works, but future refreshes start from stale storage.
			slog.ErrorContext(ctx, "failed to persist renewed credentials", "error", err)
		} else {
			// Update the cache only on success, allowing retry on the
			// next call.
			p.last.Store(&current)
		}
		p.writeMu.Unlock()
	}

	return fresh, nil
}
