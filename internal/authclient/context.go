// Package authclient tracks who is signed in for an app embedding marketgate.
//
// A Context pairs the identity provider's signed-in user with the application
// user resolved from the backend of record. Each app owns its own Context;
// there is no package-level state.
package authclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	domainauth "github.com/target/marketgate/internal/domain/auth"
	"github.com/target/marketgate/internal/ports"
	"golang.org/x/sync/singleflight"
)

// ErrNoSyncer is returned by SyncSession when no SessionSyncer is configured.
var ErrNoSyncer = errors.New("session syncer is not configured")

// ErrClosed is returned by operations on a closed Context.
var ErrClosed = errors.New("auth context is closed")

// Options groups dependencies for a Context.
type Options struct {
	Provider ports.IdentityProvider
	Resolver ports.ProfileResolver
	// Syncer is optional; it backs SyncSession.
	Syncer ports.SessionSyncer
	Logger *slog.Logger
	// OnResolveError, if set, is called for every failed resolution after it is logged.
	OnResolveError func(error)
}

// Snapshot is a consistent view of the Context state.
type Snapshot struct {
	ProviderUser *domainauth.ProviderUser
	User         *domainauth.AppUser
	Loading      bool
}

// Context holds the signed-in provider user, the resolved app user and a
// loading flag. It is safe for concurrent use.
type Context struct {
	provider ports.IdentityProvider
	resolver ports.ProfileResolver
	syncer   ports.SessionSyncer
	logger   *slog.Logger
	onError  func(error)

	mu           sync.RWMutex
	providerUser *domainauth.ProviderUser
	user         *domainauth.AppUser
	loading      bool
	// generation is bumped whenever results in flight must be dropped:
	// sign-out, logout and Close.
	generation  uint64
	started     bool
	closed      bool
	unsubscribe func()
	cancel      context.CancelFunc
	baseCtx     context.Context

	ready     chan struct{}
	readyOnce sync.Once

	refresh singleflight.Group
}

// New returns an unstarted Context. It reports Loading until the first
// provider event has been handled.
func New(opts Options) (*Context, error) {
	if opts.Provider == nil {
		return nil, errors.New("identity provider is required")
	}
	if opts.Resolver == nil {
		return nil, errors.New("profile resolver is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		provider: opts.Provider,
		resolver: opts.Resolver,
		syncer:   opts.Syncer,
		logger:   logger.With("component", "auth_context"),
		onError:  opts.OnResolveError,
		loading:  true,
		ready:    make(chan struct{}),
	}, nil
}

// Start subscribes to provider auth-state changes. Calling it again is a no-op.
// ctx bounds the resolutions triggered by provider events.
func (c *Context) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.baseCtx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	unsubscribe := c.provider.Subscribe(c.onAuthStateChanged)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		unsubscribe()
		return
	}
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
}

// Close unsubscribes from the provider and drops any result still in flight.
func (c *Context) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.generation++
	unsubscribe, cancel := c.unsubscribe, c.cancel
	c.unsubscribe, c.cancel = nil, nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	c.markReady()
}

// ProviderUser returns the provider's signed-in user, or nil.
func (c *Context) ProviderUser() *domainauth.ProviderUser {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneProviderUser(c.providerUser)
}

// User returns the resolved application user, or nil.
func (c *Context) User() *domainauth.AppUser {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneAppUser(c.user)
}

// Loading reports whether the initial auth state is still being determined.
func (c *Context) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Snapshot returns all state under one lock.
func (c *Context) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		ProviderUser: cloneProviderUser(c.providerUser),
		User:         cloneAppUser(c.user),
		Loading:      c.loading,
	}
}

// Ready is closed once the first provider event has been handled or the
// Context is closed.
func (c *Context) Ready() <-chan struct{} { return c.ready }

// Login signs in with email and password and resolves the app user before returning.
// A resolution failure is logged, not returned.
func (c *Context) Login(ctx context.Context, email, password string) error {
	if c.isClosed() {
		return ErrClosed
	}
	pu, err := c.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return &domainauth.AuthProviderError{Op: "login", Err: err}
	}
	_ = c.resolve(ctx, pu, false)
	return nil
}

// LoginWithGoogle signs in through the provider's Google flow and resolves the
// app user before returning.
func (c *Context) LoginWithGoogle(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	pu, err := c.provider.SignInWithGoogle(ctx)
	if err != nil {
		return &domainauth.AuthProviderError{Op: "login_google", Err: err}
	}
	_ = c.resolve(ctx, pu, false)
	return nil
}

// Logout signs out of the provider and clears local state. Local state is
// cleared even when the provider fails. Calling it twice is safe.
func (c *Context) Logout(ctx context.Context) error {
	err := c.provider.SignOut(ctx)

	c.mu.Lock()
	c.generation++
	c.providerUser = nil
	c.user = nil
	c.loading = false
	c.mu.Unlock()

	if err != nil {
		return &domainauth.AuthProviderError{Op: "logout", Err: err}
	}
	return nil
}

// RefreshUser force-refreshes the provider credential and re-resolves the app
// user. Concurrent callers share one refresh. On failure the prior user is kept.
func (c *Context) RefreshUser(ctx context.Context) error {
	_, err, _ := c.refresh.Do("refresh", func() (any, error) {
		pu := c.ProviderUser()
		if pu == nil {
			return nil, nil
		}
		return nil, c.resolve(ctx, pu, true)
	})
	return err
}

// SyncSession posts the current provider credential to the backend so it can
// set the session cookie.
func (c *Context) SyncSession(ctx context.Context) error {
	if c.syncer == nil {
		return ErrNoSyncer
	}
	tok, err := c.provider.Token(ctx, false)
	if err != nil {
		return &domainauth.AuthProviderError{Op: "token", Err: err}
	}
	if err := c.syncer.Sync(ctx, tok); err != nil {
		return fmt.Errorf("sync session: %w", err)
	}
	return nil
}

func (c *Context) onAuthStateChanged(pu *domainauth.ProviderUser) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("auth state handler panicked", "panic", r)
			c.finishLoading(c.currentGeneration())
		}
		c.markReady()
	}()

	c.mu.RLock()
	ctx := c.baseCtx
	c.mu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}

	if pu == nil {
		c.mu.Lock()
		if !c.closed {
			c.generation++
			c.providerUser = nil
			c.user = nil
			c.loading = false
		}
		c.mu.Unlock()
		return
	}
	_ = c.resolve(ctx, pu, false)
}

// resolve fetches the credential and the app user for pu and stores the result
// unless the generation moved on meanwhile. Failures keep the prior user.
func (c *Context) resolve(ctx context.Context, pu *domainauth.ProviderUser, force bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	gen := c.generation
	c.providerUser = cloneProviderUser(pu)
	c.mu.Unlock()

	tok, err := c.provider.Token(ctx, force)
	if err != nil {
		c.logger.WarnContext(ctx, "provider token unavailable; keeping previous user", "uid", pu.UID, "error", err)
		c.finishLoading(gen)
		perr := &domainauth.AuthProviderError{Op: "token", Err: err}
		c.reportError(perr)
		return perr
	}

	u, err := c.resolver.Resolve(ctx, tok)
	if err != nil {
		c.logger.WarnContext(ctx, "resolve app user failed; keeping previous user", "uid", pu.UID, "error", err)
		c.finishLoading(gen)
		c.reportError(err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.generation != gen {
		c.logger.DebugContext(ctx, "discarding stale app user", "uid", pu.UID)
		return nil
	}
	c.user = &u
	c.loading = false
	return nil
}

func (c *Context) finishLoading(gen uint64) {
	c.mu.Lock()
	if c.generation == gen {
		c.loading = false
	}
	c.mu.Unlock()
}

func (c *Context) currentGeneration() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

func (c *Context) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Context) markReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

func cloneProviderUser(u *domainauth.ProviderUser) *domainauth.ProviderUser {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

func cloneAppUser(u *domainauth.AppUser) *domainauth.AppUser {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

func (c *Context) reportError(err error) {
	if c.onError != nil {
		c.onError(err)
	}
}
