package authclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/marketgate/internal/adapters/profileapi"
	domainauth "github.com/target/marketgate/internal/domain/auth"
	mocks "github.com/target/marketgate/internal/mocks/auth"
)

var shopper = &domainauth.ProviderUser{UID: "uid-1", Email: "shopper@shop.test"}

func newContext(t *testing.T, p *mocks.FakeIdentityProvider, r mocks.ProfileResolverFunc) *Context {
	t.Helper()
	c, err := New(Options{Provider: p, Resolver: r})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func staticResolver(u domainauth.AppUser) mocks.ProfileResolverFunc {
	return func(context.Context, string) (domainauth.AppUser, error) { return u, nil }
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Resolver: staticResolver(domainauth.AppUser{})})
	require.Error(t, err)
	_, err = New(Options{Provider: &mocks.FakeIdentityProvider{}})
	require.Error(t, err)
}

func TestContext_StartSubscribesOnce(t *testing.T) {
	p := &mocks.FakeIdentityProvider{}
	c := newContext(t, p, staticResolver(domainauth.AppUser{ID: "u-1"}))

	assert.True(t, c.Loading())
	c.Start(context.Background())
	c.Start(context.Background())
	assert.Equal(t, 1, p.Subscribers())

	p.Emit(shopper)
	<-c.Ready()
	snap := c.Snapshot()
	assert.False(t, snap.Loading)
	assert.Equal(t, "uid-1", snap.ProviderUser.UID)
	assert.Equal(t, "u-1", snap.User.ID)

	c.Close()
	assert.Zero(t, p.Subscribers())
}

func TestContext_SignedOutEventClearsState(t *testing.T) {
	p := &mocks.FakeIdentityProvider{}
	c := newContext(t, p, staticResolver(domainauth.AppUser{ID: "u-1"}))
	c.Start(context.Background())

	p.Emit(shopper)
	require.NotNil(t, c.User())

	p.Emit(nil)
	assert.Nil(t, c.User())
	assert.Nil(t, c.ProviderUser())
	assert.False(t, c.Loading())
}

// A 500 from /api/me keeps the previously resolved user and ends loading.
func TestContext_ProfileServerErrorKeepsUser(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"user":{"id":"u-1","email":"shopper@shop.test","role":"CUSTOMER"}}`))
	}))
	defer srv.Close()

	resolver, err := profileapi.New(profileapi.Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)

	var failures atomic.Int32
	p := &mocks.FakeIdentityProvider{}
	c, err := New(Options{
		Provider:       p,
		Resolver:       resolver,
		OnResolveError: func(error) { failures.Add(1) },
	})
	require.NoError(t, err)
	defer c.Close()
	c.Start(context.Background())

	p.Emit(shopper)
	require.NotNil(t, c.User())
	assert.Equal(t, domainauth.RoleCustomer, c.User().Role)

	fail.Store(true)

	// Event-driven resolution: failure is logged only.
	p.Emit(shopper)
	assert.Equal(t, "u-1", c.User().ID)
	assert.False(t, c.Loading())

	// Explicit refresh surfaces the error but still keeps the user.
	err = c.RefreshUser(context.Background())
	var pfe *domainauth.ProfileFetchError
	require.True(t, errors.As(err, &pfe))
	assert.Equal(t, http.StatusInternalServerError, pfe.Status)
	assert.Equal(t, "u-1", c.User().ID)
	assert.False(t, c.Loading())
	assert.Equal(t, int32(2), failures.Load())
}

func TestContext_FirstResolveFailureEndsLoading(t *testing.T) {
	p := &mocks.FakeIdentityProvider{}
	c := newContext(t, p, func(context.Context, string) (domainauth.AppUser, error) {
		return domainauth.AppUser{}, &domainauth.ProfileFetchError{Status: http.StatusInternalServerError}
	})
	c.Start(context.Background())

	p.Emit(shopper)
	assert.False(t, c.Loading())
	assert.Nil(t, c.User())
	assert.NotNil(t, c.ProviderUser())
}

func TestContext_TokenFailureKeepsUser(t *testing.T) {
	var tokenErr atomic.Bool
	p := &mocks.FakeIdentityProvider{TokenFunc: func(context.Context, bool) (string, error) {
		if tokenErr.Load() {
			return "", errors.New("network down")
		}
		return "tok", nil
	}}
	c := newContext(t, p, staticResolver(domainauth.AppUser{ID: "u-1"}))
	c.Start(context.Background())
	p.Emit(shopper)

	tokenErr.Store(true)
	err := c.RefreshUser(context.Background())
	var ape *domainauth.AuthProviderError
	require.True(t, errors.As(err, &ape))
	assert.Equal(t, "token", ape.Op)
	assert.Equal(t, "u-1", c.User().ID)
}

func TestContext_ResolverPanicIsContained(t *testing.T) {
	p := &mocks.FakeIdentityProvider{}
	c := newContext(t, p, func(context.Context, string) (domainauth.AppUser, error) {
		panic("resolver exploded")
	})
	c.Start(context.Background())

	require.NotPanics(t, func() { p.Emit(shopper) })
	assert.False(t, c.Loading())
	<-c.Ready()
}

func TestContext_LoginResolvesBeforeReturning(t *testing.T) {
	var gotForce []bool
	p := &mocks.FakeIdentityProvider{TokenFunc: func(_ context.Context, force bool) (string, error) {
		gotForce = append(gotForce, force)
		return "tok", nil
	}}
	c := newContext(t, p, func(_ context.Context, tok string) (domainauth.AppUser, error) {
		assert.Equal(t, "tok", tok)
		return domainauth.AppUser{ID: "u-9", Role: domainauth.RoleSellerOwner}, nil
	})

	require.NoError(t, c.Login(context.Background(), "seller@shop.test", "pw"))
	require.NotNil(t, c.User())
	assert.Equal(t, "u-9", c.User().ID)
	assert.Equal(t, "seller@shop.test", c.ProviderUser().Email)
	assert.Equal(t, []bool{false}, gotForce)

	require.NoError(t, c.LoginWithGoogle(context.Background()))
	assert.Equal(t, "uid-google", c.ProviderUser().UID)
}

func TestContext_LoginProviderErrors(t *testing.T) {
	providerErr := errors.New("wrong password")
	p := &mocks.FakeIdentityProvider{
		SignInWithPasswordFunc: func(context.Context, string, string) (*domainauth.ProviderUser, error) {
			return nil, providerErr
		},
		SignInWithGoogleFunc: func(context.Context) (*domainauth.ProviderUser, error) {
			return nil, providerErr
		},
	}
	c := newContext(t, p, staticResolver(domainauth.AppUser{}))

	err := c.Login(context.Background(), "a@shop.test", "nope")
	var ape *domainauth.AuthProviderError
	require.True(t, errors.As(err, &ape))
	assert.Equal(t, "login", ape.Op)
	assert.ErrorIs(t, err, providerErr)

	err = c.LoginWithGoogle(context.Background())
	require.True(t, errors.As(err, &ape))
	assert.Equal(t, "login_google", ape.Op)
	assert.Nil(t, c.User())
}

func TestContext_LogoutIsIdempotent(t *testing.T) {
	p := &mocks.FakeIdentityProvider{}
	c := newContext(t, p, staticResolver(domainauth.AppUser{ID: "u-1"}))
	require.NoError(t, c.Login(context.Background(), "a@shop.test", "pw"))
	require.NotNil(t, c.User())

	require.NoError(t, c.Logout(context.Background()))
	first := c.Snapshot()
	require.NoError(t, c.Logout(context.Background()))
	second := c.Snapshot()

	assert.Equal(t, first, second)
	assert.Nil(t, second.User)
	assert.Nil(t, second.ProviderUser)
	assert.False(t, second.Loading)
	assert.Equal(t, 2, p.SignOuts())
}

func TestContext_LogoutProviderErrorStillClears(t *testing.T) {
	p := &mocks.FakeIdentityProvider{SignOutFunc: func(context.Context) error { return errors.New("revoke failed") }}
	c := newContext(t, p, staticResolver(domainauth.AppUser{ID: "u-1"}))
	require.NoError(t, c.Login(context.Background(), "a@shop.test", "pw"))

	err := c.Logout(context.Background())
	var ape *domainauth.AuthProviderError
	require.True(t, errors.As(err, &ape))
	assert.Equal(t, "logout", ape.Op)
	assert.Nil(t, c.User())
}

func TestContext_LogoutDropsInFlightResolution(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	p := &mocks.FakeIdentityProvider{}
	c := newContext(t, p, func(context.Context, string) (domainauth.AppUser, error) {
		close(entered)
		<-release
		return domainauth.AppUser{ID: "late"}, nil
	})
	c.Start(context.Background())

	done := make(chan struct{})
	go func() {
		p.Emit(shopper)
		close(done)
	}()
	<-entered
	require.NoError(t, c.Logout(context.Background()))
	close(release)
	<-done

	assert.Nil(t, c.User())
}

func TestContext_CloseDiscardsLateResults(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	p := &mocks.FakeIdentityProvider{}
	c, err := New(Options{Provider: p, Resolver: mocks.ProfileResolverFunc(func(context.Context, string) (domainauth.AppUser, error) {
		close(entered)
		<-release
		return domainauth.AppUser{ID: "late"}, nil
	})})
	require.NoError(t, err)
	c.Start(context.Background())

	done := make(chan struct{})
	go func() {
		p.Emit(shopper)
		close(done)
	}()
	<-entered
	c.Close()
	close(release)
	<-done

	assert.Nil(t, c.User())
	assert.ErrorIs(t, c.Login(context.Background(), "a@shop.test", "pw"), ErrClosed)
	// Start after Close stays closed.
	c.Start(context.Background())
	assert.Zero(t, p.Subscribers())
}

func TestContext_RefreshUserIsSingleFlight(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	p := &mocks.FakeIdentityProvider{}
	resolver := mocks.ProfileResolverFunc(func(context.Context, string) (domainauth.AppUser, error) {
		if calls.Add(1) > 1 {
			<-release
		}
		return domainauth.AppUser{ID: "u-1"}, nil
	})
	c, err := New(Options{Provider: p, Resolver: resolver})
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Login(context.Background(), "a@shop.test", "pw"))
	require.Equal(t, int32(1), calls.Load())

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.RefreshUser(context.Background()))
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(2), calls.Load())
}

func TestContext_RefreshWithoutUserIsNoop(t *testing.T) {
	p := &mocks.FakeIdentityProvider{TokenFunc: func(context.Context, bool) (string, error) {
		t.Fatal("token should not be requested")
		return "", nil
	}}
	c := newContext(t, p, staticResolver(domainauth.AppUser{}))
	require.NoError(t, c.RefreshUser(context.Background()))
}

func TestContext_SyncSession(t *testing.T) {
	p := &mocks.FakeIdentityProvider{}
	var synced string
	c, err := New(Options{
		Provider: p,
		Resolver: staticResolver(domainauth.AppUser{}),
		Syncer: mocks.SessionSyncerFunc(func(_ context.Context, tok string) error {
			synced = tok
			return nil
		}),
	})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SyncSession(context.Background()))
	assert.Equal(t, "provider-token", synced)

	noSync := newContext(t, p, staticResolver(domainauth.AppUser{}))
	assert.ErrorIs(t, noSync.SyncSession(context.Background()), ErrNoSyncer)
}
