package oauthclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/marketgate/internal/domain/auth"
)

type fakeIdP struct {
	t         *testing.T
	srv       *httptest.Server
	refreshes atomic.Int32
	revoked   atomic.Value
	revokeErr bool
	mu        sync.Mutex
	verifier  string
}

func idToken(t *testing.T, sub, email string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub, "email": email, "name": "Ada Lovelace", "picture": "https://cdn/ada.png",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("idp-secret"))
	require.NoError(t, err)
	return raw
}

func newFakeIdP(t *testing.T) *fakeIdP {
	f := &fakeIdP{t: t}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		resp := map[string]any{"token_type": "Bearer", "expires_in": 3600, "refresh_token": "refresh-1"}
		switch r.PostForm.Get("grant_type") {
		case "password":
			if r.PostForm.Get("password") != "pw" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			resp["access_token"] = "access-pw"
			resp["id_token"] = idToken(t, "uid-pw", r.PostForm.Get("username"))
		case "authorization_code":
			f.mu.Lock()
			f.verifier = r.PostForm.Get("code_verifier")
			f.mu.Unlock()
			if r.PostForm.Get("code") != "code-123" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			resp["access_token"] = "access-google"
			resp["id_token"] = idToken(t, "uid-google", "G@Example.com")
		case "refresh_token":
			n := f.refreshes.Add(1)
			resp["access_token"] = "access-refreshed"
			resp["id_token"] = idToken(t, "uid-pw", "refreshed@shop.test")
			resp["refresh_token"] = "refresh-" + string(rune('1'+n))
		default:
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/revoke", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.revoked.Store(r.PostForm.Get("token"))
		if f.revokeErr {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIdP) provider(t *testing.T, fetcher CodeFetcher) *Provider {
	t.Helper()
	p, err := NewProvider(Config{
		ClientID:    "web",
		AuthURL:     f.srv.URL + "/authorize",
		TokenURL:    f.srv.URL + "/token",
		RedirectURL: "http://localhost/callback",
		Scopes:      []string{"openid", "email"},
		RevokeURL:   f.srv.URL + "/revoke",
		HTTPClient:  f.srv.Client(),
		CodeFetcher: fetcher,
	})
	require.NoError(t, err)
	return p
}

func TestProvider_PasswordSignInAndToken(t *testing.T) {
	idp := newFakeIdP(t)
	p := idp.provider(t, nil)
	ctx := context.Background()

	_, err := p.Token(ctx, false)
	require.ErrorIs(t, err, ErrNotSignedIn)

	u, err := p.SignInWithPassword(ctx, "Shopper@Shop.test", "pw")
	require.NoError(t, err)
	assert.Equal(t, "uid-pw", u.UID)
	assert.Equal(t, "shopper@shop.test", u.Email)
	assert.Equal(t, "Ada Lovelace", u.DisplayName)
	assert.Equal(t, "https://cdn/ada.png", u.PhotoURL)

	tok, err := p.Token(ctx, false)
	require.NoError(t, err)
	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(tok, claims)
	require.NoError(t, err)
	assert.Equal(t, "Shopper@Shop.test", claims["email"])
	assert.Zero(t, idp.refreshes.Load())

	refreshed, err := p.Token(ctx, true)
	require.NoError(t, err)
	assert.NotEqual(t, tok, refreshed)
	assert.Equal(t, int32(1), idp.refreshes.Load())

	// The refreshed credential is reused until it expires.
	again, err := p.Token(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, refreshed, again)
	assert.Equal(t, int32(1), idp.refreshes.Load())
}

func TestProvider_PasswordSignInRejected(t *testing.T) {
	idp := newFakeIdP(t)
	p := idp.provider(t, nil)

	_, err := p.SignInWithPassword(context.Background(), "a@shop.test", "wrong")
	require.Error(t, err)
	_, err = p.SignInWithPassword(context.Background(), "", "")
	require.Error(t, err)
}

func TestProvider_GoogleSignInWithPKCE(t *testing.T) {
	idp := newFakeIdP(t)
	var challenge string
	p := idp.provider(t, CodeFetcherFunc(func(_ context.Context, authURL, state string) (string, error) {
		u, err := url.Parse(authURL)
		require.NoError(t, err)
		q := u.Query()
		assert.Equal(t, state, q.Get("state"))
		assert.Equal(t, "S256", q.Get("code_challenge_method"))
		assert.Equal(t, "offline", q.Get("access_type"))
		assert.Equal(t, "select_account", q.Get("prompt"))
		challenge = q.Get("code_challenge")
		return "code-123", nil
	}))

	u, err := p.SignInWithGoogle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "uid-google", u.UID)
	assert.Equal(t, "g@example.com", u.Email)
	assert.NotEmpty(t, challenge)
	idp.mu.Lock()
	assert.NotEmpty(t, idp.verifier)
	idp.mu.Unlock()
}

func TestProvider_GoogleSignInFailures(t *testing.T) {
	idp := newFakeIdP(t)

	_, err := idp.provider(t, nil).SignInWithGoogle(context.Background())
	require.Error(t, err)

	cancelled := idp.provider(t, CodeFetcherFunc(func(context.Context, string, string) (string, error) {
		return "", errors.New("popup closed")
	}))
	_, err = cancelled.SignInWithGoogle(context.Background())
	require.ErrorContains(t, err, "popup closed")

	badCode := idp.provider(t, CodeFetcherFunc(func(context.Context, string, string) (string, error) {
		return "nope", nil
	}))
	_, err = badCode.SignInWithGoogle(context.Background())
	require.Error(t, err)
}

func TestProvider_SignOut(t *testing.T) {
	idp := newFakeIdP(t)
	p := idp.provider(t, nil)
	ctx := context.Background()

	var (
		mu     sync.Mutex
		events []*domainauth.ProviderUser
	)
	unsubscribe := p.Subscribe(func(u *domainauth.ProviderUser) {
		mu.Lock()
		events = append(events, u)
		mu.Unlock()
	})
	defer unsubscribe()

	_, err := p.SignInWithPassword(ctx, "a@shop.test", "pw")
	require.NoError(t, err)
	require.NoError(t, p.SignOut(ctx))
	assert.Equal(t, "refresh-1", idp.revoked.Load())

	_, err = p.Token(ctx, false)
	require.ErrorIs(t, err, ErrNotSignedIn)

	// Signing out again has nothing to revoke.
	require.NoError(t, p.SignOut(ctx))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 4
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Nil(t, events[0])
	assert.Equal(t, "uid-pw", events[1].UID)
	assert.Nil(t, events[2])
}

func TestProvider_SignOutRevokeFailureStillClears(t *testing.T) {
	idp := newFakeIdP(t)
	idp.revokeErr = true
	p := idp.provider(t, nil)
	ctx := context.Background()

	_, err := p.SignInWithPassword(ctx, "a@shop.test", "pw")
	require.NoError(t, err)
	require.Error(t, p.SignOut(ctx))

	_, err = p.Token(ctx, false)
	require.ErrorIs(t, err, ErrNotSignedIn)
}

func TestNewProvider_Validation(t *testing.T) {
	_, err := NewProvider(Config{TokenURL: "https://idp/token"})
	require.Error(t, err)
	_, err = NewProvider(Config{ClientID: "web"})
	require.Error(t, err)
}
