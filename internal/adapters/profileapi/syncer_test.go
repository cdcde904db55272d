package profileapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/marketgate/internal/domain/auth"
)

func TestSyncer_SyncStoresCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/sync", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["token"] != "provider-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid provider token"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "auth_token", Value: "session", Path: "/", MaxAge: 3600})
		_, _ = w.Write([]byte(`{"role":"CUSTOMER","expires_in":3600}`))
	}))
	defer srv.Close()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	s, err := NewSyncer(SyncerOptions{BaseURL: srv.URL, HTTPClient: &http.Client{Jar: jar}})
	require.NoError(t, err)

	require.NoError(t, s.Sync(context.Background(), "provider-token"))
	u, _ := url.Parse(srv.URL)
	require.Len(t, jar.Cookies(u), 1)

	err = s.Sync(context.Background(), "forged")
	var pfe *domainauth.ProfileFetchError
	require.True(t, errors.As(err, &pfe))
	assert.Equal(t, http.StatusUnauthorized, pfe.Status)
	assert.Equal(t, "invalid provider token", pfe.Message)
}

func TestNewSyncer_Validation(t *testing.T) {
	_, err := NewSyncer(SyncerOptions{BaseURL: "relative/path"})
	require.Error(t, err)
}
