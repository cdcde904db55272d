package httpx

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpstreamProxy_Unavailable(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	target, err := url.Parse(dead.URL)
	require.NoError(t, err)
	dead.Close()

	rec := httptest.NewRecorder()
	NewUpstreamProxy(target, discardLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"bad_gateway","message":"upstream unavailable"}`, rec.Body.String())
}

func TestUpstreamProxy_SetsForwardedHeaders(t *testing.T) {
	seen := make(chan http.Header, 1)
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Clone()
	}))
	t.Cleanup(up.Close)
	target, err := url.Parse(up.URL)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "http://shop.test/products", nil)
	r.Header.Set(HeaderSubject, "spoofed")
	NewUpstreamProxy(target, discardLogger()).ServeHTTP(httptest.NewRecorder(), r)

	h := <-seen
	assert.Equal(t, "shop.test", h.Get("X-Forwarded-Host"))
	assert.NotEmpty(t, h.Get("X-Forwarded-For"))
	assert.Empty(t, h.Get(HeaderSubject))
}
