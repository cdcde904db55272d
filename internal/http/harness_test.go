package httpx

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/marketgate/internal/domain/auth"
	"github.com/target/marketgate/internal/gate"
	authmocks "github.com/target/marketgate/internal/mocks/auth"
	"github.com/target/marketgate/internal/observability/metrics"
	"github.com/target/marketgate/internal/service"
	"github.com/target/marketgate/internal/session"
	"github.com/target/marketgate/internal/token"
	"golang.org/x/crypto/bcrypt"
)

const (
	testPassword = "correct horse battery"
	testSecret   = "httpx-test-secret-0123456789abcdefgh"
)

// edge is a router wired to in-memory backends and a recording upstream.
type edge struct {
	handler     http.Handler
	signer      *token.Signer
	metrics     *metrics.Metrics
	revocations *authmocks.MemoryRevocationStore
	// upstreamSeen holds the last request the upstream received.
	upstreamSeen chan *http.Request
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEdge(t *testing.T) *edge {
	t.Helper()

	signer, err := token.NewSigner(token.SignerOptions{
		Secret:          []byte(testSecret),
		Issuer:          "marketgate",
		AcceptedIssuers: []string{service.SyncIssuer},
	})
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	users := authmocks.NewMemoryUserRepository(domainauth.User{
		ID:           "6d1f0b52-0000-4000-8000-0000000000aa",
		Email:        "owner@shop.test",
		PasswordHash: string(hash),
		Role:         domainauth.RoleSellerOwner,
		BusinessID:   "biz-1",
	})

	e := &edge{
		signer:       signer,
		metrics:      metrics.New(metrics.Config{Registry: prometheus.NewRegistry()}),
		revocations:  authmocks.NewMemoryRevocationStore(),
		upstreamSeen: make(chan *http.Request, 16),
	}

	svc := service.NewAuthService(service.AuthServiceOptions{
		Users:       users,
		Signer:      signer,
		Revocations: e.revocations,
		Verifier: &authmocks.StaticVerifier{Identities: map[string]domainauth.Identity{
			"google-owner": {Subject: "google|owner", Email: "owner@shop.test"},
		}},
		PasswordCost: bcrypt.MinCost,
		Logger:       discardLogger(),
	})

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.upstreamSeen <- r.Clone(r.Context())
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "upstream:"+r.URL.Path)
	}))
	t.Cleanup(upstream.Close)
	target, err := url.Parse(upstream.URL)
	require.NoError(t, err)

	sessions, err := session.NewStore(session.Options{})
	require.NoError(t, err)

	e.handler = NewRouter(RouterServices{
		Auth:     svc,
		Sessions: sessions,
		Gate:     gate.New(nil),
		Metrics:  e.metrics,
		Upstream: target,
		Logger:   discardLogger(),
	})
	return e
}

// mint returns a session token for role.
func (e *edge) mint(t *testing.T, role domainauth.Role) string {
	t.Helper()
	raw, _, err := e.signer.Mint(token.MintInput{Subject: "u-" + strings.ToLower(string(role)), Role: role}, time.Hour)
	require.NoError(t, err)
	return raw
}

func (e *edge) do(r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, r)
	return rec
}

// scrape returns the Prometheus exposition served at /metrics.
func (e *edge) scrape(t *testing.T) string {
	t.Helper()
	rec := e.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func withCookie(r *http.Request, value string) *http.Request {
	r.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: value})
	return r
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.DefaultCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", session.DefaultCookieName)
	return nil
}
