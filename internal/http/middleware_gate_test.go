package httpx

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/marketgate/internal/domain/auth"
	"github.com/target/marketgate/internal/gate"
	"github.com/target/marketgate/internal/observability/metrics"
	"github.com/target/marketgate/internal/session"
)

func TestGate_Scenarios(t *testing.T) {
	e := newEdge(t)

	tests := []struct {
		name     string
		path     string
		role     domainauth.Role // empty means no cookie
		status   int
		location string
	}{
		{"admin on admin dashboard", "/admin/dashboard", domainauth.RoleAdmin, http.StatusOK, ""},
		{"customer on admin dashboard", "/admin/dashboard", domainauth.RoleCustomer, http.StatusSeeOther, "/"},
		{"anonymous on influencer earnings", "/influencer/earnings", "", http.StatusSeeOther, "/login?redirect=/influencer/earnings"},
		{"customer on cart", "/cart", domainauth.RoleCustomer, http.StatusOK, ""},
		{"anonymous on checkout keeps query", "/checkout?step=2", "", http.StatusSeeOther, "/login?redirect=/checkout%3Fstep%3D2"},
		{"seller staff on seller area", "/seller/orders", domainauth.RoleSellerStaff, http.StatusOK, ""},
		{"influencer on seller area", "/seller/orders", domainauth.RoleInfluencer, http.StatusSeeOther, "/"},
		{"anonymous on storefront", "/products/42", "", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.role != "" {
				withCookie(r, e.mint(t, tt.role))
			}
			rec := e.do(r)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.location, rec.Header().Get("Location"))
			assert.Empty(t, rec.Result().Cookies(), "gate must not touch the session cookie")
		})
	}
}

func TestGate_UndecodableCookieRedirectsToLogin(t *testing.T) {
	e := newEdge(t)

	rec := e.do(withCookie(httptest.NewRequest(http.MethodGet, "/cart", nil), "not-a-token"))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?redirect=/cart", rec.Header().Get("Location"))
	assert.Empty(t, rec.Result().Cookies())
}

func TestGate_UnknownRoleNeverReachesUpstream(t *testing.T) {
	e := newEdge(t)
	enc := base64.RawURLEncoding.EncodeToString
	forged := enc([]byte(`{"alg":"none"}`)) + "." + enc([]byte(`{"role":"HACKER","sub":"x"}`)) + ".sig"

	rec := e.do(withCookie(httptest.NewRequest(http.MethodGet, "/cart", nil), forged))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?redirect=/cart", rec.Header().Get("Location"))
	assert.Empty(t, e.upstreamSeen)
}

func TestGate_LogsRedirectReason(t *testing.T) {
	e := newEdge(t)
	enc := base64.RawURLEncoding.EncodeToString
	unknownRole := enc([]byte(`{"alg":"none"}`)) + "." + enc([]byte(`{"role":"HACKER","sub":"x"}`)) + ".sig"

	tests := []struct {
		name   string
		path   string
		cookie string
		want   string
	}{
		{name: "no cookie", path: "/cart", want: "reason=missing_cookie"},
		{name: "undecodable cookie", path: "/cart", cookie: "not-a-token", want: "reason=token_"},
		{name: "unknown role", path: "/cart", cookie: unknownRole, want: "reason=token_unknown_role"},
		{name: "wrong area", path: "/admin", cookie: e.mint(t, domainauth.RoleCustomer), want: "reason=unauthorized_access"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			sessions, err := session.NewStore(session.Options{})
			require.NoError(t, err)
			h := Gate(GateOptions{
				Gate:     gate.New(nil),
				Sessions: sessions,
				Logger:   slog.New(slog.NewTextHandler(&buf, nil)),
				Metrics:  metrics.New(metrics.Config{Registry: prometheus.NewRegistry()}),
			})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatal("gated request reached the next handler")
			}))

			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.cookie != "" {
				withCookie(r, tt.cookie)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			require.Equal(t, http.StatusSeeOther, rec.Code)

			line := buf.String()
			require.True(t, strings.Contains(line, `msg="request gated"`), line)
			assert.Contains(t, line, tt.want)
			assert.NotContains(t, line, `reason=""`)
		})
	}
}

func TestGate_HTMXGetsHXRedirect(t *testing.T) {
	e := newEdge(t)

	r := httptest.NewRequest(http.MethodGet, "/admin", nil)
	r.Header.Set("Hx-Request", "true")
	withCookie(r, e.mint(t, domainauth.RoleCustomer))
	rec := e.do(r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Hx-Redirect"))
	assert.Empty(t, rec.Header().Get("Location"))
}

func TestGate_JSONClientsGetErrors(t *testing.T) {
	e := newEdge(t)

	tests := []struct {
		name   string
		role   domainauth.Role
		status int
		code   string
		loc    string
	}{
		{"anonymous", "", http.StatusUnauthorized, "unauthenticated", "/login?redirect=/admin/users"},
		{"wrong role", domainauth.RoleInfluencer, http.StatusForbidden, "forbidden", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
			r.Header.Set("Accept", "application/json")
			if tt.role != "" {
				withCookie(r, e.mint(t, tt.role))
			}
			rec := e.do(r)
			require.Equal(t, tt.status, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body["error"])
			assert.Equal(t, tt.loc, body["location"])
		})
	}
}

func TestGate_ForwardsDecisionHeaders(t *testing.T) {
	e := newEdge(t)

	r := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	r.Header.Set(HeaderRole, "SUPER_ADMIN")
	withCookie(r, e.mint(t, domainauth.RoleAdmin))
	rec := e.do(r)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "upstream:/admin/dashboard", rec.Body.String())

	seen := <-e.upstreamSeen
	assert.Equal(t, "ADMIN", seen.Header.Get(HeaderRole))
	assert.Equal(t, "u-admin", seen.Header.Get(HeaderSubject))

	// Passthrough requests carry no identity, and spoofed headers are dropped.
	r = httptest.NewRequest(http.MethodGet, "/products", nil)
	r.Header.Set(HeaderRole, "ADMIN")
	rec = e.do(r)
	require.Equal(t, http.StatusOK, rec.Code)
	seen = <-e.upstreamSeen
	assert.Empty(t, seen.Header.Get(HeaderRole))
	assert.Empty(t, seen.Header.Get(HeaderSubject))
}

func TestGate_RecordsDecisions(t *testing.T) {
	e := newEdge(t)

	e.do(withCookie(httptest.NewRequest(http.MethodGet, "/admin", nil), e.mint(t, domainauth.RoleAdmin)))
	e.do(httptest.NewRequest(http.MethodGet, "/cart", nil))
	e.do(httptest.NewRequest(http.MethodGet, "/about", nil))

	body := e.scrape(t)
	assert.Contains(t, body, `marketgate_gate_decisions_total{area="admin",outcome="ALLOWED"} 1`)
	assert.Contains(t, body, `marketgate_gate_decisions_total{area="auth_only",outcome="REDIRECT_LOGIN"} 1`)
	assert.Contains(t, body, `marketgate_gate_decisions_total{area="none",outcome="PASSTHROUGH"} 1`)
	assert.Contains(t, body, `marketgate_http_requests_total{method="GET",route="/",status="303"} 1`)
}

func TestGate_NoUpstreamIsNotFound(t *testing.T) {
	h := NewRouter(RouterServices{Logger: discardLogger()})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}
