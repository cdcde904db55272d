package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
)

var errCrossOrigin = errors.New("cross-origin request rejected")

// OriginGuardConfig holds configuration for the same-origin guard.
type OriginGuardConfig struct {
	// TrustedOrigins are extra scheme://host[:port] origins allowed to post to
	// the auth endpoints, e.g. the storefront when the edge runs on another host.
	TrustedOrigins []string
	// OnReject is called with the rejected origin. Optional.
	OnReject func(r *http.Request, origin string)
}

// OriginGuard rejects cross-site browser requests that would change session
// state. The session cookie is SameSite=Lax, so a cross-site form POST would
// otherwise still reach /auth/logout or overwrite the cookie via /auth/login.
//
// Requests carrying neither Origin nor Sec-Fetch-Site come from non-browser
// clients and pass. GET, HEAD, OPTIONS and TRACE are exempt.
func OriginGuard(cfg OriginGuardConfig) func(http.Handler) http.Handler {
	trusted := make(map[string]struct{}, len(cfg.TrustedOrigins))
	for _, o := range cfg.TrustedOrigins {
		if n := normalizeOrigin(o); n != "" {
			trusted[n] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requiresOriginCheck(r.Method) || sameOrigin(r, trusted) {
				next.ServeHTTP(w, r)
				return
			}
			origin := r.Header.Get("Origin")
			if cfg.OnReject != nil {
				cfg.OnReject(r, origin)
			}
			WriteError(w, ErrorParams{
				Code:    http.StatusForbidden,
				ErrCode: "cross_origin",
				Err:     errCrossOrigin,
			})
		})
	}
}

func requiresOriginCheck(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}

func sameOrigin(r *http.Request, trusted map[string]struct{}) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "null" {
		switch r.Header.Get("Sec-Fetch-Site") {
		case "", "same-origin", "none":
			return origin == ""
		default:
			return false
		}
	}

	o := normalizeOrigin(origin)
	if o == "" {
		return false
	}
	if _, ok := trusted[o]; ok {
		return true
	}
	return o == requestOrigin(r)
}

// requestOrigin is the origin the client used to reach this server.
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || isForwardedHTTPS(r) {
		scheme = "https"
	}
	host := r.Host
	if fh := r.Header.Get("X-Forwarded-Host"); fh != "" {
		host = strings.TrimSpace(strings.Split(fh, ",")[0])
	}
	return normalizeOrigin(scheme + "://" + host)
}

// normalizeOrigin lowercases scheme and host and drops default ports.
// Anything that is not an absolute http(s) origin yields "".
func normalizeOrigin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}
	return scheme + "://" + host
}

// isForwardedHTTPS checks if the request was forwarded over HTTPS.
// Handles comma-separated values in X-Forwarded-Proto header.
func isForwardedHTTPS(r *http.Request) bool {
	xfProto := r.Header.Get("X-Forwarded-Proto")
	if xfProto == "" {
		return false
	}
	for _, proto := range strings.Split(xfProto, ",") {
		if strings.EqualFold(strings.TrimSpace(proto), "https") {
			return true
		}
	}
	return false
}
