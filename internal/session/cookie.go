// Package session manages the session token cookie at the edge.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// DefaultCookieName is the cookie that carries the session token.
const DefaultCookieName = "auth_token"

// Options configures a cookie Store.
type Options struct {
	Name string
	// Domain is optional. It must not be a public suffix.
	Domain string
	// Secure forces the Secure attribute. When false, Secure is still set for
	// requests that arrived over TLS or behind an https-terminating proxy.
	Secure bool
	Now    func() time.Time
}

// Store issues, clears and reads the session cookie.
type Store struct {
	name   string
	domain string
	secure bool
	now    func() time.Time
}

// NewStore validates opts and returns a Store.
func NewStore(opts Options) (*Store, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = DefaultCookieName
	}
	domain, err := normalizeDomain(opts.Domain)
	if err != nil {
		return nil, err
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{name: name, domain: domain, secure: opts.Secure, now: now}, nil
}

// Name returns the cookie name.
func (s *Store) Name() string { return s.name }

// Issue sets the session cookie to token for ttl.
func (s *Store) Issue(w http.ResponseWriter, r *http.Request, token string, ttl time.Duration) {
	maxAge := int(ttl / time.Second)
	if maxAge <= 0 {
		s.Clear(w, r)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.name,
		Value:    token,
		Path:     "/",
		Domain:   s.domain,
		HttpOnly: true,
		Secure:   s.isSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
		Expires:  s.now().Add(ttl).UTC(),
	})
}

// Clear expires the session cookie. It mirrors the attributes used by Issue so
// browsers match and delete the stored cookie.
func (s *Store) Clear(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.name,
		Value:    "",
		Path:     "/",
		Domain:   s.domain,
		HttpOnly: true,
		Secure:   s.isSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
	})
}

// Read returns the cookie value when present and non-empty.
func (s *Store) Read(r *http.Request) (string, bool) {
	c, err := r.Cookie(s.name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (s *Store) isSecure(r *http.Request) bool {
	if s.secure {
		return true
	}
	if r == nil {
		return false
	}
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func normalizeDomain(raw string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, ".")
	if d == "" || d == "localhost" {
		return d, nil
	}
	if strings.ContainsAny(d, "/:") {
		return "", fmt.Errorf("cookie domain %q must be a bare host name", raw)
	}
	suffix, icann := publicsuffix.PublicSuffix(d)
	if suffix == d && (icann || strings.Contains(d, ".")) {
		return "", fmt.Errorf("cookie domain %q is a public suffix", raw)
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(d); err != nil {
		return "", errors.Join(fmt.Errorf("cookie domain %q is invalid", raw), err)
	}
	return d, nil
}
