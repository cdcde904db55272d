// Package profileapi resolves the application user from the backend of record.
package profileapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/target/marketgate/internal/domain/auth"
	"github.com/target/marketgate/internal/ports"
)

const (
	defaultPath    = "/api/me"
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

var _ ports.ProfileResolver = (*Client)(nil)

// Options configures a Client.
type Options struct {
	BaseURL    string
	Path       string       // default /api/me
	HTTPClient *http.Client // default client with a 10s timeout
}

// Client calls GET <base>/api/me with the provider credential. It never retries.
type Client struct {
	endpoint string
	http     *http.Client
}

// New validates opts and returns a Client.
func New(opts Options) (*Client, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		return nil, errors.New("profile API base URL is required")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("profile API base URL %q must be absolute", base)
	}
	p := opts.Path
	if p == "" {
		p = defaultPath
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		endpoint: strings.TrimSuffix(u.String(), "/") + "/" + strings.TrimPrefix(p, "/"),
		http:     hc,
	}, nil
}

type meResponse struct {
	User *domainauth.AppUser `json:"user"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Resolve fetches the application user for providerToken. Every failure is a
// *domainauth.ProfileFetchError; transport failures carry Status 0.
func (c *Client) Resolve(ctx context.Context, providerToken string) (domainauth.AppUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return domainauth.AppUser{}, &domainauth.ProfileFetchError{Message: "build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+providerToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domainauth.AppUser{}, &domainauth.ProfileFetchError{Message: "request failed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domainauth.AppUser{}, &domainauth.ProfileFetchError{Status: resp.StatusCode, Message: "read body", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er errorResponse
		_ = json.Unmarshal(body, &er)
		msg := er.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return domainauth.AppUser{}, fetchError(resp.StatusCode, msg, nil)
	}

	var me meResponse
	if err := json.Unmarshal(body, &me); err != nil {
		return domainauth.AppUser{}, &domainauth.ProfileFetchError{Status: resp.StatusCode, Message: "malformed profile response", Err: err}
	}
	if me.User == nil {
		return domainauth.AppUser{}, &domainauth.ProfileFetchError{Status: resp.StatusCode, Message: "profile response has no user"}
	}
	return *me.User, nil
}

func fetchError(status int, msg string, err error) error {
	return &domainauth.ProfileFetchError{Status: status, Message: msg, Err: err}
}
