package profileapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/target/marketgate/internal/ports"
)

const defaultSyncPath = "/auth/sync"

var _ ports.SessionSyncer = (*Syncer)(nil)

// SyncerOptions configures a Syncer.
type SyncerOptions struct {
	BaseURL string
	Path    string // default /auth/sync
	// HTTPClient should carry a cookie jar when the caller wants to keep the
	// session cookie the backend sets.
	HTTPClient *http.Client
}

// Syncer posts a provider credential to the backend's sync endpoint.
type Syncer struct {
	endpoint string
	http     *http.Client
}

// NewSyncer validates opts and returns a Syncer.
func NewSyncer(opts SyncerOptions) (*Syncer, error) {
	u, err := url.Parse(strings.TrimSpace(opts.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("sync base URL %q must be absolute", opts.BaseURL)
	}
	p := opts.Path
	if p == "" {
		p = defaultSyncPath
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Syncer{
		endpoint: strings.TrimSuffix(u.String(), "/") + "/" + strings.TrimPrefix(p, "/"),
		http:     hc,
	}, nil
}

// Sync sends {"token": providerToken}. Non-2xx responses are ProfileFetchErrors.
func (s *Syncer) Sync(ctx context.Context, providerToken string) error {
	body, err := json.Marshal(map[string]string{"token": providerToken})
	if err != nil {
		return fmt.Errorf("encode sync request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fetchError(0, "sync request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er errorResponse
		_ = json.Unmarshal(data, &er)
		msg := er.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return fetchError(resp.StatusCode, msg, nil)
	}
	return nil
}
