package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
)

// Headers the proxy sets from the gate decision. Incoming copies are always
// stripped. Values come from an unverified decode and are hints only.
const (
	HeaderRole    = "X-Marketgate-Role"
	HeaderSubject = "X-Marketgate-Subject"
)

// NewUpstreamProxy forwards requests that passed the gate to target.
func NewUpstreamProxy(target *url.URL, logger *slog.Logger) *httputil.ReverseProxy {
	if logger == nil {
		logger = slog.Default()
	}
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Header.Del(HeaderRole)
			pr.Out.Header.Del(HeaderSubject)
			if p, ok := PayloadFromContext(pr.In.Context()); ok {
				pr.Out.Header.Set(HeaderRole, string(p.Role))
				if p.Subject != "" {
					pr.Out.Header.Set(HeaderSubject, p.Subject)
				}
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.ErrorContext(r.Context(), "upstream request failed",
				"path", r.URL.Path,
				"upstream", target.Host,
				"error", err,
			)
			WriteError(w, ErrorParams{
				Code:    http.StatusBadGateway,
				ErrCode: "bad_gateway",
				Err:     errors.New("upstream unavailable"),
			})
		},
	}
}
