package httpx

import (
	"log/slog"
	"net/http"

	"github.com/target/marketgate/internal/gate"
	obserrors "github.com/target/marketgate/internal/observability/errors"
	"github.com/target/marketgate/internal/observability/metrics"
	"github.com/target/marketgate/internal/session"
)

// GateOptions configures the Gate middleware.
type GateOptions struct {
	Gate     *gate.Gate
	Sessions *session.Store
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Gate returns a middleware that evaluates every request against the role policy.
//
// ALLOWED and PASSTHROUGH requests continue with the decision in their context.
// Redirect outcomes become a 303 for browsers, an Hx-Redirect for htmx, and a
// JSON 401/403 for API clients. The session cookie is never modified here.
func Gate(opts GateOptions) func(http.Handler) http.Handler {
	if opts.Gate == nil {
		panic("httpx.Gate: Gate is required")
	}
	if opts.Sessions == nil {
		panic("httpx.Gate: Sessions is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "gate")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := opts.Sessions.Read(r)
			d := opts.Gate.Evaluate(gate.Input{
				Path:     r.URL.Path,
				RawQuery: r.URL.RawQuery,
				Token:    raw,
				HasToken: ok,
			})
			opts.Metrics.GateDecision(string(d.Outcome), decisionArea(d))

			if !d.Redirect() {
				next.ServeHTTP(w, r.WithContext(SetDecisionInContext(r.Context(), d)))
				return
			}

			logger.InfoContext(r.Context(), "request gated",
				"outcome", d.Outcome,
				"path", r.URL.Path,
				"rule", d.Rule.Pattern,
				"role", d.Payload.Role,
				"reason", gateReason(d),
			)
			rejectGated(w, r, d)
		})
	}
}

// gateReason names why a request was redirected. A login redirect without a
// decode error means there was no session cookie at all.
func gateReason(d gate.Decision) string {
	if d.Err == nil && d.Outcome == gate.OutcomeRedirectLogin {
		return "missing_cookie"
	}
	return obserrors.Classify(d.Err)
}

func decisionArea(d gate.Decision) string {
	if d.Rule.AuthOnly {
		return "auth_only"
	}
	return string(d.Rule.Area)
}

func rejectGated(w http.ResponseWriter, r *http.Request, d gate.Decision) {
	switch {
	case wantsJSON(r):
		status, code, msg := http.StatusUnauthorized, "unauthenticated", "sign in required"
		if d.Outcome == gate.OutcomeRedirectDenied {
			status, code, msg = http.StatusForbidden, "forbidden", "role not allowed for this area"
		}
		WriteJSON(w, status, map[string]string{"error": code, "message": msg, "location": d.Location})
	case IsHTMX(r):
		SetHXRedirect(w, d.Location)
		w.WriteHeader(http.StatusOK)
	default:
		http.Redirect(w, r, d.Location, http.StatusSeeOther)
	}
}
