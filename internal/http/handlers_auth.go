package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	domainauth "github.com/target/marketgate/internal/domain/auth"
	apperrors "github.com/target/marketgate/internal/errors"
	obserrors "github.com/target/marketgate/internal/observability/errors"
	"github.com/target/marketgate/internal/observability/metrics"
	"github.com/target/marketgate/internal/service"
	"github.com/target/marketgate/internal/session"
	"github.com/target/marketgate/internal/token"
)

// AuthService is the backend the auth endpoints call.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*service.SessionResult, error)
	Sync(ctx context.Context, providerToken string) (*service.SyncResult, error)
	Me(ctx context.Context, raw string) (domainauth.AppUser, error)
	Logout(ctx context.Context, raw string) error
}

var _ AuthService = (*service.AuthService)(nil)

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc      AuthService
	Sessions *session.Store
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string          `json:"token"`
	Role      domainauth.Role `json:"role"`
	Home      string          `json:"home"`
	Redirect  string          `json:"redirect"`
	ExpiresIn int64           `json:"expires_in"`
}

// Login handles POST /auth/login?redirect=<optional path>.
// The session cookie is set for the login lifetime.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	res, err := h.Svc.Login(r.Context(), req.Email, req.Password)
	h.Metrics.AuthOp("login", err)
	if err != nil {
		h.fail(r.Context(), "login", err)
		writeAppError(w, err)
		return
	}

	h.Sessions.Issue(w, r, res.Token, res.ExpiresIn)
	redirect := res.Home
	if q := r.URL.Query().Get("redirect"); q != "" {
		redirect = safeRedirectPath(q)
	}
	WriteJSON(w, http.StatusOK, loginResponse{
		Token:     res.Token,
		Role:      res.Payload.Role,
		Home:      res.Home,
		Redirect:  redirect,
		ExpiresIn: int64(res.ExpiresIn.Seconds()),
	})
}

type syncRequest struct {
	Token string `json:"token"`
}

type syncResponse struct {
	Role        domainauth.Role `json:"role"`
	Home        string          `json:"home"`
	ExpiresIn   int64           `json:"expires_in"`
	Provisioned bool            `json:"provisioned"`
}

// Sync handles POST /auth/sync. It trades a provider credential for a
// short-lived session cookie.
func (h *AuthHandlers) Sync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	res, err := h.Svc.Sync(r.Context(), req.Token)
	h.Metrics.AuthOp("sync", err)
	if err != nil {
		h.fail(r.Context(), "sync", err)
		writeAppError(w, err)
		return
	}

	h.Sessions.Issue(w, r, res.Token, res.ExpiresIn)
	WriteJSON(w, http.StatusOK, syncResponse{
		Role:        res.Payload.Role,
		Home:        res.Home,
		ExpiresIn:   int64(res.ExpiresIn.Seconds()),
		Provisioned: res.Provisioned,
	})
}

// Logout handles POST /auth/logout. It always succeeds: the cookie is cleared
// and the token is revoked when possible.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	raw, _ := h.credential(r)
	err := h.Svc.Logout(r.Context(), raw)
	h.Metrics.AuthOp("logout", err)
	if err != nil {
		h.fail(r.Context(), "logout", err)
	}
	h.Sessions.Clear(w, r)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Me handles GET /api/me with a Bearer token or the session cookie.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.credential(r)
	if !ok {
		err := apperrors.Unauthenticated("missing credentials")
		h.Metrics.AuthOp("me", err)
		writeAppError(w, err)
		return
	}

	user, err := h.Svc.Me(r.Context(), raw)
	h.Metrics.AuthOp("me", err)
	if err != nil {
		h.fail(r.Context(), "me", err)
		writeAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"user": user})
}

type statusResponse struct {
	Authenticated bool            `json:"authenticated"`
	Role          domainauth.Role `json:"role,omitempty"`
	Area          domainauth.Area `json:"area,omitempty"`
	Home          string          `json:"home,omitempty"`
}

// Status handles GET /auth/status. It reports what the edge can see from the
// cookie alone, without verifying it.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.Sessions.Read(r)
	if !ok {
		WriteJSON(w, http.StatusOK, statusResponse{})
		return
	}
	p, err := token.Decode(raw)
	if err != nil {
		h.logger().DebugContext(r.Context(), "status decode failed", "reason", obserrors.Classify(err))
		WriteJSON(w, http.StatusOK, statusResponse{})
		return
	}
	area, _ := domainauth.AreaForRole(p.Role)
	WriteJSON(w, http.StatusOK, statusResponse{
		Authenticated: true,
		Role:          p.Role,
		Area:          area,
		Home:          domainauth.HomeForRole(p.Role),
	})
}

// credential prefers an Authorization bearer token over the session cookie.
func (h *AuthHandlers) credential(r *http.Request) (string, bool) {
	if raw, ok := bearerToken(r); ok {
		return raw, true
	}
	return h.Sessions.Read(r)
}

func (h *AuthHandlers) fail(ctx context.Context, op string, err error) {
	// Bad credentials and bad input are routine; other client errors are worth a look.
	level := slog.LevelWarn
	switch {
	case apperrors.IsInternal(err) || apperrors.HTTPStatus(err) >= http.StatusInternalServerError:
		level = slog.LevelError
	case apperrors.IsUnauthenticated(err) || apperrors.IsValidation(err):
		level = slog.LevelInfo
	}
	h.logger().Log(ctx, level, "auth request failed",
		"op", op,
		"reason", obserrors.Classify(err),
		"error", err,
	)
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, raw, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// safeRedirectPath ensures the provided redirect is a same-origin relative path
// starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	if strings.HasPrefix(candidate, "//") || strings.HasPrefix(candidate, "/\\") {
		return "/"
	}
	return candidate
}
