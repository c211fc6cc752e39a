package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/melsimpson1023/project-2-gemstone/internal/service/auth"
)

type authContextKey string

type authInfo struct {
	UserID string
	Email  string
}

const contextKeyAuth authContextKey = "gemstones-auth-info"

type contextSetter interface {
	SetContext(context.Context)
}

// requireAuth ensures the request carries a known token before invoking the handler.
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return r.authenticate(false, next)
}

// requireStreamAuth is requireAuth that also accepts a token query parameter,
// since browsers cannot set headers on websocket or EventSource requests.
func (r *Router) requireStreamAuth(next http.HandlerFunc) http.HandlerFunc {
	return r.authenticate(true, next)
}

func (r *Router) authenticate(allowQuery bool, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, _, ok := r.ensureAuth(w, req, allowQuery)
		if !ok {
			return
		}
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// ensureAuth validates the Authorization header and enriches the context.
func (r *Router) ensureAuth(w http.ResponseWriter, req *http.Request, allowQuery bool) (context.Context, authInfo, bool) {
	header := req.Header.Get("Authorization")
	token, err := tokenFromHeader(header)
	if err != nil && allowQuery && strings.TrimSpace(header) == "" {
		if q := strings.TrimSpace(req.URL.Query().Get("token")); q != "" {
			token, err = q, nil
		}
	}
	if err != nil {
		r.logger.Warn("authorization header invalid", "error", err, "path", req.URL.Path)
		writeError(w, http.StatusUnauthorized, "authentication required")
		return req.Context(), authInfo{}, false
	}
	user, err := r.auth.Authorize(req.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			r.logger.Warn("token validation failed", "path", req.URL.Path)
			writeError(w, http.StatusUnauthorized, "authentication failed")
			return req.Context(), authInfo{}, false
		}
		r.logger.Error("token lookup failed", "error", err, "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return req.Context(), authInfo{}, false
	}
	info := authInfo{UserID: user.ID, Email: user.Email}
	ctx := context.WithValue(req.Context(), contextKeyAuth, info)
	return ctx, info, true
}

// authInfoFromContext extracts auth metadata from context.
func authInfoFromContext(ctx context.Context) (authInfo, bool) {
	value := ctx.Value(contextKeyAuth)
	if value == nil {
		return authInfo{}, false
	}
	info, ok := value.(authInfo)
	return info, ok
}

// tokenFromHeader accepts "Bearer <token>" and the older "Token token=<token>" form.
func tokenFromHeader(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing authorization header")
	}
	scheme, rest, found := strings.Cut(header, " ")
	if !found {
		return "", errors.New("invalid authorization header format")
	}
	rest = strings.TrimSpace(rest)
	var token string
	switch {
	case strings.EqualFold(scheme, "Bearer"):
		if strings.ContainsAny(rest, " \t") {
			return "", errors.New("invalid authorization header format")
		}
		token = rest
	case strings.EqualFold(scheme, "Token"):
		key, value, ok := strings.Cut(rest, "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "token") {
			return "", errors.New("invalid authorization header format")
		}
		token = strings.Trim(strings.TrimSpace(value), `"`)
	default:
		return "", errors.New("unsupported authorization scheme")
	}
	if token == "" {
		return "", errors.New("empty token")
	}
	return token, nil
}
