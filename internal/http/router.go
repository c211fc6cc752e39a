package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/melsimpson1023/project-2-gemstone/internal/domain"
	"github.com/melsimpson1023/project-2-gemstone/internal/service/auth"
	"github.com/melsimpson1023/project-2-gemstone/internal/service/gemstone"
	"github.com/melsimpson1023/project-2-gemstone/internal/ws"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	auth      auth.Service
	gems      gemstone.Service
	hub       *ws.Hub
	upgrader  websocket.Upgrader
	limiter   RateLimiter
	metrics   *routerMetrics
	dbHealth  func(context.Context) error
	heartbeat time.Duration
}

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitSignup    = 5
	rateLimitLogin     = 12
	rateLimitUserWrite = 60
	rateLimitUserRead  = 120
	rateLimitStream    = 30
	healthCheckTimeout = 2 * time.Second
	defaultHeartbeat   = 25 * time.Second
	maxBodyBytes       = 1 << 20
)

// errEmptyBody marks a request without a body; handlers treat it as an empty payload.
var errEmptyBody = errors.New("empty request body")

// NewRouter assembles routes with dependencies. A nil limiter falls back to the
// in-memory limiter; a nil hub disables the change feed endpoints.
func NewRouter(logger *slog.Logger, authSvc auth.Service, gemSvc gemstone.Service, hub *ws.Hub, limiter RateLimiter, dbHealth func(context.Context) error, heartbeat time.Duration) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	r := &Router{
		mux:    http.NewServeMux(),
		logger: logger,
		auth:   authSvc,
		gems:   gemSvc,
		hub:    hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:   limiter,
		metrics:   newRouterMetrics(),
		dbHealth:  dbHealth,
		heartbeat: heartbeat,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("healthz", r.handleHealthz))
	r.mux.Handle("/metrics", r.metrics.handler())
	r.mux.HandleFunc("/sign-up", r.audit("sign-up", r.limited(signUpRule, r.handleSignUp)))
	r.mux.HandleFunc("/sign-in", r.audit("sign-in", r.limited(signInRule, r.handleSignIn)))
	r.mux.HandleFunc("/sign-out", r.audit("sign-out", r.limitedUser(signOutRule, r.handleSignOut)))
	r.mux.HandleFunc("/change-password", r.audit("change-password", r.limitedUser(changePasswordRule, r.handleChangePassword)))
	r.mux.HandleFunc("/gemstones", r.audit("gemstones", r.limitedUser(gemstonesRule, r.handleGemstones)))
	r.mux.HandleFunc("/gemstones/", r.audit("gemstone", r.limitedUser(gemstoneRule, r.handleGemstone)))
	r.mux.HandleFunc("/ws/gemstones", r.audit("ws-gemstones", r.requireStreamAuth(r.limited(gemstoneWSRule, r.handleGemstonesWS))))
	r.mux.HandleFunc("/events/gemstones", r.audit("events-gemstones", r.requireStreamAuth(r.limited(gemstoneEventsRule, r.handleGemstoneEvents))))
}

func (r *Router) handleSignUp(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Credentials auth.Credentials `json:"credentials"`
	}
	if err := decodeJSON(req, &payload); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := r.auth.SignUp(req.Context(), payload.Credentials)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
		},
	})
}

func (r *Router) handleSignIn(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Credentials auth.Credentials `json:"credentials"`
	}
	if err := decodeJSON(req, &payload); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := r.auth.SignIn(req.Context(), payload.Credentials)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
			"token": user.Token,
		},
	})
}

func (r *Router) handleSignOut(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodDelete {
		r.methodNotAllowed(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	if err := r.auth.SignOut(req.Context(), info.UserID); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleChangePassword(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPatch {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Passwords struct {
			Old string `json:"old"`
			New string `json:"new"`
		} `json:"passwords"`
	}
	if err := decodeJSON(req, &payload); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	info, _ := authInfoFromContext(req.Context())
	if err := r.auth.ChangePassword(req.Context(), info.UserID, payload.Passwords.Old, payload.Passwords.New); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	if r.hub != nil {
		components["feed"] = map[string]any{
			"status":      "up",
			"subscribers": r.hub.Subscribers(ws.TopicGemstones),
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

// decodeJSON decodes the request body into dst, returning errEmptyBody when
// there is nothing to decode.
func decodeJSON(req *http.Request, dst any) error {
	if req.Body == nil {
		return errEmptyBody
	}
	body := io.LimitReader(req.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.metrics.observeRequest(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"route", route,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.UserID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// flusherFor reports whether the writer underneath any recorders can flush.
func flusherFor(w http.ResponseWriter) (http.Flusher, bool) {
	inner := w
	for {
		unwrapper, ok := inner.(interface{ Unwrap() http.ResponseWriter })
		if !ok {
			break
		}
		inner = unwrapper.Unwrap()
	}
	if _, ok := inner.(http.Flusher); !ok {
		return nil, false
	}
	f, ok := w.(http.Flusher)
	return f, ok
}

type gemstoneResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	Owner     string `json:"owner"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func marshalGemstone(gem domain.Gemstone) gemstoneResponse {
	return gemstoneResponse{
		ID:        gem.ID,
		Title:     gem.Title,
		Text:      gem.Text,
		Owner:     gem.Owner,
		CreatedAt: gem.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: gem.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
