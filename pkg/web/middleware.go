package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/madhesh-litfest/mlf/pkg/backend"
	mlferrors "github.com/madhesh-litfest/mlf/pkg/errors"
	"github.com/madhesh-litfest/mlf/pkg/telemetry"
)

type contextKey string

const (
	requestIDContextKey contextKey = "request_id"
	sessionContextKey   contextKey = "admin_session"
	prefsContextKey     contextKey = "visitor_prefs"
)

// adminSession is the signed-in administrator attached to a request.
type adminSession struct {
	ID      string
	Backend *backend.Session
}

func sessionFromContext(ctx context.Context) *adminSession {
	sess, _ := ctx.Value(sessionContextKey).(*adminSession)
	return sess
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// requestIDMiddleware tags every request with an id, reusing a well-formed
// X-Request-ID from a proxy.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(started)),
			zap.String("request_id", requestIDFromContext(r.Context())),
		}
		if status >= http.StatusInternalServerError {
			s.logger.Warn("request failed", fields...)
			return
		}
		s.logger.Debug("request", fields...)
	})
}

// securityHeadersMiddleware adds standard security headers to responses.
func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		headers.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=(), usb=()")
		headers.Set("Content-Security-Policy", browserCSP(r))
		next.ServeHTTP(w, r)
	})
}

// browserCSP builds the Content-Security-Policy header. Images may come from
// any https origin because hosted object URLs and fetched photos live there.
func browserCSP(r *http.Request) string {
	connectPolicy := "connect-src 'self' ws: wss:"
	if wsSources := websocketSourcesForHost(r); wsSources != "" {
		connectPolicy = "connect-src 'self' " + wsSources
	}
	return strings.Join([]string{
		"default-src 'self'",
		"base-uri 'self'",
		"object-src 'none'",
		"frame-ancestors 'none'",
		"form-action 'self'",
		"img-src 'self' data: https:",
		"font-src 'self' data:",
		"style-src 'self' 'unsafe-inline'",
		"script-src 'self'",
		connectPolicy,
	}, "; ") + ";"
}

// websocketSourcesForHost returns CSP-safe WebSocket sources for the request host.
func websocketSourcesForHost(r *http.Request) string {
	if r == nil {
		return ""
	}
	if strings.ContainsAny(r.Host, " \t\r\n\"';") {
		return ""
	}
	host := strings.TrimSpace(r.Host)
	if host == "" {
		return ""
	}
	return fmt.Sprintf("ws://%s wss://%s", host, host)
}

// isWebSocketOriginAllowed accepts same-host origins and requests without
// an Origin header (non-browser clients).
func isWebSocketOriginAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// sessionMiddleware attaches the admin session from the cookie if present.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess := s.sessionFromCookie(r); sess != nil {
			ctx := context.WithValue(r.Context(), sessionContextKey, sess)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) sessionFromCookie(r *http.Request) *adminSession {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil
	}
	id := strings.TrimSpace(cookie.Value)
	if id == "" {
		return nil
	}
	ws, err := s.sessions.GetWebSession(id)
	if err != nil {
		s.logger.Warn("web session lookup failed", zap.Error(err))
		return nil
	}
	if ws == nil {
		return nil
	}
	if !s.now().Before(ws.ExpiresAt) {
		_ = s.sessions.DeleteWebSession(id)
		return nil
	}
	_ = s.sessions.TouchWebSession(id)
	return &adminSession{ID: id, Backend: ws.Backend()}
}

// requireAdmin sends visitors without a session to the login page. JSON
// endpoints get a 401 instead of a redirect. A backend token close to
// expiry is refreshed first.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		if sess == nil {
			if wantsJSON(r) {
				respondError(w, http.StatusUnauthorized, errNotSignedIn())
				return
			}
			http.Redirect(w, r, loginPath, http.StatusSeeOther)
			return
		}
		if err := s.refreshBackendSession(r, sess); err != nil {
			if wantsJSON(r) {
				s.dropSession(w, r, sess)
				respondError(w, http.StatusUnauthorized, err)
				return
			}
			s.sessionExpired(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// refreshBackendSession swaps a nearly expired access token for a fresh one
// and stores it on the web session. It returns an error only when the
// authority rejected the refresh; transport failures keep the old token and
// leave the verdict to the next identity check.
func (s *Server) refreshBackendSession(r *http.Request, sess *adminSession) error {
	refresher, ok := s.backend.Auth.(backend.Refresher)
	if !ok || sess.Backend == nil || sess.Backend.RefreshToken == "" {
		return nil
	}
	if !sess.Backend.ExpiresWithin(s.now(), tokenRefreshWindow) {
		return nil
	}
	fresh, err := refresher.Refresh(r.Context(), sess.Backend)
	telemetry.ObserveTokenRefresh(err)
	if err != nil {
		if mlferrors.IsCode(err, mlferrors.ErrCodeUnauthorized) {
			s.logger.Info("token refresh rejected", zap.String("email", sess.Backend.Email), zap.Error(err))
			return err
		}
		s.logger.Warn("token refresh failed", zap.String("email", sess.Backend.Email), zap.Error(err))
		return nil
	}
	if err := s.sessions.UpdateWebSessionTokens(sess.ID, fresh); err != nil {
		s.logger.Warn("store refreshed token failed", zap.Error(err))
	}
	sess.Backend = fresh
	s.logger.Debug("backend token refreshed", zap.String("email", fresh.Email), zap.Time("expires_at", fresh.ExpiresAt))
	return nil
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.URL.Path, "/admin/uploads")
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, id string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Server.SecureCookies || isRequestSecure(r),
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Server.SecureCookies || isRequestSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// loginLimiter keeps one token bucket per client address.
type loginLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLoginLimiter(perMinute, burst int) *loginLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = 1
	}
	return &loginLimiter{
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
		limiters: make(map[string]*limiterEntry),
	}
}

func (l *loginLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	for k, e := range l.limiters {
		if now.Sub(e.lastSeen) > 10*time.Minute {
			delete(l.limiters, k)
		}
	}
	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.Allow()
}

// clientIP returns the remote address without its port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
