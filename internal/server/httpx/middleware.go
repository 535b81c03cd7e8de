package httpx

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/grocerly/internal/auth"
	"github.com/and161185/grocerly/internal/limiter"
)

// ClientIP returns the host of r.RemoteAddr. Forwarding headers count only
// when ProxyHeaders(true) runs earlier in the chain.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ProxyHeaders rewrites RemoteAddr from X-Forwarded-For / X-Real-IP when the
// service runs behind a trusted proxy; otherwise it is a no-op.
func ProxyHeaders(trust bool) func(http.Handler) http.Handler {
	if trust {
		return middleware.RealIP
	}
	return func(next http.Handler) http.Handler { return next }
}

// Logger logs one line per request: method, path, status, duration, remote.
func Logger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.Info("http",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Duration("dur", time.Since(start)),
				zap.String("remote", ClientIP(r)),
			)
		})
	}
}

// Recoverer turns handler panics into 500s.
func Recoverer(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("panic",
						zap.Any("reason", rec),
						zap.ByteString("stack", debug.Stack()),
						zap.String("path", r.URL.Path),
					)
					Fail(w, http.StatusInternalServerError, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CORS allows the configured origins with credentials.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Accept", "Origin", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}

// RateLimit rejects requests over budget with 429 and Retry-After.
// Limiter failures are logged and let the request through.
func RateLimit(lim limiter.Limiter, key func(*http.Request) string, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retry, err := lim.Allow(r.Context(), key(r))
			if err != nil {
				log.Warn("rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				secs := int(math.Ceil(retry.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				Fail(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenVerifier checks bearer tokens.
type TokenVerifier interface {
	Verify(token string) (uuid.UUID, *auth.Claims, error)
}

// Auth requires a valid bearer token and stores the subject in the request context.
// With allowQuery the token may also come from the access_token query parameter,
// which EventSource clients need.
func Auth(v TokenVerifier, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok && allowQuery {
				tok = strings.TrimSpace(r.URL.Query().Get("access_token"))
				ok = tok != ""
			}
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				Fail(w, http.StatusUnauthorized, "Not authenticated")
				return
			}
			id, _, err := v.Verify(tok)
			if err != nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				Fail(w, http.StatusUnauthorized, authMessage(err))
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), id)))
		})
	}
}

func authMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpired):
		return "Token has expired"
	case errors.Is(err, auth.ErrNoSubject):
		return "Invalid token: missing subject claim"
	}
	return "Invalid authentication token"
}

// UserID returns the authenticated caller, or uuid.Nil outside Auth.
func UserID(ctx context.Context) uuid.UUID {
	id, _ := auth.UserIDFromCtx(ctx)
	return id
}
