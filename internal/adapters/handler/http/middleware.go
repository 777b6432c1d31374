package http

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vncsmyrnk/taskboard/internal/core/domain"
	"github.com/vncsmyrnk/taskboard/internal/core/ports"
)

type ctxKey int

const identityKey ctxKey = iota

// IdentityFrom returns the identity stored by SessionGuard.Authenticate.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey).(domain.Identity)
	return id, ok
}

func withIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// SessionGuard authenticates requests from the access token cookie and
// checks the CSRF header on state-changing methods.
type SessionGuard struct {
	tokens       ports.TokenIssuer
	csrf         ports.CSRFSigner
	accessCookie string
	csrfHeader   string
	metrics      *Metrics
	logger       *zap.Logger
}

func NewSessionGuard(tokens ports.TokenIssuer, csrf ports.CSRFSigner, accessCookie, csrfHeader string, metrics *Metrics, logger *zap.Logger) *SessionGuard {
	return &SessionGuard{
		tokens:       tokens,
		csrf:         csrf,
		accessCookie: accessCookie,
		csrfHeader:   csrfHeader,
		metrics:      metrics,
		logger:       logger.Named("session_guard"),
	}
}

func (g *SessionGuard) identity(r *http.Request) (domain.Identity, error) {
	cookie, err := r.Cookie(g.accessCookie)
	if err != nil || cookie.Value == "" {
		return domain.Identity{}, domain.ErrInvalidToken
	}
	return g.tokens.Verify(cookie.Value, domain.AccessToken)
}

func (g *SessionGuard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.identity(r)
		if err != nil {
			g.metrics.tokenVerifications.WithLabelValues(string(domain.AccessToken), verificationResult(err)).Inc()
			g.logger.Debug("access token rejected",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Error(err),
			)
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		g.metrics.tokenVerifications.WithLabelValues(string(domain.AccessToken), "ok").Inc()

		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

// RequireCSRF must run after Authenticate. Safe methods pass through.
func (g *SessionGuard) RequireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		id, ok := IdentityFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		if err := g.csrf.Verify(id, r.Header.Get(g.csrfHeader)); err != nil {
			g.logger.Info("csrf check failed",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("user_id", id.UserID.String()),
			)
			writeError(w, http.StatusForbidden, msgForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateKey identifies the caller for rate limiting: the user when the access
// cookie verifies, the client address otherwise.
func (g *SessionGuard) RateKey(r *http.Request) string {
	if id, err := g.identity(r); err == nil {
		return "user:" + id.UserID.String()
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func verificationResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrExpiredToken):
		return "expired"
	case errors.Is(err, domain.ErrWrongTokenKind):
		return "wrong_kind"
	default:
		return "invalid"
	}
}

// RateLimit refuses callers that went over their quota with 429.
type RateLimit struct {
	limiter ports.RateLimiter
	keyFunc func(*http.Request) string
	metrics *Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewRateLimit(limiter ports.RateLimiter, keyFunc func(*http.Request) string, metrics *Metrics, logger *zap.Logger) *RateLimit {
	return &RateLimit{
		limiter: limiter,
		keyFunc: keyFunc,
		metrics: metrics,
		logger:  logger.Named("rate_limit"),
		now:     time.Now,
	}
}

// Handler returns the middleware for one route group. scope only labels the
// rejection metric; the quota is shared per caller key.
func (l *RateLimit) Handler(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := l.limiter.Allow(r.Context(), l.keyFunc(r))
			if err != nil {
				l.logger.Error("rate limiter unavailable, letting request through",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

			if !decision.Allowed {
				l.metrics.rateLimitRejections.WithLabelValues(scope).Inc()
				retry := int(math.Ceil(decision.ResetAt.Sub(l.now()).Seconds()))
				if retry < 1 {
					retry = 1
				}
				h.Set("Retry-After", strconv.Itoa(retry))
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request once the response is written.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logger.Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
