package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Rohith-Pavan/Dare-Exchange/internal/config"
)

// RouterOption configures the behaviour of NewRouter.
type RouterOption func(*routerConfig)

// WithLogging controls whether access logs are emitted.
func WithLogging(enabled bool) RouterOption {
	return func(cfg *routerConfig) {
		cfg.enableLogging = enabled
	}
}

// WithRateLimiter overrides the default request rate limiter (primarily for tests).
func WithRateLimiter(limiter rateLimiter) RouterOption {
	return func(cfg *routerConfig) {
		cfg.rateLimiter = limiter
	}
}

// WithRateLimit configures a token bucket limiter. A zero rate or burst
// disables limiting.
func WithRateLimit(rps float64, burst int) RouterOption {
	return func(cfg *routerConfig) {
		if rps <= 0 || burst <= 0 {
			cfg.rateLimiter = nil
			return
		}
		cfg.rateLimiter = newTokenBucketLimiter(rps, burst)
	}
}

// WithMiddleware sets the ordered middleware names. Index 0 is outermost.
func WithMiddleware(names []string) RouterOption {
	return func(cfg *routerConfig) {
		cfg.middleware = append([]string(nil), names...)
	}
}

// WithAllowedHosts rejects requests whose Host header is not listed.
func WithAllowedHosts(hosts []string) RouterOption {
	return func(cfg *routerConfig) {
		cfg.allowedHosts = append([]string{}, hosts...)
	}
}

// WithSecurity configures the security and cookie middleware. proxySSLHeader
// names a trusted header that marks a request as HTTPS; empty disables it.
func WithSecurity(sec config.SecurityConfig, proxySSLHeader string) RouterOption {
	return func(cfg *routerConfig) {
		cfg.security = sec
		cfg.proxySSLHeader = proxySSLHeader
	}
}

// WithStaticFiles serves files under urlPrefix from files.
func WithStaticFiles(urlPrefix string, files StaticFiles) RouterOption {
	return func(cfg *routerConfig) {
		cfg.staticURL = urlPrefix
		cfg.static = files
	}
}

// WithMount registers an extra handler on the router's mux.
func WithMount(pattern string, handler http.Handler) RouterOption {
	return func(cfg *routerConfig) {
		cfg.mounts = append(cfg.mounts, mount{pattern: pattern, handler: handler})
	}
}

type mount struct {
	pattern string
	handler http.Handler
}

type routerConfig struct {
	enableLogging  bool
	logger         *zap.Logger
	rateLimiter    rateLimiter
	middleware     []string
	allowedHosts   []string
	security       config.SecurityConfig
	proxySSLHeader string
	staticURL      string
	static         StaticFiles
	mounts         []mount
}

// NewRouter creates an HTTP router wrapped in the configured middleware chain.
func NewRouter(handler *Handler, logger *zap.Logger, opts ...RouterOption) (http.Handler, error) {
	cfg := routerConfig{
		enableLogging: true,
		logger:        logger,
		rateLimiter:   newTokenBucketLimiter(25, 50),
		middleware:    config.DefaultMiddleware(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /api/health", http.HandlerFunc(handler.handleHealth))
	for _, m := range cfg.mounts {
		mux.Handle(m.pattern, m.handler)
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	var root http.Handler = mux
	for i := len(cfg.middleware) - 1; i >= 0; i-- {
		name := cfg.middleware[i]
		wrap, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown middleware %q", name)
		}
		root = wrap(root)
	}
	if cfg.allowedHosts != nil {
		root = allowedHostsMiddleware(cfg.allowedHosts, root)
	}

	return root, nil
}

type middlewareFunc func(http.Handler) http.Handler

func buildRegistry(cfg routerConfig) (map[string]middlewareFunc, error) {
	security, err := newSecurityMiddleware(cfg.security, cfg.proxySSLHeader)
	if err != nil {
		return nil, err
	}

	return map[string]middlewareFunc{
		config.MiddlewareSecurity: security,
		config.MiddlewareStatic: func(next http.Handler) http.Handler {
			return staticMiddleware(cfg.staticURL, cfg.static, next)
		},
		config.MiddlewareRequestID: requestIDMiddleware,
		config.MiddlewareSession: func(next http.Handler) http.Handler {
			return sessionMiddleware(cfg.security.SessionCookieSecure, next)
		},
		config.MiddlewareRecovery: func(next http.Handler) http.Handler {
			return recoveryMiddleware(cfg.logger, next)
		},
		config.MiddlewareLogging: func(next http.Handler) http.Handler {
			if !cfg.enableLogging {
				return next
			}
			return loggingMiddleware(cfg.logger, next)
		},
		config.MiddlewareRateLimit: func(next http.Handler) http.Handler {
			return rateLimitMiddleware(cfg.rateLimiter, next)
		},
		config.MiddlewareCORS: corsMiddleware,
		config.MiddlewareCSRF: func(next http.Handler) http.Handler {
			return csrfMiddleware(cfg.security.CSRFCookieSecure, next)
		},
		config.MiddlewareClickjacking: clickjackingMiddleware,
	}, nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-Requested-With,X-CSRFToken")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		requestID := requestIDFromContext(r.Context())
		logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", duration),
			zap.String("request_id", requestID),
		)
	})
}

func recoveryMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered",
					zap.Any("error", rec),
					zap.String("request_id", requestIDFromContext(r.Context())),
				)
				writeError(w, http.StatusInternalServerError, "Internal error", "unexpected server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = generateRequestID()
		}
		ctx := r.Context()
		ctx = contextWithRequestID(ctx, requestID)

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func generateRequestID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return hex.EncodeToString(buf)
}

func contextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
