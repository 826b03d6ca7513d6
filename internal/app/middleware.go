package app

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/atlas-desk/atlas-desk/internal/observability"
	"github.com/atlas-desk/atlas-desk/internal/shared"
)

// Header names carrying the identity assertion from the upstream gateway.
// The gateway authenticates the request; this service trusts its assertion
// and performs no authentication of its own.
const (
	HeaderUserID = "X-User-ID"
	HeaderOrgID  = "X-Org-ID"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
}

// MiddlewareStack installs the middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		FeaturePolicy:      "none",
		SSLRedirect:        cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	identityMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawUser := r.Header.Get(HeaderUserID)
			if rawUser == "" {
				next.ServeHTTP(w, r)
				return
			}
			userID, err := strconv.ParseInt(rawUser, 10, 64)
			if err != nil || userID <= 0 {
				cfg.Logger.Warn("malformed identity assertion", slog.String("value", rawUser))
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			var orgID int64
			if rawOrg := r.Header.Get(HeaderOrgID); rawOrg != "" {
				orgID, err = strconv.ParseInt(rawOrg, 10, 64)
				if err != nil || orgID < 0 {
					cfg.Logger.Warn("malformed org assertion", slog.String("value", rawOrg))
					http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
					return
				}
			}
			ctx := shared.ContextWithActor(r.Context(), shared.Actor{UserID: userID, OrgID: orgID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		identityMiddleware,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		httprate.Limit(120, time.Minute, httprate.WithKeyFuncs(rateLimitKey)),
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, func(next http.Handler) http.Handler {
			return cfg.Metrics.Middleware(next)
		})
	}
	return middlewares
}

// rateLimitKey buckets by asserted user when present, client IP otherwise.
func rateLimitKey(r *http.Request) (string, error) {
	if user := r.Header.Get(HeaderUserID); user != "" {
		return "user:" + user, nil
	}
	return httprate.KeyByIP(r)
}
