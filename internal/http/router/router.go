package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/urbanloom/storefront/internal/health"
	"github.com/urbanloom/storefront/internal/http/handler"
	"github.com/urbanloom/storefront/internal/http/middleware"
	"github.com/urbanloom/storefront/internal/http/response"
	"github.com/urbanloom/storefront/internal/security"
	"github.com/urbanloom/storefront/internal/session"
)

type GlobalRateLimiterFunc func(http.Handler) http.Handler

type AuthRateLimiterFunc func(http.Handler) http.Handler

type Dependencies struct {
	AccountHandler    *handler.AccountHandler
	JWTManager        *security.JWTManager
	SessionStore      *session.Store
	CookieManager     *security.CookieManager
	CORSOrigins       []string
	GlobalRateLimiter GlobalRateLimiterFunc
	AuthRateLimiter   AuthRateLimiterFunc
	Readiness         *health.ProbeRunner
	EnableOTelHTTP    bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api/v1", func(r chi.Router) {
		if dep.GlobalRateLimiter != nil {
			r.Use(func(next http.Handler) http.Handler { return dep.GlobalRateLimiter(next) })
		}

		r.Route("/auth", func(r chi.Router) {
			if dep.AuthRateLimiter != nil {
				r.Use(func(next http.Handler) http.Handler { return dep.AuthRateLimiter(next) })
			}
			r.Use(middleware.SessionMiddleware(dep.SessionStore, dep.CookieManager))
			r.Use(middleware.CSRFMiddleware)

			r.Post("/register", dep.AccountHandler.Register)
			r.Post("/password/forgot", dep.AccountHandler.ForgotPassword)
			r.Get("/verify-otp", dep.AccountHandler.VerifyOTPStatus)
			r.Post("/verify-otp", dep.AccountHandler.VerifyOTP)
			r.Post("/password/reset", dep.AccountHandler.ResetPassword)
			r.Post("/login", dep.AccountHandler.Login)
			r.With(middleware.AuthMiddleware(dep.JWTManager)).Post("/logout", dep.AccountHandler.Logout)
		})

		r.With(middleware.AuthMiddleware(dep.JWTManager)).Get("/me", dep.AccountHandler.Me)
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
