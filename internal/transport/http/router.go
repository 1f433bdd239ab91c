package http

import (
	"net/http"

	"github.com/blog-otp-auth/internal/application/auth"
	"github.com/blog-otp-auth/internal/application/session"
	"github.com/blog-otp-auth/internal/application/user"
	"github.com/blog-otp-auth/internal/config"
	"github.com/blog-otp-auth/internal/transport/http/handler"
	appmiddleware "github.com/blog-otp-auth/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Applied to every endpoint that can trigger an email or burn an attempt.
	otpRL := appmiddleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, cfg.TrustedProxies...)

	authSvc := auth.NewService(auth.ServiceDeps{
		OTPStore:        deps.OTPStore,
		UserStore:       deps.Users,
		Notifier:        deps.Notifier,
		Tokens:          deps.Tokens,
		Hasher:          deps.Hasher,
		OTPTTL:          cfg.OTPTTL,
		SessionTTL:      cfg.JWTExpiry,
		MaxAttempts:     cfg.OTPMaxAttempts,
		NotifyTimeout:   cfg.NotifyTimeout,
		UpstreamTimeout: cfg.UpstreamTimeout,
	})
	sessionSvc := session.NewService(deps.Tokens)
	userSvc := user.NewService(deps.Users, cfg.UpstreamTimeout)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	profileH := handler.NewProfileHandler(userSvc)
	authMw := appmiddleware.Auth(sessionSvc)

	routes := func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.Group(func(r chi.Router) {
			r.Use(otpRL.Limit)
			r.Post("/auth/send-otp", authH.SendOTP)
			r.Post("/auth/verify-otp", authH.VerifyOTP)
			r.Post("/auth/complete-signup", authH.CompleteSignup)
		})

		r.With(authMw).Get("/user/profile", profileH.Get)
	}

	routes(r)
	r.Route("/api", routes)

	return r
}
