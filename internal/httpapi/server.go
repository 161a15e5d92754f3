// Package httpapi serves the miniapp and admin HTTP API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"gacha-bot/internal/config"
	"gacha-bot/internal/imagestore"
	"gacha-bot/internal/metrics"
	"gacha-bot/internal/token"
)

// ServerConfig holds the HTTP settings the router and server are built from.
type ServerConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// ServerConfigFrom copies the HTTP section of the application config.
func ServerConfigFrom(cfg config.HTTPConfig) ServerConfig {
	return ServerConfig{
		Addr:           cfg.Addr,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}
}

// Dependencies holds everything the handlers call into.
type Dependencies struct {
	Symbols   SymbolSource
	Profiles  ProfileSource
	Cards     CardSource
	Images    imagestore.Store
	Downloads *token.Downloads
	Admin     AdminAuth
	Sets      SetStore
	Health    Pinger
	Metrics   *metrics.Metrics
}

// NewRouter creates the router with all routes and middleware configured.
func NewRouter(cfg ServerConfig, deps *Dependencies, limiter *RateLimiter) *chi.Mux {
	h := newHandler(deps)
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Instrument)
	}

	r.Get("/healthz", h.Healthz)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Handler)
		}

		r.Get("/chat/{chat_id}/slot-symbols", h.SlotSymbols)
		r.Get("/user/{user_id}/profile", h.Profile)
		r.Get("/cards/{username}", h.UserCards)
		r.Get("/miniapp/route", h.MiniappRoute)

		r.Route("/downloads", func(r chi.Router) {
			r.Post("/token/card/{card_id}", h.CreateDownloadToken)
			r.Get("/card/{card_id}", h.DownloadCard)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Route("/auth", func(r chi.Router) {
				r.Post("/login", h.AdminLogin)
				r.Post("/resend-otp", h.AdminResendOTP)
				r.Post("/verify-otp", h.AdminVerifyOTP)
				r.With(h.requireAdmin).Get("/me", h.AdminMe)
			})
			r.Route("/sets", func(r chi.Router) {
				r.Use(h.requireAdmin)
				r.Get("/", h.ListSets)
				r.Post("/", h.CreateSet)
				r.Get("/{season_id}/{set_id}", h.GetSet)
				r.Put("/{season_id}/{set_id}", h.UpdateSet)
			})
		})
	})

	return r
}

// Server runs the HTTP API until its context is cancelled.
type Server struct {
	srv *http.Server
}

// NewServer creates a Server for handler.
func NewServer(cfg ServerConfig, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("HTTP server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
