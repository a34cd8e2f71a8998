package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf/api"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf/config"
)

func main() {
	// Load configuration from .env and the environment
	serverConfig, err := config.Load()
	if err != nil {
		slog.Error("Failed to load server configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(serverConfig.Environment)
	slog.SetDefault(logger)

	ctx := context.Background()
	comps, err := serverConfig.Build(ctx, logger)
	if err != nil {
		logger.Error("Failed to build service", "error", err)
		os.Exit(1)
	}
	defer comps.Close()

	server := NewHTTPServer(comps, serverConfig)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverConfig.Port),
		Handler: server.Routes(),
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Bookshelf server starting",
			"port", serverConfig.Port,
			"env", serverConfig.Environment,
			"database", databaseKind(serverConfig),
			"remote_storage", serverConfig.Remote.Kind,
			"upload_dir", serverConfig.Local.UploadDir)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exiting")
}

func newLogger(environment string) *slog.Logger {
	if environment == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func databaseKind(c *config.ServerConfig) string {
	if c.IsPostgres() {
		return "postgres"
	}
	return "memory"
}

// HTTPServer wraps the bookshelf components for HTTP access
type HTTPServer struct {
	comps  *config.Components
	config *config.ServerConfig
	auth   *jwtauth.JWTAuth
}

// NewHTTPServer creates a new HTTP server wrapper
func NewHTTPServer(comps *config.Components, serverConfig *config.ServerConfig) *HTTPServer {
	return &HTTPServer{
		comps:  comps,
		config: serverConfig,
		auth:   api.NewTokenAuth(serverConfig.JWTSecret),
	}
}

// Routes sets up the HTTP routes
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// CORS for development
	if s.config.Environment == "development" {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
				w.Header().Set("Access-Control-Expose-Headers", "Content-Range, Accept-Ranges, Content-Length")

				if r.Method == "OPTIONS" {
					w.WriteHeader(http.StatusOK)
					return
				}

				next.ServeHTTP(w, r)
			})
		})
	}

	handler := api.NewBookHandler(s.comps.Service, s.comps.Gateway, s.auth, api.HandlerConfig{
		MaxUploadSize:   s.config.MaxUploadSize,
		UploadURLPrefix: s.config.Local.URLPrefix,
	})

	// Health check
	r.Get("/health", s.handleHealth)

	r.Route("/api/books", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Mount("/", handler.Routes())
	})

	// Locally stored files, streamed without a deadline
	r.Mount(s.config.Local.URLPrefix, handler.UploadRoutes())

	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{
		"status":      "healthy",
		"environment": s.config.Environment,
	})
}
