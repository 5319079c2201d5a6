package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Simplici0/vapformula/internal/config"
	"github.com/Simplici0/vapformula/internal/db"
	"github.com/Simplici0/vapformula/internal/logger"
	"github.com/Simplici0/vapformula/internal/migrations"
	"github.com/Simplici0/vapformula/internal/seed"
	"github.com/Simplici0/vapformula/internal/store"
)

type server struct {
	auth           *authService
	store          *store.Store
	log            zerolog.Logger
	maxUploadBytes int64
}

func main() {
	cfg := config.Load()
	log := logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	migrations.SetLogger(log)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer database.Close()

	if err := migrations.Up(database); err != nil {
		log.Fatal().Err(err).Msg("failed to run database migrations")
	}

	stats, err := seed.Run(database, seed.Config{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed database")
	}
	log.Info().Int("inserts", stats.Inserts).Msg("startup seed complete")

	st := store.New(database)
	srv := &server{
		auth:           newAuthService(st, cfg.SessionSecret),
		store:          st,
		log:            log,
		maxUploadBytes: cfg.MaxUploadBytes(),
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Str("env", cfg.Env).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.RequestLogger(s.log))
	r.Use(logger.Recoverer(s.log))
	r.Use(s.authMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Route("/api", func(r chi.Router) {
		r.Post("/pricing/calculate", s.handleCalculate)

		r.Get("/pricing-runs", s.handleListRuns)
		r.Post("/pricing-runs", s.handleCreateRun)
		r.Get("/pricing-runs/{id}", s.handleGetRun)
		r.Get("/pricing-runs/{id}/history", s.handleRunHistory)
		r.Get("/pricing-runs/{id}/export", s.handleExportRun)
		r.Get("/pricing-runs/{id}/export/sap", s.handleExportSAP)

		r.Get("/customers", s.handleListCustomers)
		r.Post("/customers", s.handleCreateCustomer)

		r.Get("/pricing-models", s.handleListModels)
		r.Post("/pricing-models", s.handleCreateModel)
		r.Get("/pricing-models/filters", s.handleModelFilters)
		r.Get("/pricing-models/{id}", s.handleGetModel)
		r.Put("/pricing-models/{id}", s.handleUpdateModel)
		r.Get("/pricing-models/{id}/history", s.handleModelHistory)

		r.Get("/products", s.handleListProducts)

		r.Get("/imports", s.handleListImports)
		r.Post("/imports", s.handleImport)
		r.Post("/imports/validate", s.handleValidateImport)
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DB().PingContext(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin accepts either a JSON body or a form post.
func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if isJSON(r) {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form")
			return
		}
		req.Email = r.FormValue("email")
		req.Password = r.FormValue("password")
	}

	valid, err := s.auth.validateCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		s.log.Error().Err(err).Msg("validate credentials")
		writeError(w, http.StatusInternalServerError, "authentication error")
		return
	}
	if !valid {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	s.auth.setSessionCookie(w, req.Email)
	s.audit(r, store.AuditEntry{
		UserEmail:  req.Email,
		Action:     store.AuditLogin,
		EntityType: store.EntityUser,
		EntityID:   req.Email,
	}, nil)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "email": req.Email})
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// audit records an entry without failing the request it belongs to.
func (s *server) audit(r *http.Request, e store.AuditEntry, changes any) {
	e.IPAddress = r.RemoteAddr
	e.UserAgent = r.UserAgent()
	if err := s.store.RecordAudit(r.Context(), e, changes); err != nil {
		s.log.Warn().Err(err).Str("entity", e.EntityType).Str("id", e.EntityID).Msg("record audit entry")
	}
}
