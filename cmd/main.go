// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/pgxstore"
	"github.com/alexedwards/scs/v2"
	"github.com/joho/godotenv"

	"github.com/vokorun/runclub/internal/auth"
	"github.com/vokorun/runclub/internal/blob"
	"github.com/vokorun/runclub/internal/config"
	"github.com/vokorun/runclub/internal/database"
	"github.com/vokorun/runclub/internal/handler"
	"github.com/vokorun/runclub/internal/repository"
	"github.com/vokorun/runclub/internal/repository/memory"
	"github.com/vokorun/runclub/internal/service"
)

// roleStore is what both sign-in and the registrant listing need from user_roles.
type roleStore interface {
	auth.RoleStore
	service.RoleDirectory
}

// stores are the three collections plus the session store backing them.
type stores struct {
	roles         roleStore
	events        service.EventStore
	registrations service.RegistrationStore
	sessions      scs.Store // nil keeps sessions in memory
	close         func()
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// ── 1. Configuration and logging ──────────────────────────────────────
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	// ── 2. Storage ────────────────────────────────────────────────────────
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	blobs, err := blob.NewStore(cfg.UploadsDir, cfg.PublicBaseURL)
	if err != nil {
		return err
	}

	// ── 3. Wire up layers ─────────────────────────────────────────────────
	allow := auth.BuildAllowList()
	if len(allow) == 0 {
		log.Warn("admin allow-list is empty; nobody will be elevated to admin at sign-in")
	}

	var provider auth.Provider
	if cfg.GoogleEnabled() {
		provider = auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	} else {
		log.Warn("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set; sign-in is disabled")
	}

	regSvc := service.NewRegistrationService(st.events, st.registrations, log)
	eventSvc := service.NewEventService(st.events, regSvc, st.registrations, st.roles, cfg.Location(), log)

	router := handler.NewRouter(handler.Deps{
		Sessions:      auth.NewSessions(auth.NewSessionManager(st.sessions, cfg.SessionLifetime, !cfg.IsDevelopment())),
		Resolver:      auth.NewResolver(st.roles, log),
		SignIn:        auth.NewMaterializer(st.roles, allow, log),
		Provider:      provider,
		Events:        eventSvc,
		Registrations: regSvc,
		Blobs:         blobs,
		CORSOrigin:    cfg.CORSOrigin,
		Log:           log,
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*stores, error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn("using in-memory store; data is lost on restart")
		db := memory.New()
		return &stores{
			roles:         db.Roles(),
			events:        db.Events(),
			registrations: db.Registrations(),
			close:         func() {},
		}, nil
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.Info("connected to PostgreSQL")

	if err := database.Migrate(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	sessionStore := pgxstore.New(pool)
	return &stores{
		roles:         repository.NewRoleRepository(pool),
		events:        repository.NewEventRepository(pool),
		registrations: repository.NewRegistrationRepository(pool),
		sessions:      sessionStore,
		close: func() {
			sessionStore.StopCleanup()
			pool.Close()
		},
	}, nil
}
