// Worker runs the moderation reconciler: it lifts expired temporary sanctions
// and purges expired refresh sessions and revoked tokens on an interval.
// Set DATABASE_URL and optionally RECONCILE_INTERVAL (default 1m).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	accountrepo "course-marketplace/backend/internal/account/repository"
	"course-marketplace/backend/internal/audit"
	auditrepo "course-marketplace/backend/internal/audit/repository"
	"course-marketplace/backend/internal/config"
	"course-marketplace/backend/internal/db"
	"course-marketplace/backend/internal/moderation"
	"course-marketplace/backend/internal/revocation"
	sessionrepo "course-marketplace/backend/internal/session/repository"
	"course-marketplace/backend/internal/session/store"
	"course-marketplace/backend/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("worker: DATABASE_URL is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := telemetry.NewProviders(ctx, cfg.OTLPEndpoint, "course-marketplace-worker", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	accounts := accountrepo.NewPostgresRepository(conn)
	sessionRepo := sessionrepo.NewPostgresRepository(conn)
	sessions := store.New(sessionRepo, cfg.RefreshTTL(), cfg.MaxDevices)
	revocationStore := revocation.NewPostgresStore(conn)

	auditLog := telemetry.Fanout(
		audit.NewLogger(auditrepo.NewPostgresRepository(conn), nil),
		telemetry.NewAuditEmitter(providers.LoggerProvider),
	)

	svc := moderation.NewService(accounts, sessions, auditLog)
	reconciler := moderation.NewReconciler(svc, accounts, sessionRepo, revocationStore, cfg.ReconcileEvery())

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	reconciler.Run(ctx)
	log.Println("worker: stopped")
}
