package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	accountrepo "course-marketplace/backend/internal/account/repository"
	"course-marketplace/backend/internal/audit"
	auditrepo "course-marketplace/backend/internal/audit/repository"
	authservice "course-marketplace/backend/internal/auth/service"
	"course-marketplace/backend/internal/config"
	"course-marketplace/backend/internal/db"
	"course-marketplace/backend/internal/moderation"
	"course-marketplace/backend/internal/policy/engine"
	"course-marketplace/backend/internal/revocation"
	"course-marketplace/backend/internal/security"
	"course-marketplace/backend/internal/server"
	"course-marketplace/backend/internal/server/middleware"
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
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()

	providers, err := telemetry.NewProviders(ctx, cfg.OTLPEndpoint, "course-marketplace", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("JWT_PRIVATE_KEY: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("JWT_PUBLIC_KEY: %v", err)
	}
	codec := security.NewTokenCodec(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	hasher := security.NewHasher(cfg.BcryptCost)

	accounts := accountrepo.NewPostgresRepository(conn)
	sessions := store.New(sessionrepo.NewPostgresRepository(conn), cfg.RefreshTTL(), cfg.MaxDevices)
	revocationStore := revocation.NewPostgresStore(conn)
	auditRepo := auditrepo.NewPostgresRepository(conn)

	auditLog := telemetry.Fanout(
		audit.NewLogger(auditRepo, middleware.ClientIP),
		telemetry.NewAuditEmitter(providers.LoggerProvider),
	)

	moderationSvc := moderation.NewService(accounts, sessions, auditLog)
	sessionSvc := authservice.NewSessionService(
		accounts, sessions, revocationStore, codec, hasher,
		moderationSvc, auditLog, cfg.RevocationFailOpen,
	)

	policy := engine.NewOPAEvaluator()
	if cfg.AdminPolicyPath != "" {
		policy, err = engine.NewOPAEvaluatorFromFile(cfg.AdminPolicyPath)
		if err != nil {
			log.Fatalf("admin policy: %v", err)
		}
	}

	router := server.NewRouter(server.Deps{
		Sessions:           sessionSvc,
		Moderation:         moderationSvc,
		SessionStore:       sessions,
		AuditRepo:          auditRepo,
		Policy:             policy,
		Codec:              codec,
		Revocation:         revocationStore,
		RevocationFailOpen: cfg.RevocationFailOpen,
		HealthPinger:       conn,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
