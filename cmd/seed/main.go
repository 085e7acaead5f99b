// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev admin (admin@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"course-marketplace/backend/internal/account/domain"
	accountrepo "course-marketplace/backend/internal/account/repository"
	"course-marketplace/backend/internal/config"
	"course-marketplace/backend/internal/db"
	"course-marketplace/backend/internal/security"
)

const (
	adminEmail     = "admin@example.com"
	studentEmail   = "student@example.com"
	suspendedEmail = "suspended@example.com"
	devPassword    = "Dev-Password-123!"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	accounts := accountrepo.NewPostgresRepository(conn)
	ctx := context.Background()

	existing, err := accounts.GetByEmail(ctx, adminEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (admin@example.com exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	suspendedUntil := now.Add(24 * time.Hour)

	seedAccounts := []*domain.Account{
		{
			ID:           uuid.New().String(),
			Email:        adminEmail,
			Name:         "Dev Admin",
			PasswordHash: passwordHash,
			Role:         domain.RoleAdmin,
			Status:       domain.StatusActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:           uuid.New().String(),
			Email:        studentEmail,
			Name:         "Dev Student",
			PasswordHash: passwordHash,
			Role:         domain.RoleStudent,
			Status:       domain.StatusActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:               uuid.New().String(),
			Email:            suspendedEmail,
			Name:             "Suspended Student",
			PasswordHash:     passwordHash,
			Role:             domain.RoleStudent,
			Status:           domain.StatusSuspended,
			ModerationKind:   domain.KindTemporary,
			ModerationReason: "seed: temporary suspension",
			ModeratedAt:      &now,
			ModerationUntil:  &suspendedUntil,
			CreatedAt:        now,
			UpdatedAt:        now,
		},
	}

	for _, a := range seedAccounts {
		if err := a.Validate(); err != nil {
			log.Fatalf("validate %s: %v", a.Email, err)
		}
		if err := accounts.Create(ctx, a); err != nil {
			log.Fatalf("create %s: %v", a.Email, err)
		}
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Admin login: %s / %s\n", adminEmail, devPassword)
	fmt.Printf("Student login: %s / %s\n", studentEmail, devPassword)
	fmt.Printf("Suspended (until %s): %s / %s\n", suspendedUntil.Format(time.RFC3339), suspendedEmail, devPassword)
}
