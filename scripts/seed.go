//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/hugh/recipebox/internal/auth"
	"github.com/hugh/recipebox/internal/database"
	"github.com/hugh/recipebox/pkg/config"
	"github.com/hugh/recipebox/pkg/util"
	"github.com/joho/godotenv"
)

// Creates the initial superuser account. Run with:
//
//	go run scripts/seed.go
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	authService := auth.NewService(db, nil)

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")

	if email == "" {
		email = "admin@example.com"
	}
	if password == "" {
		password = "admin123!"
	}

	user, err := authService.CreateSuperuser(context.Background(), email, password)
	if err != nil {
		log.Fatalf("failed to create superuser: %v", err)
	}

	fmt.Printf("created superuser %s (%s)\n", user.Email, user.ID)
}
