package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/app"
	"github.com/jafarshop/storefront/internal/config"
	"github.com/jafarshop/storefront/internal/service"
)

func main() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: go run cmd/create-admin/main.go <name> <email> <password>")
		fmt.Println("Example: go run cmd/create-admin/main.go \"Store Admin\" admin@example.com admin123")
		os.Exit(1)
	}

	name := os.Args[1]
	email := os.Args[2]
	password := os.Args[3]

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.Backend == "memory" {
		fmt.Fprintln(os.Stderr, "STORAGE_BACKEND=memory does not persist; use sqlite or redis")
		os.Exit(1)
	}

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	ctx := context.Background()
	backends, err := app.Open(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer backends.Close()

	auth := service.NewAuthService(backends.Repos.User, backends.Repos.Session, logger)
	admin, err := auth.CreateAdmin(ctx, name, email, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create admin: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Admin ready\n\n")
	fmt.Printf("User ID: %s\n", admin.ID)
	fmt.Printf("Name: %s\n", admin.Name)
	fmt.Printf("Email: %s\n", admin.Email)
	fmt.Printf("\nSign in with POST /v1/auth/login and send the returned token as:\n")
	fmt.Printf("Authorization: Bearer <token>\n")
}
