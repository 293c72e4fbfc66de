package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/app"
	"github.com/jafarshop/storefront/internal/config"
	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/service"
)

const pageSize = 50

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/find-product/main.go <search>")
		fmt.Println("Example: go run cmd/find-product/main.go \"coffee\"")
		os.Exit(1)
	}

	search := os.Args[1]

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
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

	catalog := service.NewCatalogService(backends.Repos.Product, logger)

	fmt.Printf("Searching catalog for: %s\n\n", search)

	found := 0
	for offset := 0; ; offset += pageSize {
		products, total, err := catalog.List(ctx, domain.ProductFilter{
			Search: search,
			Limit:  pageSize,
			Offset: offset,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to query catalog: %v\n", err)
			os.Exit(1)
		}

		for _, p := range products {
			status := "active"
			if !p.IsActive {
				status = "inactive"
			}
			fmt.Printf("%-38s %-30s %10s  stock %-4d %s/%s\n",
				p.ID, p.Name, p.Price.StringFixed(2), p.Stock, p.Category, status)
			found++
		}

		if offset+pageSize >= total {
			break
		}
	}

	if found == 0 {
		fmt.Printf("No products match '%s'.\n", search)
		fmt.Printf("\nThe search is case-insensitive and matches names and descriptions.\n")
		os.Exit(1)
	}
	fmt.Printf("\n%d product(s) found\n", found)
}
