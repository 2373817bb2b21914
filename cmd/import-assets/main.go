// Package main loads a sprite catalog, precomputes its sprite hashes and
// writes everything to the PostgreSQL asset database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gurgalex/SiralimAccess-sub000/internal/assets"
	"github.com/gurgalex/SiralimAccess-sub000/internal/config"
	"github.com/gurgalex/SiralimAccess-sub000/internal/importer"
	"github.com/gurgalex/SiralimAccess-sub000/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "configs/access.yaml", "path to configuration file")
	catalogPath := flag.String("catalog", "", "path to catalog YAML (default: assets.catalog_path)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		os.Exit(1)
	}
	path := cfg.Assets.CatalogPath
	if *catalogPath != "" {
		path = *catalogPath
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "usage: import-assets [-config <file>] [-catalog <catalog.yaml>]")
		os.Exit(1)
	}

	start := time.Now()
	ctx := context.Background()

	cat, err := assets.LoadCatalogFromFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.RequireSchema(ctx); err != nil {
		pool.Close()
		fmt.Fprintf(os.Stderr, "error: %v (run migrate first)\n", err)
		os.Exit(1)
	}

	imp := importer.New(postgres.NewAssetRepository(pool.DB()), os.Stdout)
	if err := imp.Run(ctx, cat); err != nil {
		pool.Close()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("import complete in %s\n", time.Since(start).Round(time.Millisecond))
}
