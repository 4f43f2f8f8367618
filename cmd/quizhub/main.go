// Package main provides the quiz hub server: the coordination hub, the admin
// HTTP API, and the gRPC health service.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/quizhub/internal/config"
	"github.com/cory-johannsen/quizhub/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	migrateFirst := flag.Bool("migrate", false, "apply pending schema migrations before starting")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	if *migrateFirst {
		res, err := postgres.Migrate(cfg.Database.DSN(), "up", 0)
		if err != nil {
			log.Fatalf("migrating schema: %v", err)
		}
		log.Printf("schema at version %d (changed=%v)", res.Version, res.Changed)
	}

	ctx := context.Background()
	app, cleanup, err := initializeApp(ctx, cfg)
	if err != nil {
		log.Fatalf("initializing quiz hub: %v", err)
	}
	defer cleanup()

	app.logger.Info("quiz hub initialized",
		zap.String("http_addr", cfg.HTTP.Addr()),
		zap.String("grpc_addr", cfg.GRPC.Addr()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := app.Run(ctx); err != nil {
		app.logger.Error("server error", zap.Error(err))
		cleanup()
		log.Fatalf("quiz hub: %v", err)
	}
}
