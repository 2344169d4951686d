// Command woffled serves font subsetting over HTTP.
package main

import (
	"log"
	"os"

	"github.com/glyphlab/woffle"
	"github.com/glyphlab/woffle/internal/api"
	"github.com/glyphlab/woffle/internal/config"
	"github.com/glyphlab/woffle/internal/store"
	"github.com/glyphlab/woffle/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("woffled: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	opts := []woffle.Option{woffle.WithLogger(logger)}
	if cfg.WorkerBin != "" {
		// Workers as separate processes when the binary is present;
		// otherwise stay with in-process goroutine workers.
		if _, err := os.Stat(cfg.WorkerBin); err != nil {
			logger.Warn("worker binary not found, using in-process workers",
				"worker_bin", cfg.WorkerBin, "error", err)
		} else {
			logger.Info("using worker processes", "worker_bin", cfg.WorkerBin)
			opts = append(opts, woffle.WithLauncher(&worker.ProcessLauncher{
				Bin:    cfg.WorkerBin,
				Logger: logger,
			}))
		}
	}
	sub := woffle.New(opts...)

	srv := api.NewServer(cfg.ListenAddr, db, sub, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
