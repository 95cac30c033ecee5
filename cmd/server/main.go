package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vareng/annotator/internal/api"
	"github.com/vareng/annotator/internal/annotation/repository"
	"github.com/vareng/annotator/internal/batch"
	"github.com/vareng/annotator/internal/config"
	"github.com/vareng/annotator/internal/metrics"
	"github.com/vareng/annotator/internal/registry"
	"github.com/vareng/annotator/internal/scoring"
	"github.com/vareng/annotator/internal/submission"
	"github.com/vareng/annotator/internal/vep"
)

func main() {
	log.Println("Starting annotator...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	dbConfig := repository.DBConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Name,
		SSLMode:         cfg.Database.SSLMode,
		MaxConnections:  20,
		MinConnections:  2,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
	}

	pool, err := repository.NewConnectionPool(context.Background(), dbConfig)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer repository.ClosePool(pool)
	log.Println("connected to database")

	store := repository.NewPostgresStore(pool)
	if err := store.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	m := metrics.NewMetrics()
	reg := registry.New()

	scorer, err := scoring.New(cfg.Scoring.ModelPath)
	if err != nil {
		log.Fatalf("failed to load scoring model: %v", err)
	}
	if cfg.Scoring.ModelPath == "" {
		log.Println("ML scoring disabled: no model path configured")
	}

	vepClient := vep.New(cfg.Vep.URL, cfg.Batch.VepTimeout, m)

	processor := batch.New(cfg.Batch, reg, store, vepClient, scorer, m)
	processor.Start()
	log.Printf("batch processor started: max_batch_size=%d max_wait=%s max_workers=%d",
		cfg.Batch.MaxBatchSize, cfg.Batch.MaxWaitTime, cfg.Batch.MaxWorkers)

	facade := submission.New(store, reg, processor)

	go runRetentionSweep(reg, cfg.Batch.TerminalRetention)

	healthCheck := func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
	handler := api.NewHandler(facade, store, reg, healthCheck)

	router := http.NewServeMux()
	router.HandleFunc("POST /submit", handler.Submit)
	router.HandleFunc("GET /poll/{variant_key}", handler.Poll)
	router.HandleFunc("GET /health", handler.Health)
	router.HandleFunc("GET /statistics", handler.Statistics)
	router.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("HTTP server listening on :%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("shutting down gracefully...")

	facade.Shutdown()
	processor.Stop()
	log.Println("batch processor drained")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	log.Println("shutdown complete")
}

// runRetentionSweep periodically evicts terminal registry entries older
// than retention, so Completed/Failed entries don't accumulate in memory
// once a client has had a chance to poll them.
func runRetentionSweep(reg *registry.Registry, retention time.Duration) {
	ticker := time.NewTicker(retention)
	defer ticker.Stop()
	for range ticker.C {
		evicted := reg.SweepTerminal(retention)
		if evicted > 0 {
			log.Printf("retention sweep: evicted %d terminal entries", evicted)
		}
	}
}
