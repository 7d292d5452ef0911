package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeru/price-oracle/internal/api"
	"github.com/zeru/price-oracle/internal/cache"
	"github.com/zeru/price-oracle/internal/config"
	"github.com/zeru/price-oracle/internal/db"
	"github.com/zeru/price-oracle/internal/ethereum"
	"github.com/zeru/price-oracle/internal/external"
	"github.com/zeru/price-oracle/internal/notifications"
	"github.com/zeru/price-oracle/internal/queue"
	"github.com/zeru/price-oracle/internal/repository"
	"github.com/zeru/price-oracle/internal/resolver"
	"github.com/zeru/price-oracle/internal/worker"
)

const banner = `
╔══════════════════════════════════════╗
║     Token Price Oracle v0.1          ║
║                                      ║
╚══════════════════════════════════════╝
`

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg.Print()

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	fmt.Printf("\n[DB] Connecting to %s:%d/%s ...\n", cfg.DBHost, cfg.DBPort, cfg.DBName)
	pool, err := db.Connect(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "[DB] Connection failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		pool.Close()
		fmt.Println("[DB] Connection pool closed")
	}()

	priceRepo := repository.NewPriceRepo(pool)
	if err := priceRepo.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "[DB] Schema setup failed: %v\n", err)
		os.Exit(1)
	}

	// Redis (price cache + job queue)
	fmt.Printf("[CACHE] Connecting to redis at %s ...\n", cfg.RedisAddr())
	rdb, err := cache.Connect(cfg.RedisAddr(), cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[CACHE] Connection failed: %v\n", err)
		os.Exit(1)
	}
	defer rdb.Close()

	priceCache := cache.NewPriceCache(rdb)
	jobQueue := queue.New(rdb)

	// External price providers
	alchemy := external.NewAlchemyClient(cfg.AlchemyAPIKey)
	gecko := external.NewCoinGeckoClient()
	fetcher := external.NewFetcher(alchemy, gecko)

	// Chain RPC clients for creation discovery
	registry := ethereum.NewRegistry()
	ethClient, err := ethereum.NewClient(cfg.EthereumRPCURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ETH] RPC dial failed: %v\n", err)
		os.Exit(1)
	}
	registry.Add("ethereum", ethClient)
	if cfg.PolygonRPCURL != "" {
		polyClient, err := ethereum.NewClient(cfg.PolygonRPCURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[ETH] Polygon RPC dial failed: %v\n", err)
			os.Exit(1)
		}
		registry.Add("polygon", polyClient)
	}
	defer registry.Close()
	fmt.Printf("[ETH] RPC clients ready for: %v\n", registry.Networks())

	// Notifications
	notify := notifications.NewSender(cfg.WebhookURL, cfg.ServiceName)

	// Tiered price resolver
	prices := resolver.New(priceRepo, priceCache, fetcher,
		time.Duration(cfg.CacheTTLSeconds)*time.Second)

	// 1. API server
	srv := api.NewServer(pool, rdb, prices, priceRepo, jobQueue,
		cfg.Port, cfg.APIKey, cfg.CORSAllowOrigin)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "[API] Server error: %v\n", err)
			os.Exit(1)
		}
	}()

	// 2. Backfill worker
	backfill := worker.New(jobQueue, priceRepo, priceCache, fetcher, registry, notify,
		worker.Options{
			BatchSize:  cfg.BackfillBatchSize,
			BatchDelay: time.Duration(cfg.BackfillBatchDelaySeconds) * time.Second,
		})
	backfill.Start(ctx)

	fmt.Println("\nAll services started successfully")

	// Wait for shutdown signal
	<-ctx.Done()
	fmt.Println("\nShutting down gracefully...")

	backfill.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "[API] Shutdown error: %v\n", err)
	}
	fmt.Println("[API] Server closed")
	fmt.Println("Shutdown complete")
}
