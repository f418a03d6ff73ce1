package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"crosspost/api"
	"crosspost/config"
	"crosspost/control"
	"crosspost/extractor"
	"crosspost/orchestrator"
	"crosspost/platforms"
	"crosspost/storage"
)

func main() {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, limiter := openStore(cfg)

	runtime, err := platforms.NewHTTPRuntime()
	if err != nil {
		log.Fatalf("building http runtime: %v", err)
	}
	registry := platforms.NewRegistry()
	if err := registry.SetRuntime(runtime); err != nil {
		log.Fatalf("injecting runtime: %v", err)
	}

	orch := orchestrator.New(registry, runtime, store, limiter)
	if err := orch.Bootstrap(ctx); err != nil {
		log.Fatalf("bootstrapping orchestrator: %v", err)
	}

	dispatcher := control.NewDispatcher(cfg.ControlToken, registry, orch, extractor.ExtractArticle)
	client := control.NewClient(cfg.ControlURL, dispatcher)
	go client.Run(ctx)

	router := api.NewRouter(api.NewServer(orch, registry, client))
	server := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		<-ctx.Done()
		server.Close()
	}()

	log.Printf("Starting API server on %s", cfg.HTTPAddr)
	log.Println("API endpoints available:")
	log.Println("  GET /api/status")
	log.Println("  GET /api/history")
	log.Println("  GET /api/platforms")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// openStore connects the redis-backed store when an address is configured
// and falls back to process memory otherwise.
func openStore(cfg config.Config) (storage.Store, storage.RateLimiter) {
	if cfg.RedisAddr == "" {
		log.Println("REDIS_ADDR not set, using in-memory store")
		return storage.NewMemoryStore(), storage.NewMemoryRateLimiter(config.SyncRateLimitWindow)
	}
	store, err := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Printf("redis unavailable (%v), using in-memory store", err)
		return storage.NewMemoryStore(), storage.NewMemoryRateLimiter(config.SyncRateLimitWindow)
	}
	return store, store.RateLimiter(config.SyncRateLimitWindow)
}
