package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aai-storage/mining-dashboard/internal/client"
	"github.com/aai-storage/mining-dashboard/internal/config"
	"github.com/aai-storage/mining-dashboard/internal/db"
	"github.com/aai-storage/mining-dashboard/internal/gateway"
	"github.com/aai-storage/mining-dashboard/internal/http"
	"github.com/aai-storage/mining-dashboard/internal/metrics"
	"github.com/aai-storage/mining-dashboard/internal/repository"
	"github.com/aai-storage/mining-dashboard/internal/service"
)

func main() {
	log.Println("Starting Mining Dashboard...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Initialize the store gateway
	var gw gateway.Gateway
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		pool, err := db.NewPool(context.Background(), &cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()
		gw = repository.NewGateway(pool)
	default:
		gw = client.NewStoreClient(cfg.Store.URL, cfg.Store.AnonKey, cfg.Store.Schema, cfg.Store.Timeout)
		log.Printf("Using store at %s", cfg.Store.URL)
	}
	gw = metrics.InstrumentGateway(gw, m)

	// Initialize services
	sessions := service.NewSessionService(gw, m, cfg.Mining.SessionIdle)

	// Initialize HTTP server
	server := http.NewServer(cfg, sessions, reg)

	// Start server in goroutine
	go func() {
		if err := server.Run(); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	sessions.CloseAll()

	log.Println("Server exited")
}
