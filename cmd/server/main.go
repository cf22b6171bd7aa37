package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/david/eu-grants-monitor/internal/app"
	"github.com/david/eu-grants-monitor/internal/config"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	port := cfg.Server.Port
	if port == "" {
		port = "8081"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Startup failed: %v", err)
	}
	defer a.Close()

	log.Printf("Server starting on port %s...", port)
	if err := a.Serve(ctx, port, os.Getenv("MONITOR_SCHEDULE") == "true"); err != nil {
		log.Fatal(err)
	}
}
