package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/david/eu-grants-monitor/internal/app"
	"github.com/david/eu-grants-monitor/internal/config"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Unable to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		log.Fatalf("Ping failed: %v", err)
	}

	stats, err := store.GetStats(ctx)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	fmt.Printf("Driver: %s\n", cfg.DatabaseDriver())
	fmt.Printf("Total grants: %d\n", stats.TotalGrants)
	fmt.Printf("High priority: %d\n", stats.HighPriority)
	fmt.Printf("Expiring soon: %d\n", stats.ExpiringSoon)
	fmt.Printf("Average relevance: %.1f\n", stats.AvgRelevance)
	for program, n := range stats.Programs {
		fmt.Printf("  %s: %d\n", program, n)
	}
	fmt.Printf("Monitoring sessions: %d\n", stats.Sessions)
	fmt.Printf("Alerts: %d\n", stats.Alerts)
	fmt.Printf("Applications: %d\n", stats.Applications)
	if stats.LastCycleAt != nil {
		fmt.Printf("Last cycle: %s\n", stats.LastCycleAt.Format(time.RFC3339))
	}
}
