package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/david/eu-grants-monitor/internal/app"
	"github.com/david/eu-grants-monitor/internal/config"
	"github.com/david/eu-grants-monitor/internal/ingest"
	"github.com/david/eu-grants-monitor/internal/logging"
	"github.com/david/eu-grants-monitor/internal/models"
	"github.com/david/eu-grants-monitor/internal/scoring"
)

func main() {
	sourceID := flag.String("source", "", "Source ID to ingest (e.g., horizon_europe)")
	flag.Parse()

	if *sourceID == "" {
		log.Fatal("Please provide a source ID using -source flag")
	}

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	ctx := context.Background()
	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	logger := logging.New(cfg.Logging.Service, cfg.Logging.Level)
	deps := app.IngestDeps(cfg, logger)
	source, err := ingest.BuildSource(*sourceID, cfg.Scrapers, deps)
	if err != nil {
		log.Fatalf("Unknown source: %v", err)
	}

	session := models.ScrapingSession{
		ID:        uuid.New(),
		Source:    source.Name(),
		StartedAt: deps.Now(),
		Status:    models.SessionRunning,
	}

	log.Printf("Starting manual ingestion for source: %s", *sourceID)
	grants, err := source.Fetch(ctx)
	completed := deps.Now()
	session.CompletedAt = &completed
	if err != nil {
		session.Status = models.SessionFailed
		session.ErrorMessage = err.Error()
		if saveErr := store.SaveScrapingSession(ctx, session); saveErr != nil {
			log.Printf("Failed to record scraping session: %v", saveErr)
		}
		log.Fatalf("Ingestion failed: %v", err)
	}

	grants = scoring.ScoreGrants(grants, cfg.BusinessProfile, cfg.Matching, cfg.Scoring.Weights, time.Now().UTC())
	result, err := store.UpsertGrants(ctx, grants)
	if err != nil {
		log.Fatalf("Save failed: %v", err)
	}

	session.Status = models.SessionCompleted
	session.GrantsFound = len(grants)
	session.GrantsNew = result.New
	session.GrantsUpdated = result.Updated
	if err := store.SaveScrapingSession(ctx, session); err != nil {
		log.Printf("Failed to record scraping session: %v", err)
	}

	log.Printf("Ingestion finished for %s. Found: %d, New: %d, Updated: %d", *sourceID, len(grants), result.New, result.Updated)
}
