package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/david/eu-grants-monitor/internal/app"
	"github.com/david/eu-grants-monitor/internal/config"
	"github.com/david/eu-grants-monitor/internal/models"
	"github.com/david/eu-grants-monitor/internal/scoring"
)

type output struct {
	Grants       int            `json:"grants"`
	Changed      int            `json:"changed"`
	HighPriority int            `json:"high_priority"`
	Levels       map[string]int `json:"complexity_levels"`
	DryRun       bool           `json:"dry_run"`
}

func main() {
	profilePath := flag.String("profile", "", "score against this business profile file instead of the configured one")
	dryRun := flag.Bool("dry-run", false, "compute scores without writing them")
	flag.Parse()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config failed: %v", err)
	}
	if *profilePath != "" {
		if cfg.BusinessProfile, err = config.LoadProfile(*profilePath); err != nil {
			log.Fatalf("profile failed: %v", err)
		}
	}

	ctx := context.Background()
	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer store.Close()

	grants, err := store.AllGrants(ctx)
	if err != nil {
		log.Fatalf("load grants failed: %v", err)
	}

	result := rescore(grants, cfg, time.Now().UTC())
	result.DryRun = *dryRun
	if !*dryRun {
		if err := store.UpdateScores(ctx, grants); err != nil {
			log.Fatalf("update scores failed: %v", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// rescore recomputes every grant's scores in place against cfg and counts
// how many priorities moved.
func rescore(grants []models.Grant, cfg config.Config, now time.Time) output {
	out := output{Grants: len(grants), Levels: map[string]int{}}
	for i := range grants {
		before := grants[i].PriorityScore
		scoring.ScoreGrant(&grants[i], cfg.BusinessProfile, cfg.Matching, cfg.Scoring.Weights, now)
		if grants[i].PriorityScore != before {
			out.Changed++
		}
		if grants[i].PriorityScore >= cfg.Alerts.PriorityThreshold {
			out.HighPriority++
		}
		out.Levels[string(grants[i].ComplexityLevel())]++
	}
	return out
}
