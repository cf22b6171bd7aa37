package main

import (
	"testing"
	"time"

	"github.com/david/eu-grants-monitor/internal/config"
	"github.com/david/eu-grants-monitor/internal/models"
)

func TestRescoreCountsChangesAndLevels(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cfg := config.Default()
	cfg.Alerts.PriorityThreshold = 0

	grants := []models.Grant{
		{ID: "a", Title: "AI pilot", FundingAmount: 150000, Deadline: now.AddDate(0, 0, 40), Program: models.ProgramDigitalEurope},
		{ID: "b", Title: "Large consortium", FundingAmount: 5000000, Deadline: now.AddDate(0, 0, 120), Program: models.ProgramHorizonEurope},
	}

	out := rescore(grants, cfg, now)
	if out.Grants != 2 || out.Changed != 2 || out.HighPriority != 2 {
		t.Fatalf("first pass = %+v", out)
	}
	total := 0
	for _, n := range out.Levels {
		total += n
	}
	if total != 2 {
		t.Errorf("levels = %v", out.Levels)
	}

	again := rescore(grants, cfg, now)
	if again.Changed != 0 {
		t.Errorf("second pass changed %d grants", again.Changed)
	}
}
