package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/eu-grants-monitor/internal/app"
	"github.com/david/eu-grants-monitor/internal/config"
)

func main() {
	limit := flag.Int("limit", 10, "number of monitoring sessions to show")
	flag.Parse()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()
	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	sessions, err := store.ListMonitoringSessions(ctx, *limit)
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Session", "Status", "Processed", "High", "Alerts", "Errors", "Duration", "Completed At"})

	for _, s := range sessions {
		duration := "Running..."
		if !s.CompletedAt.IsZero() {
			duration = s.CompletedAt.Sub(s.StartedAt).Round(time.Second).String()
		}
		t.AppendRow(table.Row{s.ID.String()[:8], s.Status, s.GrantsProcessed, s.HighPriorityCount, s.AlertsSent, s.Errors, duration, s.CompletedAt.Format("2006-01-02 15:04:05")})
	}
	t.Render()
}
