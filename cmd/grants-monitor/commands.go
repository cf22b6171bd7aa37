package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/david/eu-grants-monitor/internal/app"
	"github.com/david/eu-grants-monitor/internal/assist"
	"github.com/david/eu-grants-monitor/internal/config"
	"github.com/david/eu-grants-monitor/internal/db"
	"github.com/david/eu-grants-monitor/internal/ingest"
	"github.com/david/eu-grants-monitor/internal/logging"
	"github.com/david/eu-grants-monitor/internal/models"
	"github.com/david/eu-grants-monitor/internal/monitor"
	"github.com/david/eu-grants-monitor/internal/prefill"
	"github.com/david/eu-grants-monitor/internal/scoring"
)

const defaultConfigPath = "config.yaml"

func runSetup(path string) error {
	if path == "" {
		path = defaultConfigPath
	}
	written, err := config.WriteExample(path)
	if err != nil {
		return err
	}
	if !written {
		fmt.Printf("Config already exists at %s, leaving it untouched\n", path)
		return nil
	}
	fmt.Printf("Wrote example configuration to %s\n", path)
	fmt.Println("Edit the business_profile section, then run 'grants-monitor run'.")
	return nil
}

func runMonitor(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	continuous := fs.Bool("continuous", false, "keep running every check interval")
	fs.Parse(args)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if *continuous {
		fmt.Printf("Monitoring every %s, press Ctrl+C to stop\n", cfg.Alerts.CheckInterval())
		profile := func() models.BusinessProfile { return cfg.BusinessProfile }
		return monitor.NewScheduler(a.Monitor, cfg.Alerts.CheckInterval(), profile, a.Logger).Run(ctx)
	}

	report, err := a.Monitor.RunCycle(ctx, cfg.BusinessProfile)
	if err != nil {
		return err
	}
	printReport(os.Stdout, report, time.Now())
	return nil
}

func runServe(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.String("port", cfg.Server.Port, "port to listen on")
	schedule := fs.Bool("schedule", false, "also run the monitor every check interval")
	fs.Parse(args)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Serve(ctx, *port, *schedule)
}

func runList(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	filter := fs.String("filter", "", "filter by keyword")
	complexity := fs.String("complexity", "", "maximum complexity (simple, medium, complex)")
	amount := fs.String("amount", "", "funding range, e.g. 50000-500000")
	fs.Parse(args)

	params := db.ListParams{Query: strings.TrimSpace(*filter), Limit: 100}
	if *complexity != "" {
		level := models.ComplexityLevel(strings.ToLower(*complexity))
		if !level.Valid() {
			return fmt.Errorf("complexity must be simple, medium or complex, got %q", *complexity)
		}
		params.MaxComplexity = level
	}
	if *amount != "" {
		lo, hi, err := parseAmountRange(*amount)
		if err != nil {
			return err
		}
		params.MinAmount, params.MaxAmount = lo, hi
	}

	cat, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	grants, fromFixtures, err := cat.list(ctx, params)
	if err != nil {
		return err
	}
	if fromFixtures {
		fmt.Println("No stored grants yet, showing the built-in catalogue.")
	}
	printGrantTable(os.Stdout, grants, cat.now())
	fmt.Printf("\nFound %d grant opportunities\n", len(grants))
	if len(grants) > 0 {
		fmt.Println("Use 'grants-monitor show <GRANT_ID>' for details and 'grants-monitor assist <GRANT_ID>' for guidance.")
	}
	return nil
}

func runShow(ctx context.Context, cfg config.Config, args []string) error {
	id, rest, err := grantArg("show", args)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	docs := fs.Bool("docs", false, "download and analyze the call document")
	fs.Parse(rest)

	cat, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	g, err := cat.grant(ctx, id)
	if err != nil {
		return err
	}
	printGrant(os.Stdout, g, cat.now())

	if *docs {
		url := g.DocumentsURL
		if url == "" {
			url = g.URL
		}
		deps := app.IngestDeps(cfg, logging.New(cfg.Logging.Service, cfg.Logging.Level))
		call, err := ingest.AnalyzeCallDocument(ctx, ingest.NewHTTPFetcher(nil, deps.Exec), url)
		if err != nil {
			return err
		}
		fmt.Println()
		printCallDocument(os.Stdout, call)
	}
	fmt.Printf("\nUse 'grants-monitor assist %s' for application guidance.\n", g.ID)
	return nil
}

func runAssist(ctx context.Context, cfg config.Config, args []string) error {
	id, rest, err := grantArg("assist", args)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("assist", flag.ExitOnError)
	save := fs.String("save", "", "save guidance as JSON to this file")
	fs.Parse(rest)

	cat, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	g, err := cat.grant(ctx, id)
	if err != nil {
		return err
	}
	now := cat.now()
	guidance, err := assist.GenerateAssistance(g, cfg.BusinessProfile, now)
	if err != nil {
		return err
	}
	printGuidance(os.Stdout, g, guidance)

	if *save != "" {
		raw, err := json.MarshalIndent(savedGuidance{Guidance: guidance, GeneratedAt: now}, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(*save, raw, 0o644); err != nil {
			return fmt.Errorf("save guidance: %w", err)
		}
		fmt.Printf("\nGuidance saved to: %s\n", *save)
	}
	return nil
}

type savedGuidance struct {
	models.Guidance
	GeneratedAt time.Time `json:"generated_at"`
}

func runGenerate(ctx context.Context, cfg config.Config, args []string) error {
	id, rest, err := grantArg("generate", args)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	out := fs.String("out", "generated_applications", "output directory")
	email := fs.String("email", "", "contact email to fill in")
	fs.Parse(rest)

	cat, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	g, err := cat.grant(ctx, id)
	if err != nil {
		return err
	}
	guidance, err := assist.GenerateAssistance(g, cfg.BusinessProfile, cat.now())
	if err != nil {
		return err
	}
	form := prefill.Prefill(g, cfg.BusinessProfile, guidance)
	if *email != "" {
		form.Fill("contact_email", *email)
	}

	gen := prefill.NewGenerator(cat.now)
	docs, err := gen.Package(form, g)
	if err != nil {
		return err
	}
	dir, err := gen.WriteDocuments(*out, g.ID, docs)
	if err != nil {
		return err
	}
	printDocuments(os.Stdout, form, docs)
	fmt.Printf("\nDocuments written to %s\n", dir)
	return nil
}

func runSessions(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	limit := fs.Int("limit", 10, "number of sessions to show")
	fs.Parse(args)

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.ListMonitoringSessions(ctx, *limit)
	if err != nil {
		return err
	}
	printSessions(os.Stdout, sessions)
	return nil
}

// grantArg splits "<id> [flags]" so flags may follow the grant id.
func grantArg(cmd string, args []string) (string, []string, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", nil, fmt.Errorf("usage: grants-monitor %s <grant-id>", cmd)
	}
	return args[0], args[1:], nil
}

// parseAmountRange reads "min-max" in whole euros.
func parseAmountRange(s string) (float64, float64, error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return 0, 0, fmt.Errorf("invalid amount format %q, want min-max", s)
	}
	minAmount, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid amount format %q: %w", s, err)
	}
	maxAmount, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid amount format %q: %w", s, err)
	}
	if minAmount < 0 || maxAmount < minAmount {
		return 0, 0, fmt.Errorf("invalid amount range %q", s)
	}
	return minAmount, maxAmount, nil
}

// catalog reads grants from the store and falls back to the built-in
// fixtures, scored against the configured profile, before the first cycle.
type catalog struct {
	store    *db.Store
	fixtures *ingest.FixtureSource
	cfg      config.Config
	now      func() time.Time
}

func openCatalog(ctx context.Context, cfg config.Config) (*catalog, error) {
	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	now := func() time.Time { return time.Now().UTC() }
	return &catalog{store: store, fixtures: ingest.NewFixtureSource(now), cfg: cfg, now: now}, nil
}

func (c *catalog) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

func (c *catalog) grant(ctx context.Context, id string) (models.Grant, error) {
	if c.store != nil {
		g, err := c.store.GetGrant(ctx, id)
		if err == nil {
			return *g, nil
		}
		if !errors.Is(err, db.ErrNotFound) {
			return models.Grant{}, err
		}
	}
	g, err := c.fixtures.GrantByID(id)
	if err != nil {
		return models.Grant{}, err
	}
	return c.score([]models.Grant{g})[0], nil
}

func (c *catalog) list(ctx context.Context, params db.ListParams) ([]models.Grant, bool, error) {
	if c.store != nil {
		stats, err := c.store.GetStats(ctx)
		if err != nil {
			return nil, false, err
		}
		if stats.TotalGrants > 0 {
			res, err := c.store.ListGrants(ctx, params)
			if err != nil {
				return nil, false, err
			}
			return res.Grants, false, nil
		}
	}

	grants, err := c.fixtures.Fetch(ctx)
	if err != nil {
		return nil, true, err
	}
	grants = filterGrants(c.score(grants), params)
	scoring.SortByPriority(grants)
	return grants, true, nil
}

func (c *catalog) score(grants []models.Grant) []models.Grant {
	return scoring.ScoreGrants(grants, c.cfg.BusinessProfile, c.cfg.Matching, c.cfg.Scoring.Weights, c.now())
}

// filterGrants applies the keyword, amount and complexity filters in memory.
func filterGrants(grants []models.Grant, p db.ListParams) []models.Grant {
	term := strings.ToLower(p.Query)
	out := grants[:0]
	for _, g := range grants {
		if term != "" && !grantMentions(g, term) {
			continue
		}
		if p.MinAmount > 0 && g.FundingAmount < p.MinAmount {
			continue
		}
		if p.MaxAmount > 0 && g.FundingAmount > p.MaxAmount {
			continue
		}
		if p.MaxComplexity != "" && g.ComplexityLevel().Rank() > p.MaxComplexity.Rank() {
			continue
		}
		out = append(out, g)
	}
	return out
}

func grantMentions(g models.Grant, term string) bool {
	if strings.Contains(strings.ToLower(g.Title), term) || strings.Contains(strings.ToLower(g.Description), term) {
		return true
	}
	for _, k := range g.Keywords {
		if strings.Contains(strings.ToLower(k), term) {
			return true
		}
	}
	return false
}
