package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/david/eu-grants-monitor/internal/models"
)

func openTestSQLite(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	conn, dialect, err := Open(ctx, "sqlite", filepath.Join(t.TempDir(), "grants.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := ApplyMigrations(ctx, conn, dialect); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}
	return NewStore(conn, dialect).WithClock(func() time.Time { return testNow })
}

func TestSQLite_MigrationsAreIdempotent(t *testing.T) {
	store := openTestSQLite(t)
	if err := ApplyMigrations(context.Background(), store.DB(), store.Dialect()); err != nil {
		t.Fatalf("second ApplyMigrations: %v", err)
	}
	var n int
	if err := store.DB().QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 1 {
		t.Errorf("schema_migrations rows = %d, want 1", n)
	}
}

func TestSQLite_GrantRoundTrip(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()

	start := models.Date(2026, 6, 1)
	grants := []models.Grant{
		{
			ID: "HE-1", Title: "AI for SMEs", Description: "Applied AI", Synopsis: "Applied AI...",
			Program: models.ProgramHorizonEurope, FundingAmount: 500000,
			MaxFunding: models.Float64Ptr(2000000),
			Deadline:   models.Date(2026, 5, 1), StartDate: &start,
			EligibleCountries: []string{"DE", "FR"}, Keywords: []string{"ai"},
			URL: "https://example.eu/he-1", RelevanceScore: 80, ComplexityScore: 20, PriorityScore: 75,
		},
		{
			ID: "LIFE-2", Title: "Green transition", Description: "Circular economy",
			Program: models.ProgramLife, FundingAmount: 1500000,
			Deadline: models.Date(2026, 3, 10), Keywords: []string{"green"},
			RelevanceScore: 20, ComplexityScore: 80, PriorityScore: 30,
		},
	}

	res, err := store.UpsertGrants(ctx, grants)
	if err != nil {
		t.Fatalf("UpsertGrants: %v", err)
	}
	if res.New != 2 || res.Updated != 0 {
		t.Errorf("first upsert = %+v", res)
	}

	grants[0].PriorityScore = 90
	res, err = store.UpsertGrants(ctx, grants[:1])
	if err != nil {
		t.Fatalf("second UpsertGrants: %v", err)
	}
	if res.Updated != 1 {
		t.Errorf("second upsert = %+v", res)
	}

	got, err := store.GetGrant(ctx, "HE-1")
	if err != nil {
		t.Fatalf("GetGrant: %v", err)
	}
	if got.PriorityScore != 90 || got.MinFunding != nil || *got.MaxFunding != 2000000 {
		t.Errorf("grant = %+v", got)
	}
	if !got.Deadline.Equal(models.Date(2026, 5, 1)) || got.StartDate == nil || !got.StartDate.Equal(start) {
		t.Errorf("dates = %v / %v", got.Deadline, got.StartDate)
	}
	if len(got.EligibleCountries) != 2 || got.Keywords[0] != "ai" {
		t.Errorf("lists = %v / %v", got.EligibleCountries, got.Keywords)
	}

	list, err := store.ListGrants(ctx, ListParams{MinDaysToDeadline: 30})
	if err != nil {
		t.Fatalf("ListGrants: %v", err)
	}
	if list.Total != 1 || list.Grants[0].ID != "HE-1" {
		t.Errorf("deadline filter = %+v", list)
	}

	list, err = store.ListGrants(ctx, ListParams{Query: "circular", MaxComplexity: models.ComplexityComplex})
	if err != nil {
		t.Fatalf("ListGrants: %v", err)
	}
	if list.Total != 1 || list.Grants[0].ID != "LIFE-2" {
		t.Errorf("keyword filter = %+v", list)
	}

	stats, err := store.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalGrants != 2 || stats.HighPriority != 1 || stats.ExpiringSoon != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Programs["life"] != 1 || stats.LastCycleAt != nil {
		t.Errorf("stats = %+v", stats)
	}
}
