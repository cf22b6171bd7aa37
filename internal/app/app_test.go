package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/david/eu-grants-monitor/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.URL = filepath.Join(t.TempDir(), "grants.db")
	cfg.Logging.Level = "error"
	cfg.Server.AdminSecret = "admin"
	cfg.Server.JWTSecret = "jwt"
	return cfg
}

func TestNewRunsCycleAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	report, err := a.Monitor.RunCycle(ctx, a.Config.BusinessProfile)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if report.GrantsProcessed == 0 || report.Stored.New != report.GrantsProcessed {
		t.Fatalf("report = %+v", report)
	}
	if len(report.Sources) == 0 || report.Sources[0].Error != "" {
		t.Errorf("sources = %+v", report.Sources)
	}

	stats, err := a.Store.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalGrants != report.GrantsProcessed || stats.Sessions != 1 {
		t.Errorf("stats = %+v", stats)
	}

	srv, err := a.Server()
	if err != nil {
		t.Fatalf("Server: %v", err)
	}
	rec := httptest.NewRecorder()
	srv.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health = %d", rec.Code)
	}
}

func TestOpenStoreRejectsUnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "mysql"
	if _, err := OpenStore(context.Background(), cfg); err == nil {
		t.Fatal("expected an error for an unsupported driver")
	}
}
