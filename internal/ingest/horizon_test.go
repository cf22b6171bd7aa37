package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/david/eu-grants-monitor/internal/config"
	"github.com/david/eu-grants-monitor/internal/logging"
	"github.com/david/eu-grants-monitor/internal/models"
	"github.com/david/eu-grants-monitor/internal/resilience"
)

func testHorizonConfig(baseURL string) config.HorizonScraperConfig {
	return config.HorizonScraperConfig{
		Enabled:        true,
		BaseURL:        baseURL,
		SearchTerms:    []string{"artificial intelligence", "machine learning"},
		MaxResults:     20,
		TimeoutSeconds: 5,
		RateLimit:      config.RateLimitConfig{RequestsPerMinute: 6000},
	}
}

func testDeps(client *http.Client) Deps {
	return Deps{
		Client: client,
		Exec: resilience.NewExecutor(resilience.Policy{
			MaxAttempts:    2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
			Multiplier:     2,
		}, logging.Discard()),
		Logger: logging.Discard(),
		Now:    fixedNow,
	}
}

func TestHorizonSourceMapsSearchResults(t *testing.T) {
	deadline := time.Date(2026, 5, 15, 17, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/opportunities/search" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req horizonSearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Query != "artificial intelligence OR machine learning" || req.PageSize != 20 {
			t.Errorf("unexpected search %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(horizonResponse{
			TotalCount: 2,
			FundingOpportunities: []horizonOpportunity{
				{
					TopicIdentifier: "HORIZON-CL4-2026-DIGITAL-01",
					Title:           "Trustworthy <b>AI</b> for SMEs",
					Description:     "<p>Support for artificial intelligence and robotics in manufacturing.</p>",
					DeadlineDate:    []int64{deadline.UnixMilli()},
					Budget:          "€1.000.000",
				},
				{Title: "Green data spaces"},
			},
		})
	}))
	defer srv.Close()

	src := NewHorizonSource(testHorizonConfig(srv.URL), testDeps(srv.Client()))
	grants, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(grants))
	}

	g := grants[0]
	if g.ID != "HORIZON-CL4-2026-DIGITAL-01" || g.Title != "Trustworthy AI for SMEs" {
		t.Fatalf("unexpected identity %s %q", g.ID, g.Title)
	}
	if g.URL != topicDetailsURL+"HORIZON-CL4-2026-DIGITAL-01" {
		t.Fatalf("unexpected url %s", g.URL)
	}
	if !g.Deadline.Equal(models.Date(2026, 5, 15)) {
		t.Fatalf("unexpected deadline %s", g.Deadline)
	}
	if g.FundingAmount != 1000000 || *g.MaxFunding != 1000000 || *g.MinFunding != 50000 {
		t.Fatalf("unexpected funding %v %v %v", g.FundingAmount, *g.MinFunding, *g.MaxFunding)
	}
	wantKeywords := []string{"artificial intelligence", "robotics", "manufacturing", "sme"}
	if !equalStrings(g.Keywords, wantKeywords) {
		t.Fatalf("expected keywords %v, got %v", wantKeywords, g.Keywords)
	}
	if g.Program != models.ProgramHorizonEurope {
		t.Fatalf("unexpected program %s", g.Program)
	}

	fallback := grants[1]
	if fallback.FundingAmount != 500000 || fallback.DaysUntilDeadline(testNow) != 60 {
		t.Fatalf("expected portal defaults, got %+v", fallback)
	}
	if !equalStrings(fallback.Keywords, fallbackKeywords) {
		t.Fatalf("expected fallback keywords, got %v", fallback.Keywords)
	}
}

func TestHorizonSourceFallsBackToSamples(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := NewHorizonSource(testHorizonConfig(srv.URL), testDeps(srv.Client()))
	grants, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch should swallow portal errors, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
	if len(grants) != 3 || grants[0].ID != "HE-2024-AI-SME-001" {
		t.Fatalf("expected sample calls, got %d grants", len(grants))
	}
}

func TestHorizonSourceEmptyResultUsesSamples(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"fundingOpportunities":[],"totalCount":0}`))
	}))
	defer srv.Close()

	grants, err := NewHorizonSource(testHorizonConfig(srv.URL), testDeps(srv.Client())).Fetch(context.Background())
	if err != nil || len(grants) != 3 {
		t.Fatalf("expected 3 samples, got %d (%v)", len(grants), err)
	}
}

func TestHorizonSourceHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := NewHorizonSource(testHorizonConfig("http://127.0.0.1:1"), testDeps(http.DefaultClient))
	if _, err := src.Fetch(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRequestInterval(t *testing.T) {
	if got := requestInterval(config.RateLimitConfig{RequestsPerMinute: 60}); got != time.Second {
		t.Fatalf("expected 1s, got %s", got)
	}
	if got := requestInterval(config.RateLimitConfig{RequestsPerMinute: 120, DelayBetweenRequests: 2}); got != 2*time.Second {
		t.Fatalf("expected explicit delay to win, got %s", got)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
