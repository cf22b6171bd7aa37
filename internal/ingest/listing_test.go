package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/david/eu-grants-monitor/internal/config"
	"github.com/david/eu-grants-monitor/internal/logging"
	"github.com/david/eu-grants-monitor/internal/models"
)

const listingPage = `<!doctype html>
<html><body>
<ul class="calls">
  <li class="call">
    <a class="title" href="/topic/cl5-2026-d3-01">Clean energy <em>AI</em> pilots</a>
    <span class="deadline">Deadline: 12 June 2026</span>
    <span class="budget">Up to €2,5 million</span>
  </li>
  <li class="call">
    <a class="title" href="https://calls.example.org/topic/ho-2">Second call</a>
    <span class="deadline">n/a</span>
  </li>
  <li class="call"><span class="deadline">untitled entry</span></li>
</ul>
</body></html>`

func TestListingSourceScrapesItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(listingPage))
	}))
	defer srv.Close()

	src := NewListingSource(config.ListingScraperConfig{
		Enabled:          true,
		URL:              srv.URL + "/calls",
		ItemSelector:     "li.call",
		TitleSelector:    "a.title",
		LinkSelector:     "a.title",
		DeadlineSelector: ".deadline",
		AmountSelector:   ".budget",
		Program:          "horizon_europe",
	}, Deps{Logger: logging.Discard(), Now: fixedNow})
	src.DomainDelay = 0

	grants, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(grants))
	}

	g := grants[0]
	if g.ID != "CL5-2026-D3-01" || g.Title != "Clean energy AI pilots" {
		t.Fatalf("unexpected identity %s %q", g.ID, g.Title)
	}
	if g.URL != srv.URL+"/topic/cl5-2026-d3-01" {
		t.Fatalf("expected absolute url, got %s", g.URL)
	}
	if !g.Deadline.Equal(models.Date(2026, 6, 12)) {
		t.Fatalf("unexpected deadline %s", g.Deadline)
	}
	if g.FundingAmount != 2500000 || g.Program != models.ProgramHorizonEurope {
		t.Fatalf("unexpected funding/program %v %s", g.FundingAmount, g.Program)
	}

	second := grants[1]
	if second.ID != "HO-2" || second.DaysUntilDeadline(testNow) != 60 {
		t.Fatalf("unexpected second grant %s (%d days)", second.ID, second.DaysUntilDeadline(testNow))
	}
}

func TestListingSourceReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	src := NewListingSource(config.ListingScraperConfig{URL: srv.URL, ItemSelector: "li"}, Deps{Logger: logging.Discard(), Now: fixedNow})
	src.DomainDelay = 0

	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for 404 listing")
	}
}

func TestListingID(t *testing.T) {
	tests := map[string]string{
		"https://ec.europa.eu/topic-details/horizon-cl4-2026-01/": "HORIZON-CL4-2026-01",
		"https://example.org/calls/abc?lang=en":                   "ABC",
	}
	for in, want := range tests {
		if got := listingID(in); got != want {
			t.Errorf("listingID(%q) = %q, want %q", in, got, want)
		}
	}
}
