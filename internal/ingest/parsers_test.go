package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/david/eu-grants-monitor/internal/models"
)

func TestParseAmountRobust(t *testing.T) {
	tests := []struct {
		text     string
		min, max float64
		currency string
	}{
		{text: "€50.000 - €500.000", min: 50000, max: 500000, currency: "EUR"},
		{text: "up to EUR 2,5 million", max: 2500000, currency: "EUR"},
		{text: "1,000,000 EUR", max: 1000000, currency: "EUR"},
		{text: "minimum €75,000", min: 75000, currency: "EUR"},
		{text: "EUR 300k per beneficiary", max: 300000, currency: "EUR"},
		{text: "1.250.000,50 EUR", max: 1250000.5, currency: "EUR"},
		{text: "Funding rate: 70% for 24 months", currency: ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			lo, hi, cur := parseAmountRobust(tt.text, "")
			if lo != tt.min || hi != tt.max || cur != tt.currency {
				t.Fatalf("expected %v-%v %q, got %v-%v %q", tt.min, tt.max, tt.currency, lo, hi, cur)
			}
		})
	}
}

func TestParseDateRobust(t *testing.T) {
	tests := []struct {
		text string
		want time.Time
	}{
		{text: "2026-05-15", want: models.Date(2026, 5, 15)},
		{text: "Deadline: 17 June 2026", want: models.Date(2026, 6, 17)},
		{text: "June 17, 2026", want: models.Date(2026, 6, 17)},
		{text: "17/06/2026", want: models.Date(2026, 6, 17)},
		{text: "17.06.2026", want: models.Date(2026, 6, 17)},
		{text: "Submission deadline: 03 Sep 2026 17:00 Brussels time", want: models.Date(2026, 9, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := parseDateRobust(tt.text)
			if err != nil {
				t.Fatalf("parseDateRobust: %v", err)
			}
			if !dateOnly(got).Equal(tt.want) {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}

	if _, err := parseDateRobust("to be announced"); err == nil {
		t.Fatal("expected error for undated text")
	}
}

func TestCleanDateStringNonASCII(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ȺDeadline:", ""},
		{"Ⱥ deadline: 17 June 2026", "17 June 2026"},
		{"Échéance / DEADLINE DATE: 03.09.2026", "03.09.2026"},
		{"Frist 17.06.2026", "Frist 17.06.2026"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := cleanDateString(tt.in); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}

	g := FromRaw(RawGrant{Title: "Call", URL: "https://x/y", RawDeadline: "ȺDeadline:"}, testNow)
	if g.DaysUntilDeadline(testNow) != 60 {
		t.Fatalf("expected default deadline, got %d days", g.DaysUntilDeadline(testNow))
	}
}

func TestExtractKeywords(t *testing.T) {
	got := ExtractKeywords("Machine learning and computer vision for Industry 4.0 robotics and automation in healthcare")
	want := []string{"machine learning", "computer vision", "robotics", "automation", "industry 4.0"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("expected %v, got %v", want, got)
	}

	fallback := ExtractKeywords("Cultural heritage exchanges")
	if strings.Join(fallback, "|") != "innovation|research|technology" {
		t.Fatalf("expected fallback keywords, got %v", fallback)
	}
}

func TestFromRawDefaults(t *testing.T) {
	g := FromRaw(RawGrant{Title: "  <b>Data</b> spaces  "}, testNow)

	if g.Title != "Data spaces" || g.Description != "No description available" {
		t.Fatalf("unexpected text fields %q %q", g.Title, g.Description)
	}
	if !strings.HasPrefix(g.ID, "HE-20260301-") {
		t.Fatalf("expected generated id, got %s", g.ID)
	}
	if g.FundingAmount != 500000 || *g.MinFunding != 50000 || *g.MaxFunding != 2000000 {
		t.Fatalf("unexpected funding defaults %+v", g)
	}
	if g.DaysUntilDeadline(testNow) != 60 {
		t.Fatalf("expected default deadline in 60 days, got %d", g.DaysUntilDeadline(testNow))
	}
	if len(g.EligibleCountries) != 10 || g.URL != defaultPortalURL {
		t.Fatalf("unexpected defaults %v %s", g.EligibleCountries, g.URL)
	}
	if g.Synopsis != "No description available..." {
		t.Fatalf("unexpected synopsis %q", g.Synopsis)
	}
}

func TestSynopsisTruncatesAt200(t *testing.T) {
	s := Synopsis(strings.Repeat("a", 250))
	if len(s) != 203 || !strings.HasSuffix(s, "...") {
		t.Fatalf("unexpected synopsis length %d", len(s))
	}
}
