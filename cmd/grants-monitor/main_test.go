package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/david/eu-grants-monitor/internal/db"
	"github.com/david/eu-grants-monitor/internal/models"
)

func TestParseAmountRange(t *testing.T) {
	tests := []struct {
		in      string
		lo, hi  float64
		wantErr bool
	}{
		{"50000-500000", 50000, 500000, false},
		{" 0 - 100 ", 0, 100, false},
		{"500000", 0, 0, true},
		{"abc-100", 0, 0, true},
		{"100-abc", 0, 0, true},
		{"500-100", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			lo, hi, err := parseAmountRange(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if lo != tt.lo || hi != tt.hi {
				t.Errorf("got %v-%v, want %v-%v", lo, hi, tt.lo, tt.hi)
			}
		})
	}
}

func TestGrantArg(t *testing.T) {
	id, rest, err := grantArg("assist", []string{"HE-1", "-save", "out.json"})
	if err != nil || id != "HE-1" || len(rest) != 2 {
		t.Fatalf("got %q %v %v", id, rest, err)
	}
	if _, _, err := grantArg("assist", []string{"-save", "out.json"}); err == nil {
		t.Error("flag in id position accepted")
	}
	if _, _, err := grantArg("show", nil); err == nil {
		t.Error("missing id accepted")
	}
}

func TestFilterGrants(t *testing.T) {
	grants := []models.Grant{
		{ID: "a", Title: "AI for clinics", FundingAmount: 100000, ComplexityScore: 20},
		{ID: "b", Title: "Green steel", Keywords: []string{"climate"}, FundingAmount: 2000000, ComplexityScore: 80},
		{ID: "c", Title: "Digital skills", Description: "Training in AI literacy", FundingAmount: 400000, ComplexityScore: 50},
	}

	tests := []struct {
		name   string
		params db.ListParams
		want   []string
	}{
		{"no filter", db.ListParams{}, []string{"a", "b", "c"}},
		{"keyword in title or description", db.ListParams{Query: "ai"}, []string{"a", "c"}},
		{"keyword in keywords", db.ListParams{Query: "climate"}, []string{"b"}},
		{"amount range", db.ListParams{MinAmount: 150000, MaxAmount: 500000}, []string{"c"}},
		{"max complexity", db.ListParams{MaxComplexity: models.ComplexityMedium}, []string{"a", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := append([]models.Grant(nil), grants...)
			got := filterGrants(in, tt.params)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d grants, want %v", len(got), tt.want)
			}
			for i, g := range got {
				if g.ID != tt.want[i] {
					t.Errorf("grant %d = %s, want %s", i, g.ID, tt.want[i])
				}
			}
		})
	}
}

func TestEuros(t *testing.T) {
	tests := map[float64]string{
		0:          "€0",
		999:        "€999",
		1000:       "€1,000",
		1250000.4:  "€1,250,000",
		-45000:     "-€45,000",
		12345678.6: "€12,345,679",
	}
	for in, want := range tests {
		if got := euros(in); got != want {
			t.Errorf("euros(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestPrintGrantTable(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	grants := []models.Grant{{
		ID:            "HE-2026-01",
		Title:         "Trustworthy AI for European healthcare providers and hospitals",
		Program:       models.ProgramHorizonEurope,
		FundingAmount: 2500000,
		Deadline:      now.AddDate(0, 0, 45),
		PriorityScore: 71.26,
	}}

	var buf bytes.Buffer
	printGrantTable(&buf, grants, now)
	out := buf.String()
	for _, want := range []string{"HE-2026-01", "Horizon Europe", "€2,500,000", "2026-04-15", "45", "71.3", "..."} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}
