package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/david/eu-grants-monitor/internal/models"
)

var testNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func TestFixtureSourceFetch(t *testing.T) {
	src := NewFixtureSource(fixedNow)

	grants, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	wantIDs := []string{
		"HE-2024-AI-001",
		"DIGITAL-EU-2024-002",
		"HE-2024-AI-CONSORTIUM-003",
		"LIFE-2024-GREEN-004",
		"ERASMUS-2024-EDTECH-005",
	}
	if len(grants) != len(wantIDs) {
		t.Fatalf("expected %d grants, got %d", len(wantIDs), len(grants))
	}
	for i, id := range wantIDs {
		if grants[i].ID != id {
			t.Errorf("grant %d: expected %s, got %s", i, id, grants[i].ID)
		}
	}

	first := grants[0]
	if first.DaysUntilDeadline(testNow) != 45 {
		t.Fatalf("expected deadline in 45 days, got %d", first.DaysUntilDeadline(testNow))
	}
	if first.StartDate == nil || !first.StartDate.Equal(models.Date(2026, 6, 29)) {
		t.Fatalf("unexpected start date %v", first.StartDate)
	}
	if first.Program != models.ProgramHorizonEurope || first.MaxFunding == nil || *first.MaxFunding != 500000 {
		t.Fatalf("unexpected program or funding %+v", first)
	}
	if !strings.HasPrefix(first.Description, "This call supports Small and Medium Enterprises (SMEs) in developing artificial intelligence") {
		t.Fatalf("description not folded into one paragraph: %q", first.Description)
	}
	if grants[4].Program != models.ProgramErasmusPlus || grants[3].Program != models.ProgramLife {
		t.Fatalf("unexpected programs %s %s", grants[4].Program, grants[3].Program)
	}

	// each call hands out fresh slices
	grants[0].Keywords[0] = "mutated"
	again, _ := src.Fetch(context.Background())
	if again[0].Keywords[0] != "artificial intelligence" {
		t.Fatal("fixture data leaked between calls")
	}
}

func TestFixtureSourceCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFixtureSource(fixedNow).Fetch(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFixtureSourceGrantByID(t *testing.T) {
	src := NewFixtureSource(fixedNow)

	g, err := src.GrantByID("LIFE-2024-GREEN-004")
	if err != nil {
		t.Fatalf("GrantByID: %v", err)
	}
	if g.FundingAmount != 180000 {
		t.Fatalf("expected 180000, got %f", g.FundingAmount)
	}

	_, err = src.GrantByID("NOPE-1")
	if !errors.Is(err, ErrGrantNotFound) {
		t.Fatalf("expected ErrGrantNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "Grant with ID 'NOPE-1' not found") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestFixtureSourceSearchByKeyword(t *testing.T) {
	src := NewFixtureSource(fixedNow)

	tests := []struct {
		keyword string
		want    []string
	}{
		{keyword: "Healthcare", want: []string{"HE-2024-AI-001"}},
		{keyword: "iot", want: []string{"DIGITAL-EU-2024-002", "LIFE-2024-GREEN-004"}},
		{keyword: "blockchain", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			got, err := src.SearchByKeyword(tt.keyword)
			if err != nil {
				t.Fatalf("SearchByKeyword: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %d grants", tt.want, len(got))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("result %d: expected %s, got %s", i, id, got[i].ID)
				}
			}
		})
	}
}

func TestSampleHorizonGrants(t *testing.T) {
	grants, err := SampleHorizonGrants(testNow)
	if err != nil {
		t.Fatalf("SampleHorizonGrants: %v", err)
	}
	if len(grants) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(grants))
	}
	if grants[1].ID != "HE-2024-DIGITAL-002" || grants[1].DaysUntilDeadline(testNow) != 45 {
		t.Fatalf("unexpected sample %+v", grants[1])
	}
	if grants[2].StartDate != nil {
		t.Fatal("samples carry no project dates")
	}
}
