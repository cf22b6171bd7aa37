package models

import (
	"errors"
	"testing"
	"time"
)

func TestDaysUntilDeadline_IgnoresTimeOfDay(t *testing.T) {
	now := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	g := Grant{Deadline: Date(2026, 3, 11)}
	if got := g.DaysUntilDeadline(now); got != 10 {
		t.Fatalf("expected 10 days, got %d", got)
	}

	expired := Grant{Deadline: Date(2026, 2, 24)}
	if got := expired.DaysUntilDeadline(now); got != -5 {
		t.Fatalf("expected -5 days, got %d", got)
	}
	if !expired.Expired(now) {
		t.Fatal("expected grant to be expired")
	}
}

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  ComplexityLevel
	}{
		{0, ComplexitySimple},
		{29.9, ComplexitySimple},
		{30, ComplexityMedium},
		{60, ComplexityMedium},
		{69.99, ComplexityMedium},
		{70, ComplexityComplex},
		{100, ComplexityComplex},
	}
	for _, tt := range tests {
		if got := LevelForScore(tt.score); got != tt.want {
			t.Errorf("score %.2f: expected %s, got %s", tt.score, tt.want, got)
		}
	}
}

func TestBusinessProfileValidate(t *testing.T) {
	valid := DefaultProfile()
	if err := valid.Validate(); err != nil {
		t.Fatalf("default profile should be valid, got %v", err)
	}

	inverted := DefaultProfile()
	inverted.FundingRange = FundingRange{Min: 600000, Max: 100000}
	if err := inverted.Validate(); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("expected ErrInvalidProfile for inverted range, got %v", err)
	}

	badSize := DefaultProfile()
	badSize.CompanySize = "huge"
	if err := badSize.Validate(); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("expected ErrInvalidProfile for unknown size, got %v", err)
	}
}

func TestApplicationStatusTransitions(t *testing.T) {
	if err := StatusDraft.CanTransition(StatusSubmitted); err != nil {
		t.Fatalf("draft -> submitted should be allowed, got %v", err)
	}
	if err := StatusApproved.CanTransition(StatusDraft); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("approved is final, got %v", err)
	}
	if err := StatusDraft.CanTransition("lost"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("unknown target should be rejected, got %v", err)
	}
}

func TestParseFundingProgram(t *testing.T) {
	tests := map[string]FundingProgram{
		"Horizon Europe": ProgramHorizonEurope,
		"horizon_europe": ProgramHorizonEurope,
		"Erasmus+":       ProgramErasmusPlus,
		"LIFE":           ProgramLife,
		"something else": ProgramOther,
	}
	for in, want := range tests {
		if got := ParseFundingProgram(in); got != want {
			t.Errorf("%q: expected %s, got %s", in, want, got)
		}
	}
	if got := ProgramDigitalEurope.DisplayName(); got != "Digital Europe" {
		t.Fatalf("expected Digital Europe, got %s", got)
	}
}
