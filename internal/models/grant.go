package models

import (
	"strings"
	"time"
)

type FundingProgram string

const (
	ProgramHorizonEurope  FundingProgram = "horizon_europe"
	ProgramDigitalEurope  FundingProgram = "digital_europe"
	ProgramERDF           FundingProgram = "erdf"
	ProgramErasmusPlus    FundingProgram = "erasmus_plus"
	ProgramCOSME          FundingProgram = "cosme"
	ProgramInnovationFund FundingProgram = "innovation_fund"
	ProgramESFPlus        FundingProgram = "esf_plus"
	ProgramLife           FundingProgram = "life"
	ProgramCEF            FundingProgram = "cef"
	ProgramOther          FundingProgram = "other"
)

var fundingPrograms = []FundingProgram{
	ProgramHorizonEurope, ProgramDigitalEurope, ProgramERDF, ProgramErasmusPlus, ProgramCOSME,
	ProgramInnovationFund, ProgramESFPlus, ProgramLife, ProgramCEF, ProgramOther,
}

// ParseFundingProgram maps free text ("Horizon Europe", "horizon_europe") onto a
// program. Unknown values map to ProgramOther.
func ParseFundingProgram(s string) FundingProgram {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_", "+", "_plus").Replace(key)
	key = strings.ReplaceAll(key, "__", "_")
	for _, p := range fundingPrograms {
		if string(p) == key {
			return p
		}
	}
	return ProgramOther
}

// DisplayName renders "horizon_europe" as "Horizon Europe".
func (p FundingProgram) DisplayName() string {
	parts := strings.Split(string(p), "_")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}

type ComplexityLevel string

const (
	ComplexitySimple  ComplexityLevel = "simple"
	ComplexityMedium  ComplexityLevel = "medium"
	ComplexityComplex ComplexityLevel = "complex"
)

func (c ComplexityLevel) Valid() bool {
	switch c {
	case ComplexitySimple, ComplexityMedium, ComplexityComplex:
		return true
	}
	return false
}

// Rank orders levels so filters can compare them (simple < medium < complex).
func (c ComplexityLevel) Rank() int {
	switch c {
	case ComplexitySimple:
		return 1
	case ComplexityMedium:
		return 2
	case ComplexityComplex:
		return 3
	}
	return 0
}

// LevelForScore buckets a complexity score.
func LevelForScore(score float64) ComplexityLevel {
	switch {
	case score < 30:
		return ComplexitySimple
	case score < 70:
		return ComplexityMedium
	default:
		return ComplexityComplex
	}
}

type Grant struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Synopsis    string         `json:"synopsis"`
	Program     FundingProgram `json:"program"`

	FundingAmount float64  `json:"funding_amount"`
	MinFunding    *float64 `json:"min_funding,omitempty"`
	MaxFunding    *float64 `json:"max_funding,omitempty"`

	Deadline  time.Time  `json:"deadline"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	EligibleCountries   []string `json:"eligible_countries"`
	TargetOrganizations []string `json:"target_organizations"`
	Keywords            []string `json:"keywords"`

	URL          string `json:"url"`
	DocumentsURL string `json:"documents_url,omitempty"`

	RelevanceScore  float64 `json:"relevance_score"`
	ComplexityScore float64 `json:"complexity_score"`
	PriorityScore   float64 `json:"priority_score"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DaysUntilDeadline counts whole calendar days from now's date to the deadline
// date. Negative values mean the deadline has passed.
func (g Grant) DaysUntilDeadline(now time.Time) int {
	today := truncateDay(now)
	deadline := truncateDay(g.Deadline)
	return int(deadline.Sub(today).Hours() / 24)
}

func (g Grant) Expired(now time.Time) bool {
	return g.DaysUntilDeadline(now) < 0
}

func (g Grant) ComplexityLevel() ComplexityLevel {
	return LevelForScore(g.ComplexityScore)
}

// MaxFundingOr returns MaxFunding when set, otherwise the fallback.
func (g Grant) MaxFundingOr(fallback float64) float64 {
	if g.MaxFunding != nil {
		return *g.MaxFunding
	}
	return fallback
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a UTC calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateAfter returns the calendar date days after now.
func DateAfter(now time.Time, days int) time.Time {
	return truncateDay(now).AddDate(0, 0, days)
}

func Float64Ptr(v float64) *float64 {
	return &v
}
