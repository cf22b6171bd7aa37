package models

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidProfile = errors.New("invalid business profile")

type CompanySize string

const (
	SizeMicro  CompanySize = "micro"
	SizeSmall  CompanySize = "small"
	SizeMedium CompanySize = "medium"
)

type FundingRange struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

func (r FundingRange) Contains(amount float64) bool {
	return amount >= r.Min && amount <= r.Max
}

// BusinessProfile is read-only to scoring; callers pass it per request.
type BusinessProfile struct {
	CompanyName          string          `json:"company_name" yaml:"company_name"`
	CompanySize          CompanySize     `json:"company_size" yaml:"company_size"`
	Country              string          `json:"country" yaml:"country"`
	AIExpertise          []string        `json:"ai_expertise" yaml:"ai_expertise"`
	TechnologyFocus      []string        `json:"technology_focus" yaml:"technology_focus"`
	Industries           []string        `json:"target_industries" yaml:"target_industries"`
	Sectors              []string        `json:"business_sectors" yaml:"business_sectors"`
	FundingRange         FundingRange    `json:"preferred_funding_range" yaml:"preferred_funding_range"`
	MaxProjectDuration   int             `json:"max_project_duration_months" yaml:"max_project_duration_months"`
	ComplexityPreference ComplexityLevel `json:"complexity_preference" yaml:"complexity_preference"`
	TeamSize             int             `json:"team_size" yaml:"team_size"`
}

func (p BusinessProfile) Validate() error {
	var problems []string
	if strings.TrimSpace(p.CompanyName) == "" {
		problems = append(problems, "company_name is required")
	}
	switch p.CompanySize {
	case SizeMicro, SizeSmall, SizeMedium:
	default:
		problems = append(problems, fmt.Sprintf("company_size %q must be micro, small or medium", p.CompanySize))
	}
	if !p.ComplexityPreference.Valid() {
		problems = append(problems, fmt.Sprintf("complexity_preference %q must be simple, medium or complex", p.ComplexityPreference))
	}
	if p.FundingRange.Min > p.FundingRange.Max {
		problems = append(problems, fmt.Sprintf("preferred_funding_range min %.0f exceeds max %.0f", p.FundingRange.Min, p.FundingRange.Max))
	}
	if p.MaxProjectDuration < 0 || p.TeamSize < 0 {
		problems = append(problems, "durations and team size must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidProfile, strings.Join(problems, "; "))
	}
	return nil
}

// SizeKeywords lists the target-organization labels a company size qualifies for.
func (s CompanySize) SizeKeywords() []string {
	switch s {
	case SizeMicro:
		return []string{"micro", "sme", "startup"}
	case SizeSmall:
		return []string{"small", "sme", "startup"}
	case SizeMedium:
		return []string{"medium", "sme"}
	}
	return nil
}

// DefaultProfile mirrors the starter profile written by `grants-monitor setup`.
func DefaultProfile() BusinessProfile {
	return BusinessProfile{
		CompanyName: "Your AI Consultancy",
		CompanySize: SizeSmall,
		Country:     "DE",
		AIExpertise: []string{
			"machine_learning", "natural_language_processing", "computer_vision",
			"deep_learning", "data_analytics",
		},
		TechnologyFocus: []string{
			"python", "tensorflow", "pytorch", "scikit_learn", "cloud_computing",
		},
		Industries: []string{
			"healthcare", "finance", "manufacturing", "retail", "logistics",
		},
		Sectors: []string{
			"consulting", "software_development", "research_development", "training",
		},
		FundingRange:         FundingRange{Min: 50000, Max: 500000},
		MaxProjectDuration:   24,
		ComplexityPreference: ComplexitySimple,
		TeamSize:             5,
	}
}
