package ingest

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/david/eu-grants-monitor/internal/models"
)

//go:embed data/fixtures.yaml
var fixturesYAML []byte

type fixtureFile struct {
	Catalogue      []fixtureGrant `yaml:"catalogue"`
	HorizonSamples []fixtureGrant `yaml:"horizon_samples"`
}

// fixtureGrant stores dates as day offsets so the catalogue never goes stale.
type fixtureGrant struct {
	ID                  string   `yaml:"id"`
	Title               string   `yaml:"title"`
	Description         string   `yaml:"description"`
	Synopsis            string   `yaml:"synopsis"`
	Program             string   `yaml:"program"`
	FundingAmount       float64  `yaml:"funding_amount"`
	MinFunding          *float64 `yaml:"min_funding"`
	MaxFunding          *float64 `yaml:"max_funding"`
	DeadlineInDays      int      `yaml:"deadline_in_days"`
	StartInDays         *int     `yaml:"start_in_days"`
	EndInDays           *int     `yaml:"end_in_days"`
	EligibleCountries   []string `yaml:"eligible_countries"`
	TargetOrganizations []string `yaml:"target_organizations"`
	Keywords            []string `yaml:"keywords"`
	URL                 string   `yaml:"url"`
	DocumentsURL        string   `yaml:"documents_url"`
}

func (f fixtureGrant) grant(now time.Time) models.Grant {
	g := models.Grant{
		ID:                  f.ID,
		Title:               f.Title,
		Description:         f.Description,
		Synopsis:            f.Synopsis,
		Program:             models.ParseFundingProgram(f.Program),
		FundingAmount:       f.FundingAmount,
		MinFunding:          f.MinFunding,
		MaxFunding:          f.MaxFunding,
		Deadline:            models.DateAfter(now, f.DeadlineInDays),
		EligibleCountries:   append([]string(nil), f.EligibleCountries...),
		TargetOrganizations: append([]string(nil), f.TargetOrganizations...),
		Keywords:            append([]string(nil), f.Keywords...),
		URL:                 f.URL,
		DocumentsURL:        f.DocumentsURL,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if f.StartInDays != nil {
		d := models.DateAfter(now, *f.StartInDays)
		g.StartDate = &d
	}
	if f.EndInDays != nil {
		d := models.DateAfter(now, *f.EndInDays)
		g.EndDate = &d
	}
	return g
}

func loadFixtures() (fixtureFile, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(fixturesYAML, &f); err != nil {
		return f, fmt.Errorf("parse grant fixtures: %w", err)
	}
	return f, nil
}

func materialize(list []fixtureGrant, now time.Time) []models.Grant {
	out := make([]models.Grant, 0, len(list))
	for _, f := range list {
		out = append(out, f.grant(now))
	}
	return out
}

// FixtureSource serves the built-in demonstration catalogue. Each call
// rebuilds fresh grants so callers may mutate the returned slice.
type FixtureSource struct {
	now func() time.Time
}

func NewFixtureSource(now func() time.Time) *FixtureSource {
	if now == nil {
		now = time.Now
	}
	return &FixtureSource{now: now}
}

func (s *FixtureSource) Name() string { return "mock" }

func (s *FixtureSource) Fetch(ctx context.Context) ([]models.Grant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := loadFixtures()
	if err != nil {
		return nil, err
	}
	return materialize(f.Catalogue, s.now()), nil
}

func (s *FixtureSource) GrantByID(id string) (models.Grant, error) {
	f, err := loadFixtures()
	if err != nil {
		return models.Grant{}, err
	}
	for _, fg := range f.Catalogue {
		if fg.ID == id {
			return fg.grant(s.now()), nil
		}
	}
	return models.Grant{}, fmt.Errorf("Grant with ID '%s' not found: %w", id, ErrGrantNotFound)
}

// SearchByKeyword matches title, description and keywords case-insensitively.
func (s *FixtureSource) SearchByKeyword(keyword string) ([]models.Grant, error) {
	f, err := loadFixtures()
	if err != nil {
		return nil, err
	}
	term := strings.ToLower(strings.TrimSpace(keyword))
	var out []models.Grant
	for _, g := range materialize(f.Catalogue, s.now()) {
		if matchesKeyword(g, term) {
			out = append(out, g)
		}
	}
	return out, nil
}

func matchesKeyword(g models.Grant, term string) bool {
	if strings.Contains(strings.ToLower(g.Title), term) || strings.Contains(strings.ToLower(g.Description), term) {
		return true
	}
	for _, kw := range g.Keywords {
		if strings.Contains(strings.ToLower(kw), term) {
			return true
		}
	}
	return false
}

// SampleHorizonGrants returns the fallback Horizon Europe calls.
func SampleHorizonGrants(now time.Time) ([]models.Grant, error) {
	f, err := loadFixtures()
	if err != nil {
		return nil, err
	}
	return materialize(f.HorizonSamples, now), nil
}
