// Package scoring ranks grants against a business profile. Every function here
// is a pure function of its inputs; ScoreGrants only writes the score fields of
// the grants it is given.
package scoring

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/david/eu-grants-monitor/internal/models"
)

// Matching holds the relevance bonuses and term weights.
type Matching struct {
	CountryBonus         float64 `yaml:"country_bonus" json:"country_bonus"`
	SizeMatchBonus       float64 `yaml:"size_match_bonus" json:"size_match_bonus"`
	ExpertiseMatchWeight float64 `yaml:"expertise_match_weight" json:"expertise_match_weight"`
	IndustryMatchWeight  float64 `yaml:"industry_match_weight" json:"industry_match_weight"`
	FundingRangeWeight   float64 `yaml:"funding_range_weight" json:"funding_range_weight"`
}

func DefaultMatching() Matching {
	return Matching{
		CountryBonus:         10,
		SizeMatchBonus:       15,
		ExpertiseMatchWeight: 0.4,
		IndustryMatchWeight:  0.3,
		FundingRangeWeight:   0.3,
	}
}

// Weights combine the normalized terms of the priority score. They are used as
// given; nothing renormalizes them to sum to 1.
type Weights struct {
	Relevance  float64 `yaml:"relevance" json:"relevance"`
	Complexity float64 `yaml:"complexity" json:"complexity"`
	Amount     float64 `yaml:"amount" json:"amount"`
	Deadline   float64 `yaml:"deadline" json:"deadline"`
}

func DefaultWeights() Weights {
	return Weights{Relevance: 0.4, Complexity: 0.3, Amount: 0.2, Deadline: 0.1}
}

// Relevance scores how well a grant fits a profile. Terms accumulate and the
// total is capped at 100; there is no lower bound.
func Relevance(g models.Grant, p models.BusinessProfile, m Matching) float64 {
	score := 0.0

	if containsExact(g.EligibleCountries, p.Country) {
		score += m.CountryBonus
	}

	targets := lowerAll(g.TargetOrganizations)
	for _, kw := range p.CompanySize.SizeKeywords() {
		if containsExact(targets, kw) {
			score += m.SizeMatchBonus
			break
		}
	}

	keywords := lowerAll(g.Keywords)

	if len(p.AIExpertise) > 0 {
		matched := 0
		for _, exp := range p.AIExpertise {
			term := strings.ToLower(strings.ReplaceAll(exp, "_", " "))
			if anyContains(keywords, term) {
				matched++
			}
		}
		ratio := float64(matched) / float64(len(p.AIExpertise))
		score += ratio * m.ExpertiseMatchWeight * 100
	}

	if len(p.Industries) > 0 {
		haystack := append(keywords, strings.ToLower(g.Title), strings.ToLower(g.Description))
		matched := 0
		for _, ind := range p.Industries {
			if anyContains(haystack, strings.ToLower(ind)) {
				matched++
			}
		}
		ratio := math.Min(float64(matched)/float64(len(p.Industries)), 1.0)
		score += ratio * m.IndustryMatchWeight * 100
	}

	score += fundingTerm(g.FundingAmount, p.FundingRange, m.FundingRangeWeight)

	return math.Min(score, 100)
}

func fundingTerm(amount float64, r models.FundingRange, weight float64) float64 {
	switch {
	case r.Contains(amount):
		return weight * 100
	case amount < r.Min:
		if r.Min <= 0 {
			return 0
		}
		return (amount / r.Min) * weight * 50
	default:
		if r.Max <= 0 {
			return 0
		}
		return (2.0 - math.Min(2.0, amount/r.Max)) * weight * 50
	}
}

var complexityKeywords = []string{"consortium", "multi-partner", "phd", "research"}

// Complexity estimates how hard a grant is to apply for.
func Complexity(g models.Grant) float64 {
	score := 30.0

	switch {
	case g.FundingAmount > 1_000_000:
		score += 30
	case g.FundingAmount > 500_000:
		score += 20
	case g.FundingAmount > 100_000:
		score += 10
	}

	text := strings.ToLower(g.Title + " " + g.Description)
	for _, kw := range complexityKeywords {
		if strings.Contains(text, kw) {
			score += 15
			break
		}
	}

	return math.Min(score, 100)
}

// Priority combines the relevance and complexity already stored on the grant
// with its amount and deadline. Expired grants yield a negative deadline term.
func Priority(g models.Grant, w Weights, now time.Time) float64 {
	relevanceNorm := g.RelevanceScore / 100
	complexityNorm := (100 - g.ComplexityScore) / 100
	amountNorm := math.Min(g.FundingAmount/1_000_000, 1.0)
	deadlineNorm := math.Min(float64(g.DaysUntilDeadline(now))/365, 1.0)

	return 100 * (relevanceNorm*w.Relevance +
		complexityNorm*w.Complexity +
		amountNorm*w.Amount +
		deadlineNorm*w.Deadline)
}

// ScoreGrants sets the three score fields on every grant in place. The slice is
// left in its original order.
func ScoreGrants(grants []models.Grant, p models.BusinessProfile, m Matching, w Weights, now time.Time) []models.Grant {
	for i := range grants {
		ScoreGrant(&grants[i], p, m, w, now)
	}
	return grants
}

func ScoreGrant(g *models.Grant, p models.BusinessProfile, m Matching, w Weights, now time.Time) {
	g.RelevanceScore = Relevance(*g, p, m)
	g.ComplexityScore = Complexity(*g)
	g.PriorityScore = Priority(*g, w, now)
}

// SortByPriority orders grants by descending priority; ties keep their order.
func SortByPriority(grants []models.Grant) {
	sort.SliceStable(grants, func(i, j int) bool {
		return grants[i].PriorityScore > grants[j].PriorityScore
	})
}

func containsExact(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func anyContains(list []string, term string) bool {
	for _, item := range list {
		if strings.Contains(item, term) {
			return true
		}
	}
	return false
}

func lowerAll(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = strings.ToLower(s)
	}
	return out
}
