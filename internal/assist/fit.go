package assist

import (
	"fmt"
	"math"
	"strings"

	"github.com/david/eu-grants-monitor/internal/models"
)

// Component weights of the business-fit score. When a component is absent
// (no technical requirements, no target industries) its weight is dropped,
// not redistributed, so the maximum reachable score is lower.
const (
	technicalWeight  = 0.4
	industryWeight   = 0.2
	fundingWeight    = 0.2
	complexityWeight = 0.2
)

// FitResult is the outcome of comparing one grant against one profile.
type FitResult struct {
	MatchScore float64  `json:"match_score"`
	Strengths  []string `json:"strengths"`
	Gaps       []string `json:"gaps"`
}

// AnalyzeFit scores how well the profile covers the analysed requirements.
func AnalyzeFit(g models.Grant, p models.BusinessProfile, req models.RequirementAnalysis) FitResult {
	res := FitResult{Strengths: []string{}, Gaps: []string{}}
	total := 0.0

	if len(req.TechnicalRequirements) > 0 {
		expertise := profileExpertise(p)
		matched := 0
		for _, r := range req.TechnicalRequirements {
			if coversRequirement(expertise, r) {
				matched++
				res.Strengths = append(res.Strengths, "Strong match: "+r)
			} else {
				res.Gaps = append(res.Gaps, "Technical gap: "+r)
			}
		}
		total += float64(matched) / float64(len(req.TechnicalRequirements)) * technicalWeight
	}

	if len(p.Industries) > 0 {
		desc := strings.ToLower(g.Description)
		matched := 0
		for _, ind := range p.Industries {
			if strings.Contains(desc, strings.ToLower(ind)) {
				matched++
				res.Strengths = append(res.Strengths, "Industry experience: "+ind)
			}
		}
		ratio := math.Min(float64(matched)/float64(len(p.Industries)), 1.0)
		total += ratio * industryWeight
	}

	var fundingFit float64
	switch {
	case p.FundingRange.Contains(g.FundingAmount):
		fundingFit = 1.0
		res.Strengths = append(res.Strengths, "Funding amount within preferred range")
	case g.FundingAmount < p.FundingRange.Min:
		fundingFit = 0.5
		res.Gaps = append(res.Gaps, "Grant amount below preferred minimum")
	default:
		fundingFit = 0.3
		res.Gaps = append(res.Gaps, "Grant amount above preferred maximum")
	}
	total += fundingFit * fundingWeight

	var complexityFit float64
	level := g.ComplexityLevel()
	switch {
	case level == p.ComplexityPreference:
		complexityFit = 1.0
		res.Strengths = append(res.Strengths, "Complexity level matches preference")
	case level == models.ComplexityMedium && p.ComplexityPreference == models.ComplexitySimple:
		complexityFit = 0.6
		res.Gaps = append(res.Gaps, "Higher complexity than preferred")
	default:
		complexityFit = 0.3
		res.Gaps = append(res.Gaps, "Complexity mismatch")
	}
	total += complexityFit * complexityWeight

	res.MatchScore = math.Min(math.Max(total*100, 0), 100)
	return res
}

// profileExpertise returns the distinct lower-cased AI expertise and
// technology focus entries.
func profileExpertise(p models.BusinessProfile) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range [][]string{p.AIExpertise, p.TechnologyFocus} {
		for _, e := range list {
			e = strings.ToLower(e)
			if e == "" || seen[e] {
				continue
			}
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

func coversRequirement(expertise []string, requirement string) bool {
	req := strings.ToLower(requirement)
	for _, e := range expertise {
		if strings.Contains(req, e) {
			return true
		}
	}
	return false
}

func (f FitResult) String() string {
	return fmt.Sprintf("match %.1f%% (%d strengths, %d gaps)", f.MatchScore, len(f.Strengths), len(f.Gaps))
}
