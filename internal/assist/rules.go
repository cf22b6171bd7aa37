package assist

import (
	"fmt"
	"strings"

	"github.com/david/eu-grants-monitor/internal/models"
)

// Rule is one (pattern, effect) pair of the requirement heuristics. Match sees
// the grant only; Apply appends to the analysis being built.
type Rule struct {
	Name  string
	Match func(g models.Grant) bool
	Apply func(a *models.RequirementAnalysis, g models.Grant)
}

// RuleSet is evaluated in order. Bump Version whenever a rule's pattern or
// effect text changes so stored analyses can be traced back to their rules.
type RuleSet struct {
	Version string
	Rules   []Rule
}

const consortiumThreshold = 500_000

// DefaultRules is the requirement rule table used by AnalyzeRequirements.
var DefaultRules = RuleSet{
	Version: "2024.1",
	Rules: []Rule{
		{
			Name: "ai",
			Match: func(g models.Grant) bool {
				return descriptionContains(g, "artificial intelligence") || hasKeyword(g, "ai")
			},
			Apply: func(a *models.RequirementAnalysis, _ models.Grant) {
				a.TechnicalRequirements = append(a.TechnicalRequirements,
					"Demonstrated AI/ML expertise",
					"Experience with production AI systems",
					"Data handling and privacy compliance",
					"Scalable AI architecture design",
				)
				a.Deliverables = append(a.Deliverables,
					"AI model development and validation",
					"Technical documentation and specifications",
					"User training materials",
					"Performance benchmarking report",
				)
				a.EvaluationCriteria = []models.EvaluationCriterion{
					{Name: "Technical Excellence", Weight: 0.30},
					{Name: "Innovation", Weight: 0.25},
					{Name: "Impact", Weight: 0.20},
					{Name: "Implementation Quality", Weight: 0.15},
					{Name: "Sustainability", Weight: 0.10},
				}
			},
		},
		{
			Name: "healthcare",
			Match: func(g models.Grant) bool {
				return descriptionContains(g, "healthcare") || hasKeyword(g, "health")
			},
			Apply: func(a *models.RequirementAnalysis, _ models.Grant) {
				a.TechnicalRequirements = append(a.TechnicalRequirements,
					"Healthcare industry experience",
					"Medical data handling compliance (GDPR, HIPAA)",
					"Clinical workflow understanding",
				)
				a.EligibilityCriteria = append(a.EligibilityCriteria,
					"Healthcare technology experience required",
					"Must demonstrate understanding of medical regulations",
				)
			},
		},
		{
			Name: "sme",
			Match: func(g models.Grant) bool {
				return descriptionContains(g, "sme") || len(g.TargetOrganizations) > 0
			},
			Apply: func(a *models.RequirementAnalysis, g models.Grant) {
				a.EligibilityCriteria = append(a.EligibilityCriteria,
					"Small to Medium Enterprise (SME) status required",
					"EU-based organization",
					fmt.Sprintf("Maximum %.0f EUR funding request", g.MaxFundingOr(g.FundingAmount)),
				)
			},
		},
		{
			Name: "consortium",
			Match: func(g models.Grant) bool {
				return g.FundingAmount > consortiumThreshold
			},
			Apply: func(a *models.RequirementAnalysis, _ models.Grant) {
				a.Consortium = &models.ConsortiumRequirements{
					Required:               true,
					MinPartners:            3,
					PartnerTypes:           []string{"SME", "Research Institution", "Large Enterprise"},
					GeographicDistribution: "At least 2 EU countries",
				}
			},
		},
		{
			Name:  "funding",
			Match: func(models.Grant) bool { return true },
			Apply: func(a *models.RequirementAnalysis, g models.Grant) {
				a.Funding = models.FundingDetails{
					TotalBudget:    g.FundingAmount,
					MaxFundingRate: "70% for SMEs, 50% for large enterprises",
					EligibleCosts: []string{
						"Personnel costs",
						"Equipment and infrastructure",
						"Travel and accommodation",
						"External services",
						"Dissemination and exploitation",
					},
				}
			},
		},
	},
}

// Analyze runs every matching rule in order.
func (rs RuleSet) Analyze(g models.Grant) models.RequirementAnalysis {
	analysis := models.RequirementAnalysis{
		RuleSetVersion:        rs.Version,
		TechnicalRequirements: []string{},
		EligibilityCriteria:   []string{},
		Deliverables:          []string{},
		EvaluationCriteria:    []models.EvaluationCriterion{},
	}
	for _, rule := range rs.Rules {
		if rule.Match == nil || rule.Apply == nil || !rule.Match(g) {
			continue
		}
		rule.Apply(&analysis, g)
		analysis.MatchedRules = append(analysis.MatchedRules, rule.Name)
	}
	return analysis
}

// Rule returns the named rule, used by tests and the rule listing endpoint.
func (rs RuleSet) Rule(name string) (Rule, bool) {
	for _, r := range rs.Rules {
		if r.Name == name {
			return r, true
		}
	}
	return Rule{}, false
}

// AnalyzeRequirements derives structured requirements from a grant with the
// default rule table.
func AnalyzeRequirements(g models.Grant) models.RequirementAnalysis {
	return DefaultRules.Analyze(g)
}

func descriptionContains(g models.Grant, term string) bool {
	return strings.Contains(strings.ToLower(g.Description), term)
}

// hasKeyword is an exact element match, not a substring search.
func hasKeyword(g models.Grant, kw string) bool {
	for _, k := range g.Keywords {
		if k == kw {
			return true
		}
	}
	return false
}
