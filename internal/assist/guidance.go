package assist

import (
	"fmt"
	"math"
	"strings"

	"github.com/david/eu-grants-monitor/internal/models"
)

const (
	recTechnicalGap = "Consider partnering with organizations that have the missing technical expertise, " +
		"or highlight transferable skills from your current technology stack."
	recScaleDown = "Consider scaling down the project scope to match your preferred funding range, " +
		"or partner with larger organizations to handle the increased project size."
	recHealthcare = "Emphasize any healthcare-related projects or partnerships. " +
		"Consider collaborating with medical institutions to strengthen your application."
	recAI = "Highlight specific AI use cases and demonstrate measurable impact. " +
		"Include technical architecture diagrams and proof-of-concept results if available."
	recTightDeadline = "⚠️ Tight deadline! Prioritize completing mandatory sections first. " +
		"Consider requesting deadline extension if available."
	recModerateDeadline = "Moderate timeline available. Start with proposal outline and consortium formation."
)

// Recommendations turns the fit gaps and grant traits into ordered advice.
func Recommendations(g models.Grant, p models.BusinessProfile, req models.RequirementAnalysis, gaps []string, days int) []string {
	recs := []string{}

	for _, gap := range gaps {
		if strings.Contains(gap, "Technical gap") {
			recs = append(recs, recTechnicalGap)
			break
		}
	}

	if req.ConsortiumRequired() {
		recs = append(recs, fmt.Sprintf("Form a consortium with %d partners. Target partner types: %s",
			req.Consortium.MinPartners, strings.Join(req.Consortium.PartnerTypes, ", ")))
	}

	if g.FundingAmount > p.FundingRange.Max {
		recs = append(recs, recScaleDown)
	}

	desc := strings.ToLower(g.Description)
	if strings.Contains(desc, "healthcare") {
		recs = append(recs, recHealthcare)
	}
	// "ai" is a plain substring test, so words like "maintain" also trigger it.
	if strings.Contains(desc, "ai") || strings.Contains(desc, "artificial intelligence") {
		recs = append(recs, recAI)
	}

	switch {
	case days < 30:
		recs = append(recs, recTightDeadline)
	case days < 60:
		recs = append(recs, recModerateDeadline)
	}
	return recs
}

// Timeline picks the eight-week plan when more than 60 days remain and the
// accelerated plan otherwise.
func Timeline(days int) []models.TimelinePhase {
	if days > 60 {
		return []models.TimelinePhase{
			{
				Phase: "Preparation (Weeks 1-2)",
				Tasks: []string{
					"Analyze grant requirements in detail",
					"Assess internal capabilities and identify gaps",
					"Research potential partners and competitors",
				},
				Priority: models.PhaseHigh,
			},
			{
				Phase: "Consortium Building (Weeks 3-4)",
				Tasks: []string{
					"Identify and contact potential partners",
					"Define roles and responsibilities",
					"Draft consortium agreement",
				},
				Priority: models.PhaseHigh,
			},
			{
				Phase: "Proposal Development (Weeks 5-7)",
				Tasks: []string{
					"Develop technical approach and methodology",
					"Create detailed work packages and timeline",
					"Prepare budget and resource allocation",
				},
				Priority: models.PhaseCritical,
			},
			{
				Phase: "Review and Submission (Week 8)",
				Tasks: []string{
					"Internal review and quality check",
					"Partner review and approval",
					"Final submission and documentation",
				},
				Priority: models.PhaseCritical,
			},
		}
	}
	return []models.TimelinePhase{
		{
			Phase: "Immediate Actions (Days 1-3)",
			Tasks: []string{
				"Complete eligibility check",
				"Gather required documents",
				"Contact key partners if consortium needed",
			},
			Priority: models.PhaseCritical,
		},
		{
			Phase: "Core Development (Days 4-10)",
			Tasks: []string{
				"Draft technical sections",
				"Prepare budget outline",
				"Complete mandatory forms",
			},
			Priority: models.PhaseCritical,
		},
		{
			Phase: "Finalization (Final 3 days)",
			Tasks: []string{
				"Review and polish application",
				"Submit before deadline",
				"Prepare for potential follow-up questions",
			},
			Priority: models.PhaseCritical,
		},
	}
}

// EstimateEffort returns the expected preparation hours.
func EstimateEffort(g models.Grant, req models.RequirementAnalysis) models.EffortEstimate {
	hours := 40
	switch {
	case g.FundingAmount > 1_000_000:
		hours += 80
	case g.FundingAmount > 500_000:
		hours += 40
	case g.FundingAmount > 100_000:
		hours += 20
	}
	if req.ConsortiumRequired() {
		hours += 30
	}
	if len(req.TechnicalRequirements) > 5 {
		hours += 20
	}

	var narrative string
	switch {
	case hours < 60:
		narrative = fmt.Sprintf("%d hours (1-2 weeks with 1 person)", hours)
	case hours < 120:
		narrative = fmt.Sprintf("%d hours (2-3 weeks with 1 person, or 1-2 weeks with 2 people)", hours)
	default:
		narrative = fmt.Sprintf("%d hours (1+ months, requires team effort)", hours)
	}
	return models.EffortEstimate{Hours: hours, Narrative: narrative}
}

// EstimateSuccess converts the match score into a bounded success probability.
func EstimateSuccess(matchScore float64, level models.ComplexityLevel, p models.BusinessProfile) models.SuccessEstimate {
	prob := matchScore / 100
	if level == p.ComplexityPreference {
		prob += 0.1
	} else if level == models.ComplexityComplex {
		prob -= 0.2
	}
	if p.CompanySize == models.SizeSmall {
		prob += 0.1
	}
	prob = math.Min(math.Max(prob, 0.1), 0.9)

	pct := math.Round(prob * 100)
	var narrative string
	switch {
	case prob > 0.7:
		narrative = fmt.Sprintf("High (%.0f%%) - Strong alignment with requirements", pct)
	case prob > 0.4:
		narrative = fmt.Sprintf("Medium (%.0f%%) - Good potential with some gaps to address", pct)
	default:
		narrative = fmt.Sprintf("Low (%.0f%%) - Significant gaps, consider partnership or skip", pct)
	}
	return models.SuccessEstimate{Probability: prob, Narrative: narrative}
}

// StrategicAdvice joins the applicable advice paragraphs with blank lines.
func StrategicAdvice(g models.Grant, p models.BusinessProfile, matchScore float64) string {
	var parts []string
	switch {
	case matchScore > 70:
		parts = append(parts, "🎯 **Strong Fit**: This grant aligns well with your capabilities. "+
			"Focus on highlighting your unique value proposition and past successes.")
	case matchScore > 50:
		parts = append(parts, "⚖️ **Moderate Fit**: Consider strengthening your application through partnerships "+
			"or by emphasizing transferable skills from related projects.")
	default:
		parts = append(parts, "⚠️ **Challenging Fit**: This grant has significant gaps. "+
			"Consider whether the effort is justified or focus on better-matched opportunities.")
	}
	if g.Program == models.ProgramHorizonEurope {
		parts = append(parts, "📊 **Horizon Europe Focus**: Emphasize innovation, impact, and European added value. "+
			"Strong consortium and clear commercialization path are crucial.")
	}
	if g.FundingAmount > p.FundingRange.Max {
		parts = append(parts, "💰 **Large Grant Strategy**: Consider this as an opportunity to scale up operations. "+
			"Ensure you have the capacity to manage increased project complexity.")
	}
	return strings.Join(parts, "\n\n")
}

// RequiredDocuments lists the documents an application must include.
func RequiredDocuments(g models.Grant, req models.RequirementAnalysis) []string {
	docs := []string{
		"Grant application form (mandatory sections completed)",
		"Technical proposal with detailed methodology",
		"Budget breakdown and justification",
		"Company profile and capability statement",
	}
	if req.ConsortiumRequired() {
		docs = append(docs,
			"Consortium agreement draft",
			"Partner commitment letters",
			"Partner capability statements",
		)
	}
	if g.Program == models.ProgramHorizonEurope {
		docs = append(docs,
			"Ethics self-assessment",
			"Data management plan",
			"Dissemination and exploitation plan",
		)
	}
	if strings.Contains(strings.ToLower(g.Description), "healthcare") {
		docs = append(docs,
			"Regulatory compliance statement",
			"Data privacy impact assessment",
		)
	}
	return docs
}
