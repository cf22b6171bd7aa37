// Package assist turns a scored grant and a business profile into application
// guidance: requirement analysis, business fit, recommendations, timeline,
// effort and success estimates.
package assist

import (
	"fmt"
	"time"

	"github.com/david/eu-grants-monitor/internal/models"
)

// GenerateAssistance builds the full guidance bundle for one grant and profile.
// The grant's stored complexity score decides its complexity level, so callers
// normally score the grant first. An invalid profile yields an error and no
// partial guidance.
func GenerateAssistance(g models.Grant, p models.BusinessProfile, now time.Time) (models.Guidance, error) {
	if err := p.Validate(); err != nil {
		return models.Guidance{}, fmt.Errorf("generate assistance for %s: %w", g.ID, err)
	}

	req := AnalyzeRequirements(g)
	fit := AnalyzeFit(g, p, req)
	days := g.DaysUntilDeadline(now)

	return models.Guidance{
		GrantID:           g.ID,
		MatchScore:        fit.MatchScore,
		Strengths:         fit.Strengths,
		Gaps:              fit.Gaps,
		Recommendations:   Recommendations(g, p, req, fit.Gaps, days),
		Timeline:          Timeline(days),
		RequiredDocuments: RequiredDocuments(g, req),
		Effort:            EstimateEffort(g, req),
		Success:           EstimateSuccess(fit.MatchScore, g.ComplexityLevel(), p),
		StrategicAdvice:   StrategicAdvice(g, p, fit.MatchScore),
		Requirements:      req,
	}, nil
}
