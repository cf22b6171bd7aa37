package models

// ConsortiumRequirements is present only for grants large enough to need partners.
type ConsortiumRequirements struct {
	Required               bool     `json:"required"`
	MinPartners            int      `json:"min_partners"`
	PartnerTypes           []string `json:"partner_types"`
	GeographicDistribution string   `json:"geographic_distribution"`
}

type FundingDetails struct {
	TotalBudget    float64  `json:"total_budget"`
	MaxFundingRate string   `json:"max_funding_rate"`
	EligibleCosts  []string `json:"eligible_costs"`
}

// EvaluationCriterion keeps criteria ordered; weights need not sum to 1.
type EvaluationCriterion struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

type RequirementAnalysis struct {
	RuleSetVersion        string                  `json:"rule_set_version"`
	MatchedRules          []string                `json:"matched_rules"`
	TechnicalRequirements []string                `json:"technical_requirements"`
	EligibilityCriteria   []string                `json:"eligibility_criteria"`
	Consortium            *ConsortiumRequirements `json:"consortium_requirements"`
	Funding               FundingDetails          `json:"funding_details"`
	Deliverables          []string                `json:"deliverables"`
	EvaluationCriteria    []EvaluationCriterion   `json:"evaluation_criteria"`
}

// ConsortiumRequired reports whether a consortium block demands partners.
func (r RequirementAnalysis) ConsortiumRequired() bool {
	return r.Consortium != nil && r.Consortium.Required
}

// CriterionWeight looks up an evaluation weight by name.
func (r RequirementAnalysis) CriterionWeight(name string) (float64, bool) {
	for _, c := range r.EvaluationCriteria {
		if c.Name == name {
			return c.Weight, true
		}
	}
	return 0, false
}

type PhasePriority string

const (
	PhaseHigh     PhasePriority = "High"
	PhaseCritical PhasePriority = "Critical"
)

type TimelinePhase struct {
	Phase    string        `json:"phase"`
	Tasks    []string      `json:"tasks"`
	Priority PhasePriority `json:"priority"`
}

type EffortEstimate struct {
	Hours     int    `json:"hours"`
	Narrative string `json:"narrative"`
}

type SuccessEstimate struct {
	Probability float64 `json:"probability"`
	Narrative   string  `json:"narrative"`
}

// Guidance is produced once per (grant, profile) pair and never mutated afterwards.
type Guidance struct {
	GrantID           string              `json:"grant_id"`
	MatchScore        float64             `json:"match_score"`
	Strengths         []string            `json:"strengths"`
	Gaps              []string            `json:"gaps"`
	Recommendations   []string            `json:"recommendations"`
	Timeline          []TimelinePhase     `json:"timeline"`
	RequiredDocuments []string            `json:"required_documents"`
	Effort            EffortEstimate      `json:"estimated_effort"`
	Success           SuccessEstimate     `json:"success_probability"`
	StrategicAdvice   string              `json:"strategic_advice"`
	Requirements      RequirementAnalysis `json:"requirements"`
}
