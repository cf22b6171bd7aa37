// Package prefill fills a standard EU application form from a grant, a
// business profile and the guidance generated for them, and renders the
// result as reviewable documents.
package prefill

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/david/eu-grants-monitor/internal/models"
)

type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldSelect   FieldType = "select"
	FieldEmail    FieldType = "email"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
)

// A field counts as filled once its confidence is above completeConfidence;
// critical fields below criticalConfidence are reported missing.
const (
	completeConfidence = 0.7
	criticalConfidence = 0.5
)

var criticalFields = []string{"organization_name", "project_title", "total_budget", "contact_email"}

// High-priority fields are the ones evaluators read first.
var highPriorityFields = []string{"project_title", "project_summary", "total_budget"}

var standardFields = []string{
	"organization_name",
	"country",
	"organization_type",
	"contact_email",
	"project_title",
	"project_summary",
	"total_budget",
	"start_date",
	"duration_months",
	"personnel_costs",
	"equipment_costs",
	"travel_costs",
	"other_costs",
	"indirect_costs",
	"total_costs",
}

var organizationTypes = map[models.CompanySize]string{
	models.SizeMicro:  "Micro Enterprise (1-9 employees)",
	models.SizeSmall:  "Small Enterprise (10-49 employees)",
	models.SizeMedium: "Medium Enterprise (50-249 employees)",
}

type FormField struct {
	Name       string    `json:"field_name"`
	Type       FieldType `json:"field_type"`
	Value      string    `json:"prefilled_value,omitempty"`
	Confidence float64   `json:"confidence"`
	NeedsInput bool      `json:"needs_user_input"`
	UserPrompt string    `json:"user_prompt,omitempty"`
	Options    []string  `json:"options,omitempty"`
}

// Label renders "project_title" as "Project Title".
func (f FormField) Label() string {
	return titleCase(f.Name)
}

func (f FormField) filled() bool {
	return f.Value != "" && f.Confidence > completeConfidence
}

type Form struct {
	Name              string      `json:"form_name"`
	GrantID           string      `json:"grant_id"`
	Fields            []FormField `json:"fields"`
	RequiredDocuments []string    `json:"required_documents"`
}

// Prefill maps grant, profile and guidance data onto the standard application
// form. Fields the data cannot answer carry a user prompt instead of a value.
func Prefill(g models.Grant, p models.BusinessProfile, guidance models.Guidance) Form {
	form := Form{
		Name:              "application_form",
		GrantID:           g.ID,
		RequiredDocuments: guidance.RequiredDocuments,
	}
	for _, name := range standardFields {
		form.Fields = append(form.Fields, prefillField(name, g, p, guidance))
	}
	if c := guidance.Requirements.Consortium; c != nil && c.Required {
		form.Fields = append(form.Fields, FormField{
			Name:       "consortium_partners",
			Type:       FieldTextarea,
			NeedsInput: true,
			UserPrompt: fmt.Sprintf("List at least %d consortium partners (%s)", c.MinPartners, c.GeographicDistribution),
		})
	}
	return form
}

func prefillField(name string, g models.Grant, p models.BusinessProfile, guidance models.Guidance) FormField {
	f := FormField{Name: name, Type: FieldText}
	budget := suggestedBudget(g, p)

	switch name {
	case "organization_name":
		f.Value = strings.TrimSpace(p.CompanyName)
		f.Confidence = 0.95
	case "country":
		f.Value = p.Country
		f.Confidence = 0.95
	case "organization_type":
		f.Type = FieldSelect
		f.Options = []string{
			organizationTypes[models.SizeMicro],
			organizationTypes[models.SizeSmall],
			organizationTypes[models.SizeMedium],
		}
		f.Value = organizationTypes[models.SizeSmall]
		if v, ok := organizationTypes[p.CompanySize]; ok {
			f.Value = v
		}
		f.Confidence = 0.9
	case "contact_email":
		f.Type = FieldEmail
		f.NeedsInput = true
		f.UserPrompt = "Please provide the project contact email address"
	case "project_title":
		expertise := "AI"
		if len(p.AIExpertise) > 0 {
			expertise = titleCase(p.AIExpertise[0])
		}
		f.Value = fmt.Sprintf("Advanced %s Solutions for %s", expertise, grantDomain(g))
		f.Confidence = 0.7
		f.NeedsInput = true
		f.UserPrompt = "Please review and customize the project title"
	case "project_summary":
		f.Type = FieldTextarea
		industry := "technology"
		if len(p.Industries) > 0 {
			industry = p.Industries[0]
		}
		expertise := p.AIExpertise
		if len(expertise) > 3 {
			expertise = expertise[:3]
		}
		f.Value = fmt.Sprintf("This project leverages %s's expertise in %s to develop innovative solutions for the %s sector. "+
			"Our approach combines cutting-edge AI technologies with practical applications, ensuring scalable and sustainable outcomes.",
			p.CompanyName, strings.Join(expertise, ", "), industry)
		f.Confidence = 0.6
		f.NeedsInput = true
		f.UserPrompt = "Please customize this summary with your specific technical approach"
	case "total_budget":
		f.Type = FieldNumber
		f.Value = wholeEuros(budget)
		f.Confidence = 0.7
		f.NeedsInput = true
		f.UserPrompt = "Please adjust based on actual project scope"
		if rate := guidance.Requirements.Funding.MaxFundingRate; rate != "" {
			f.UserPrompt += fmt.Sprintf(" (maximum funding rate %s)", rate)
		}
	case "start_date":
		f.Type = FieldDate
		f.Value = g.Deadline.AddDate(0, 0, 90).Format("2006-01-02")
		f.Confidence = 0.8
	case "duration_months":
		f.Type = FieldNumber
		months := 24
		if g.FundingAmount > 500000 {
			months = 36
		}
		if p.MaxProjectDuration > 0 {
			months = min(months, p.MaxProjectDuration)
		}
		f.Value = strconv.Itoa(months)
		f.Confidence = 0.7
	case "personnel_costs", "equipment_costs", "travel_costs", "other_costs", "indirect_costs", "total_costs":
		f.Type = FieldNumber
		f.Value = wholeEuros(costShare(name, budget))
		f.Confidence = 0.7
	}
	return f
}

// suggestedBudget asks for 80% of the call amount, capped at the profile's
// preferred maximum.
func suggestedBudget(g models.Grant, p models.BusinessProfile) float64 {
	budget := g.FundingAmount * 0.8
	if p.FundingRange.Max > 0 {
		budget = math.Min(budget, p.FundingRange.Max)
	}
	return budget
}

func costShare(name string, budget float64) float64 {
	switch name {
	case "personnel_costs":
		return budget * 0.65
	case "equipment_costs":
		return budget * 0.12
	case "travel_costs":
		return budget * 0.04
	case "other_costs":
		return budget * 0.06
	case "indirect_costs":
		// 25% flat rate on direct costs
		return budget * 0.8 * 0.25
	}
	return budget
}

func wholeEuros(v float64) string {
	return strconv.FormatInt(int64(v), 10)
}

func grantDomain(g models.Grant) string {
	desc := strings.ToLower(g.Description)
	switch {
	case strings.Contains(desc, "healthcare"):
		return "Healthcare"
	case strings.Contains(desc, "manufacturing"):
		return "Manufacturing"
	case strings.Contains(desc, "education"):
		return "Education"
	case strings.Contains(desc, "environment"):
		return "Environmental"
	}
	return "Technology"
}

func titleCase(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// Field returns the named field.
func (f Form) Field(name string) (FormField, bool) {
	for _, field := range f.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return FormField{}, false
}

// Fill records a value supplied by the user. It reports false for an unknown
// field.
func (f *Form) Fill(name, value string) bool {
	for i := range f.Fields {
		if f.Fields[i].Name != name {
			continue
		}
		f.Fields[i].Value = value
		f.Fields[i].Confidence = 1
		f.Fields[i].NeedsInput = false
		f.Fields[i].UserPrompt = ""
		return true
	}
	return false
}

// CompletionPercent is the share of fields that are filled with confidence.
func (f Form) CompletionPercent() float64 {
	if len(f.Fields) == 0 {
		return 0
	}
	filled := 0
	for _, field := range f.Fields {
		if field.filled() {
			filled++
		}
	}
	return float64(filled) / float64(len(f.Fields)) * 100
}

// MissingCritical lists critical fields that are empty or low-confidence.
func (f Form) MissingCritical() []string {
	var missing []string
	for _, field := range f.Fields {
		if !slices.Contains(criticalFields, field.Name) {
			continue
		}
		if field.Value == "" || field.Confidence < criticalConfidence {
			missing = append(missing, field.Name)
		}
	}
	return missing
}

func (f Form) NeedsInput() []FormField {
	var out []FormField
	for _, field := range f.Fields {
		if field.NeedsInput {
			out = append(out, field)
		}
	}
	return out
}

// Status is missing_data while a critical field is missing, needs_review
// while any field still asks for input, and complete otherwise.
func (f Form) Status() Status {
	switch {
	case len(f.MissingCritical()) > 0:
		return StatusMissingData
	case len(f.NeedsInput()) > 0:
		return StatusNeedsReview
	}
	return StatusComplete
}
