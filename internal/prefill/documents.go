package prefill

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/david/eu-grants-monitor/internal/models"
)

type Status string

const (
	StatusComplete    Status = "complete"
	StatusNeedsReview Status = "needs_review"
	StatusMissingData Status = "missing_data"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	placeholder     = "[PLEASE FILL]"
)

var defaultSupportingDocuments = []string{
	"Company registration documents",
	"Financial statements (last 2 years)",
	"CVs of key personnel",
	"Letters of intent from partners (if consortium)",
	"Ethics self-assessment (if applicable)",
	"Data management plan (if applicable)",
}

// Document is one rendered file of an application package.
type Document struct {
	Name          string    `json:"document_name"`
	Type          string    `json:"file_type"`
	Content       []byte    `json:"-"`
	Size          int       `json:"size_bytes"`
	Status        Status    `json:"completion_status"`
	MissingFields []string  `json:"missing_fields"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// Generator renders prefilled forms into application documents.
type Generator struct {
	now    func() time.Time
	policy *bluemonday.Policy
}

func NewGenerator(now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{now: now, policy: bluemonday.StrictPolicy()}
}

func (gen *Generator) document(name, kind string, content []byte, status Status, missing []string) Document {
	if missing == nil {
		missing = []string{}
	}
	return Document{
		Name:          name,
		Type:          kind,
		Content:       content,
		Size:          len(content),
		Status:        status,
		MissingFields: missing,
		GeneratedAt:   gen.now(),
	}
}

// Package renders the full set for one form: text form, HTML form, CSV and
// XLSX budgets, summary and instructions.
func (gen *Generator) Package(form Form, g models.Grant) ([]Document, error) {
	budget, err := gen.BudgetCSV(form, g)
	if err != nil {
		return nil, err
	}
	workbook, err := gen.BudgetWorkbook(form, g)
	if err != nil {
		return nil, err
	}
	return []Document{
		gen.TextForm(form, g),
		gen.HTMLForm(form, g),
		budget,
		workbook,
		gen.Summary([]Form{form}, g),
		gen.Instructions([]Form{form}, g),
	}, nil
}

func (gen *Generator) TextForm(form Form, g models.Grant) Document {
	var b strings.Builder
	b.WriteString("EU GRANT APPLICATION FORM\n")
	b.WriteString("=========================\n\n")
	fmt.Fprintf(&b, "Grant: %s\n", g.Title)
	fmt.Fprintf(&b, "Grant ID: %s\n", g.ID)
	fmt.Fprintf(&b, "Generated: %s\n", gen.now().Format(timestampLayout))
	fmt.Fprintf(&b, "Completion: %.1f%%\n\n", form.CompletionPercent())
	b.WriteString("FORM DATA:\n----------\n\n")

	for _, f := range form.Fields {
		fmt.Fprintf(&b, "%s:\n", f.Label())
		fmt.Fprintf(&b, "  Value: %s\n", valueOrPlaceholder(f.Value))
		if f.UserPrompt != "" {
			fmt.Fprintf(&b, "  Note: %s\n", f.UserPrompt)
		}
		b.WriteString("\n")
	}

	if pending := form.NeedsInput(); len(pending) > 0 {
		b.WriteString("\nFIELDS REQUIRING ATTENTION:\n")
		b.WriteString(strings.Repeat("-", 30) + "\n")
		for _, f := range pending {
			fmt.Fprintf(&b, "- %s: %s\n", f.Name, f.UserPrompt)
		}
	}
	return gen.document(form.Name+"_completed.txt", "txt", []byte(b.String()), form.Status(), form.MissingCritical())
}

// HTMLForm renders a printable form. Every grant or user value passes through
// a strict sanitizer, so the page carries only the markup written here.
func (gen *Generator) HTMLForm(form Form, g models.Grant) Document {
	esc := gen.policy.Sanitize
	var b strings.Builder

	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	fmt.Fprintf(&b, "<title>%s - %s</title>\n", esc(form.Name), esc(g.Title))
	b.WriteString(htmlStyle)
	b.WriteString("</head>\n<body>\n<div class=\"header\">\n")
	b.WriteString("<h1>EU Grant Application Form</h1>\n")
	fmt.Fprintf(&b, "<h2>%s</h2>\n", esc(g.Title))
	fmt.Fprintf(&b, "<h3>Grant ID: %s</h3>\n", esc(g.ID))
	fmt.Fprintf(&b, "<p>Generated on: %s</p>\n", gen.now().Format(timestampLayout))
	b.WriteString("</div>\n<div class=\"form-content\">\n")

	for _, f := range form.Fields {
		class := "field"
		if f.NeedsInput {
			class += " needs-attention"
		}
		fmt.Fprintf(&b, "<div class=\"%s\">\n", class)
		if f.Type == FieldTextarea {
			fmt.Fprintf(&b, "<div class=\"field-label\">%s:</div><br>\n", esc(f.Label()))
			fmt.Fprintf(&b, "<textarea class=\"textarea-field\">%s</textarea>\n", esc(valueOrPlaceholder(f.Value)))
		} else {
			fmt.Fprintf(&b, "<span class=\"field-label\">%s:</span>\n", esc(f.Label()))
			fmt.Fprintf(&b, "<span class=\"field-value\">%s</span>\n", esc(valueOrPlaceholder(f.Value)))
		}
		if f.UserPrompt != "" {
			fmt.Fprintf(&b, "<p><em>Note: %s</em></p>\n", esc(f.UserPrompt))
		}
		b.WriteString("</div>\n")
	}

	if pending := form.NeedsInput(); len(pending) > 0 {
		b.WriteString("<div class=\"needs-attention\">\n<h3>Fields Requiring Your Attention:</h3>\n<ul>\n")
		for _, f := range pending {
			fmt.Fprintf(&b, "<li><strong>%s:</strong> %s</li>\n", esc(f.Name), esc(f.UserPrompt))
		}
		b.WriteString("</ul>\n</div>\n")
	}

	b.WriteString(htmlSignatures)
	b.WriteString("</div>\n</body>\n</html>\n")
	return gen.document(form.Name+"_completed.html", "html", []byte(b.String()), form.Status(), form.MissingCritical())
}

const htmlStyle = `<style>
body { font-family: Arial, sans-serif; margin: 40px; }
.header { text-align: center; border-bottom: 2px solid #333; padding-bottom: 20px; margin-bottom: 30px; }
.field { margin-bottom: 15px; }
.field-label { font-weight: bold; display: inline-block; min-width: 200px; }
.field-value { display: inline-block; padding: 5px; border-bottom: 1px solid #ccc; min-width: 300px; }
.needs-attention { background-color: #fff3cd; border: 1px solid #ffeaa7; padding: 10px; margin: 10px 0; }
.textarea-field { width: 100%; min-height: 100px; }
.signature-line { border-bottom: 1px solid #000; width: 300px; margin: 20px 0; }
</style>
`

const htmlSignatures = `<div class="signature-section">
<h3>Signatures</h3>
<p>Project Coordinator:</p>
<div class="signature-line"></div>
<p>Date: _______________</p>
<p>Legal Representative:</p>
<div class="signature-line"></div>
<p>Date: _______________</p>
</div>
`

// BudgetCSV lists every numeric field that has a value.
func (gen *Generator) BudgetCSV(form Form, g models.Grant) (Document, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rows := [][]string{
		{"EU Grant Budget Template - " + g.Title},
		{"Grant ID: " + g.ID},
		{"Generated: " + gen.now().Format(timestampLayout)},
		{},
		{"Category", "Amount (EUR)", "Notes"},
	}
	for _, f := range budgetFields(form) {
		rows = append(rows, []string{f.Label(), f.Value, f.UserPrompt})
	}
	if err := w.WriteAll(rows); err != nil {
		return Document{}, fmt.Errorf("write budget csv: %w", err)
	}
	return gen.document(form.Name+"_budget.csv", "csv", buf.Bytes(), form.Status(), form.MissingCritical()), nil
}

func budgetFields(form Form) []FormField {
	var out []FormField
	for _, f := range form.Fields {
		if f.Type == FieldNumber && f.Value != "" && f.Name != "duration_months" {
			out = append(out, f)
		}
	}
	return out
}

// Summary gives the completion overview across forms, plus next steps.
func (gen *Generator) Summary(forms []Form, g models.Grant) Document {
	var total, completed int
	var missing, pending, documents []string
	for _, form := range forms {
		total += len(form.Fields)
		for _, f := range form.Fields {
			if f.filled() {
				completed++
			}
		}
		missing = append(missing, form.MissingCritical()...)
		for _, f := range form.NeedsInput() {
			pending = append(pending, f.Name)
		}
		documents = append(documents, form.RequiredDocuments...)
	}
	overall := 0.0
	if total > 0 {
		overall = float64(completed) / float64(total) * 100
	}

	var b strings.Builder
	b.WriteString("EU GRANT APPLICATION SUMMARY\n")
	b.WriteString("============================\n\n")
	fmt.Fprintf(&b, "Grant: %s\nGrant ID: %s\nGenerated: %s\n\n", g.Title, g.ID, gen.now().Format(timestampLayout))
	b.WriteString("COMPLETION OVERVIEW:\n-------------------\n")
	fmt.Fprintf(&b, "Overall Completion: %.1f%%\n", overall)
	fmt.Fprintf(&b, "Total Fields: %d\n", total)
	fmt.Fprintf(&b, "Completed Fields: %d\n", completed)
	fmt.Fprintf(&b, "Forms Generated: %d\n\n", len(forms))

	b.WriteString("FORM DETAILS:\n------------\n")
	for _, form := range forms {
		fmt.Fprintf(&b, "%s:\n", form.Name)
		fmt.Fprintf(&b, "  - Completion: %.1f%%\n", form.CompletionPercent())
		fmt.Fprintf(&b, "  - Missing Critical Fields: %d\n", len(form.MissingCritical()))
		fmt.Fprintf(&b, "  - User Input Required: %d\n", len(form.NeedsInput()))
	}

	if missing = uniqueSorted(missing); len(missing) > 0 {
		b.WriteString("\nCRITICAL MISSING DATA:\n---------------------\n")
		writeBullets(&b, missing)
	}
	if pending = uniqueSorted(pending); len(pending) > 0 {
		b.WriteString("\nFIELDS REQUIRING YOUR INPUT:\n---------------------------\n")
		writeBullets(&b, pending)
	}

	b.WriteString("\nNEXT STEPS:\n----------\n")
	b.WriteString("1. Review all generated forms in this folder\n")
	b.WriteString("2. Complete any fields marked as requiring attention\n")
	b.WriteString("3. Print or save forms as PDF for official submission\n")
	b.WriteString("4. Gather any required supporting documents\n")
	fmt.Fprintf(&b, "5. Submit before deadline: %s\n", g.Deadline.Format("2006-01-02"))

	if documents = uniqueSorted(documents); len(documents) == 0 {
		documents = defaultSupportingDocuments
	}
	b.WriteString("\nSUPPORTING DOCUMENTS NEEDED:\n---------------------------\n")
	writeBullets(&b, documents)
	b.WriteString("\nGenerated by EU Grants Monitor\n")

	return gen.document("APPLICATION_SUMMARY.txt", "txt", []byte(b.String()), StatusComplete, nil)
}

// Instructions splits pending input into high and medium priority action
// items and appends the step-by-step guide.
func (gen *Generator) Instructions(forms []Form, g models.Grant) Document {
	now := gen.now()
	var b strings.Builder
	b.WriteString("INSTRUCTIONS FOR COMPLETING YOUR EU GRANT APPLICATION\n")
	b.WriteString("====================================================\n\n")
	fmt.Fprintf(&b, "Grant: %s\nGrant ID: %s\n", g.Title, g.ID)
	fmt.Fprintf(&b, "Deadline: %s (%d days remaining)\n\n", g.Deadline.Format("2006-01-02"), g.DaysUntilDeadline(now))

	b.WriteString("YOUR ACTION ITEMS:\n-----------------\n")
	var high, medium []string
	for _, form := range forms {
		for _, f := range form.NeedsInput() {
			item := fmt.Sprintf("%s - %s: %s", form.Name, f.Name, f.UserPrompt)
			if slices.Contains(highPriorityFields, f.Name) {
				high = append(high, item)
			} else {
				medium = append(medium, item)
			}
		}
	}
	if len(high) > 0 {
		b.WriteString("\nHIGH PRIORITY (required for submission):\n")
		writeBullets(&b, high)
	}
	if len(medium) > 0 {
		b.WriteString("\nMEDIUM PRIORITY (improve your application):\n")
		writeBullets(&b, medium)
	}
	if len(high)+len(medium) == 0 {
		b.WriteString("No open items.\n")
	}

	b.WriteString(instructionSteps)
	b.WriteString("\nIf you need help with any of these steps:\n")
	fmt.Fprintf(&b, "- Run 'grants-monitor assist %s' again for updated guidance\n", g.ID)
	if g.URL != "" {
		fmt.Fprintf(&b, "- Review the official call documentation at: %s\n", g.URL)
	}
	b.WriteString("- Contact the EU funding helpdesk if needed\n")
	fmt.Fprintf(&b, "\nGenerated by EU Grants Monitor on %s\n", now.Format(timestampLayout))

	return gen.document("USER_INSTRUCTIONS.txt", "txt", []byte(b.String()), StatusComplete, nil)
}

const instructionSteps = `
STEP-BY-STEP GUIDE:
------------------
1. REVIEW PRE-FILLED DATA
   - Open each generated form file
   - Verify all automatically filled information is correct
2. COMPLETE HIGH-PRIORITY FIELDS
   - Focus on project title and summary first
3. REFINE BUDGET INFORMATION
   - Review the suggested budget breakdown against your project plan
4. COMPLETE REMAINING FIELDS
5. QUALITY CHECK
   - Verify all numbers add up and forms are consistent
6. GATHER SUPPORTING DOCUMENTS
7. FINAL REVIEW
   - Check against the original call requirements
8. SUBMIT
   - Convert documents to the required formats and submit through the EU portal
`

// WriteDocuments stores docs under dir/<grantID>_<timestamp> and returns that
// directory.
func (gen *Generator) WriteDocuments(dir, grantID string, docs []Document) (string, error) {
	out := filepath.Join(dir, fmt.Sprintf("%s_%s", safeName(grantID), gen.now().Format("20060102_150405")))
	if err := os.MkdirAll(out, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	for _, d := range docs {
		if err := os.WriteFile(filepath.Join(out, d.Name), d.Content, 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", d.Name, err)
		}
	}
	return out, nil
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, s)
}

func valueOrPlaceholder(v string) string {
	if v == "" {
		return placeholder
	}
	return v
}

func writeBullets(b *strings.Builder, items []string) {
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

func uniqueSorted(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	out := slices.Clone(items)
	sort.Strings(out)
	return slices.Compact(out)
}
