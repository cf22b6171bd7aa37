package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

const maxCallDocumentBytes = 20 << 20

var sentenceSplitRegex = regexp.MustCompile(`[.;\n]\s+|\s-\s`)

var eligibilityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)eligible.{0,50}SME`),
	regexp.MustCompile(`(?i)Must be.{0,50}legally established`),
	regexp.MustCompile(`(?i)minimum.{0,20}years.{0,20}experience`),
	regexp.MustCompile(`(?i)EU member state`),
	regexp.MustCompile(`(?i)associated country`),
}

var horizonEligibility = []string{
	"EU legal entity or associated country",
	"Demonstrated technical and financial capacity",
	"Clear European added value",
}

var eligibleCostCategories = []string{
	"Personnel costs",
	"Equipment and infrastructure",
	"Travel and accommodation",
	"External services and consultancy",
	"Other direct costs",
	"Indirect costs (25% of direct costs)",
}

// CallDocument is what could be read out of a call's web page or work
// programme PDF.
type CallDocument struct {
	URL                 string             `json:"url"`
	Format              string             `json:"format"` // "html" or "pdf"
	Text                string             `json:"text"`
	Eligibility         []string           `json:"eligibility_requirements"`
	SupportingDocuments []string           `json:"supporting_documents"`
	Deadlines           []DeadlineEvidence `json:"deadlines"`
	Budget              BudgetRequirements `json:"budget_requirements"`
	FetchedAt           time.Time          `json:"fetched_at"`
}

type BudgetRequirements struct {
	MinAmount     float64  `json:"min_amount,omitempty"`
	MaxAmount     float64  `json:"max_amount,omitempty"`
	FundingRate   string   `json:"funding_rate"`
	EligibleCosts []string `json:"eligible_costs"`
}

// AnalyzeCallDocument downloads a call document and extracts eligibility
// requirements, supporting documents, deadline candidates and budget limits.
func AnalyzeCallDocument(ctx context.Context, fetcher Fetcher, url string) (CallDocument, error) {
	doc, err := fetcher.Fetch(ctx, url)
	if err != nil {
		return CallDocument{}, fmt.Errorf("fetch call document: %w", err)
	}
	defer doc.Body.Close()

	content, err := io.ReadAll(io.LimitReader(doc.Body, maxCallDocumentBytes))
	if err != nil {
		return CallDocument{}, fmt.Errorf("read call document: %w", err)
	}

	result := CallDocument{URL: url, FetchedAt: doc.FetchedAt}
	if isPDF(doc.ContentType, url, content) {
		text, err := extractPDFText(content)
		if err != nil {
			return CallDocument{}, fmt.Errorf("pdf text extraction failed: %w", err)
		}
		result.Format = "pdf"
		result.Text = normalizeSpace(text)
	} else {
		result.Format = "html"
		result.Text = HTMLToText(string(content))
	}

	analyzeCallText(&result)
	return result, nil
}

func analyzeCallText(doc *CallDocument) {
	doc.Eligibility = ExtractEligibility(doc.Text)
	doc.SupportingDocuments = SupportingDocuments(doc.Text)
	doc.Deadlines = parseDeadlineEvidenceFromText(doc.Text, doc.Format, doc.URL, 0.7)

	doc.Budget = BudgetRequirements{
		FundingRate:   "70% for SMEs",
		EligibleCosts: append([]string(nil), eligibleCostCategories...),
	}
	for _, line := range fundingLines(doc.Text) {
		lo, hi, _ := parseAmountRobust(line, "EUR")
		if lo > 0 && doc.Budget.MinAmount == 0 {
			doc.Budget.MinAmount = lo
		}
		if hi > 0 && doc.Budget.MaxAmount == 0 {
			doc.Budget.MaxAmount = hi
		}
	}
}

// ExtractEligibility returns matched eligibility phrases plus the standing
// Horizon Europe conditions when the text mentions the programme.
func ExtractEligibility(text string) []string {
	var out []string
	for _, re := range eligibilityPatterns {
		for _, m := range re.FindAllString(text, -1) {
			out = mergeFold(out, normalizeSpace(m))
		}
	}
	if strings.Contains(strings.ToLower(text), "horizon") {
		out = mergeFold(out, horizonEligibility...)
	}
	return out
}

func SupportingDocuments(text string) []string {
	lower := strings.ToLower(text)
	var docs []string
	if strings.Contains(lower, "cv") || strings.Contains(lower, "personnel") {
		docs = append(docs, "CV of key personnel")
	}
	if strings.Contains(lower, "financial") || strings.Contains(lower, "company registration") {
		docs = append(docs, "Company registration documents")
	}
	if strings.Contains(lower, "ethics") {
		docs = append(docs, "Ethics self-assessment")
	}
	if strings.Contains(lower, "data management") {
		docs = append(docs, "Data management plan")
	}
	return docs
}

// fundingLines returns the sentences that talk about funding amounts.
func fundingLines(text string) []string {
	var out []string
	for _, sentence := range sentenceSplitRegex.Split(text, -1) {
		lower := strings.ToLower(sentence)
		if strings.Contains(lower, "funding") || strings.Contains(lower, "budget") || strings.Contains(lower, "grant amount") {
			out = append(out, sentence)
		}
	}
	return out
}

func isPDF(contentType, url string, content []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "pdf") {
		return true
	}
	if strings.HasSuffix(strings.ToLower(url), ".pdf") {
		return true
	}
	return bytes.HasPrefix(content, []byte("%PDF-"))
}
