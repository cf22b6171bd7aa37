package ingest

import (
	"fmt"
	"hash/fnv"
	"html"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/david/eu-grants-monitor/internal/models"
)

const (
	defaultDeadlineDays = 60
	defaultBudget       = 500000
	defaultMinFunding   = 50000
	defaultMaxFunding   = 2000000
	synopsisLength      = 200
	defaultPortalURL    = "https://ec.europa.eu/info/funding-tenders/opportunities/"
)

var (
	defaultEligibleCountries   = []string{"DE", "FR", "IT", "ES", "NL", "BE", "AT", "SE", "DK", "FI"}
	defaultTargetOrganizations = []string{"SME", "Research", "University"}

	strictPolicy = bluemonday.StrictPolicy()
)

// TruncateText cuts a string to max length, appending ellipsis if truncated.
func TruncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	if maxLen > 3 {
		return text[:maxLen-3] + "..."
	}
	return text[:maxLen]
}

// HTMLToText converts HTML to plain text, collapsing whitespace.
func HTMLToText(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return normalizeSpace(raw)
	}
	doc.Find("script, style, noscript").Remove()
	return normalizeSpace(doc.Text())
}

// SanitizeText strips every tag from scraped text and unescapes entities.
func SanitizeText(s string) string {
	return normalizeSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// Synopsis returns the first 200 characters of the description followed by "...".
func Synopsis(description string) string {
	runes := []rune(description)
	if len(runes) > synopsisLength {
		runes = runes[:synopsisLength]
	}
	return string(runes) + "..."
}

// FromRaw converts a listing item into a grant, filling the portal defaults
// for anything the source did not provide.
func FromRaw(raw RawGrant, now time.Time) models.Grant {
	title := SanitizeText(raw.Title)
	if title == "" {
		title = "Unknown Title"
	}
	description := SanitizeText(raw.Description)
	if description == "" {
		description = "No description available"
	}

	g := models.Grant{
		ID:                  raw.SourceID,
		Title:               title,
		Description:         description,
		Synopsis:            Synopsis(description),
		Program:             models.ParseFundingProgram(raw.Program),
		FundingAmount:       defaultBudget,
		MinFunding:          models.Float64Ptr(defaultMinFunding),
		MaxFunding:          models.Float64Ptr(defaultMaxFunding),
		Deadline:            models.DateAfter(now, defaultDeadlineDays),
		EligibleCountries:   append([]string(nil), defaultEligibleCountries...),
		TargetOrganizations: append([]string(nil), defaultTargetOrganizations...),
		URL:                 strings.TrimSpace(raw.URL),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if g.ID == "" {
		g.ID = generatedID(title, now)
	}
	if g.URL == "" {
		g.URL = defaultPortalURL
	}

	if raw.RawDeadline != "" {
		if dt, err := parseDateRobust(raw.RawDeadline); err == nil {
			g.Deadline = dateOnly(dt)
		}
	}

	if raw.RawAmount != "" {
		lo, hi, _ := parseAmountRobust(raw.RawAmount, "EUR")
		switch {
		case lo > 0 && hi > 0:
			g.MinFunding = models.Float64Ptr(lo)
			g.MaxFunding = models.Float64Ptr(hi)
			g.FundingAmount = hi
		case hi > 0:
			g.MaxFunding = models.Float64Ptr(hi)
			g.FundingAmount = hi
			if *g.MinFunding > hi {
				g.MinFunding = nil
			}
		case lo > 0:
			g.MinFunding = models.Float64Ptr(lo)
			g.FundingAmount = lo
		}
	}

	g.Keywords = mergeFold(nil, raw.Tags...)
	for _, kw := range ExtractKeywords(title + " " + description) {
		if len(g.Keywords) >= maxKeywords {
			break
		}
		g.Keywords = mergeFold(g.Keywords, kw)
	}
	return g
}

// generatedID builds "HE-YYYYMMDD-nnnn" from the title for sources that do
// not publish a topic identifier.
func generatedID(title string, now time.Time) string {
	h := fnv.New32a()
	h.Write([]byte(title))
	return fmt.Sprintf("HE-%s-%d", now.Format("20060102"), h.Sum32()%10000)
}
