package ingest

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	rpdf "rsc.io/pdf"
)

var deadlineLabelHints = []string{
	"submission deadline", "deadline date", "deadline", "closing date", "closes", "cut-off", "opening date",
}

var dateSnippetRegexes = []*regexp.Regexp{
	regexp.MustCompile(`\b20\d{2}-\d{2}-\d{2}\b`),
	regexp.MustCompile(`\b\d{1,2}/\d{1,2}/20\d{2}\b`),
	regexp.MustCompile(`\b\d{1,2}\.\d{1,2}\.20\d{2}\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}\s+(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+20\d{2}\b`),
	regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+\d{1,2},?\s+20\d{2}\b`),
}

// extractPDFText concatenates the text runs of every page. rsc.io/pdf panics
// on some malformed streams, so panics become errors.
func extractPDFText(content []byte) (text string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("pdf parser panic: %v", recovered)
			text = ""
		}
	}()

	reader, err := rpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		for _, fragment := range page.Content().Text {
			builder.WriteString(fragment.S)
			builder.WriteString(" ")
		}
		builder.WriteString("\n")
	}

	return builder.String(), nil
}

// parseDeadlineEvidenceFromText finds every date in text, labels it from the
// surrounding words and returns one entry per distinct date, earliest first.
func parseDeadlineEvidenceFromText(text, source, sourceURL string, confidence float64) []DeadlineEvidence {
	matches := make(map[string]DeadlineEvidence)

	for _, expr := range dateSnippetRegexes {
		for _, loc := range expr.FindAllStringIndex(text, -1) {
			token := strings.TrimSpace(text[loc[0]:loc[1]])
			parsed, err := parseDateRobust(token)
			if err != nil {
				continue
			}
			iso := dateOnly(parsed).Format("2006-01-02")
			if _, seen := matches[iso]; seen {
				continue
			}

			start := max(loc[0]-80, 0)
			end := min(loc[1]+80, len(text))
			snippet := normalizeSpace(strings.ReplaceAll(text[start:end], "\n", " "))

			label := ""
			before := strings.ToLower(text[start:loc[0]])
			for _, hint := range deadlineLabelHints {
				if strings.Contains(before, hint) {
					label = hint
					break
				}
			}
			matches[iso] = DeadlineEvidence{
				Source:        source,
				URL:           sourceURL,
				Snippet:       snippet,
				ParsedDateISO: iso,
				Label:         label,
				Confidence:    confidence,
			}
		}
	}

	if len(matches) == 0 {
		return nil
	}

	ordered := make([]DeadlineEvidence, 0, len(matches))
	for _, ev := range matches {
		ordered = append(ordered, ev)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ParsedDateISO < ordered[j].ParsedDateISO
	})
	return ordered
}

// NextDeadline picks the earliest labelled date on or after now, falling back
// to the earliest future date of any label.
func NextDeadline(evidence []DeadlineEvidence, now time.Time) (time.Time, bool) {
	today := now.UTC().Format("2006-01-02")
	var fallback string
	for _, ev := range evidence {
		if ev.ParsedDateISO < today {
			continue
		}
		if ev.Label != "" && ev.Label != "opening date" {
			t, err := time.Parse("2006-01-02", ev.ParsedDateISO)
			return t, err == nil
		}
		if fallback == "" {
			fallback = ev.ParsedDateISO
		}
	}
	if fallback == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", fallback)
	return t, err == nil
}
