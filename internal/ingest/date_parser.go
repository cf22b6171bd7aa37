package ingest

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	isoDateRegex    = regexp.MustCompile(`\b(20\d{2})-(\d{2})-(\d{2})\b`)
	dottedDateRegex = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(20\d{2})\b`)
	slashDateRegex  = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(20\d{2})\b`)
	monthFirstRegex = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+(\d{1,2}),?\s+(20\d{2})\b`)
	dayFirstRegex   = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+(20\d{2})\b`)
)

// parseDateRobust parses the date formats found on EU call pages. Slash dates
// are read day-first, as the portal prints them.
func parseDateRobust(text string) (time.Time, error) {
	text = cleanDateString(text)

	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return t.UTC(), nil
	}

	layouts := []string{
		"2006-01-02",
		"2 January 2006",
		"02 January 2006",
		"2 Jan 2006",
		"January 2, 2006",
		"Jan 2, 2006",
		"02/01/2006",
		"2/1/2006",
		"02.01.2006",
		"2.1.2006",
		"2006-01-02 15:04:05",
		"2 January 2006 15:04",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, text); err == nil {
			return dateOnly(t), nil
		}
	}

	if t := parseDateWithRegex(text); !t.IsZero() {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", text)
}

// parseDateWithRegex finds the first recognisable date inside longer text.
func parseDateWithRegex(text string) time.Time {
	if m := isoDateRegex.FindString(text); m != "" {
		if t, err := time.Parse("2006-01-02", m); err == nil {
			return t
		}
	}
	for _, re := range []*regexp.Regexp{dottedDateRegex, slashDateRegex} {
		if m := re.FindStringSubmatch(text); len(m) == 4 {
			if t, err := time.Parse("2/1/2006", m[1]+"/"+m[2]+"/"+m[3]); err == nil {
				return t
			}
		}
	}
	if m := dayFirstRegex.FindStringSubmatch(text); len(m) == 4 {
		if t, ok := parseMonthName(m[1], m[2], m[3]); ok {
			return t
		}
	}
	if m := monthFirstRegex.FindStringSubmatch(text); len(m) == 4 {
		if t, ok := parseMonthName(m[2], m[1], m[3]); ok {
			return t
		}
	}
	return time.Time{}
}

func parseMonthName(day, month, year string) (time.Time, bool) {
	month = strings.ToUpper(month[:1]) + strings.ToLower(month[1:])
	value := day + " " + month + " " + year
	for _, layout := range []string{"2 January 2006", "2 Jan 2006"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// cleanDateString removes common label prefixes.
func cleanDateString(s string) string {
	prefixes := []string{
		"Deadline date:", "Deadline:", "Closing date:", "Submission deadline:",
		"Opening date:", "Publication date:", "Due date:", "Expires:",
	}
	for _, p := range prefixes {
		if idx := indexFold(s, p); idx != -1 {
			s = s[idx+len(p):]
		}
	}
	return strings.TrimSpace(s)
}

// indexFold is a case-insensitive strings.Index for an ASCII needle. Offsets
// are always into s.
func indexFold(s, needle string) int {
	for i := 0; i+len(needle) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}
