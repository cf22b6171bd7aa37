package ingest

import (
	"regexp"
	"strconv"
	"strings"
)

// amountTokenRegex captures a number with optional thousands/decimal
// separators and an optional magnitude suffix ("2,5 million", "€300k").
var amountTokenRegex = regexp.MustCompile(`(?i)(\d[\d.,]*)\s*(million|mio\.?|m\b|thousand|k\b|%)?`)

// parseAmountRobust extracts min/max amounts and currency from free text such
// as "€50.000 - €500.000", "up to EUR 2,5 million" or "1,000,000 EUR".
func parseAmountRobust(text string, defaultCurrency string) (float64, float64, string) {
	textLower := strings.ToLower(text)

	currency := defaultCurrency
	if currency == "" {
		currency = "EUR"
	}
	switch {
	case strings.Contains(textLower, "€") || strings.Contains(textLower, "eur"):
		currency = "EUR"
	case strings.Contains(textLower, "£") || strings.Contains(textLower, "gbp"):
		currency = "GBP"
	case strings.Contains(textLower, "$") || strings.Contains(textLower, "usd"):
		currency = "USD"
	case strings.Contains(textLower, "chf"):
		currency = "CHF"
	}

	var amounts []float64
	for _, m := range amountTokenRegex.FindAllStringSubmatch(text, -1) {
		suffix := strings.ToLower(strings.TrimSuffix(m[2], "."))
		if suffix == "%" {
			continue
		}
		val, ok := parseEuropeanNumber(m[1])
		if !ok {
			continue
		}
		switch suffix {
		case "million", "mio", "m":
			val *= 1_000_000
		case "thousand", "k":
			val *= 1_000
		default:
			// bare small numbers are durations, years or partner counts
			if val < 1000 || isYear(m[1]) {
				continue
			}
		}
		amounts = append(amounts, val)
	}

	if len(amounts) == 0 {
		return 0, 0, ""
	}

	if len(amounts) == 1 {
		if strings.Contains(textLower, "minimum") || strings.Contains(textLower, "at least") || strings.Contains(textLower, "from ") {
			return amounts[0], 0, currency
		}
		// "up to", "maximum" and bare amounts are ceilings
		return 0, amounts[0], currency
	}

	lo, hi := amounts[0], amounts[0]
	for _, a := range amounts[1:] {
		lo = min(lo, a)
		hi = max(hi, a)
	}
	if lo == hi {
		return 0, hi, currency
	}
	return lo, hi, currency
}

// parseEuropeanNumber accepts both "1.000.000,50" and "1,000,000.50". A lone
// separator followed by exactly three digits is read as a thousands separator.
func parseEuropeanNumber(s string) (float64, bool) {
	s = strings.Trim(s, ".,")
	if s == "" {
		return 0, false
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		s = normalizeSingleSeparator(s, ",")
	case lastDot >= 0:
		s = normalizeSingleSeparator(s, ".")
	}

	val, err := strconv.ParseFloat(s, 64)
	if err != nil || val <= 0 {
		return 0, false
	}
	return val, true
}

func normalizeSingleSeparator(s, sep string) string {
	parts := strings.Split(s, sep)
	tail := parts[len(parts)-1]
	if len(parts) > 2 || len(tail) == 3 {
		return strings.Join(parts, "")
	}
	return strings.Join(parts[:len(parts)-1], "") + "." + tail
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	n, err := strconv.Atoi(s)
	return err == nil && n >= 1990 && n <= 2100
}
