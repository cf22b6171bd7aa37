package ingest

import (
	"strings"
)

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// mergeFold appends the trimmed, non-empty items that dst does not already
// hold, comparing case-insensitively. dst keeps its order and casing.
func mergeFold(dst []string, items ...string) []string {
	for _, v := range items {
		v = strings.TrimSpace(v)
		if v == "" || containsFold(dst, v) {
			continue
		}
		dst = append(dst, v)
	}
	return dst
}

func containsFold(list []string, v string) bool {
	for _, existing := range list {
		if strings.EqualFold(strings.TrimSpace(existing), v) {
			return true
		}
	}
	return false
}
