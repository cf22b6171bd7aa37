package ingest

import "strings"

const maxKeywords = 5

// keywordVocabulary is checked in order; the first matches win.
var keywordVocabulary = []string{
	"artificial intelligence", "machine learning", "deep learning", "neural networks",
	"computer vision", "natural language processing", "robotics", "automation",
	"digital transformation", "industry 4.0", "iot", "internet of things",
	"blockchain", "cybersecurity", "data science", "big data", "cloud computing",
	"healthcare", "manufacturing", "sustainability", "green tech", "climate",
	"sme", "startup", "innovation", "research", "development",
}

var fallbackKeywords = []string{"innovation", "research", "technology"}

// ExtractKeywords tags free text with up to five vocabulary terms.
func ExtractKeywords(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, term := range keywordVocabulary {
		if strings.Contains(lower, term) {
			found = append(found, term)
			if len(found) == maxKeywords {
				break
			}
		}
	}
	if len(found) == 0 {
		return append([]string(nil), fallbackKeywords...)
	}
	return found
}
