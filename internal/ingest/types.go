package ingest

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/david/eu-grants-monitor/internal/models"
)

var ErrGrantNotFound = errors.New("grant not found")

// Source produces grant records for one monitoring cycle.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.Grant, error)
}

type DeadlineEvidence struct {
	Source        string  `json:"source"`
	URL           string  `json:"url,omitempty"`
	Snippet       string  `json:"snippet,omitempty"`
	ParsedDateISO string  `json:"parsed_date_iso"`
	Label         string  `json:"label,omitempty"`
	Confidence    float64 `json:"confidence"`
}

// RawGrant is an untrusted, unnormalized call extracted from a listing page
// or an API payload.
type RawGrant struct {
	SourceID    string
	Title       string
	Description string
	URL         string
	RawDeadline string
	RawAmount   string
	Tags        []string
	Program     string
}

// FetchedDocument represents the raw result of a fetch operation.
type FetchedDocument struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
	FetchedAt   time.Time
	Headers     map[string][]string
}

// Fetcher retrieves raw content from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedDocument, error)
}
