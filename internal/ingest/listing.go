package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/david/eu-grants-monitor/internal/config"
	"github.com/david/eu-grants-monitor/internal/models"
)

// ListingSource scrapes an HTML page that lists calls, one element per call,
// using the CSS selectors from the html_listing scraper config.
type ListingSource struct {
	cfg    config.ListingScraperConfig
	logger *slog.Logger
	now    func() time.Time

	UserAgent      string
	RequestTimeout time.Duration
	DomainDelay    time.Duration
	MaxBodySize    int
}

func NewListingSource(cfg config.ListingScraperConfig, deps Deps) *ListingSource {
	deps = deps.withDefaults()
	return &ListingSource{
		cfg:            cfg,
		logger:         deps.Logger.With("source", "html_listing"),
		now:            deps.Now,
		UserAgent:      browserUserAgent,
		RequestTimeout: 30 * time.Second,
		DomainDelay:    time.Second,
		MaxBodySize:    10 * 1024 * 1024,
	}
}

func (s *ListingSource) Name() string { return "html_listing" }

func (s *ListingSource) buildCollector() *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(s.UserAgent),
		colly.MaxBodySize(s.MaxBodySize),
		colly.DetectCharset(),
		colly.AllowURLRevisit(),
	)
	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       s.DomainDelay,
	})
	c.SetRequestTimeout(s.RequestTimeout)
	return c
}

// Fetch visits the listing page once and converts every item that has both a
// title and a link.
func (s *ListingSource) Fetch(ctx context.Context) ([]models.Grant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		raws      []RawGrant
		scrapeErr error
	)
	c := s.buildCollector()

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	c.OnHTML(s.cfg.ItemSelector, func(e *colly.HTMLElement) {
		item := RawGrant{Program: s.cfg.Program}

		if s.cfg.TitleSelector != "" {
			item.Title = strings.TrimSpace(e.ChildText(s.cfg.TitleSelector))
		} else {
			item.Title = strings.TrimSpace(e.Text)
		}

		if s.cfg.LinkSelector != "" && s.cfg.LinkSelector != "." {
			item.URL = e.ChildAttr(s.cfg.LinkSelector, "href")
		} else {
			item.URL = e.Attr("href")
		}
		if item.URL != "" {
			item.URL = e.Request.AbsoluteURL(item.URL)
		}

		if s.cfg.DeadlineSelector != "" {
			item.RawDeadline = strings.TrimSpace(e.ChildText(s.cfg.DeadlineSelector))
		}
		if s.cfg.AmountSelector != "" {
			item.RawAmount = strings.TrimSpace(e.ChildText(s.cfg.AmountSelector))
		}
		item.Description = normalizeSpace(e.Text)

		if item.Title != "" && item.URL != "" {
			raws = append(raws, item)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		scrapeErr = fmt.Errorf("scrape %s (status %d): %w", r.Request.URL, r.StatusCode, err)
	})

	if err := c.Visit(s.cfg.URL); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("visit listing: %w", err)
	}
	c.Wait()

	if scrapeErr != nil {
		return nil, scrapeErr
	}

	now := s.now()
	grants := make([]models.Grant, 0, len(raws))
	for _, raw := range raws {
		if raw.SourceID == "" {
			raw.SourceID = listingID(raw.URL)
		}
		grants = append(grants, FromRaw(raw, now))
	}
	s.logger.Info("listing_scraped", "url", s.cfg.URL, "grants", len(grants))
	return grants, nil
}

// listingID uses the last path segment of the call link, which on the EU
// portals is the topic identifier.
func listingID(link string) string {
	trimmed := strings.TrimRight(link, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 && i < len(trimmed)-1 {
		trimmed = trimmed[i+1:]
	}
	if i := strings.IndexAny(trimmed, "?#"); i > 0 {
		trimmed = trimmed[:i]
	}
	return strings.ToUpper(trimmed)
}
