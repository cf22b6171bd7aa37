package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/david/eu-grants-monitor/internal/config"
	"github.com/david/eu-grants-monitor/internal/models"
	"github.com/david/eu-grants-monitor/internal/resilience"
)

const (
	topicDetailsURL = "https://ec.europa.eu/info/funding-tenders/opportunities/portal/screen/opportunities/topic-details/"
	// only the first results of a search are converted per cycle
	horizonConvertLimit = 10
	maxResponseBytes    = 10 << 20
)

type horizonSearchRequest struct {
	Query           string   `json:"query"`
	ProgrammePeriod string   `json:"programmePeriod"`
	Programme       string   `json:"programme"`
	Status          []string `json:"status"`
	SortBy          string   `json:"sortBy"`
	Order           string   `json:"order"`
	PageSize        int      `json:"pageSize"`
}

type horizonResponse struct {
	FundingOpportunities []horizonOpportunity `json:"fundingOpportunities"`
	TotalCount           int                  `json:"totalCount"`
}

type horizonOpportunity struct {
	TopicIdentifier string   `json:"topicIdentifier"`
	CallIdentifier  string   `json:"callIdentifier"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Status          string   `json:"status"`
	DeadlineDate    []int64  `json:"deadlineDate"` // epoch millis
	Budget          string   `json:"budget"`
	Keywords        []string `json:"keywords"`
	URL             string   `json:"url"`
}

// HorizonSource searches the EU Funding & Tenders portal for open Horizon
// Europe calls. A failed or empty search falls back to the sample calls.
type HorizonSource struct {
	cfg     config.HorizonScraperConfig
	client  *http.Client
	limiter *rate.Limiter
	exec    *resilience.Executor
	logger  *slog.Logger
	now     func() time.Time
}

func NewHorizonSource(cfg config.HorizonScraperConfig, deps Deps) *HorizonSource {
	deps = deps.withDefaults()
	client := deps.Client
	if client == nil {
		client = NewSafeClient(time.Duration(cfg.TimeoutSeconds) * time.Second)
	}
	return &HorizonSource{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(requestInterval(cfg.RateLimit)), 1),
		exec:    deps.Exec,
		logger:  deps.Logger.With("source", "horizon_europe"),
		now:     deps.Now,
	}
}

// requestInterval honours both requests_per_minute and the explicit delay,
// whichever is slower.
func requestInterval(rl config.RateLimitConfig) time.Duration {
	interval := time.Second
	if rl.RequestsPerMinute > 0 {
		interval = time.Minute / time.Duration(rl.RequestsPerMinute)
	}
	if delay := time.Duration(rl.DelayBetweenRequests * float64(time.Second)); delay > interval {
		interval = delay
	}
	return interval
}

func (s *HorizonSource) Name() string { return "horizon_europe" }

func (s *HorizonSource) Fetch(ctx context.Context) ([]models.Grant, error) {
	grants, err := s.search(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("horizon_search_failed", "error", err)
	}
	if len(grants) == 0 {
		s.logger.Info("horizon_using_sample_calls")
		return SampleHorizonGrants(s.now())
	}
	s.logger.Info("horizon_search_completed", "grants", len(grants))
	return grants, nil
}

func (s *HorizonSource) search(ctx context.Context) ([]models.Grant, error) {
	body, err := json.Marshal(horizonSearchRequest{
		Query:           strings.Join(s.cfg.SearchTerms, " OR "),
		ProgrammePeriod: "2021-2027",
		Programme:       "Horizon Europe",
		Status:          []string{"OPEN", "FORTHCOMING"},
		SortBy:          "deadline",
		Order:           "asc",
		PageSize:        s.cfg.MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search: %w", err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var resp horizonResponse
	call := func(ctx context.Context) error {
		if s.cfg.TimeoutSeconds > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.TimeoutSeconds)*time.Second)
			defer cancel()
		}
		return s.post(ctx, body, &resp)
	}
	if s.exec != nil {
		err = s.exec.Execute(ctx, "horizon.search", call, resilience.ClassifyHTTP)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	items := resp.FundingOpportunities
	if len(items) > horizonConvertLimit {
		items = items[:horizonConvertLimit]
	}
	grants := make([]models.Grant, 0, len(items))
	for _, item := range items {
		grants = append(grants, item.toGrant(now))
	}
	return grants, nil
}

func (s *HorizonSource) post(ctx context.Context, body []byte, out *horizonResponse) error {
	url := strings.TrimRight(s.cfg.BaseURL, "/") + "/opportunities/search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", browserUserAgent)

	res, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("horizon search: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		return &resilience.StatusError{Op: "horizon.search", StatusCode: res.StatusCode}
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode search response: %w", err)
	}
	return nil
}

func (o horizonOpportunity) toGrant(now time.Time) models.Grant {
	link := o.URL
	if o.TopicIdentifier != "" {
		link = topicDetailsURL + o.TopicIdentifier
	}
	g := FromRaw(RawGrant{
		SourceID:    o.TopicIdentifier,
		Title:       o.Title,
		Description: HTMLToText(o.Description),
		URL:         link,
		RawAmount:   o.Budget,
		Tags:        o.Keywords,
		Program:     string(models.ProgramHorizonEurope),
	}, now)

	for _, ms := range o.DeadlineDate {
		if ms > 0 {
			g.Deadline = dateOnly(time.UnixMilli(ms).UTC())
			break
		}
	}
	return g
}
