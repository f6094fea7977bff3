// Package enrichment fetches recent company context for an asset before it
// goes in front of the council. Enrichment is optional: every failure maps
// to domain.ErrEnrichmentUnavailable and callers proceed without it.
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/aristath/council/internal/domain"
)

const (
	defaultBaseURL = "https://finnhub.io/api/v1"
	newsWindow     = 7 * 24 * time.Hour
	maxHeadlines   = 5
)

// Config for the company-news client.
type Config struct {
	APIKey  string
	BaseURL string // empty means the public endpoint
	Timeout time.Duration
}

// Client fetches recent company news headlines.
type Client struct {
	http   *resty.Client
	apiKey string
	log    zerolog.Logger
	now    func() time.Time
}

// NewClient creates a company-news enrichment client.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(base)
	client.SetTimeout(timeout)

	return &Client{
		http:   client,
		apiKey: cfg.APIKey,
		log:    log.With().Str("client", "enrichment").Logger(),
		now:    time.Now,
	}
}

type newsItem struct {
	DateTime int64  `json:"datetime"`
	Headline string `json:"headline"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
}

// Enrich returns a short recent-news digest for symbol, or
// domain.ErrEnrichmentUnavailable when nothing usable could be fetched.
func (c *Client) Enrich(ctx context.Context, symbol string) (string, error) {
	if c.apiKey == "" {
		return "", domain.ErrEnrichmentUnavailable
	}

	to := c.now()
	from := to.Add(-newsWindow)

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": symbol,
			"from":   from.Format("2006-01-02"),
			"to":     to.Format("2006-01-02"),
			"token":  c.apiKey,
		}).
		Get("/company-news")
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("news fetch failed")
		return "", domain.ErrEnrichmentUnavailable
	}
	if resp.StatusCode() != 200 {
		c.log.Warn().Int("status", resp.StatusCode()).Str("symbol", symbol).Msg("news endpoint returned non-200")
		return "", domain.ErrEnrichmentUnavailable
	}

	var items []newsItem
	if err := json.Unmarshal(resp.Body(), &items); err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("news response unparseable")
		return "", domain.ErrEnrichmentUnavailable
	}
	if len(items) == 0 {
		return "", domain.ErrEnrichmentUnavailable
	}

	return digest(symbol, items), nil
}

// digest renders the most recent headlines as plain text for the prompt.
func digest(symbol string, items []newsItem) string {
	if len(items) > maxHeadlines {
		items = items[:maxHeadlines]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recent news for %s:\n", symbol)
	for _, it := range items {
		line := it.Headline
		if it.Source != "" {
			line = fmt.Sprintf("%s (%s)", line, it.Source)
		}
		fmt.Fprintf(&b, "- %s\n", line)
	}
	return b.String()
}
