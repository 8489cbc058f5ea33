// Package wikipedia is a rate-limited client for the Wikipedia REST API.
package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/edurag/internal/domain"
)

const (
	// SourceName tags references produced by this client.
	SourceName = "wikipedia"

	defaultBaseURL   = "https://en.wikipedia.org/api/rest_v1"
	defaultUserAgent = "edurag/1.0 (Wikipedia REST client)"
	defaultTimeout   = 6 * time.Second
	pageURLPrefix    = "https://en.wikipedia.org/wiki/"
	maxSearchLimit   = 5
	maxBodyBytes     = 1 << 20
)

// Config holds client settings. Zero values fall back to defaults.
type Config struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
	Logger     *zap.Logger
}

// Client fetches page summaries and search results.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// New creates a Wikipedia client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		logger:    cfg.Logger,
	}
}

type summaryResponse struct {
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

type searchResponse struct {
	Pages []struct {
		Key     string `json:"key"`
		Title   string `json:"title"`
		Extract string `json:"extract"`
	} `json:"pages"`
}

// Summary returns the summary of the page titled title.
// A missing page or an empty extract yields (nil, nil).
func (c *Client) Summary(ctx context.Context, title string) (*domain.ExternalReference, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil
	}

	endpoint := c.baseURL + "/page/summary/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
	var resp summaryResponse
	found, err := c.getJSON(ctx, endpoint, &resp)
	if err != nil {
		return nil, fmt.Errorf("wikipedia summary %q: %w", title, err)
	}
	if !found {
		return nil, nil
	}

	extract := strings.TrimSpace(resp.Extract)
	if extract == "" {
		return nil, nil
	}
	refTitle := strings.TrimSpace(resp.Title)
	if refTitle == "" {
		refTitle = title
	}
	return &domain.ExternalReference{
		Title:   refTitle,
		Extract: extract,
		URL:     resp.ContentURLs.Desktop.Page,
		Source:  SourceName,
	}, nil
}

// Search returns up to limit pages (clamped to [1, 5]) with a title and extract.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.ExternalReference, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	limit = max(1, min(limit, maxSearchLimit))

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))

	var resp searchResponse
	found, err := c.getJSON(ctx, c.baseURL+"/page/search?"+params.Encode(), &resp)
	if err != nil {
		return nil, fmt.Errorf("wikipedia search %q: %w", query, err)
	}
	if !found {
		return nil, nil
	}

	out := make([]domain.ExternalReference, 0, limit)
	for _, p := range resp.Pages {
		if len(out) == limit {
			break
		}
		title, extract, key := strings.TrimSpace(p.Title), strings.TrimSpace(p.Extract), strings.TrimSpace(p.Key)
		if title == "" || extract == "" {
			continue
		}
		ref := domain.ExternalReference{Title: title, Extract: extract, Source: SourceName}
		if key != "" {
			ref.URL = pageURLPrefix + key
		}
		out = append(out, ref)
	}
	return out, nil
}

// getJSON performs a throttled GET. found is false on 404.
func (c *Client) getJSON(ctx context.Context, endpoint string, dst any) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.logger.Debug("Wikipedia page not found", zap.String("url", endpoint))
		return false, nil
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dst); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return true, nil
}
