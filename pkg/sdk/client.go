package edurag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxErrorBody = 64 << 10

// Client is the edurag SDK entry point. It is safe for concurrent use.
type Client struct {
	baseURL   string
	apiKey    string
	userAgent string
	http      *http.Client
	obs       *observer
}

// New creates a Client for the API at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{timeout: DefaultTimeout, userAgent: "edurag-go"}
	for _, opt := range opts {
		opt(cfg)
	}

	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("edurag: invalid base url %q", baseURL)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	obs, err := newObserver(cfg.logger, cfg.registry)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    cfg.apiKey,
		userAgent: cfg.userAgent,
		http:      hc,
		obs:       obs,
	}, nil
}

// Retrieve returns grounding context for query from a course.
// A refusal is an *APIError matching ErrNoGrounding.
func (c *Client) Retrieve(ctx context.Context, courseID string, req RetrieveRequest) (res RetrieveResult, err error) {
	err = c.do(ctx, "retrieve", http.MethodPost, coursePath(courseID, "retrieve"), nil, req, &res)
	return res, err
}

// Generate creates a theory or lab material for a course topic.
func (c *Client) Generate(ctx context.Context, courseID string, req GenerateRequest) (m Material, err error) {
	err = c.do(ctx, "generate", http.MethodPost, coursePath(courseID, "materials"), nil, req, &m)
	return m, err
}

// Materials lists a course's materials, newest first. limit <= 0 uses the server default.
func (c *Client) Materials(ctx context.Context, courseID string, limit int) ([]Material, error) {
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var resp struct {
		Items []Material `json:"items"`
	}
	if err := c.do(ctx, "list_materials", http.MethodGet, coursePath(courseID, "materials"), q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Material fetches one material.
func (c *Client) Material(ctx context.Context, id string) (m Material, err error) {
	err = c.do(ctx, "get_material", http.MethodGet, materialPath(id, ""), nil, nil, &m)
	return m, err
}

// DeleteMaterial removes a material and its re-indexed chunks.
func (c *Client) DeleteMaterial(ctx context.Context, id string) error {
	return c.do(ctx, "delete_material", http.MethodDelete, materialPath(id, ""), nil, nil, nil)
}

// Validate runs the model review of a material and returns the stored report.
func (c *Client) Validate(ctx context.Context, id string) (r ValidationReport, err error) {
	err = c.do(ctx, "validate_material", http.MethodPost, materialPath(id, "validate"), nil, nil, &r)
	return r, err
}

// Ask answers a question from course material.
func (c *Client) Ask(ctx context.Context, courseID string, req AskRequest) (a Answer, err error) {
	err = c.do(ctx, "ask_course", http.MethodPost, coursePath(courseID, "ask"), nil, req, &a)
	return a, err
}

// AskUser answers a question from one user's documents across courses.
func (c *Client) AskUser(ctx context.Context, userID string, req AskRequest) (a Answer, err error) {
	path := "/v1/users/" + url.PathEscape(userID) + "/ask"
	err = c.do(ctx, "ask_user", http.MethodPost, path, nil, req, &a)
	return a, err
}

// SearchImages finds course images for a text query. minSimilarity nil uses the server default.
func (c *Client) SearchImages(
	ctx context.Context, courseID, query string, topK int, minSimilarity *float64,
) ([]Image, error) {
	q := url.Values{"q": {query}}
	if topK > 0 {
		q.Set("top_k", strconv.Itoa(topK))
	}
	if minSimilarity != nil {
		q.Set("min_similarity", strconv.FormatFloat(*minSimilarity, 'f', -1, 64))
	}
	var resp struct {
		Items []Image `json:"items"`
	}
	if err := c.do(ctx, "search_images", http.MethodGet, coursePath(courseID, "images/search"), q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// IngestText chunks, embeds and indexes extracted course text.
func (c *Client) IngestText(ctx context.Context, courseID string, req IngestTextRequest) (r IngestResult, err error) {
	err = c.do(ctx, "ingest_text", http.MethodPost, coursePath(courseID, "contents"), nil, req, &r)
	return r, err
}

// IngestImage indexes one course image.
func (c *Client) IngestImage(ctx context.Context, courseID string, req IngestImageRequest) (r IngestResult, err error) {
	err = c.do(ctx, "ingest_image", http.MethodPost, coursePath(courseID, "images"), nil, req, &r)
	return r, err
}

// DeleteContent removes every chunk of a content item and returns how many were deleted.
func (c *Client) DeleteContent(ctx context.Context, courseID, contentID string) (int, error) {
	var resp struct {
		Deleted int `json:"deleted"`
	}
	path := coursePath(courseID, "contents/"+url.PathEscape(contentID))
	if err := c.do(ctx, "delete_content", http.MethodDelete, path, nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

// ScoreGrounding scores a list of similarities. nil entries are skipped.
func (c *Client) ScoreGrounding(ctx context.Context, similarities []*float64) (s GroundingScore, err error) {
	type item struct {
		Similarity *float64 `json:"similarity"`
	}
	body := struct {
		Chunks []item `json:"chunks"`
	}{Chunks: make([]item, len(similarities))}
	for i, v := range similarities {
		body.Chunks[i] = item{Similarity: v}
	}
	err = c.do(ctx, "grounding_score", http.MethodPost, "/v1/grounding/score", nil, body, &s)
	return s, err
}

// Usage reports embedding token usage for "day" or "month" ("" = day).
func (c *Client) Usage(ctx context.Context, period string) (r UsageReport, err error) {
	var q url.Values
	if period != "" {
		q = url.Values{"period": {period}}
	}
	err = c.do(ctx, "usage", http.MethodGet, "/v1/usage", q, nil, &r)
	return r, err
}

// Ready returns dependency health. An unhealthy service is reported in the status, not as an error.
func (c *Client) Ready(ctx context.Context) (h HealthStatus, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ready", start, err) }()

	resp, err := c.send(ctx, http.MethodGet, "/health/ready", nil, nil)
	if err != nil {
		return HealthStatus{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return HealthStatus{}, decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return HealthStatus{}, fmt.Errorf("edurag: decode health: %w", err)
	}
	return h, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, in, out any) (err error) {
	start := time.Now()
	defer func() { c.obs.observe(op, start, err) }()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("edurag: encode %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.send(ctx, method, path, q, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("edurag: decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, q url.Values, body io.Reader) (*http.Response, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("edurag: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("edurag: %s %s: %w", method, path, err)
	}
	return resp, nil
}

// decodeError turns a non-2xx response into *APIError, falling back to the status text.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = fallbackCode(resp.StatusCode)
		apiErr.Message = strings.TrimSpace(string(data))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return apiErr
}

func fallbackCode(status int) string {
	switch {
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusUnauthorized:
		return "unauthorized"
	case status == http.StatusTooManyRequests:
		return "quota_exceeded"
	case status == http.StatusServiceUnavailable:
		return "provider_unavailable"
	case status >= 400 && status < 500:
		return "bad_request"
	default:
		return "internal_error"
	}
}

func coursePath(courseID, rest string) string {
	return "/v1/courses/" + url.PathEscape(courseID) + "/" + rest
}

func materialPath(id, rest string) string {
	p := "/v1/materials/" + url.PathEscape(id)
	if rest != "" {
		p += "/" + rest
	}
	return p
}

// IsRefusal reports whether err is a grounding refusal and returns its reason.
func IsRefusal(err error) (string, bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return "", false
	}
	if errors.Is(apiErr, ErrNoGrounding) || errors.Is(apiErr, ErrInsufficientGrounding) {
		return apiErr.Reason, true
	}
	return "", false
}
