// ABOUTME: HTTP client for the external CRM REST API
// ABOUTME: Bearer-key auth, rate limiting and cursor pagination over contacts and opportunities
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL           = "https://rest.gohighlevel.com/v1"
	DefaultAPIVersion        = "2021-07-28"
	DefaultTimeout           = 30 * time.Second
	DefaultRequestsPerMinute = 100
	DefaultPageSize          = 100

	maxPages     = 10000
	maxBodyBytes = 16 << 20
)

var (
	ErrEmptyAPIKey  = errors.New("api key is required")
	ErrUnauthorized = errors.New("api key rejected by CRM")
	ErrNotConnected = errors.New("gateway is not connected")
)

// APIError is a non-success response other than an auth failure.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("CRM API returned %d: %s", e.StatusCode, body)
}

// Client talks to the CRM on behalf of one connected account.
type Client struct {
	baseURL    *url.URL
	version    string
	httpClient *http.Client
	limiter    *rate.Limiter
	pageSize   int
	logger     *zap.Logger

	apiKey     string
	locationID string
}

// ClientBuilder configures a Client.
type ClientBuilder struct {
	baseURL           string
	version           string
	timeout           time.Duration
	requestsPerMinute int
	pageSize          int
	logger            *zap.Logger
}

func NewClientBuilder() *ClientBuilder {
	return &ClientBuilder{
		baseURL:           DefaultBaseURL,
		version:           DefaultAPIVersion,
		timeout:           DefaultTimeout,
		requestsPerMinute: DefaultRequestsPerMinute,
		pageSize:          DefaultPageSize,
	}
}

func (b *ClientBuilder) SetBaseURL(baseURL string) *ClientBuilder {
	b.baseURL = baseURL
	return b
}

func (b *ClientBuilder) SetAPIVersion(version string) *ClientBuilder {
	b.version = version
	return b
}

func (b *ClientBuilder) SetTimeout(timeout time.Duration) *ClientBuilder {
	b.timeout = timeout
	return b
}

// SetRequestsPerMinute sets the client-side rate limit. Zero or less disables it.
func (b *ClientBuilder) SetRequestsPerMinute(n int) *ClientBuilder {
	b.requestsPerMinute = n
	return b
}

func (b *ClientBuilder) SetPageSize(n int) *ClientBuilder {
	b.pageSize = n
	return b
}

func (b *ClientBuilder) SetLogger(logger *zap.Logger) *ClientBuilder {
	b.logger = logger
	return b
}

func (b *ClientBuilder) Build() (*Client, error) {
	u, err := url.Parse(strings.TrimRight(b.baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", b.baseURL)
	}

	httpClient := &http.Client{Timeout: b.timeout}

	limit := rate.Inf
	burst := 1
	if b.requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(b.requestsPerMinute))
		burst = min(b.requestsPerMinute, 10)
	}

	pageSize := b.pageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    u,
		version:    b.version,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		pageSize:   pageSize,
		logger:     logger,
	}, nil
}

// Connect verifies apiKey with a minimal contacts request and keeps it for
// subsequent calls.
func (c *Client) Connect(ctx context.Context, apiKey, locationID string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return ErrEmptyAPIKey
	}

	query := url.Values{"limit": {"1"}}
	if locationID != "" {
		query.Set("locationId", locationID)
	}

	var page contactsResponse
	if err := c.do(ctx, apiKey, "/contacts/", query, &page); err != nil {
		return err
	}

	c.apiKey = apiKey
	c.locationID = locationID
	c.logger.Debug("connected to CRM", zap.String("base_url", c.baseURL.String()))
	return nil
}

// Connected reports whether Connect has succeeded.
func (c *Client) Connected() bool {
	return c.apiKey != ""
}

// ListContacts returns every contact, following the cursor until exhausted.
// Entries that fail to decode are returned with DecodeErr set.
func (c *Client) ListContacts(ctx context.Context) ([]Contact, error) {
	if !c.Connected() {
		return nil, ErrNotConnected
	}

	var all []Contact
	err := c.paginate(ctx, "/contacts/", func(query url.Values) (pageMeta, int, error) {
		var page contactsResponse
		if err := c.do(ctx, c.apiKey, "/contacts/", query, &page); err != nil {
			return pageMeta{}, 0, err
		}
		all = append(all, decodeContacts(page.Contacts)...)
		return page.Meta, len(page.Contacts), nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("listed contacts", zap.Int("count", len(all)))
	return all, nil
}

// ListPipelines returns every pipeline with its stages.
func (c *Client) ListPipelines(ctx context.Context) ([]Pipeline, error) {
	if !c.Connected() {
		return nil, ErrNotConnected
	}

	var resp pipelinesResponse
	if err := c.do(ctx, c.apiKey, "/pipelines/", c.baseQuery(), &resp); err != nil {
		return nil, err
	}
	return resp.Pipelines, nil
}

// ListOpportunities returns the opportunities of every pipeline. Opportunities
// are only addressable per pipeline.
func (c *Client) ListOpportunities(ctx context.Context) ([]Opportunity, error) {
	pipelines, err := c.ListPipelines(ctx)
	if err != nil {
		return nil, err
	}

	var all []Opportunity
	for _, p := range pipelines {
		path := "/pipelines/" + url.PathEscape(p.ID) + "/opportunities"
		err := c.paginate(ctx, path, func(query url.Values) (pageMeta, int, error) {
			var page opportunitiesResponse
			if err := c.do(ctx, c.apiKey, path, query, &page); err != nil {
				return pageMeta{}, 0, err
			}
			records := decodeOpportunities(page.Opportunities)
			for i := range records {
				if records[i].PipelineID == "" {
					records[i].PipelineID = p.ID
				}
			}
			all = append(all, records...)
			return page.Meta, len(page.Opportunities), nil
		})
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", p.ID, err)
		}
	}

	c.logger.Debug("listed opportunities", zap.Int("count", len(all)), zap.Int("pipelines", len(pipelines)))
	return all, nil
}

func (c *Client) baseQuery() url.Values {
	query := url.Values{}
	if c.locationID != "" {
		query.Set("locationId", c.locationID)
	}
	return query
}

// paginate calls fetch until a short page or a missing or repeated cursor.
func (c *Client) paginate(ctx context.Context, path string, fetch func(url.Values) (pageMeta, int, error)) error {
	var cursorID string
	var cursorAt int64

	for page := 0; page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		query := c.baseQuery()
		query.Set("limit", strconv.Itoa(c.pageSize))
		if cursorID != "" {
			query.Set("startAfterId", cursorID)
		}
		if cursorAt != 0 {
			query.Set("startAfter", strconv.FormatInt(cursorAt, 10))
		}

		meta, n, err := fetch(query)
		if err != nil {
			return err
		}
		if n < c.pageSize || meta.StartAfterID == "" || meta.StartAfterID == cursorID {
			return nil
		}
		cursorID = meta.StartAfterID
		cursorAt = meta.StartAfter
	}

	c.logger.Warn("pagination stopped at page limit", zap.String("path", path), zap.Int("pages", maxPages))
	return nil
}

func (c *Client) do(ctx context.Context, apiKey, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "application/json")
	if c.version != "" {
		req.Header.Set("Version", c.version)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("CRM request",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
