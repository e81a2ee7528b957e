package mcsr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public MCSR Ranked API
	DefaultBaseURL = "https://mcsrranked.com/api"

	defaultRequestTimeout = 30 * time.Second
)

var (
	// ErrRetriesExhausted is returned when every attempt was rate limited or failed in transport
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrUnexpectedStatus is returned for any non-200, non-429 response
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// FetchParams are the paging and filter parameters of a match history request
type FetchParams struct {
	Page         int
	Count        int
	Type         int    // match type filter, omitted when 0
	Tag          string // omitted when empty
	Season       int    // omitted when 0
	IncludeDecay bool   // sent as a bare "includedecay" key
}

// DefaultFetchParams mirrors what a regular collection run asks for: 50 ranked matches including decay
func DefaultFetchParams() FetchParams {
	return FetchParams{
		Page:         0,
		Count:        50,
		Type:         2,
		IncludeDecay: true,
	}
}

// Query encodes the parameters the way the API expects them
func (p FetchParams) Query() string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("count", strconv.Itoa(p.Count))
	if p.Type != 0 {
		q.Set("type", strconv.Itoa(p.Type))
	}
	if p.Tag != "" {
		q.Set("tag", p.Tag)
	}
	if p.Season != 0 {
		q.Set("season", strconv.Itoa(p.Season))
	}
	if p.IncludeDecay {
		q.Set("includedecay", "")
	}
	return q.Encode()
}

// Client fetches match history from the MCSR Ranked API with a fixed retry policy
type Client struct {
	baseURL     string
	httpClient  *http.Client
	maxAttempts int
	retryDelay  time.Duration

	// Optional pacing between requests; rate.Inf disables it
	limiter *rate.Limiter
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL sets a custom base URL (useful for testing)
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetryDelay overrides the wait between attempts
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithMaxAttempts overrides the attempt ceiling
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithRateLimit paces requests to at most perSecond per second (burst 1)
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// NewClient creates a new MCSR Ranked API client
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
		maxAttempts: MaxAttempts,
		retryDelay:  RetryDelay,
		limiter:     rate.NewLimiter(rate.Inf, 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// MatchesURL builds the request URL for a user identifier
func (c *Client) MatchesURL(identifier string, p FetchParams) string {
	return fmt.Sprintf("%s/users/%s/matches?%s", c.baseURL, url.PathEscape(identifier), p.Query())
}

// FetchUserMatches performs one logical fetch, retrying on 429 and transport errors.
// A non-nil error means "no data for this identifier in this run".
func (c *Client) FetchUserMatches(ctx context.Context, identifier string, p FetchParams) (*MatchesResponse, error) {
	reqURL := c.MatchesURL(identifier, p)

	for attempt := 1; ; attempt++ {
		status, body, err := c.doRequest(ctx, reqURL)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		switch Decide(attempt, c.maxAttempts, status, err) {
		case DecisionSucceed:
			var resp MatchesResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return nil, fmt.Errorf("failed to decode matches for %s: %w", identifier, err)
			}
			return &resp, nil

		case DecisionRetry:
			if err != nil {
				log.Printf("[%s] Request error: %v", identifier, err)
			} else {
				log.Printf("[%s] Rate limited. Retrying in %s...", identifier, c.retryDelay)
			}
			if err := sleep(ctx, c.retryDelay); err != nil {
				return nil, err
			}

		default:
			if err != nil || status == http.StatusTooManyRequests {
				return nil, fmt.Errorf("%s after %d attempts: %w", identifier, attempt, ErrRetriesExhausted)
			}
			log.Printf("[%s] Error: %d", identifier, status)
			return nil, fmt.Errorf("%s: %w %d", identifier, ErrUnexpectedStatus, status)
		}
	}
}

// doRequest makes a single paced GET and reads the whole body
func (c *Client) doRequest(ctx context.Context, reqURL string) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// sleep waits d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
