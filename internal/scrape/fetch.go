package scrape

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sh3rwan/erbil-api/internal/metrics"
	"github.com/sh3rwan/erbil-api/pkg/models"
)

const (
	// Browser-like identification keeps the airport site from serving the
	// bot-blocking interstitial it returns for default Go user agents.
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	defaultTimeout = 15 * time.Second

	// Connection pool settings
	maxIdleConns    = 10
	maxConnsPerHost = 5
	idleConnTimeout = 90 * time.Second
)

// FetchError reports a failed fetch attempt: transport errors, non-success
// status codes, and unparseable bodies. Retry policy belongs to the caller.
type FetchError struct {
	URL    string
	Status int // 0 when the request never completed
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserAgent overrides the outbound User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithTimeout bounds each fetch attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithProfile sets the source page profile.
func WithProfile(p Profile) Option {
	return func(c *Client) { c.profile = p }
}

// WithClock overrides the time source used to resolve clock-only cells
// (useful for testing overnight rollover).
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client fetches and extracts the flight board from one source URL.
type Client struct {
	sourceURL  string
	userAgent  string
	httpClient *http.Client
	now        func() time.Time

	mu      sync.RWMutex
	profile Profile
}

// NewClient creates a flight-board client with connection pooling.
func NewClient(sourceURL string, opts ...Option) *Client {
	transport := &http.Transport{
		MaxIdleConns:    maxIdleConns,
		MaxConnsPerHost: maxConnsPerHost,
		IdleConnTimeout: idleConnTimeout,
	}

	c := &Client{
		sourceURL: sourceURL,
		userAgent: defaultUserAgent,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: transport,
		},
		now:     time.Now,
		profile: DefaultProfile(),
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetProfile swaps the source profile. Safe for concurrent use; the config
// watcher calls this when the page shape configuration changes on disk.
func (c *Client) SetProfile(p Profile) {
	c.mu.Lock()
	c.profile = p
	c.mu.Unlock()
}

// Profile returns the active source profile.
func (c *Client) Profile() Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profile
}

// Fetch retrieves the flight board and extracts its rows. Zero extracted
// records is a successful fetch: the distinction between "no flights" and
// "site shape changed" is surfaced by logging at the caller, not here.
func (c *Client) Fetch(ctx context.Context) ([]models.FlightRecord, error) {
	start := time.Now()
	metrics.ScrapeRequests.Inc()

	records, err := c.fetch(ctx)
	metrics.ScrapeLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ScrapeErrors.Inc()
		return nil, err
	}
	metrics.ScrapeRows.Add(int64(len(records)))
	return records, nil
}

func (c *Client) fetch(ctx context.Context) ([]models.FlightRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sourceURL, nil)
	if err != nil {
		return nil, &FetchError{URL: c.sourceURL, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: c.sourceURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: c.sourceURL, Status: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: c.sourceURL, Err: fmt.Errorf("parsing page: %w", err)}
	}

	return Extract(doc, c.Profile(), c.now()), nil
}
