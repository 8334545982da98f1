// Package geocode resolves connection company names into map coordinates via
// a cached, rate-limited external lookup, and drives the batch pipeline that
// applies them.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultEndpoint is the default external lookup service.
const DefaultEndpoint = "https://nominatim.openstreetmap.org/search"

// DefaultUserAgent identifies this application to the lookup service, which
// requires a descriptive User-Agent.
const DefaultUserAgent = "Relnodes/1.0 (Network Visualization App)"

// DefaultRequestInterval is the minimum spacing between external calls.
// The service's documented ceiling is roughly one request per second; the
// extra margin keeps us safely under it.
const DefaultRequestInterval = 1100 * time.Millisecond

// ErrLookupFailed is returned when the external service responds with a
// non-2xx status or an undecodable body.
var ErrLookupFailed = errors.New("external lookup failed")

// Result is one resolved location from the external service. DisplayName is
// comma-delimited, most-specific-first.
type Result struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
}

// City returns the most specific component of the display name.
func (r *Result) City() *string {
	city := strings.TrimSpace(r.DisplayName[:commaOrEnd(r.DisplayName)])
	if city == "" {
		return nil
	}
	return &city
}

// Country returns the least specific component of the display name.
func (r *Result) Country() *string {
	name := r.DisplayName
	if idx := strings.LastIndex(name, ","); idx >= 0 {
		name = name[idx+1:]
	}
	country := strings.TrimSpace(name)
	if country == "" {
		return nil
	}
	return &country
}

func commaOrEnd(s string) int {
	if idx := strings.Index(s, ","); idx >= 0 {
		return idx
	}
	return len(s)
}

// Lookup is the external geocoding collaborator: a free-text query resolved
// to at most one best result. A nil Result with nil error means the service
// found nothing for the query.
type Lookup interface {
	Lookup(ctx context.Context, query string) (*Result, error)
}

// pacer serializes external calls and enforces a minimum interval between
// them. It is the single owner of the last-call timestamp; every request
// goes through Wait, so concurrent callers queue rather than burst.
type pacer struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	sleep    func(context.Context, time.Duration) error
}

func newPacer(interval time.Duration) *pacer {
	return &pacer{interval: interval, sleep: sleepCtx}
}

// Wait blocks until at least the configured interval has passed since the
// previous external call, then claims the current slot.
func (p *pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.last.IsZero() {
		if wait := p.interval - time.Since(p.last); wait > 0 {
			if err := p.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	p.last = time.Now()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Client looks up company names against a Nominatim-compatible endpoint.
type Client struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
	pacer      *pacer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithEndpoint overrides the lookup endpoint.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithRequestInterval overrides the minimum spacing between external calls.
func WithRequestInterval(interval time.Duration) ClientOption {
	return func(c *Client) { c.pacer = newPacer(interval) }
}

// NewClient creates a rate-limited lookup client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		endpoint:   DefaultEndpoint,
		userAgent:  DefaultUserAgent,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		pacer:      newPacer(DefaultRequestInterval),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// nominatimResult is the subset of the service's response we consume.
// Coordinates arrive as decimal strings.
type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Lookup queries the external service for the single best result. Every call
// waits its turn on the shared pacer before touching the network.
func (c *Client) Lookup(ctx context.Context, query string) (*Result, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := c.endpoint + "?q=" + url.QueryEscape(query) + "&format=json&limit=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad latitude %q", ErrLookupFailed, results[0].Lat)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad longitude %q", ErrLookupFailed, results[0].Lon)
	}

	return &Result{
		Latitude:    lat,
		Longitude:   lng,
		DisplayName: results[0].DisplayName,
	}, nil
}
