// Package extractor is the HTTP client of the page extraction service.
// The service fetches a supplier page and returns a structured candidate listing.
package extractor

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/catalogsync/backend/internal/domain/listing"
	"go.uber.org/zap"
)

const maxResponseSize = 5 * 1024 * 1024

// Config holds the extraction service settings
type Config struct {
	BaseURL string
	// Timeout bounds one HTTP attempt; the caller's context bounds the whole call
	Timeout time.Duration
	// Retries is the number of extra attempts after an unreachable result
	Retries   int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Client implements listing.Extractor over HTTP
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

var _ listing.Extractor = (*Client)(nil)

// ErrBaseURLRequired is returned when the client is built without a service URL
var ErrBaseURLRequired = errors.New("extractor: base url is required")

// NewClient creates a new extraction client
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrBaseURLRequired
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{config: cfg, httpClient: httpClient, logger: logger}, nil
}

type extractRequest struct {
	URL string `json:"url"`
}

// errorBody is the service's failure envelope; kind is one of the listing extraction kinds
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Extract asks the service for the candidate at sourceURL.
// Unreachable results are retried with exponential backoff; blocked and unparsable are not.
func (c *Client) Extract(ctx context.Context, sourceURL string) (*listing.CandidateListing, error) {
	var lastErr *listing.ExtractionError
	for attempt := 1; attempt <= c.config.Retries+1; attempt++ {
		candidate, err := c.extractOnce(ctx, sourceURL)
		if err == nil {
			return candidate, nil
		}
		lastErr = err
		if !err.Transient() || ctx.Err() != nil || attempt > c.config.Retries {
			break
		}
		c.logger.Debug("Extraction unreachable, retrying",
			zap.String("source_url", sourceURL),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if sleepErr := sleepBackoff(ctx, attempt, c.config.BaseDelay, c.config.MaxDelay); sleepErr != nil {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) extractOnce(ctx context.Context, sourceURL string) (*listing.CandidateListing, *listing.ExtractionError) {
	payload, err := json.Marshal(extractRequest{URL: sourceURL})
	if err != nil {
		return nil, listing.NewExtractionError(listing.ExtractionUnparsable, sourceURL, "failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/v1/extract", bytes.NewReader(payload))
	if err != nil {
		return nil, listing.NewExtractionError(listing.ExtractionUnreachable, sourceURL, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "br, gzip")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, listing.NewExtractionError(listing.ExtractionUnreachable, sourceURL, "extraction service unreachable", err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, listing.NewExtractionError(listing.ExtractionUnreachable, sourceURL, "failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(sourceURL, resp.StatusCode, body)
	}

	var candidate listing.CandidateListing
	if err := json.Unmarshal(body, &candidate); err != nil {
		return nil, listing.NewExtractionError(listing.ExtractionUnparsable, sourceURL, "extraction service returned malformed candidate", err)
	}
	if candidate.SourceURL == "" {
		candidate.SourceURL = sourceURL
	}
	if candidate.ExtractedAt.IsZero() {
		candidate.ExtractedAt = time.Now()
	}
	return &candidate, nil
}

func statusError(sourceURL string, status int, body []byte) *listing.ExtractionError {
	var envelope errorBody
	_ = json.Unmarshal(body, &envelope)
	message := envelope.Message
	if message == "" {
		message = fmt.Sprintf("extraction service returned HTTP %d", status)
	}

	if kind := listing.ExtractionKind(envelope.Kind); kind.IsValid() {
		return listing.NewExtractionError(kind, sourceURL, message, nil)
	}
	switch {
	case status == http.StatusForbidden || status == http.StatusUnavailableForLegalReasons:
		return listing.NewExtractionError(listing.ExtractionBlocked, sourceURL, message, nil)
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		return listing.NewExtractionError(listing.ExtractionUnparsable, sourceURL, message, nil)
	case status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500:
		return listing.NewExtractionError(listing.ExtractionUnreachable, sourceURL, message, nil)
	default:
		return listing.NewExtractionError(listing.ExtractionUnparsable, sourceURL, message, nil)
	}
}

// readBody decodes br or gzip content, then reads at most maxResponseSize bytes
func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}
	return io.ReadAll(io.LimitReader(reader, maxResponseSize))
}

func sleepBackoff(ctx context.Context, attempt int, base, max time.Duration) error {
	delay := base << (attempt - 1)
	if delay <= 0 || delay > max {
		delay = max
	}
	// up to 20% jitter
	delay += time.Duration(rand.Int63n(int64(delay)/5 + 1))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
