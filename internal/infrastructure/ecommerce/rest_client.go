// Package ecommerce implements channel clients for marketplaces that expose
// the signed REST listing API.
package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/catalogsync/backend/internal/domain/integration"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxResponseSize is the maximum allowed response size from a channel API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// maxOrderPages bounds a single FetchOrders call
const maxOrderPages = 50

// maxErrorDetailLen bounds the channel message carried in errors
const maxErrorDetailLen = 200

// Request headers
const (
	headerAPIKey    = "X-Api-Key"
	headerTimestamp = "X-Timestamp"
	headerSignature = "X-Signature"
)

// RESTClient implements integration.ChannelClient for one connection
type RESTClient struct {
	config     *RESTConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	now        func() time.Time
}

var _ integration.ChannelClient = (*RESTClient)(nil)

// NewRESTClient creates a client. limiter may be shared across clients of the
// same connection; nil disables rate limiting.
func NewRESTClient(cfg *RESTConfig, limiter *rate.Limiter, httpClient *http.Client, logger *zap.Logger) (*RESTClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RESTClient{
		config:     cfg,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// NewLimiter builds the token bucket for a per-minute budget; nil when perMin <= 0
func NewLimiter(perMin, burst int) *rate.Limiter {
	if perMin <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), burst)
}

// Probe checks that the credentials are accepted
func (c *RESTClient) Probe(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/v1/account", nil, nil)
	return err
}

// UpsertListing creates the listing when update.RemoteListingID is empty, otherwise replaces it
func (c *RESTClient) UpsertListing(ctx context.Context, update integration.ListingUpdate) (string, error) {
	body := listingRequest{
		ExternalID:  update.LocalProductID,
		Title:       update.Title,
		Description: update.Description,
		Images:      update.Images,
		Category:    update.Category,
		Price:       update.Price,
		Quantity:    update.Quantity,
	}

	method, path := http.MethodPost, "/v1/listings"
	if update.RemoteListingID != "" {
		method, path = http.MethodPut, "/v1/listings/"+url.PathEscape(update.RemoteListingID)
	}

	raw, err := c.do(ctx, method, path, nil, body)
	if err != nil {
		return "", err
	}
	var resp listingResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", integration.ErrChannelInvalidResponse, err)
	}
	if resp.ID == "" {
		if update.RemoteListingID != "" {
			return update.RemoteListingID, nil
		}
		return "", fmt.Errorf("%w: listing id missing", integration.ErrChannelInvalidResponse)
	}
	return resp.ID, nil
}

// DeactivateListing takes the listing off sale
func (c *RESTClient) DeactivateListing(ctx context.Context, remoteListingID string) error {
	_, err := c.do(ctx, http.MethodPost, "/v1/listings/"+url.PathEscape(remoteListingID)+"/deactivate", nil, nil)
	return err
}

// GetListing returns the current remote state of a listing
func (c *RESTClient) GetListing(ctx context.Context, remoteListingID string) (*integration.RemoteListingState, error) {
	raw, err := c.do(ctx, http.MethodGet, "/v1/listings/"+url.PathEscape(remoteListingID), nil, nil)
	if err != nil {
		return nil, err
	}
	var resp listingResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrChannelInvalidResponse, err)
	}
	if resp.ID == "" {
		resp.ID = remoteListingID
	}
	return &integration.RemoteListingState{
		RemoteListingID: resp.ID,
		Price:           resp.Price,
		Quantity:        resp.Quantity,
		Active:          resp.Status == listingStatusActive,
		UpdatedAt:       resp.UpdatedAt,
	}, nil
}

// FetchOrders follows the order cursor from since and returns orders oldest first
func (c *RESTClient) FetchOrders(ctx context.Context, since time.Time) ([]integration.RemoteOrderData, error) {
	var orders []integration.RemoteOrderData
	cursor := ""
	for page := 0; page < maxOrderPages; page++ {
		query := url.Values{}
		query.Set("since", since.UTC().Format(time.RFC3339))
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		raw, err := c.do(ctx, http.MethodGet, "/v1/orders", query, nil)
		if err != nil {
			return nil, err
		}
		var resp orderPage
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, fmt.Errorf("%w: %v", integration.ErrChannelInvalidResponse, err)
		}
		for _, o := range resp.Orders {
			// orders with no listing ID are kept and stored unresolved
			if o.ID == "" {
				c.logger.Warn("Skipping channel order without id",
					zap.String("listing_id", o.ListingID),
					zap.Time("created_at", o.CreatedAt))
				continue
			}
			orders = append(orders, integration.RemoteOrderData{
				RemoteOrderID:   o.ID,
				RemoteListingID: o.ListingID,
				Quantity:        o.Quantity,
				UnitPrice:       o.UnitPrice,
				CreatedAt:       o.CreatedAt,
			})
		}
		if resp.NextCursor == "" || resp.NextCursor == cursor {
			break
		}
		cursor = resp.NextCursor
	}

	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}

// do sends a signed request and maps failures onto the integration transport errors
func (c *RESTClient) do(ctx context.Context, method, path string, query url.Values, payload interface{}) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			// The wait would outlast the deadline
			return nil, fmt.Errorf("%w: %v", integration.ErrChannelRateLimited, err)
		}
	}

	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("ecommerce: failed to encode request: %w", err)
		}
	}

	target := c.config.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ecommerce: failed to create request: %w", err)
	}

	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	req.Header.Set(headerAPIKey, c.config.APIKey)
	req.Header.Set(headerTimestamp, timestamp)
	req.Header.Set(headerSignature, c.config.Sign(method, path, timestamp, body))
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", integration.ErrChannelUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", integration.ErrChannelUnavailable, err)
	}

	if resp.StatusCode >= 300 {
		err := statusError(resp.StatusCode, raw, strings.HasPrefix(path, "/v1/listings/"))
		c.logger.Debug("Channel request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Error(err))
		return nil, err
	}
	return raw, nil
}

func statusError(status int, raw []byte, listingPath bool) error {
	detail := strings.TrimSpace(string(raw))
	var envelope errorResponse
	if json.Unmarshal(raw, &envelope) == nil && envelope.Message != "" {
		detail = envelope.Message
	}
	if len(detail) > maxErrorDetailLen {
		cut := maxErrorDetailLen
		for cut > 0 && !utf8.RuneStart(detail[cut]) {
			cut--
		}
		detail = detail[:cut]
	}

	var kind error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = integration.ErrChannelAuthFailed
	case status == http.StatusNotFound && listingPath:
		kind = integration.ErrRemoteListingNotFound
	case status == http.StatusTooManyRequests:
		kind = integration.ErrChannelRateLimited
	case status == http.StatusRequestTimeout || status >= 500:
		kind = integration.ErrChannelUnavailable
	default:
		kind = integration.ErrChannelRequestFailed
	}
	if detail == "" {
		return fmt.Errorf("%w: HTTP %d", kind, status)
	}
	return fmt.Errorf("%w: HTTP %d: %s", kind, status, detail)
}
