// Package automation is the HTTP client of the upstream fulfillment service that
// places orders for newly activated products.
package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/catalogsync/backend/internal/domain/listing"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxResponseSize = 1024 * 1024

// Errors returned by the automation client
var (
	ErrBaseURLRequired = errors.New("automation: base url is required")
	ErrUnavailable     = errors.New("automation: service unavailable")
	ErrRejected        = errors.New("automation: order rejected")
	ErrInvalidResponse = errors.New("automation: invalid response")
)

// Client implements listing.OrderAutomation
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ listing.OrderAutomation = (*Client)(nil)

// NewClient creates a new automation client
func NewClient(baseURL string, timeout time.Duration, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, logger: logger}, nil
}

type orderRequest struct {
	ProductID   string          `json:"product_id"`
	SupplierID  string          `json:"supplier_id"`
	SourceURL   string          `json:"source_url"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Reference   string          `json:"reference"`
	RequestedAt time.Time       `json:"requested_at"`
}

type orderResponse struct {
	ExternalOrderID string `json:"external_order_id"`
	Status          string `json:"status"`
	Message         string `json:"message"`
}

// Automate places one upstream order. It makes a single attempt.
func (c *Client) Automate(ctx context.Context, product *listing.ProductRecord, orderCtx listing.OrderContext) (*listing.AutomationResult, error) {
	payload, err := json.Marshal(orderRequest{
		ProductID:   product.ID.String(),
		SupplierID:  orderCtx.SupplierID.String(),
		SourceURL:   product.SourceURL,
		Title:       product.Fields.Title,
		Price:       product.Price(),
		Quantity:    orderCtx.Quantity,
		Reference:   orderCtx.Reference,
		RequestedAt: orderCtx.RequestedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("automation: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("automation: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", orderCtx.Reference)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	var out orderResponse
	decodeErr := json.Unmarshal(body, &out)

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		if out.Message != "" {
			return nil, fmt.Errorf("%w: HTTP %d: %s", ErrRejected, resp.StatusCode, out.Message)
		}
		return nil, fmt.Errorf("%w: HTTP %d", ErrRejected, resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, decodeErr)
	}

	c.logger.Debug("Automation order placed",
		zap.String("product_id", product.ID.String()),
		zap.String("external_order_id", out.ExternalOrderID),
		zap.String("status", out.Status))

	return &listing.AutomationResult{
		ExternalOrderID: out.ExternalOrderID,
		Status:          out.Status,
		Message:         out.Message,
	}, nil
}
