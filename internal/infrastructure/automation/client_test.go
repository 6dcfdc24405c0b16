package automation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/catalogsync/backend/internal/domain/listing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeProduct(t *testing.T) *listing.ProductRecord {
	t.Helper()
	record, err := listing.NewAutoApprovedProductRecord(uuid.New(), &listing.CandidateListing{
		SourceURL:  "https://shop.example.com/p/1",
		Fields:     listing.FieldSet{Title: "Camp Stove", Price: decimal.RequireFromString("19.99")},
		Confidence: 0.95,
	}, nil)
	require.NoError(t, err)
	return record
}

func TestClient_Automate(t *testing.T) {
	var got orderRequest
	var idempotencyKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/orders", r.URL.Path)
		idempotencyKey = r.Header.Get("Idempotency-Key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"external_order_id":"EXT-9","status":"placed"}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL+"/", time.Second, nil, nil)
	require.NoError(t, err)

	product := activeProduct(t)
	result, err := client.Automate(context.Background(), product, listing.OrderContext{
		SupplierID:  product.SupplierID,
		Reference:   "evt-1",
		Quantity:    1,
		RequestedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, "EXT-9", result.ExternalOrderID)
	assert.Equal(t, "placed", result.Status)
	assert.Equal(t, "evt-1", idempotencyKey)
	assert.Equal(t, product.ID.String(), got.ProductID)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("19.99")))
}

func TestClient_AutomateErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusServiceUnavailable, ``, ErrUnavailable},
		{"rejected", http.StatusConflict, `{"message":"out of stock upstream"}`, ErrRejected},
		{"bad body", http.StatusOK, `oops`, ErrInvalidResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewClient(server.URL, time.Second, nil, nil)
			require.NoError(t, err)
			_, err = client.Automate(context.Background(), activeProduct(t), listing.OrderContext{Quantity: 1})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := NewClient("  ", time.Second, nil, nil)
	assert.ErrorIs(t, err, ErrBaseURLRequired)
}
