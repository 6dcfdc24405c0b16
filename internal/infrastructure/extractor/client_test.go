package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/catalogsync/backend/internal/domain/listing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const candidateJSON = `{
	"source_url": "https://shop.example.com/p/1",
	"fields": {"title": "Camp Stove", "price": "19.99", "category": "outdoor", "images": ["https://cdn.example.com/1.jpg"]},
	"confidence": 0.93,
	"extracted_at": "2026-03-01T12:00:00Z"
}`

func newTestClient(t *testing.T, retries int, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(Config{
		BaseURL:   server.URL,
		Retries:   retries,
		BaseDelay: time.Millisecond,
		MaxDelay:  5 * time.Millisecond,
	}, server.Client(), nil)
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{}, nil, nil)
	assert.ErrorIs(t, err, ErrBaseURLRequired)
}

func TestClient_Extract(t *testing.T) {
	var gotURL string
	client := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/extract", r.URL.Path)
		var req extractRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotURL = req.URL
		_, _ = w.Write([]byte(candidateJSON))
	})

	candidate, err := client.Extract(context.Background(), "https://shop.example.com/p/1")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/p/1", gotURL)
	assert.Equal(t, "Camp Stove", candidate.Fields.Title)
	assert.Equal(t, "19.99", candidate.Fields.Price.String())
	assert.InDelta(t, 0.93, candidate.Confidence, 1e-9)
}

func TestClient_ExtractBrotli(t *testing.T) {
	client := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept-Encoding"), "br")
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		_, _ = bw.Write([]byte(candidateJSON))
		_ = bw.Close()
		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write(buf.Bytes())
	})

	candidate, err := client.Extract(context.Background(), "https://shop.example.com/p/1")
	require.NoError(t, err)
	assert.Equal(t, "outdoor", candidate.Fields.Category)
}

func TestClient_ExtractErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   listing.ExtractionKind
	}{
		{"explicit blocked kind", http.StatusBadGateway, `{"kind":"blocked","message":"captcha"}`, listing.ExtractionBlocked},
		{"forbidden", http.StatusForbidden, ``, listing.ExtractionBlocked},
		{"unprocessable", http.StatusUnprocessableEntity, `{"message":"no product found"}`, listing.ExtractionUnparsable},
		{"server error", http.StatusInternalServerError, ``, listing.ExtractionUnreachable},
		{"malformed candidate", http.StatusOK, `{"fields": 42}`, listing.ExtractionUnparsable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.Extract(context.Background(), "https://shop.example.com/p/x")
			require.Error(t, err)
			extErr := listing.AsExtractionError("https://shop.example.com/p/x", err)
			assert.Equal(t, tt.want, extErr.Kind)
			assert.Equal(t, "https://shop.example.com/p/x", extErr.URL)
		})
	}
}

func TestClient_RetriesUnreachableOnly(t *testing.T) {
	var calls int32
	client := newTestClient(t, 2, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(candidateJSON))
	})
	_, err := client.Extract(context.Background(), "https://shop.example.com/p/1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	var blockedCalls int32
	blocked := newTestClient(t, 2, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&blockedCalls, 1)
		w.WriteHeader(http.StatusForbidden)
	})
	_, err = blocked.Extract(context.Background(), "https://shop.example.com/p/1")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&blockedCalls))
}

func TestClient_UnreachableService(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := NewClient(Config{BaseURL: url, BaseDelay: time.Millisecond}, nil, nil)
	require.NoError(t, err)
	_, err = client.Extract(context.Background(), "https://shop.example.com/p/1")
	extErr := listing.AsExtractionError("https://shop.example.com/p/1", err)
	assert.Equal(t, listing.ExtractionUnreachable, extErr.Kind)
	assert.True(t, extErr.Transient())
}
