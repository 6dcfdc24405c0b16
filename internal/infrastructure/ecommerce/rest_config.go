package ecommerce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/catalogsync/backend/internal/domain/integration"
)

// Credential keys read from a connection's Credentials
const (
	CredentialBaseURL   = "base_url"
	CredentialAPIKey    = "api_key"
	CredentialAPISecret = "api_secret"
)

// Errors for REST channel configuration
var (
	ErrConfigMissingAPIKey    = errors.New("ecommerce: api key is required")
	ErrConfigMissingAPISecret = errors.New("ecommerce: api secret is required")
	ErrConfigInvalidBaseURL   = errors.New("ecommerce: base url must be an absolute http(s) URL")
)

// RESTConfig holds the settings of one client instance
type RESTConfig struct {
	// BaseURL is the API root, e.g. https://api.marketplace.example.com
	BaseURL   string
	APIKey    string
	APISecret string
	// Timeout bounds a single HTTP request; callers may set a tighter context deadline
	Timeout time.Duration
	// RateLimitPerMin caps requests per minute for the connection; <= 0 disables limiting
	RateLimitPerMin int
	// Burst is the token bucket size; defaults to 1
	Burst int
}

// ChannelProfile describes a supported channel type
type ChannelProfile struct {
	Type            integration.ChannelType
	DefaultBaseURL  string
	RateLimitPerMin int
	Burst           int
	Timeout         time.Duration
}

// ConfigFromCredentials builds a RESTConfig from a profile and opened credentials.
// A base_url credential overrides the profile default.
func ConfigFromCredentials(profile ChannelProfile, creds integration.Credentials) (*RESTConfig, error) {
	cfg := &RESTConfig{
		BaseURL:         profile.DefaultBaseURL,
		APIKey:          strings.TrimSpace(creds[CredentialAPIKey]),
		APISecret:       creds[CredentialAPISecret],
		Timeout:         profile.Timeout,
		RateLimitPerMin: profile.RateLimitPerMin,
		Burst:           profile.Burst,
	}
	if override := strings.TrimSpace(creds[CredentialBaseURL]); override != "" {
		cfg.BaseURL = override
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and fills defaults
func (c *RESTConfig) Validate() error {
	if c.APIKey == "" {
		return ErrConfigMissingAPIKey
	}
	if c.APISecret == "" {
		return ErrConfigMissingAPISecret
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrConfigInvalidBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of "METHOD\nPATH\nTIMESTAMP\nBODY" keyed by the API secret
func (c *RESTConfig) Sign(method, path, timestamp string, body []byte) string {
	var builder strings.Builder
	builder.WriteString(strings.ToUpper(method))
	builder.WriteByte('\n')
	builder.WriteString(path)
	builder.WriteByte('\n')
	builder.WriteString(timestamp)
	builder.WriteByte('\n')
	builder.Write(body)

	h := hmac.New(sha256.New, []byte(c.APISecret))
	h.Write([]byte(builder.String()))
	return hex.EncodeToString(h.Sum(nil))
}
