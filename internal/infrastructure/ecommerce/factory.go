package ecommerce

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ClientRegistry implements integration.ClientFactory over registered channel profiles.
// Rate limiters are kept per connection so the budget holds across passes.
type ClientRegistry struct {
	mu         sync.Mutex
	profiles   map[integration.ChannelType]ChannelProfile
	limiters   map[uuid.UUID]*rate.Limiter
	httpClient *http.Client
	logger     *zap.Logger
}

var _ integration.ClientFactory = (*ClientRegistry)(nil)

// NewClientRegistry creates an empty registry. httpClient may be nil.
func NewClientRegistry(httpClient *http.Client, logger *zap.Logger) *ClientRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientRegistry{
		profiles:   make(map[integration.ChannelType]ChannelProfile),
		limiters:   make(map[uuid.UUID]*rate.Limiter),
		httpClient: httpClient,
		logger:     logger,
	}
}

// NewClientRegistryFromConfig registers one profile per configured channel
func NewClientRegistryFromConfig(channels map[string]config.ChannelConfig, logger *zap.Logger) (*ClientRegistry, error) {
	r := NewClientRegistry(nil, logger)
	for name, ch := range channels {
		if err := r.Register(ChannelProfile{
			Type:            integration.ChannelType(name),
			DefaultBaseURL:  ch.BaseURL,
			RateLimitPerMin: ch.RateLimitPerMin,
			Burst:           ch.Burst,
			Timeout:         ch.Timeout,
		}); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds or replaces a channel profile
func (r *ClientRegistry) Register(profile ChannelProfile) error {
	if !profile.Type.IsValid() {
		return fmt.Errorf("%w: %q", integration.ErrChannelTypeUnsupported, profile.Type)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[profile.Type] = profile
	r.logger.Debug("Channel profile registered",
		zap.String("channel_type", profile.Type.String()),
		zap.Int("rate_limit_per_minute", profile.RateLimitPerMin))
	return nil
}

// Types lists registered channel types, sorted
func (r *ClientRegistry) Types() []integration.ChannelType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]integration.ChannelType, 0, len(r.profiles))
	for t := range r.profiles {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Supports reports whether channelType has a registered profile
func (r *ClientRegistry) Supports(channelType integration.ChannelType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.profiles[channelType]
	return ok
}

// ClientFor builds a client for the connection using its opened credentials
func (r *ClientRegistry) ClientFor(conn *integration.ChannelConnection, creds integration.Credentials) (integration.ChannelClient, error) {
	r.mu.Lock()
	profile, ok := r.profiles[conn.ChannelType]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", integration.ErrChannelTypeUnsupported, conn.ChannelType)
	}
	limiter, cached := r.limiters[conn.ID]
	if !cached {
		limiter = NewLimiter(profile.RateLimitPerMin, profile.Burst)
		r.limiters[conn.ID] = limiter
	}
	r.mu.Unlock()

	cfg, err := ConfigFromCredentials(profile, creds)
	if err != nil {
		return nil, err
	}
	return NewRESTClient(cfg, limiter, r.httpClient, r.logger.With(
		zap.String("connection_id", conn.ID.String()),
		zap.String("channel_type", conn.ChannelType.String()),
	))
}
