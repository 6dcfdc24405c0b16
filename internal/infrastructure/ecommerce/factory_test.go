package ecommerce

import (
	"testing"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRegistry(t *testing.T) {
	registry, err := NewClientRegistryFromConfig(map[string]config.ChannelConfig{
		"marketplace_a": {BaseURL: "https://api.a.example.com", RateLimitPerMin: 60},
		"marketplace_b": {},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []integration.ChannelType{"marketplace_a", "marketplace_b"}, registry.Types())
	assert.True(t, registry.Supports("marketplace_a"))
	assert.False(t, registry.Supports("unknown"))

	conn, err := integration.NewChannelConnection(uuid.New(), "marketplace_a", []byte("x"), false)
	require.NoError(t, err)
	creds := integration.Credentials{CredentialAPIKey: "k", CredentialAPISecret: "s"}

	first, err := registry.ClientFor(conn, creds)
	require.NoError(t, err)
	second, err := registry.ClientFor(conn, creds)
	require.NoError(t, err)
	assert.Same(t, first.(*RESTClient).limiter, second.(*RESTClient).limiter)

	other, err := integration.NewChannelConnection(uuid.New(), "marketplace_b", []byte("x"), false)
	require.NoError(t, err)
	_, err = registry.ClientFor(other, creds)
	assert.ErrorIs(t, err, ErrConfigInvalidBaseURL)

	creds[CredentialBaseURL] = "https://api.b.example.com"
	client, err := registry.ClientFor(other, creds)
	require.NoError(t, err)
	assert.Nil(t, client.(*RESTClient).limiter)

	unsupported, err := integration.NewChannelConnection(uuid.New(), "marketplace_z", []byte("x"), false)
	require.NoError(t, err)
	_, err = registry.ClientFor(unsupported, creds)
	assert.ErrorIs(t, err, integration.ErrChannelTypeUnsupported)
}

func TestClientRegistry_RejectsInvalidType(t *testing.T) {
	registry := NewClientRegistry(nil, nil)
	err := registry.Register(ChannelProfile{Type: "Bad Type"})
	assert.ErrorIs(t, err, integration.ErrChannelTypeUnsupported)
}
