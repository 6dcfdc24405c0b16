package integration

import (
	"context"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// ChannelType names an external sales channel family, e.g. "marketplace_a"
type ChannelType string

var channelTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{1,49}$`)

// IsValid checks the syntactic form of the type; support is decided by the ClientFactory
func (t ChannelType) IsValid() bool {
	return channelTypePattern.MatchString(string(t))
}

func (t ChannelType) String() string {
	return string(t)
}

// Credentials are opaque key/value secrets for one connection
type Credentials map[string]string

// ListingUpdate is the outbound state pushed to a remote listing
type ListingUpdate struct {
	// RemoteListingID is empty for the first push, which creates the listing
	RemoteListingID string
	LocalProductID  string
	Title           string
	Description     string
	Images          []string
	Category        string
	Price           decimal.Decimal
	Quantity        int
}

// RemoteListingState is what the channel currently shows for a listing
type RemoteListingState struct {
	RemoteListingID string
	Price           decimal.Decimal
	Quantity        int
	Active          bool
	UpdatedAt       time.Time
}

// RemoteOrderData is one order as reported by the channel
type RemoteOrderData struct {
	RemoteOrderID   string
	RemoteListingID string
	Quantity        int
	UnitPrice       decimal.Decimal
	CreatedAt       time.Time
}

// ChannelClient talks to one channel on behalf of one connection.
// Implementations report failures using the Err* transport errors.
type ChannelClient interface {
	// Probe is a lightweight authenticated call used by health checks
	Probe(ctx context.Context) error
	// UpsertListing creates the listing when RemoteListingID is empty, otherwise updates it
	UpsertListing(ctx context.Context, update ListingUpdate) (remoteListingID string, err error)
	// DeactivateListing takes a remote listing off sale
	DeactivateListing(ctx context.Context, remoteListingID string) error
	// FetchOrders returns orders created at or after since, oldest first.
	// Callers deduplicate on RemoteOrderID.
	FetchOrders(ctx context.Context, since time.Time) ([]RemoteOrderData, error)
	// GetListing returns the current remote state of a listing
	GetListing(ctx context.Context, remoteListingID string) (*RemoteListingState, error)
}

// ClientFactory builds ChannelClients for connections
type ClientFactory interface {
	Supports(channelType ChannelType) bool
	ClientFor(conn *ChannelConnection, creds Credentials) (ChannelClient, error)
}

// CredentialSealer encrypts credentials at rest. The registry owns the sealed form.
type CredentialSealer interface {
	Seal(creds Credentials) ([]byte, error)
	Open(sealed []byte) (Credentials, error)
}
