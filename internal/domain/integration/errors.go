package integration

import (
	"context"
	"errors"

	"github.com/catalogsync/backend/internal/domain/shared"
)

// Channel transport errors returned by ChannelClient implementations
var (
	ErrChannelAuthFailed      = errors.New("integration: channel authentication failed")
	ErrChannelUnavailable     = errors.New("integration: channel temporarily unavailable")
	ErrChannelRateLimited     = errors.New("integration: channel rate limited")
	ErrChannelRequestFailed   = errors.New("integration: channel request failed")
	ErrChannelInvalidResponse = errors.New("integration: invalid channel response")
	ErrRemoteListingNotFound  = errors.New("integration: remote listing not found")
	ErrChannelTypeUnsupported = errors.New("integration: channel type not supported")
)

// Domain errors surfaced to callers
var (
	ErrConnectionNotFound    = shared.NewDomainError(shared.CodeNotFound, "Channel connection not found")
	ErrMappingNotFound       = shared.NewDomainError(shared.CodeNotFound, "Product-channel mapping not found")
	ErrMappingExists         = shared.NewDomainError(shared.CodeAlreadyExists, "Mapping already exists for this product and connection")
	ErrProductNotActive      = shared.NewDomainError(shared.CodeInvalidState, "Only active products can be mapped to a channel")
	ErrConnectionUnlinked    = shared.NewDomainError(shared.CodeInvalidState, "Channel connection has been disconnected")
	ErrSupplierMismatch      = shared.NewDomainError(shared.CodeInvalidInput, "Product and connection belong to different suppliers")
	ErrInvalidChannelType    = shared.NewDomainError(shared.CodeInvalidInput, "Channel type is not supported")
	ErrCredentialsRequired   = shared.NewDomainError(shared.CodeMissingField, "Channel credentials are required")
	ErrRemoteListingAssigned = shared.NewDomainError(shared.CodeInvalidState, "Remote listing ID is already assigned")
	ErrInvalidOrderState     = shared.NewDomainError(shared.CodeInvalidInput, "Unknown remote order state")
)

// FailureKind classifies a channel error for status and backoff decisions
type FailureKind string

const (
	// FailureAuth requires operator action (re-authentication)
	FailureAuth FailureKind = "auth"
	// FailureConnectivity is expected to be transient and is retried automatically
	FailureConnectivity FailureKind = "connectivity"
	// FailureItem is local to one mapping or order
	FailureItem FailureKind = "item"
)

// ClassifyFailure maps a ChannelClient error to a FailureKind.
// Timeouts and rate limiting count as connectivity failures.
func ClassifyFailure(err error) FailureKind {
	switch {
	case errors.Is(err, ErrChannelAuthFailed):
		return FailureAuth
	case errors.Is(err, ErrChannelUnavailable),
		errors.Is(err, ErrChannelRateLimited),
		isTimeout(err):
		return FailureConnectivity
	default:
		return FailureItem
	}
}

type timeout interface{ Timeout() bool }

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t timeout
	return errors.As(err, &t) && t.Timeout()
}
