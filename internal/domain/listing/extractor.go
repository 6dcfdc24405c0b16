package listing

import (
	"context"
	"errors"
	"fmt"
)

// ExtractionKind classifies why an extraction failed
type ExtractionKind string

const (
	// ExtractionUnreachable covers timeouts, DNS and connection failures. Retryable by the caller.
	ExtractionUnreachable ExtractionKind = "unreachable"
	// ExtractionUnparsable means the page was fetched but no listing could be read from it.
	ExtractionUnparsable ExtractionKind = "unparsable"
	// ExtractionBlocked means the source refused the fetch (captcha, 403, robots).
	ExtractionBlocked ExtractionKind = "blocked"
)

// IsValid reports whether the kind is one of the defined kinds
func (k ExtractionKind) IsValid() bool {
	switch k {
	case ExtractionUnreachable, ExtractionUnparsable, ExtractionBlocked:
		return true
	}
	return false
}

// ExtractionError is returned by an Extractor when no candidate could be produced
type ExtractionError struct {
	Kind    ExtractionKind
	URL     string
	Message string
	Err     error
}

// NewExtractionError creates a new ExtractionError
func NewExtractionError(kind ExtractionKind, url, message string, err error) *ExtractionError {
	return &ExtractionError{Kind: kind, URL: url, Message: message, Err: err}
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction %s for %s: %s: %v", e.Kind, e.URL, e.Message, e.Err)
	}
	return fmt.Sprintf("extraction %s for %s: %s", e.Kind, e.URL, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying the same URL later might succeed
func (e *ExtractionError) Transient() bool {
	return e.Kind == ExtractionUnreachable
}

// AsExtractionError unwraps err into an ExtractionError.
// Errors of any other type are reported as unreachable, since the extractor did not answer.
func AsExtractionError(url string, err error) *ExtractionError {
	var extErr *ExtractionError
	if errors.As(err, &extErr) {
		return extErr
	}
	return NewExtractionError(ExtractionUnreachable, url, "extractor call failed", err)
}

// Extractor turns a source URL into a structured candidate listing.
// The parsing heuristics are opaque to this package.
type Extractor interface {
	Extract(ctx context.Context, sourceURL string) (*CandidateListing, error)
}
