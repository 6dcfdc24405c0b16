package listing

import (
	"errors"
	"strings"
)

// Decision is the outcome of the approval policy
type Decision string

const (
	DecisionAutoApprove Decision = "auto_approve"
	DecisionReview      Decision = "review"
)

// Thresholds holds the two numbers the auto-approval rule compares against
type Thresholds struct {
	// Duplicate is the similarity score at or above which a candidate is a suspected duplicate
	Duplicate float64
	// Quality is the extraction confidence a candidate must exceed
	Quality float64
}

// Validate checks both thresholds lie in [0,1]
func (t Thresholds) Validate() error {
	if t.Duplicate < 0 || t.Duplicate > 1 {
		return errors.New("listing: duplicate threshold must be within [0,1]")
	}
	if t.Quality < 0 || t.Quality > 1 {
		return errors.New("listing: quality threshold must be within [0,1]")
	}
	return nil
}

// ApprovalPolicy classifies scored candidates. Category overrides are matched case-insensitively.
type ApprovalPolicy struct {
	defaults  Thresholds
	overrides map[string]Thresholds
}

// NewApprovalPolicy creates an ApprovalPolicy
func NewApprovalPolicy(defaults Thresholds, overrides map[string]Thresholds) (*ApprovalPolicy, error) {
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	normalized := make(map[string]Thresholds, len(overrides))
	for category, t := range overrides {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		normalized[strings.ToLower(strings.TrimSpace(category))] = t
	}
	return &ApprovalPolicy{defaults: defaults, overrides: normalized}, nil
}

// ThresholdsFor returns the thresholds that apply to a category
func (p *ApprovalPolicy) ThresholdsFor(category string) Thresholds {
	if t, ok := p.overrides[strings.ToLower(strings.TrimSpace(category))]; ok {
		return t
	}
	return p.defaults
}

// Classify auto-approves only when the best match is below the duplicate
// threshold and extraction confidence is above the quality threshold.
func (p *ApprovalPolicy) Classify(candidate *CandidateListing, matches RankedMatches) Decision {
	t := p.ThresholdsFor(candidate.Fields.Category)
	if matches.TopScore() < t.Duplicate && candidate.Confidence > t.Quality {
		return DecisionAutoApprove
	}
	return DecisionReview
}
