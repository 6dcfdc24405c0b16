package listing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApprovalPolicy_Classify(t *testing.T) {
	policy, err := NewApprovalPolicy(Thresholds{Duplicate: 0.8, Quality: 0.9}, nil)
	require.NoError(t, err)

	candidate := newTestCandidate()
	existing := uuid.New()

	t.Run("suspected duplicate goes to review", func(t *testing.T) {
		matches := RankedMatches{{MatchedID: existing, Score: 0.92}}
		assert.Equal(t, DecisionReview, policy.Classify(candidate, matches))
	})

	t.Run("distinct candidate is auto-approved", func(t *testing.T) {
		matches := RankedMatches{{MatchedID: existing, Score: 0.3}}
		assert.Equal(t, DecisionAutoApprove, policy.Classify(candidate, matches))
	})

	t.Run("score equal to threshold goes to review", func(t *testing.T) {
		matches := RankedMatches{{MatchedID: existing, Score: 0.8}}
		assert.Equal(t, DecisionReview, policy.Classify(candidate, matches))
	})

	t.Run("low confidence goes to review", func(t *testing.T) {
		c := newTestCandidate()
		c.Confidence = 0.5
		assert.Equal(t, DecisionReview, policy.Classify(c, RankedMatches{}))
	})
}

func TestApprovalPolicy_CategoryOverride(t *testing.T) {
	policy, err := NewApprovalPolicy(
		Thresholds{Duplicate: 0.8, Quality: 0.9},
		map[string]Thresholds{"Kitchen": {Duplicate: 0.5, Quality: 0.9}},
	)
	require.NoError(t, err)

	candidate := newTestCandidate()
	matches := RankedMatches{{MatchedID: uuid.New(), Score: 0.6}}
	assert.Equal(t, DecisionReview, policy.Classify(candidate, matches))

	candidate.Fields.Category = "garden"
	assert.Equal(t, DecisionAutoApprove, policy.Classify(candidate, matches))
}

func TestNewApprovalPolicy_Invalid(t *testing.T) {
	_, err := NewApprovalPolicy(Thresholds{Duplicate: 1.2, Quality: 0.9}, nil)
	assert.Error(t, err)

	_, err = NewApprovalPolicy(Thresholds{Duplicate: 0.8, Quality: 0.9}, map[string]Thresholds{"x": {Duplicate: 0.5, Quality: -1}})
	assert.Error(t, err)
}
