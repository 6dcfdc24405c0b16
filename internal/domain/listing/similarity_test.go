package listing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func corpusOf(fields ...FieldSet) []CorpusEntry {
	entries := make([]CorpusEntry, len(fields))
	for i, f := range fields {
		entries[i] = CorpusEntry{ID: uuid.New(), Fields: f}
	}
	return entries
}

func TestSimilarityScorer_EmptyCorpus(t *testing.T) {
	s := NewSimilarityScorer()
	matches := s.Score(newTestCandidate().Fields, nil)
	require.NotNil(t, matches)
	assert.Empty(t, matches)
	assert.Equal(t, 0.0, matches.TopScore())
}

func TestSimilarityScorer_IdenticalScoresOne(t *testing.T) {
	s := NewSimilarityScorer()
	candidate := newTestCandidate().Fields
	corpus := corpusOf(candidate)

	matches := s.Score(candidate, corpus)
	require.Len(t, matches, 1)
	assert.Equal(t, corpus[0].ID, matches[0].MatchedID)
	assert.Equal(t, 1.0, matches[0].Score)
}

func TestSimilarityScorer_NormalizesText(t *testing.T) {
	s := NewSimilarityScorer()
	a := FieldSet{Title: "Café Crème Mug"}
	b := FieldSet{Title: "CAFE creme mug!"}

	matches := s.Score(a, corpusOf(b))
	require.Len(t, matches, 1)
	assert.Equal(t, 1.0, matches[0].Score)
}

func TestSimilarityScorer_UnrelatedExcluded(t *testing.T) {
	s := NewSimilarityScorer()
	candidate := newTestCandidate().Fields
	unrelated := FieldSet{
		Title:       "Steel Garden Hose Reel",
		Description: "Wall mounted reel",
		Price:       decimal.NewFromInt(80),
		ImageHashes: []string{"ff00"},
	}

	matches := s.Score(candidate, corpusOf(unrelated))
	assert.Empty(t, matches)
}

func TestSimilarityScorer_RanksAndTruncates(t *testing.T) {
	s := NewSimilarityScorer(WithTopK(3))
	candidate := newTestCandidate().Fields

	var fields []FieldSet
	for i := 0; i < 6; i++ {
		f := candidate
		f.ImageHashes = nil
		f.Description = ""
		f.Price = decimal.NewFromFloat(19.50)
		fields = append(fields, f)
	}
	fields[2].Title = "Ceramic Coffee Mug"
	fields = append(fields, candidate)
	corpus := corpusOf(fields...)

	matches := s.Score(candidate, corpus)
	require.Len(t, matches, 3)
	assert.Equal(t, corpus[6].ID, matches[0].MatchedID)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
}

func TestSimilarityScorer_Deterministic(t *testing.T) {
	s := NewSimilarityScorer()
	candidate := newTestCandidate().Fields
	base := candidate
	base.Title = "Ceramic Coffee Dripper"
	other := candidate
	other.Price = decimal.NewFromFloat(20.10)
	corpus := corpusOf(base, other, candidate)

	first := s.Score(candidate, corpus)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, s.Score(candidate, corpus))
	}
}

func TestSimilarityScorer_PriceNearMatch(t *testing.T) {
	s := NewSimilarityScorer()
	a := FieldSet{Price: decimal.NewFromFloat(10.00)}
	near := FieldSet{Price: decimal.NewFromFloat(10.10)}
	far := FieldSet{Price: decimal.NewFromFloat(15.00)}

	matches := s.Score(a, corpusOf(near, far))
	require.Len(t, matches, 1)
	assert.Equal(t, 0.5, matches[0].Score)
}
