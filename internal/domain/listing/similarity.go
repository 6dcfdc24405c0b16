package listing

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultTopK is the number of matches kept per candidate
const DefaultTopK = 5

// Match is one scored comparison between a candidate and a corpus entry
type Match struct {
	MatchedID uuid.UUID `json:"matched_id"`
	Score     float64   `json:"score"`
}

// RankedMatches is sorted by Score descending
type RankedMatches []Match

// TopScore returns the best score, or 0 when empty
func (r RankedMatches) TopScore() float64 {
	if len(r) == 0 {
		return 0
	}
	return r[0].Score
}

// CorpusEntry is an existing record the candidate is compared against
type CorpusEntry struct {
	ID     uuid.UUID
	Fields FieldSet
}

// Scorer compares a candidate against a corpus snapshot
type Scorer interface {
	Score(candidate FieldSet, corpus []CorpusEntry) RankedMatches
}

// ScoreWeights sets how much each signal contributes to the final score.
// Signals unavailable on either side are left out and the remaining weights renormalized.
type ScoreWeights struct {
	Title       float64
	Description float64
	Price       float64
	Image       float64
}

// DefaultScoreWeights favors title text and image identity
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Title: 0.45, Description: 0.15, Price: 0.15, Image: 0.25}
}

// SimilarityScorer is a deterministic Scorer: identical inputs always give identical output.
type SimilarityScorer struct {
	topK           int
	weights        ScoreWeights
	priceTolerance decimal.Decimal
}

// ScorerOption configures a SimilarityScorer
type ScorerOption func(*SimilarityScorer)

// WithTopK overrides how many matches are returned
func WithTopK(k int) ScorerOption {
	return func(s *SimilarityScorer) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithWeights overrides the signal weights
func WithWeights(w ScoreWeights) ScorerOption {
	return func(s *SimilarityScorer) {
		s.weights = w
	}
}

// WithPriceTolerance sets the relative difference under which prices count as near-equal
func WithPriceTolerance(tolerance decimal.Decimal) ScorerOption {
	return func(s *SimilarityScorer) {
		s.priceTolerance = tolerance
	}
}

// NewSimilarityScorer creates a new SimilarityScorer
func NewSimilarityScorer(opts ...ScorerOption) *SimilarityScorer {
	s := &SimilarityScorer{
		topK:           DefaultTopK,
		weights:        DefaultScoreWeights(),
		priceTolerance: decimal.NewFromFloat(0.02),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score ranks corpus entries by similarity to the candidate.
// An empty corpus yields an empty, non-nil result.
func (s *SimilarityScorer) Score(candidate FieldSet, corpus []CorpusEntry) RankedMatches {
	matches := make(RankedMatches, 0, len(corpus))
	if len(corpus) == 0 {
		return matches
	}

	cand := newScoringInput(candidate)
	for _, entry := range corpus {
		score := s.compare(cand, newScoringInput(entry.Fields))
		if score <= 0 {
			continue
		}
		matches = append(matches, Match{MatchedID: entry.ID, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].MatchedID.String() < matches[j].MatchedID.String()
	})

	if len(matches) > s.topK {
		matches = matches[:s.topK]
	}
	return matches
}

type scoringInput struct {
	title       map[string]struct{}
	description map[string]struct{}
	price       decimal.Decimal
	hashes      map[string]struct{}
}

func newScoringInput(f FieldSet) scoringInput {
	hashes := make(map[string]struct{}, len(f.ImageHashes))
	for _, h := range f.ImageHashes {
		if n := normalizeHash(h); n != "" {
			hashes[n] = struct{}{}
		}
	}
	return scoringInput{
		title:       tokenize(f.Title),
		description: tokenize(f.Description),
		price:       f.Price.Round(2),
		hashes:      hashes,
	}
}

func (s *SimilarityScorer) compare(a, b scoringInput) float64 {
	var total, weight float64

	if len(a.title) > 0 && len(b.title) > 0 {
		total += s.weights.Title * jaccard(a.title, b.title)
		weight += s.weights.Title
	}
	if len(a.description) > 0 && len(b.description) > 0 {
		total += s.weights.Description * jaccard(a.description, b.description)
		weight += s.weights.Description
	}
	if a.price.IsPositive() && b.price.IsPositive() {
		total += s.weights.Price * s.priceSimilarity(a.price, b.price)
		weight += s.weights.Price
	}
	if len(a.hashes) > 0 && len(b.hashes) > 0 {
		total += s.weights.Image * imageSimilarity(a.hashes, b.hashes)
		weight += s.weights.Image
	}

	if weight == 0 {
		return 0
	}
	return roundScore(total / weight)
}

// priceSimilarity is 1 for equal prices, 0.5 within tolerance, 0 otherwise
func (s *SimilarityScorer) priceSimilarity(a, b decimal.Decimal) float64 {
	if a.Equal(b) {
		return 1
	}
	diff := a.Sub(b).Abs().Div(decimal.Max(a, b))
	if diff.LessThanOrEqual(s.priceTolerance) {
		return 0.5
	}
	return 0
}

// imageSimilarity is 1 when any image hash is shared
func imageSimilarity(a, b map[string]struct{}) float64 {
	for h := range a {
		if _, ok := b[h]; ok {
			return 1
		}
	}
	return 0
}

func roundScore(v float64) float64 {
	v = math.Round(v*10000) / 10000
	return math.Max(0, math.Min(1, v))
}
