package service

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPriorityScorerScore(t *testing.T) {
	scorer := NewPriorityScorer(10, 1)
	assert.Equal(t, 20.0, scorer.Score(ScoreCandidate{PreferenceRank: 1, PriorityScore: 20}))
	assert.Equal(t, 10.0, scorer.Score(ScoreCandidate{PreferenceRank: 2, PriorityScore: 20}))

	defaults := NewPriorityScorer(0, -1)
	assert.Equal(t, scorer, defaults)
}

func TestPriorityScorerTotalOrder(t *testing.T) {
	scorer := NewPriorityScorer(10, 1)
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	candidates := []ScoreCandidate{
		{RequestID: "c", PreferenceRank: 1, PriorityScore: 10, CreatedAt: base},
		{RequestID: "b", PreferenceRank: 1, PriorityScore: 10, CreatedAt: base},
		{RequestID: "a", PreferenceRank: 1, PriorityScore: 10, CreatedAt: base.Add(time.Minute)},
		{RequestID: "d", PreferenceRank: 1, PriorityScore: 30, CreatedAt: base.Add(time.Hour)},
		{RequestID: "e", PreferenceRank: 3, PriorityScore: 30, CreatedAt: base},
	}

	for i := 0; i < 3; i++ {
		shuffled := append([]ScoreCandidate(nil), candidates...)
		for j := range shuffled {
			k := (j*7 + i) % len(shuffled)
			shuffled[j], shuffled[k] = shuffled[k], shuffled[j]
		}
		sort.Slice(shuffled, func(x, y int) bool { return scorer.Less(shuffled[x], shuffled[y]) })
		ids := make([]string, len(shuffled))
		for j, c := range shuffled {
			ids[j] = c.RequestID
		}
		assert.Equal(t, []string{"d", "b", "c", "e", "a"}, ids)
	}

	for _, c := range candidates {
		assert.False(t, scorer.Less(c, c), "order must be irreflexive")
	}
}
