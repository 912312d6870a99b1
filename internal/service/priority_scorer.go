package service

import "time"

// ScoreCandidate is what the scorer needs to know about a request competing for a section.
type ScoreCandidate struct {
	RequestID      string
	PreferenceRank int
	PriorityScore  float64
	CreatedAt      time.Time
}

// PriorityScorer turns preference rank and priority score into an admission order.
// It is pure and safe for concurrent use.
type PriorityScorer struct {
	preferenceWeight float64
	priorityWeight   float64
}

// NewPriorityScorer builds a scorer. Non-positive weights fall back to 10 and 1.
func NewPriorityScorer(preferenceWeight, priorityWeight float64) PriorityScorer {
	if preferenceWeight <= 0 {
		preferenceWeight = 10
	}
	if priorityWeight <= 0 {
		priorityWeight = 1
	}
	return PriorityScorer{preferenceWeight: preferenceWeight, priorityWeight: priorityWeight}
}

// Score is W2*priorityScore - W1*(rank-1); higher is admitted first.
func (p PriorityScorer) Score(c ScoreCandidate) float64 {
	rank := c.PreferenceRank
	if rank < 1 {
		rank = 1
	}
	return p.priorityWeight*c.PriorityScore - p.preferenceWeight*float64(rank-1)
}

// Less orders a before b: higher score, then earlier submission, then lower id.
func (p PriorityScorer) Less(a, b ScoreCandidate) bool {
	sa, sb := p.Score(a), p.Score(b)
	if sa != sb {
		return sa > sb
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.RequestID < b.RequestID
}
