// Package match reconciles person candidates returned by independent sources
// into a single identity.
package match

import (
	"strings"

	"golang.org/x/text/cases"
)

// DefaultThreshold is the score a pair must exceed to count as the same person.
const DefaultThreshold = 0.8

// Candidate is a person as reported by one source.
type Candidate struct {
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
	Title        string `json:"title,omitempty"`
	LinkedInURL  string `json:"linkedin_url,omitempty"`
	Source       string `json:"source,omitempty"`
}

// Scorer rates how likely two candidates describe the same person.
type Scorer interface {
	Score(a, b Candidate) float64
}

// Weights are the contributions of each exact-match signal.
type Weights struct {
	Name         float64
	Organization float64
	Title        float64
}

// DefaultWeights give name 0.4 and organization and title 0.3 each.
var DefaultWeights = Weights{Name: 0.4, Organization: 0.3, Title: 0.3}

// ExactScorer sums weights for fields that are equal after normalization.
// There is no partial credit.
type ExactScorer struct {
	Weights Weights
}

// NewExactScorer returns an ExactScorer with DefaultWeights.
func NewExactScorer() ExactScorer {
	return ExactScorer{Weights: DefaultWeights}
}

// Score implements Scorer.
func (s ExactScorer) Score(a, b Candidate) float64 {
	var score float64
	if equalFold(a.Name, b.Name) {
		score += s.Weights.Name
	}
	if equalFold(a.Organization, b.Organization) {
		score += s.Weights.Organization
	}
	if equalFold(a.Title, b.Title) {
		score += s.Weights.Title
	}
	return score
}

// Match is the pair accepted by a Matcher.
type Match struct {
	A     Candidate
	B     Candidate
	Score float64
}

// Matcher finds the first cross-list pair scoring above Threshold.
type Matcher struct {
	Scorer    Scorer
	Threshold float64
}

// New creates a Matcher with the exact scorer and default threshold.
func New() *Matcher {
	return &Matcher{Scorer: NewExactScorer(), Threshold: DefaultThreshold}
}

// Best walks a in order and, for each, b in order, returning the first pair
// whose score exceeds the threshold. Later, possibly better pairs are not
// considered.
func (m *Matcher) Best(a, b []Candidate) (Match, bool) {
	for _, ca := range a {
		for _, cb := range b {
			score := m.Scorer.Score(ca, cb)
			if score > m.Threshold {
				return Match{A: ca, B: cb, Score: score}, true
			}
		}
	}
	return Match{}, false
}

// Normalize case-folds s and collapses internal whitespace. A Caser holds
// state, so one is built per call.
func Normalize(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// equalFold compares normalized values; empty values never match.
func equalFold(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	return na != "" && na == nb
}
