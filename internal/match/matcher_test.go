package match

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExactScorer_Score(t *testing.T) {
	t.Parallel()

	base := Candidate{Name: "Jane Doe", Organization: "Acme", Title: "CTO"}
	tests := []struct {
		name string
		b    Candidate
		want float64
	}{
		{"all three", Candidate{Name: "jane doe", Organization: "ACME", Title: "cto"}, 1.0},
		{"name and title", Candidate{Name: "Jane Doe", Organization: "Other Co", Title: "CTO"}, 0.7},
		{"name and org", Candidate{Name: "Jane  Doe", Organization: "Acme", Title: "CEO"}, 0.7},
		{"org and title", Candidate{Name: "John Roe", Organization: "Acme", Title: "CTO"}, 0.6},
		{"name only", Candidate{Name: "Jane Doe"}, 0.4},
		{"title only", Candidate{Name: "X", Title: "CTO"}, 0.3},
		{"nothing", Candidate{Name: "X"}, 0},
	}

	s := NewExactScorer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, s.Score(base, tt.b), 1e-9)
		})
	}
}

func TestExactScorer_EmptyFieldsNeverMatch(t *testing.T) {
	t.Parallel()

	s := NewExactScorer()
	assert.Zero(t, s.Score(Candidate{}, Candidate{}))
	assert.InDelta(t, 0.4, s.Score(Candidate{Name: "A"}, Candidate{Name: "a"}), 1e-9)
}

func TestMatcher_Best(t *testing.T) {
	t.Parallel()

	apollo := []Candidate{{Name: "Jane Doe", Organization: "Acme", Title: "CTO", Source: "apollo"}}

	t.Run("full match", func(t *testing.T) {
		alt := []Candidate{{Name: "jane doe", Organization: "Acme", Title: "CTO", LinkedInURL: "https://linkedin.com/in/janedoe"}}
		m, ok := New().Best(apollo, alt)
		require.True(t, ok)
		assert.InDelta(t, 1.0, m.Score, 1e-9)
		assert.Equal(t, "https://linkedin.com/in/janedoe", m.B.LinkedInURL)
		assert.Equal(t, "apollo", m.A.Source)
	})

	t.Run("name and title only is rejected", func(t *testing.T) {
		alt := []Candidate{{Name: "Jane Doe", Organization: "Other Co", Title: "CTO"}}
		_, ok := New().Best(apollo, alt)
		assert.False(t, ok)
	})

	t.Run("first match above threshold wins", func(t *testing.T) {
		a := []Candidate{
			{Name: "Jane Doe", Organization: "Acme", Title: "CTO"},
			{Name: "Jane Doe", Organization: "Beta", Title: "CEO"},
		}
		b := []Candidate{
			{Name: "Jane Doe", Organization: "Beta", Title: "CEO", Source: "first"},
			{Name: "Jane Doe", Organization: "Acme", Title: "CTO", Source: "second"},
		}
		m, ok := New().Best(a, b)
		require.True(t, ok)
		assert.Equal(t, "second", m.B.Source)
		assert.Equal(t, "Acme", m.A.Organization)
	})

	t.Run("empty lists", func(t *testing.T) {
		_, ok := New().Best(nil, apollo)
		assert.False(t, ok)
		_, ok = New().Best(apollo, nil)
		assert.False(t, ok)
	})
}

type constScorer float64

func (c constScorer) Score(Candidate, Candidate) float64 { return float64(c) }

func TestMatcher_PluggableScorer(t *testing.T) {
	t.Parallel()

	m := &Matcher{Scorer: constScorer(0.9), Threshold: DefaultThreshold}
	got, ok := m.Best([]Candidate{{Name: "a"}}, []Candidate{{Name: "b"}})
	require.True(t, ok)
	assert.InDelta(t, 0.9, got.Score, 1e-9)
}

func TestProperty_ScoreDomain(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	allowed := []float64{0, 0.3, 0.4, 0.6, 0.7, 1.0}
	field := gen.OneConstOf("", "Acme", "acme", "Beta", "CTO", "cto", "Jane Doe", "jane doe")
	candidate := gopter.CombineGens(field, field, field).Map(func(v []any) Candidate {
		return Candidate{Name: v[0].(string), Organization: v[1].(string), Title: v[2].(string)}
	})

	properties.Property("score is a sum of at most three weights", prop.ForAll(
		func(a, b Candidate) bool {
			score := NewExactScorer().Score(a, b)
			for _, v := range allowed {
				if score > v-1e-9 && score < v+1e-9 {
					return true
				}
			}
			return false
		},
		candidate, candidate,
	))

	properties.Property("a match is returned only for a full score", prop.ForAll(
		func(a, b Candidate) bool {
			m, ok := New().Best([]Candidate{a}, []Candidate{b})
			if !ok {
				return NewExactScorer().Score(a, b) < 1.0-1e-9
			}
			return m.Score > 1.0-1e-9
		},
		candidate, candidate,
	))

	properties.TestingRun(t)
}
