package proseql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAggregateScalar(t *testing.T) {
	entities := []M{
		{"score": float64(-5)},
		{"score": float64(10)},
		{"score": float64(3)},
	}
	results := runAggregate(entities, AggregateSpec{Count: true, Sum: []string{"score"}, Min: []string{"score"}, Max: []string{"score"}})
	require.Len(t, results, 1)
	r := results[0]
	assert.Nil(t, r.Group)
	assert.Equal(t, 3, r.Count)
	assert.Equal(t, float64(8), r.Sum["score"])
	assert.Equal(t, float64(-5), r.Min["score"]) // first-observation negative min must not be clamped at zero
	assert.Equal(t, float64(10), r.Max["score"])
}

func TestRunAggregateAvg(t *testing.T) {
	entities := []M{{"score": float64(2)}, {"score": float64(4)}}
	results := runAggregate(entities, AggregateSpec{Avg: []string{"score"}})
	require.Len(t, results, 1)
	assert.Equal(t, float64(3), results[0].Avg["score"])
}

func TestRunAggregateGroupBy(t *testing.T) {
	entities := []M{
		{"team": "a", "score": float64(1)},
		{"team": "a", "score": float64(2)},
		{"team": "b", "score": float64(10)},
	}
	results := runAggregate(entities, AggregateSpec{Count: true, Sum: []string{"score"}, GroupBy: []string{"team"}})
	require.Len(t, results, 2)

	byTeam := map[string]AggregateResult{}
	for _, r := range results {
		byTeam[r.Group["team"].(string)] = r
	}
	assert.Equal(t, 2, byTeam["a"].Count)
	assert.Equal(t, float64(3), byTeam["a"].Sum["score"])
	assert.Equal(t, 1, byTeam["b"].Count)
}
