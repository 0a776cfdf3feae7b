package optimize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlball/sqlball/internal/validate"
)

func testCatalog() map[string][]string {
	return map[string][]string{
		"teams":   {"id", "name", "founded"},
		"players": {"id", "name", "position", "team"},
		"matches": {"id", "home_team", "away_team", "home_score", "away_score", "season", "gameweek"},
	}
}

func newOptimizer() *Optimizer {
	return New(validate.New())
}

func TestAnalyzeAddsLimit(t *testing.T) {
	advice := newOptimizer().Analyze("SELECT name FROM teams", testCatalog())

	assert.Equal(t, "SELECT name FROM teams LIMIT 100", advice.Optimized)
	require.Len(t, advice.Applied, 1)
	assert.Equal(t, "add-limit", advice.Applied[0].Rule)
	assert.NotEmpty(t, advice.Applied[0].Rationale)
}

func TestAnalyzeKeepsExistingLimit(t *testing.T) {
	advice := newOptimizer().Analyze("SELECT name FROM teams LIMIT 5", testCatalog())

	assert.Equal(t, "SELECT name FROM teams LIMIT 5", advice.Optimized)
	assert.Empty(t, advice.Applied)
}

func TestAnalyzeSkipsLimitForAggregates(t *testing.T) {
	advice := newOptimizer().Analyze("SELECT COUNT(*) FROM matches", testCatalog())

	assert.Equal(t, "SELECT COUNT(*) FROM matches", advice.Optimized)
	assert.Empty(t, advice.Applied)
}

func TestAnalyzeDropsDistinctOnId(t *testing.T) {
	advice := newOptimizer().Analyze("SELECT DISTINCT id, name FROM teams LIMIT 10", testCatalog())

	assert.Equal(t, "SELECT id, name FROM teams LIMIT 10", advice.Optimized)
	require.Len(t, advice.Applied, 1)
	assert.Equal(t, "push-down-distinct", advice.Applied[0].Rule)
}

func TestAnalyzeRewritesStillValidate(t *testing.T) {
	v := validate.New()
	o := New(v)
	catalog := testCatalog()

	queries := []string{
		"SELECT name FROM teams",
		"SELECT DISTINCT id, name FROM players",
		"SELECT home_team, away_team FROM matches WHERE gameweek = 3",
	}

	for _, q := range queries {
		advice := o.Analyze(q, catalog)
		report := v.Validate(advice.Optimized, catalog)
		assert.True(t, report.Valid, "optimized form of %q must validate: %v", q, report.Errors)
	}
}

func TestAnalyzeSuggestions(t *testing.T) {
	advice := newOptimizer().Analyze(
		"SELECT * FROM players WHERE name LIKE '%son' ORDER BY name", testCatalog())

	assert.NotEmpty(t, advice.Suggestions)

	joined := ""
	for _, s := range advice.Suggestions {
		joined += s + "\n"
	}

	assert.Contains(t, joined, "SELECT *")
	assert.Contains(t, joined, "wildcard")
}

func TestAnalyzeIndexSuggestions(t *testing.T) {
	advice := newOptimizer().Analyze(
		"SELECT p.name FROM players p WHERE p.team = 'Arsenal' ORDER BY p.name LIMIT 10",
		testCatalog())

	assert.Contains(t, advice.Indexes, "CREATE INDEX IF NOT EXISTS idx_players_team ON players(team)")
	assert.Contains(t, advice.Indexes, "CREATE INDEX IF NOT EXISTS idx_players_name ON players(name)")
}

func TestAnalyzeIndexSuggestionsSkipUnknownColumns(t *testing.T) {
	advice := newOptimizer().Analyze(
		"SELECT name FROM teams WHERE budget > 100", testCatalog())

	assert.Empty(t, advice.Indexes)
}

func TestAnalyzeAdviceIsAdvisory(t *testing.T) {
	// a rewrite that does not validate is dropped and the original kept
	advice := newOptimizer().Analyze("SELECT shoe_size FROM teams", testCatalog())

	assert.Equal(t, "SELECT shoe_size FROM teams", advice.Optimized)
	assert.Empty(t, advice.Applied)
}

func TestSuggestAntiPatterns(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			"not in subquery",
			"SELECT name FROM players WHERE team NOT IN (SELECT name FROM teams WHERE city = 'London')",
			"NOT EXISTS",
		},
		{
			"comma join",
			"SELECT p.name FROM players p, teams t WHERE p.team = t.name",
			"implicit cross join",
		},
		{
			"function on column in predicate",
			"SELECT name FROM players WHERE LOWER(name) = 'mohamed salah'",
			"prevents index use",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			advice := newOptimizer().Analyze(tt.sql, testCatalog())

			joined := ""
			for _, s := range advice.Suggestions {
				joined += s + "\n"
			}

			assert.Contains(t, joined, tt.want)
		})
	}
}

func TestClassifyQuery(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{"SELECT team, SUM(goals_scored) FROM player_stats GROUP BY team", "aggregation"},
		{"SELECT COUNT(*) FROM matches", "aggregation"},
		{"SELECT p.name FROM players p JOIN teams t ON p.team = t.name", "join"},
		{"SELECT name FROM players ORDER BY age DESC", "sorting"},
		{"SELECT name FROM players WHERE position = 'GK'", "filtering"},
		{"SELECT name FROM teams", "simple"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyQuery(tt.sql))
		})
	}
}

func TestTypeSuggestions(t *testing.T) {
	suggestions, ok := TypeSuggestions("sorting")
	require.True(t, ok)
	assert.NotEmpty(t, suggestions)

	_, ok = TypeSuggestions("mystery")
	assert.False(t, ok)
}

func TestAnalyzeTagsQueryType(t *testing.T) {
	advice := newOptimizer().Analyze(
		"SELECT team, SUM(goals_scored) FROM player_stats GROUP BY team", testCatalog())

	assert.Equal(t, "aggregation", advice.QueryType)
}
