package synth

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlball/sqlball/internal/schema"
	"github.com/sqlball/sqlball/internal/testutil"
	"github.com/sqlball/sqlball/internal/vocab"
)

func testBundle() ContextBundle {
	return ContextBundle{
		RawQuestion:        "top scorers this season",
		NormalizedQuestion: "top scorers this season [schema hints: top scorer -> ORDER BY goals_scored DESC]",
		Documents: []schema.Document{
			{Table: "player_stats", Description: "per-season player statistics"},
			{Table: "player_stats", Column: "goals_scored", DataType: "INTEGER", Description: "goals scored across the season", Aliases: []string{"goals"}},
		},
	}
}

func TestSynthesizeReturnsExtractedSQL(t *testing.T) {
	gen := testutil.NewMockGenerator(testutil.WithResponses(
		"```sql\nSELECT name, goals_scored FROM player_stats ORDER BY goals_scored DESC LIMIT 10\n```",
	))
	s := NewSynthesizer(gen, 1000, 6000, 10)

	result, err := s.Synthesize(context.Background(), testBundle(), "")
	require.NoError(t, err)

	assert.Equal(t, "SELECT name, goals_scored FROM player_stats ORDER BY goals_scored DESC LIMIT 10", result.SQL)
	assert.False(t, result.Fallback)
	assert.InDelta(t, 1.0, result.Confidence, 0.001)
}

func TestSynthesizePromptContainsSchemaAndQuestion(t *testing.T) {
	gen := testutil.NewMockGenerator(testutil.WithResponses("SELECT 1"))
	s := NewSynthesizer(gen, 1000, 6000, 10)

	_, err := s.Synthesize(context.Background(), testBundle(), "")
	require.NoError(t, err)

	prompts := gen.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "player_stats.goals_scored")
	assert.Contains(t, prompts[0], "also known as: goals")
	assert.Contains(t, prompts[0], "Question: top scorers this season")
}

func TestSynthesizeIncludesFeedback(t *testing.T) {
	gen := testutil.NewMockGenerator(testutil.WithResponses("SELECT 1"))
	s := NewSynthesizer(gen, 1000, 6000, 10)

	_, err := s.Synthesize(context.Background(), testBundle(), "unknown column: goals")
	require.NoError(t, err)

	assert.Contains(t, gen.Prompts()[0], "unknown column: goals")
}

func TestSynthesizeDropsLowRankedDocsOverBudget(t *testing.T) {
	bundle := testBundle()
	for i := 0; i < 50; i++ {
		bundle.Documents = append(bundle.Documents, schema.Document{
			Table:       "player_stats",
			Column:      fmt.Sprintf("filler_%02d", i),
			DataType:    "INTEGER",
			Description: strings.Repeat("very long filler description ", 10),
		})
	}

	gen := testutil.NewMockGenerator(testutil.WithResponses("SELECT 1"))
	s := NewSynthesizer(gen, 1000, 2000, 10)

	_, err := s.Synthesize(context.Background(), bundle, "")
	require.NoError(t, err)

	prompt := gen.Prompts()[0]
	assert.Less(t, len(prompt), 2200)
	assert.Contains(t, prompt, "player_stats")
	assert.NotContains(t, prompt, "filler_49")
}

func TestSynthesizeNoSQLInResponse(t *testing.T) {
	gen := testutil.NewMockGenerator(testutil.WithResponses("I cannot answer that question."))
	s := NewSynthesizer(gen, 1000, 6000, 10)

	_, err := s.Synthesize(context.Background(), testBundle(), "")
	assert.Error(t, err)
}

func TestSynthesizeFallsBackToSingleTableTemplate(t *testing.T) {
	gen := testutil.NewMockGenerator(testutil.WithErrors(fmt.Errorf("provider down")))
	s := NewSynthesizer(gen, 1000, 6000, 10)

	result, err := s.Synthesize(context.Background(), testBundle(), "")
	require.NoError(t, err)

	assert.True(t, result.Fallback)
	assert.Equal(t, "SELECT * FROM player_stats LIMIT 10", result.SQL)
	assert.InDelta(t, 0.2, result.Confidence, 0.001)
}

func TestSynthesizeNoFallbackAcrossTables(t *testing.T) {
	bundle := testBundle()
	bundle.Documents = append(bundle.Documents, schema.Document{Table: "matches", Description: "match results"})

	gen := testutil.NewMockGenerator(testutil.WithErrors(fmt.Errorf("provider down")))
	s := NewSynthesizer(gen, 1000, 6000, 10)

	_, err := s.Synthesize(context.Background(), bundle, "")
	assert.Error(t, err)
}

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "bare statement",
			raw:  "SELECT * FROM teams",
			want: "SELECT * FROM teams",
		},
		{
			name: "fenced block",
			raw:  "Here you go:\n```sql\nSELECT name FROM teams;\n```\nHope that helps!",
			want: "SELECT name FROM teams",
		},
		{
			name: "prose before statement",
			raw:  "The query is: SELECT COUNT(*) FROM matches",
			want: "SELECT COUNT(*) FROM matches",
		},
		{
			name: "cte",
			raw:  "WITH totals AS (SELECT SUM(home_score) s FROM matches) SELECT * FROM totals",
			want: "WITH totals AS (SELECT SUM(home_score) s FROM matches) SELECT * FROM totals",
		},
		{
			name: "trailing prose after semicolon",
			raw:  "SELECT name FROM teams; this lists every club",
			want: "SELECT name FROM teams",
		},
		{
			name: "no sql",
			raw:  "Sorry, I do not know.",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractSQL(tt.raw))
		})
	}
}

func TestScoreConfidence(t *testing.T) {
	base := scoreConfidence("SELECT * FROM teams LIMIT 10", "list teams")
	assert.InDelta(t, 1.0, base, 0.001)

	joins := scoreConfidence(
		"SELECT * FROM a JOIN b ON a.id = b.id JOIN c ON b.id = c.id", "list")
	assert.Less(t, joins, base)

	nested := scoreConfidence("SELECT * FROM (SELECT * FROM teams) t", "list")
	assert.Less(t, nested, base)

	hedged := scoreConfidence("SELECT * FROM teams", "maybe show me teams or something")
	assert.Less(t, hedged, base)

	floor := scoreConfidence(
		strings.Repeat("SELECT * FROM (SELECT 1) x JOIN y ON 1=1 ", 10), "maybe possibly roughly")
	assert.GreaterOrEqual(t, floor, 0.1)
}

func TestSynthesizeFallbackPrefersTerminologyTable(t *testing.T) {
	bundle := testBundle()
	bundle.Documents = append(bundle.Documents, schema.Document{Table: "matches", Description: "match results"})
	bundle.HintTables = []string{"player_stats"}

	gen := testutil.NewMockGenerator(testutil.WithErrors(fmt.Errorf("provider down")))
	s := NewSynthesizer(gen, 1000, 6000, 25)

	result, err := s.Synthesize(context.Background(), bundle, "")
	require.NoError(t, err)

	assert.True(t, result.Fallback)
	assert.Equal(t, "SELECT * FROM player_stats LIMIT 25", result.SQL)
}

func TestSynthesizeNoFallbackForAmbiguousTerminology(t *testing.T) {
	bundle := testBundle()
	bundle.HintTables = []string{"matches", "player_stats"}

	gen := testutil.NewMockGenerator(testutil.WithErrors(fmt.Errorf("provider down")))
	s := NewSynthesizer(gen, 1000, 6000, 10)

	_, err := s.Synthesize(context.Background(), bundle, "")
	assert.Error(t, err)
}

func TestBuildPromptCarriesGuidance(t *testing.T) {
	bundle := testBundle()
	bundle.TeamNames = []string{"Arsenal", "Tottenham"}
	bundle.Hints = vocab.Hints{
		OrderDesc:     true,
		NeedsGrouping: true,
		Gameweek:      7,
		DefaultLimit:  10,
	}

	gen := testutil.NewMockGenerator(testutil.WithResponses("SELECT 1"))
	s := NewSynthesizer(gen, 1000, 6000, 10)

	_, err := s.Synthesize(context.Background(), bundle, "")
	require.NoError(t, err)

	prompt := gen.Prompts()[0]
	assert.Contains(t, prompt, "order results descending")
	assert.Contains(t, prompt, "GROUP BY")
	assert.Contains(t, prompt, "gameweek 7")
	assert.Contains(t, prompt, "Arsenal, Tottenham")
}
