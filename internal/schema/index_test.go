package schema

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocuments() []Document {
	return []Document{
		{
			Table:       "matches",
			Description: "match results with home and away scores per gameweek",
			Aliases:     []string{"games", "fixtures", "results"},
		},
		{
			Table:       "matches",
			Column:      "home_score",
			Description: "goals scored by the home team",
			DataType:    "INTEGER",
		},
		{
			Table:       "matches",
			Column:      "away_score",
			Description: "goals scored by the away team",
			DataType:    "INTEGER",
		},
		{
			Table:       "players",
			Description: "player information including position and team",
			Aliases:     []string{"squad", "footballers"},
		},
		{
			Table:       "players",
			Column:      "position",
			Description: "playing position: GK, DEF, MID or FWD",
			DataType:    "VARCHAR",
			Aliases:     []string{"goalkeeper", "defender", "midfielder", "striker", "forward"},
		},
	}
}

func TestSearchRanksRelevantDocumentsFirst(t *testing.T) {
	ix := NewIndex(testDocuments(), "v1")

	results := ix.Search("goals scored by the home team", 3)
	require.NotEmpty(t, results)
	assert.Equal(t, "matches.home_score", results[0].ID())
}

func TestSearchAliasMatch(t *testing.T) {
	ix := NewIndex(testDocuments(), "v1")

	results := ix.Search("which striker", 2)
	require.NotEmpty(t, results)
	assert.Equal(t, "players.position", results[0].ID())
}

func TestSearchDeterministic(t *testing.T) {
	ix := NewIndex(testDocuments(), "v1")

	first := ix.Search("goals per match", 5)
	for range 10 {
		again := ix.Search("goals per match", 5)
		assert.Equal(t, first, again)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	ix := NewIndex(testDocuments(), "v1")

	assert.Nil(t, ix.Search("", 5))
	assert.Nil(t, ix.Search("goals", 0))
}

func TestCatalogIsAuthoritative(t *testing.T) {
	ix := NewIndex(testDocuments(), "v1")

	catalog := ix.Catalog()
	assert.ElementsMatch(t, []string{"home_score", "away_score"}, catalog["matches"])
	assert.ElementsMatch(t, []string{"position"}, catalog["players"])

	// Mutating the returned catalog must not affect the index
	catalog["matches"] = append(catalog["matches"], "bogus")
	assert.Len(t, ix.Catalog()["matches"], 2)
}

func TestRebuildSwapsVersionAtomically(t *testing.T) {
	ix := NewIndex(testDocuments(), "v1")
	assert.Equal(t, "v1", ix.Version())

	ix.Rebuild([]Document{{Table: "teams", Column: "name", Description: "team name"}}, "v2")

	assert.Equal(t, "v2", ix.Version())
	assert.Contains(t, ix.Catalog(), "teams")
	assert.NotContains(t, ix.Catalog(), "matches")
}

func TestConcurrentSearchDuringRebuild(t *testing.T) {
	ix := NewIndex(testDocuments(), "v1")

	var wg sync.WaitGroup

	for i := range 8 {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			for range 100 {
				if n%2 == 0 {
					ix.Rebuild(testDocuments(), "v1")
				} else {
					_ = ix.Search("goals scored", 3)
					_ = ix.Catalog()
				}
			}
		}(i)
	}

	wg.Wait()
	assert.Equal(t, "v1", ix.Version())
}

type stubProvider struct {
	docs    []Document
	version string
	err     error
}

func (p *stubProvider) CurrentSchema(_ context.Context) ([]Document, string, error) {
	return p.docs, p.version, p.err
}

func TestNewIndexFromProvider(t *testing.T) {
	ix, err := NewIndexFromProvider(context.Background(), &stubProvider{
		docs:    testDocuments(),
		version: "abc123",
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", ix.Version())
}

func TestNewIndexFromProviderError(t *testing.T) {
	_, err := NewIndexFromProvider(context.Background(), &stubProvider{err: errors.New("offline")})
	assert.Error(t, err)
}
