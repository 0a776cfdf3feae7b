package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlball/sqlball/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(config.DatabaseConfig{
		Path:            ":memory:",
		MaxConnections:  4,
		MaxIdleConns:    2,
		ConnMaxLifetime: "30m",
		QueryTimeout:    "5s",
		MaxRows:         10000,
	})
	require.NoError(t, err)

	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Initialize(ctx))
	require.NoError(t, store.Seed(ctx))

	return store
}

func TestInitializeIsIdempotent(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Initialize(context.Background()))

	version, err := NewMigrationManager(store.db).GetCurrentVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestSeedSkipsExistingData(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	before, err := store.GetStats(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Seed(ctx))

	after, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 8, after.Teams)
	assert.Equal(t, 12, after.Players)
}

func TestExecuteReturnsRowsAsMaps(t *testing.T) {
	store := newTestStore(t)

	result, err := store.Execute(context.Background(),
		"SELECT name, position FROM players WHERE position = 'GK' ORDER BY name", 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "position"}, result.Columns)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "David Raya", result.Rows[0]["name"])
	assert.False(t, result.Truncated)
}

func TestExecuteTruncatesAtRowCap(t *testing.T) {
	store := newTestStore(t)

	result, err := store.Execute(context.Background(), "SELECT * FROM players ORDER BY id", 5)
	require.NoError(t, err)

	assert.Len(t, result.Rows, 5)
	assert.True(t, result.Truncated)
}

func TestExecuteSyntaxError(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Execute(context.Background(), "SELECT FROM WHERE", 0)
	assert.Error(t, err)
}

func TestExecuteAggregates(t *testing.T) {
	store := newTestStore(t)

	result, err := store.Execute(context.Background(),
		"SELECT home_team, SUM(home_score) AS goals FROM matches GROUP BY home_team ORDER BY goals DESC LIMIT 1", 0)
	require.NoError(t, err)

	require.Len(t, result.Rows, 1)
	assert.Equal(t, "Liverpool", result.Rows[0]["home_team"])
}

func TestCurrentSchemaListsTablesAndColumns(t *testing.T) {
	store := newTestStore(t)

	docs, version, err := store.CurrentSchema(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, version)

	tables := make(map[string]bool)
	var foundPosition bool

	for _, doc := range docs {
		if doc.Column == "" {
			tables[doc.Table] = true
		}

		if doc.Table == "players" && doc.Column == "position" {
			foundPosition = true
			assert.Contains(t, doc.Aliases, "striker")
		}
	}

	for _, want := range []string{"teams", "players", "matches", "player_stats"} {
		assert.True(t, tables[want], "missing table document for %s", want)
	}

	assert.True(t, foundPosition)
}

func TestCurrentSchemaVersionTracksStructure(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, before, err := store.CurrentSchema(ctx)
	require.NoError(t, err)

	_, err = store.db.ExecContext(ctx, "ALTER TABLE players ADD COLUMN height INTEGER")
	require.NoError(t, err)

	_, after, err := store.CurrentSchema(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}
