package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlball/sqlball/internal/errors"
	"github.com/sqlball/sqlball/internal/schema"
	"github.com/sqlball/sqlball/internal/storage"
	"github.com/sqlball/sqlball/internal/synth"
	"github.com/sqlball/sqlball/internal/testutil"
	"github.com/sqlball/sqlball/internal/validate"
)

func testCatalog() map[string][]string {
	return map[string][]string{
		"teams":   {"id", "name", "founded"},
		"players": {"id", "name", "position", "team"},
	}
}

func testBundle() synth.ContextBundle {
	return synth.ContextBundle{
		RawQuestion:        "list teams",
		NormalizedQuestion: "list teams",
		Documents: []schema.Document{
			{Table: "teams", Description: "football clubs"},
		},
	}
}

func newExecutor(gen *testutil.MockGenerator, store *testutil.MockStore, maxAttempts int) *Executor {
	return New(synth.NewSynthesizer(gen, 1000, 6000, 10), validate.New(), store, maxAttempts)
}

func TestRunSucceedsFirstAttempt(t *testing.T) {
	gen := testutil.NewMockGenerator(testutil.WithResponses("SELECT name FROM teams LIMIT 5"))
	store := testutil.NewMockStore(testutil.WithResults(&storage.Result{
		Columns: []string{"name"},
		Rows:    []map[string]interface{}{{"name": "Arsenal"}},
	}))

	outcome, err := newExecutor(gen, store, 3).Run(context.Background(), testBundle(), testCatalog(), 100)
	require.NoError(t, err)

	assert.Equal(t, "SELECT name FROM teams LIMIT 5", outcome.SQL)
	require.NotNil(t, outcome.Result)
	assert.Len(t, outcome.Result.Rows, 1)
	assert.Empty(t, outcome.Attempts)
	assert.Equal(t, []string{"SELECT name FROM teams LIMIT 5"}, store.Executed())
}

func TestRunCorrectsValidationFailure(t *testing.T) {
	gen := testutil.NewMockGenerator(testutil.WithResponses(
		"SELECT nickname FROM teams LIMIT 5",
		"SELECT name FROM teams LIMIT 5",
	))
	store := testutil.NewMockStore(testutil.WithResults(&storage.Result{Columns: []string{"name"}}))

	outcome, err := newExecutor(gen, store, 3).Run(context.Background(), testBundle(), testCatalog(), 100)
	require.NoError(t, err)

	assert.Equal(t, "SELECT name FROM teams LIMIT 5", outcome.SQL)
	require.Len(t, outcome.Attempts, 1)
	assert.Equal(t, StateValidating, outcome.Attempts[0].Stage)
	assert.Contains(t, outcome.Attempts[0].Feedback, "nickname")

	// the rejected candidate never reached the store
	assert.Equal(t, []string{"SELECT name FROM teams LIMIT 5"}, store.Executed())

	// the correction prompt carried the validation feedback
	prompts := gen.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], "failed validation")
}

func TestRunCorrectsRuntimeFailure(t *testing.T) {
	gen := testutil.NewMockGenerator(testutil.WithResponses(
		"SELECT name FROM teams LIMIT 5",
		"SELECT name FROM teams LIMIT 5",
	))
	store := testutil.NewMockStore(
		testutil.WithResults(nil, &storage.Result{Columns: []string{"name"}}),
		testutil.WithExecErrors(errors.New(errors.ErrTypeExecution, "binder error"), nil),
	)

	outcome, err := newExecutor(gen, store, 3).Run(context.Background(), testBundle(), testCatalog(), 100)
	require.NoError(t, err)

	require.Len(t, outcome.Attempts, 1)
	assert.Equal(t, StateExecuting, outcome.Attempts[0].Stage)
	assert.Contains(t, outcome.Attempts[0].Feedback, "runtime")
	assert.Len(t, store.Executed(), 2)
}

func TestRunExhaustsAttempts(t *testing.T) {
	gen := testutil.NewMockGenerator(testutil.WithResponses("SELECT nickname FROM teams LIMIT 5"))
	store := testutil.NewMockStore()

	_, err := newExecutor(gen, store, 3).Run(context.Background(), testBundle(), testCatalog(), 100)
	require.Error(t, err)

	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	assert.Equal(t, 3, gen.Calls())
	assert.Empty(t, store.Executed())
}

func TestRunForbiddenQueryNeverExecutes(t *testing.T) {
	gen := testutil.NewMockGenerator(testutil.WithResponses(
		"SELECT name FROM teams WHERE name = 'drop table teams' LIMIT 5",
	))
	store := testutil.NewMockStore()

	_, err := newExecutor(gen, store, 2).Run(context.Background(), testBundle(), testCatalog(), 100)
	require.Error(t, err)
	assert.Empty(t, store.Executed())
}

func TestRunTimeoutAborts(t *testing.T) {
	gen := testutil.NewMockGenerator(testutil.WithResponses("SELECT name FROM teams LIMIT 5"))
	store := testutil.NewMockStore(
		testutil.WithExecErrors(errors.New(errors.ErrTypeTimeout, "query exceeded execution timeout")),
	)

	_, err := newExecutor(gen, store, 3).Run(context.Background(), testBundle(), testCatalog(), 100)
	require.Error(t, err)

	assert.True(t, errors.IsType(err, errors.ErrTypeTimeout))
	assert.Equal(t, 1, gen.Calls())
}

func TestRunCanceledContext(t *testing.T) {
	gen := testutil.NewMockGenerator(testutil.WithResponses("SELECT name FROM teams LIMIT 5"))
	store := testutil.NewMockStore()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newExecutor(gen, store, 3).Run(ctx, testBundle(), testCatalog(), 100)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeTimeout))
}

func TestRunFeedbackCarriesPriorQuery(t *testing.T) {
	gen := testutil.NewMockGenerator(testutil.WithResponses("SELECT nickname FROM teams LIMIT 5"))
	store := testutil.NewMockStore()

	_, err := newExecutor(gen, store, 2).Run(context.Background(), testBundle(), testCatalog(), 100)
	require.Error(t, err)

	// the correction prompt names the statement being corrected
	prompts := gen.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], "SELECT nickname FROM teams LIMIT 5")

	// so does the terminal error after the attempt bound is spent
	assert.Contains(t, err.Error(), "SELECT nickname FROM teams LIMIT 5")
}
