// Package exec drives the synthesize, validate, execute loop with
// bounded self-correction.
package exec

import (
	"context"
	"fmt"

	"github.com/sqlball/sqlball/internal/errors"
	"github.com/sqlball/sqlball/internal/logging"
	"github.com/sqlball/sqlball/internal/storage"
	"github.com/sqlball/sqlball/internal/synth"
	"github.com/sqlball/sqlball/internal/validate"
)

// State names the phase an attempt is in
type State string

// Executor states
const (
	StateSynthesizing State = "synthesizing"
	StateValidating   State = "validating"
	StateExecuting    State = "executing"
	StateCorrecting   State = "correcting"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// Synthesizer produces a candidate query, optionally guided by feedback
// from a failed attempt.
type Synthesizer interface {
	Synthesize(ctx context.Context, bundle synth.ContextBundle, feedback string) (*synth.Result, error)
}

// Store executes validated SQL
type Store interface {
	Execute(ctx context.Context, sql string, rowCap int) (*storage.Result, error)
}

// Attempt records one failed pass through the loop
type Attempt struct {
	SQL      string `json:"sql"`
	Stage    State  `json:"stage"`
	Feedback string `json:"feedback"`
}

// Outcome is the result of a completed run
type Outcome struct {
	SQL        string
	Result     *storage.Result
	Warnings   []string
	Confidence float64
	Fallback   bool
	Attempts   []Attempt
}

// Executor runs the correction loop. Every candidate, including
// correction rounds and fallback queries, passes validation before it
// can reach the store.
type Executor struct {
	synthesizer Synthesizer
	validator   *validate.Validator
	store       Store
	maxAttempts int
	logger      *logging.Logger
}

// New creates an executor with the given attempt bound
func New(synthesizer Synthesizer, validator *validate.Validator, store Store, maxAttempts int) *Executor {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	return &Executor{
		synthesizer: synthesizer,
		validator:   validator,
		store:       store,
		maxAttempts: maxAttempts,
		logger:      logging.GetLogger(),
	}
}

// Run synthesizes, validates and executes until a query succeeds or the
// attempt bound is exhausted. Validation failures and runtime failures
// both feed back into the next synthesis round, with distinct framing so
// the model can tell them apart.
func (e *Executor) Run(ctx context.Context, bundle synth.ContextBundle, catalog map[string][]string, rowCap int) (*Outcome, error) {
	outcome := &Outcome{}

	feedback := ""
	lastStage := StateSynthesizing

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrTypeTimeout, "query pipeline canceled")
		}

		state := StateSynthesizing
		if feedback != "" {
			state = StateCorrecting
		}

		e.logger.WithFields(map[string]interface{}{
			"attempt": attempt,
			"state":   string(state),
		}).Debugf("starting attempt")

		candidate, err := e.synthesizer.Synthesize(ctx, bundle, feedback)
		if err != nil {
			return nil, err
		}

		report := e.validator.Validate(candidate.SQL, catalog)
		if !report.Valid {
			lastStage = StateValidating
			cause := "the query failed validation: " + report.Feedback()
			feedback = fmt.Sprintf("the previous query was: %s\n%s", candidate.SQL, cause)

			outcome.Attempts = append(outcome.Attempts, Attempt{
				SQL:      candidate.SQL,
				Stage:    StateValidating,
				Feedback: cause,
			})

			e.logger.WithField("attempt", attempt).Debugf("validation rejected candidate: %s", report.Feedback())

			continue
		}

		result, err := e.store.Execute(ctx, candidate.SQL, rowCap)
		if err != nil {
			if errors.IsType(err, errors.ErrTypeTimeout) {
				return nil, err
			}

			lastStage = StateExecuting
			cause := "the database rejected the query at runtime: " + err.Error()
			feedback = fmt.Sprintf("the previous query was: %s\n%s", candidate.SQL, cause)

			outcome.Attempts = append(outcome.Attempts, Attempt{
				SQL:      candidate.SQL,
				Stage:    StateExecuting,
				Feedback: cause,
			})

			e.logger.WithField("attempt", attempt).Debugf("execution failed: %v", err)

			continue
		}

		outcome.SQL = candidate.SQL
		outcome.Result = result
		outcome.Warnings = report.Warnings
		outcome.Confidence = candidate.Confidence
		outcome.Fallback = candidate.Fallback

		return outcome, nil
	}

	last := outcome.Attempts[len(outcome.Attempts)-1]
	msg := fmt.Sprintf("no valid query after %d attempts; last attempted query: %s; last failure: %s",
		e.maxAttempts, last.SQL, last.Feedback)

	if lastStage == StateExecuting {
		return nil, errors.New(errors.ErrTypeExecution, msg)
	}

	return nil, errors.New(errors.ErrTypeValidation, msg)
}
