// Package pipeline wires terminology normalization, schema context
// retrieval, synthesis, validation, execution and caching into the
// question answering flow.
package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sqlball/sqlball/internal/cache"
	"github.com/sqlball/sqlball/internal/config"
	"github.com/sqlball/sqlball/internal/errors"
	"github.com/sqlball/sqlball/internal/exec"
	"github.com/sqlball/sqlball/internal/llm"
	"github.com/sqlball/sqlball/internal/logging"
	"github.com/sqlball/sqlball/internal/optimize"
	"github.com/sqlball/sqlball/internal/schema"
	"github.com/sqlball/sqlball/internal/storage"
	"github.com/sqlball/sqlball/internal/synth"
	"github.com/sqlball/sqlball/internal/validate"
	"github.com/sqlball/sqlball/internal/vocab"
)

// Store is the persistence surface the pipeline needs
type Store interface {
	Execute(ctx context.Context, sql string, rowCap int) (*storage.Result, error)
	CurrentSchema(ctx context.Context) ([]schema.Document, string, error)
}

// Request is one natural language question
type Request struct {
	Question string `json:"question"`
	MaxRows  int    `json:"max_rows,omitempty"`
}

// Response is the full answer for a question
type Response struct {
	SQL        string                   `json:"sql"`
	Columns    []string                 `json:"columns"`
	Rows       []map[string]interface{} `json:"rows"`
	Truncated  bool                     `json:"truncated"`
	Warnings   []string                 `json:"warnings,omitempty"`
	Confidence float64                  `json:"confidence"`
	Fallback   bool                     `json:"fallback,omitempty"`
	FromCache  bool                     `json:"from_cache"`
	Attempts   int                      `json:"attempts"`
	ElapsedMs  int64                    `json:"elapsed_ms"`
	Mappings   map[string]string        `json:"mappings,omitempty"`
}

// Pipeline answers questions against the store
type Pipeline struct {
	store     Store
	index     *schema.Index
	mapper    *vocab.Mapper
	validator *validate.Validator
	executor  *exec.Executor
	optimizer *optimize.Optimizer
	results   cache.Cache
	ttl       time.Duration
	contextK  int
	logger    *logging.Logger
}

// New builds the pipeline from configuration. The schema index is loaded
// from the store immediately so the first question needs no warm-up.
func New(ctx context.Context, cfg *config.Config, store Store, generator llm.Generator) (*Pipeline, error) {
	index, err := schema.NewIndexFromProvider(ctx, store)
	if err != nil {
		return nil, err
	}

	validator := validate.New()

	synthesizer := synth.NewSynthesizer(generator, cfg.LLM.MaxTokens, cfg.Pipeline.PromptCharBudget, cfg.Pipeline.FallbackLimit)
	executor := exec.New(synthesizer, validator, store, cfg.Pipeline.MaxAttempts)

	var sweepFreq time.Duration
	if cfg.Cache.SweepEnable {
		if d, err := time.ParseDuration(cfg.Cache.SweepFreq); err == nil {
			sweepFreq = d
		}
	}

	contextK := cfg.Pipeline.SchemaContextK
	if contextK <= 0 {
		contextK = 5
	}

	return &Pipeline{
		store:     store,
		index:     index,
		mapper:    vocab.NewMapper(),
		validator: validator,
		executor:  executor,
		optimizer: optimize.New(validator),
		results:   cache.NewMemoryCache(cfg.Cache.MaxEntries, sweepFreq),
		ttl:       cfg.CacheTTL(),
		contextK:  contextK,
		logger:    logging.GetLogger(),
	}, nil
}

// Process answers one question. The cache is consulted before any
// synthesis work; cache failures are logged and never fail the request.
func (p *Pipeline) Process(ctx context.Context, req Request) (*Response, error) {
	if req.Question == "" {
		return nil, errors.New(errors.ErrTypeValidation, "question must not be empty")
	}

	start := time.Now()

	normalized := p.mapper.Normalize(req.Question)
	mappings := p.mapper.Mappings(req.Question)
	version := p.index.Version()

	key := cache.Key(normalized, version)

	if data, err := p.results.Get(ctx, key); err == nil {
		var resp Response

		if decodeErr := json.Unmarshal(data, &resp); decodeErr == nil {
			resp.FromCache = true
			resp.ElapsedMs = time.Since(start).Milliseconds()

			p.logger.WithField("key", key[:12]).Debugf("cache hit")

			return &resp, nil
		} else {
			p.logger.WithError(decodeErr).Warnf("dropping undecodable cache entry")
			_ = p.results.Delete(ctx, key)
		}
	}

	bundle := synth.ContextBundle{
		Documents:          p.index.Search(normalized, p.contextK),
		RawQuestion:        req.Question,
		NormalizedQuestion: normalized,
		HintTables:         p.mapper.Tables(req.Question),
		TeamNames:          p.mapper.TeamNames(req.Question),
		Hints:              p.mapper.ContextHints(req.Question),
	}

	outcome, err := p.executor.Run(ctx, bundle, p.index.Catalog(), req.MaxRows)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		SQL:        outcome.SQL,
		Columns:    outcome.Result.Columns,
		Rows:       outcome.Result.Rows,
		Truncated:  outcome.Result.Truncated,
		Warnings:   outcome.Warnings,
		Confidence: outcome.Confidence,
		Fallback:   outcome.Fallback,
		Attempts:   len(outcome.Attempts) + 1,
		Mappings:   mappings,
	}

	// fallback answers are not cached so a recovered model replaces them
	// on the next ask; truncated results are accepted results and cached
	if !outcome.Fallback {
		if data, err := json.Marshal(resp); err == nil {
			if err := p.results.Set(ctx, key, data, p.ttl); err != nil {
				p.logger.WithError(err).Warnf("result cache write failed")
			}
		}
	}

	resp.ElapsedMs = time.Since(start).Milliseconds()

	return resp, nil
}

// Execute runs caller-supplied SQL through the same safety gate as
// synthesized queries. No synthesis, no correction and no caching; the
// statement either passes validation as written or is rejected.
func (p *Pipeline) Execute(ctx context.Context, sql string, maxRows int) (*Response, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, errors.New(errors.ErrTypeValidation, "sql must not be empty")
	}

	start := time.Now()

	report := p.validator.Validate(sql, p.index.Catalog())
	if !report.Valid {
		return nil, errors.New(errors.ErrTypeValidation, "the query failed validation: "+report.Feedback())
	}

	result, err := p.store.Execute(ctx, sql, maxRows)
	if err != nil {
		return nil, err
	}

	return &Response{
		SQL:        sql,
		Columns:    result.Columns,
		Rows:       result.Rows,
		Truncated:  result.Truncated,
		Warnings:   report.Warnings,
		Confidence: 1,
		Attempts:   1,
		ElapsedMs:  time.Since(start).Milliseconds(),
	}, nil
}

// Optimize returns advisory improvements for sql
func (p *Pipeline) Optimize(sql string) *optimize.Advice {
	return p.optimizer.Analyze(sql, p.index.Catalog())
}

// Validate checks sql without executing it
func (p *Pipeline) Validate(sql string) *validate.Report {
	return p.validator.Validate(sql, p.index.Catalog())
}

// SchemaDocuments returns the current schema context documents and version
func (p *Pipeline) SchemaDocuments() ([]schema.Document, string) {
	return p.index.Documents(), p.index.Version()
}

// RefreshSchema rebuilds the schema index from the store. The version
// bump makes every previously cached result unreachable.
func (p *Pipeline) RefreshSchema(ctx context.Context) (string, error) {
	if err := p.index.Refresh(ctx, p.store); err != nil {
		return "", err
	}

	version := p.index.Version()
	p.logger.WithField("version", version).Infof("schema index refreshed")

	return version, nil
}

// CacheStats exposes result cache counters
func (p *Pipeline) CacheStats(ctx context.Context) (*cache.Stats, error) {
	return p.results.GetStats(ctx)
}

// Close releases pipeline resources
func (p *Pipeline) Close() {
	p.results.Close()
}
