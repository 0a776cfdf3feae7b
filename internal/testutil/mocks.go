// Package testutil provides shared mocks for pipeline components
package testutil

import (
	"context"
	"sync"

	"github.com/sqlball/sqlball/internal/schema"
	"github.com/sqlball/sqlball/internal/storage"
)

// MockGenerator is a configurable llm.Generator for tests. Responses are
// consumed in order; the last one repeats once the queue is exhausted.
type MockGenerator struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

// MockGeneratorOption configures a MockGenerator
type MockGeneratorOption func(*MockGenerator)

// WithResponses queues completion texts to return in order
func WithResponses(responses ...string) MockGeneratorOption {
	return func(m *MockGenerator) {
		m.responses = responses
	}
}

// WithErrors queues errors aligned with the response queue; a nil entry
// means that call succeeds.
func WithErrors(errs ...error) MockGeneratorOption {
	return func(m *MockGenerator) {
		m.errs = errs
	}
}

// NewMockGenerator creates a mock generator with the given options
func NewMockGenerator(opts ...MockGeneratorOption) *MockGenerator {
	m := &MockGenerator{}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Generate returns the next queued response or error
func (m *MockGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.calls
	m.calls++
	m.prompts = append(m.prompts, prompt)

	if idx < len(m.errs) && m.errs[idx] != nil {
		return "", m.errs[idx]
	}

	if len(m.responses) == 0 {
		return "", context.Canceled
	}

	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}

	return m.responses[idx], nil
}

// Calls returns how many times Generate was invoked
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls
}

// Prompts returns the prompts passed to Generate, in order
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.prompts))
	copy(out, m.prompts)

	return out
}

// MockStore is an in-memory storage.Store for tests
type MockStore struct {
	mu       sync.Mutex
	results  []*storage.Result
	errs     []error
	executed []string
	docs     []schema.Document
	version  string
}

// MockStoreOption configures a MockStore
type MockStoreOption func(*MockStore)

// WithResults queues execution results to return in order
func WithResults(results ...*storage.Result) MockStoreOption {
	return func(m *MockStore) {
		m.results = results
	}
}

// WithExecErrors queues execution errors aligned with the result queue
func WithExecErrors(errs ...error) MockStoreOption {
	return func(m *MockStore) {
		m.errs = errs
	}
}

// WithSchema sets the documents and version returned by CurrentSchema
func WithSchema(version string, docs ...schema.Document) MockStoreOption {
	return func(m *MockStore) {
		m.docs = docs
		m.version = version
	}
}

// NewMockStore creates a mock store with the given options
func NewMockStore(opts ...MockStoreOption) *MockStore {
	m := &MockStore{version: "v1"}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Execute returns the next queued result or error
func (m *MockStore) Execute(ctx context.Context, sql string, rowCap int) (*storage.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := len(m.executed)
	m.executed = append(m.executed, sql)

	if idx < len(m.errs) && m.errs[idx] != nil {
		return nil, m.errs[idx]
	}

	if len(m.results) == 0 {
		return &storage.Result{Columns: []string{}, Rows: []map[string]interface{}{}}, nil
	}

	if idx >= len(m.results) {
		idx = len(m.results) - 1
	}

	return m.results[idx], nil
}

// CurrentSchema returns the configured documents and version
func (m *MockStore) CurrentSchema(ctx context.Context) ([]schema.Document, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := make([]schema.Document, len(m.docs))
	copy(docs, m.docs)

	return docs, m.version, nil
}

// SetVersion changes the schema version reported by CurrentSchema
func (m *MockStore) SetVersion(version string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.version = version
}

// Executed returns the SQL statements passed to Execute, in order
func (m *MockStore) Executed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.executed))
	copy(out, m.executed)

	return out
}
