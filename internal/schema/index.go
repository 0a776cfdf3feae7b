package schema

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync/atomic"
)

// Index provides semantic-ish search over schema documents plus an
// authoritative catalog for validation. Rebuilds swap an immutable
// snapshot pointer, so in-flight readers always see a consistent view.
type Index struct {
	snap atomic.Pointer[snapshot]
}

type snapshot struct {
	docs    []Document
	catalog map[string][]string
	version string
}

// NewIndex builds an index from the given documents and version
func NewIndex(docs []Document, version string) *Index {
	ix := &Index{}
	ix.Rebuild(docs, version)

	return ix
}

// NewIndexFromProvider builds an index by querying a metadata provider
func NewIndexFromProvider(ctx context.Context, provider MetadataProvider) (*Index, error) {
	docs, version, err := provider.CurrentSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema metadata: %w", err)
	}

	return NewIndex(docs, version), nil
}

// Rebuild atomically replaces the index contents. Readers racing with a
// rebuild observe either the old snapshot or the new one, never a mix.
func (ix *Index) Rebuild(docs []Document, version string) {
	catalog := make(map[string][]string)

	for _, doc := range docs {
		if doc.Table == "" {
			continue
		}

		if _, ok := catalog[doc.Table]; !ok {
			catalog[doc.Table] = nil
		}

		if doc.Column != "" {
			catalog[doc.Table] = append(catalog[doc.Table], doc.Column)
		}
	}

	copied := make([]Document, len(docs))
	copy(copied, docs)

	ix.snap.Store(&snapshot{
		docs:    copied,
		catalog: catalog,
		version: version,
	})
}

// Refresh reloads the index from a metadata provider
func (ix *Index) Refresh(ctx context.Context, provider MetadataProvider) error {
	docs, version, err := provider.CurrentSchema(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh schema metadata: %w", err)
	}

	ix.Rebuild(docs, version)

	return nil
}

// Version returns the active schema version
func (ix *Index) Version() string {
	return ix.snap.Load().version
}

// Documents returns all documents in the active snapshot
func (ix *Index) Documents() []Document {
	snap := ix.snap.Load()

	docs := make([]Document, len(snap.docs))
	copy(docs, snap.docs)

	return docs
}

// Catalog returns the authoritative table -> column list mapping.
// Validation decisions must use this, never the ranked search results.
func (ix *Index) Catalog() map[string][]string {
	snap := ix.snap.Load()

	catalog := make(map[string][]string, len(snap.catalog))
	for table, cols := range snap.catalog {
		copied := make([]string, len(cols))
		copy(copied, cols)
		catalog[table] = copied
	}

	return catalog
}

// Search returns the top-k documents ranked by lexical similarity between
// the query and each document's description and aliases. Ranking is
// deterministic for identical index state and input: ties break first by
// a locality bonus for tables already present in higher-ranked results,
// then by document ID.
func (ix *Index) Search(text string, k int) []Document {
	snap := ix.snap.Load()

	terms := tokenize(text)
	if len(terms) == 0 || k <= 0 {
		return nil
	}

	type scored struct {
		doc   Document
		score float64
	}

	var results []scored

	for _, doc := range snap.docs {
		score := scoreDocument(doc, terms)
		if score > 0 {
			results = append(results, scored{doc: doc, score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}

		return results[i].doc.ID() < results[j].doc.ID()
	})

	// Locality bonus: among equal-score runs, prefer documents whose table
	// already appeared above. Applied as a stable second pass so the base
	// ranking stays deterministic.
	seenTables := make(map[string]bool)

	for i := range results {
		if i > 0 && results[i].score == results[i-1].score &&
			!seenTables[results[i-1].doc.Table] && seenTables[results[i].doc.Table] {
			results[i], results[i-1] = results[i-1], results[i]
		}

		seenTables[results[i].doc.Table] = true
	}

	if len(results) > k {
		results = results[:k]
	}

	docs := make([]Document, len(results))
	for i, r := range results {
		docs[i] = r.doc
	}

	return docs
}

// scoreDocument computes a BM25-like relevance score for one document
func scoreDocument(doc Document, terms []string) float64 {
	fields := []struct {
		content string
		weight  float64
	}{
		{strings.ToLower(doc.Description), 1.0},
		{strings.ToLower(strings.Join(doc.Aliases, " ")), 0.9},
		{strings.ToLower(doc.Table + " " + doc.Column), 0.8},
	}

	const k1 = 1.2

	totalScore := 0.0
	matchedTerms := 0

	for _, term := range terms {
		termScore := 0.0

		for _, field := range fields {
			if field.content == "" {
				continue
			}

			tf := float64(strings.Count(field.content, term))
			if tf > 0 {
				termScore += (tf / (tf + k1)) * field.weight
			}
		}

		if termScore > 0 {
			matchedTerms++
			totalScore += termScore
		}
	}

	if matchedTerms == 0 {
		return 0.0
	}

	coverage := float64(matchedTerms) / float64(len(terms))

	return math.Min(1.0, (totalScore/float64(len(terms)))*(0.7+0.3*coverage))
}

// tokenize splits the query into lowercase search terms
func tokenize(text string) []string {
	var terms []string

	for _, part := range strings.Fields(strings.TrimSpace(text)) {
		part = strings.Trim(strings.ToLower(part), ".,;:?!'\"()")
		if len(part) > 1 {
			terms = append(terms, part)
		}
	}

	return terms
}
