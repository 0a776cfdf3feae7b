// Package optimize produces advisory query improvements. Its output
// never gates execution.
package optimize

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sqlball/sqlball/internal/validate"
)

// Rewrite is a rule-produced transformation of the original query
type Rewrite struct {
	Rule      string `json:"rule"`
	Rationale string `json:"rationale"`
}

// Advice is the full optimizer output for one query
type Advice struct {
	Original    string    `json:"original"`
	Optimized   string    `json:"optimized"`
	QueryType   string    `json:"query_type"`
	Applied     []Rewrite `json:"applied,omitempty"`
	Suggestions []string  `json:"suggestions,omitempty"`
	Indexes     []string  `json:"indexes,omitempty"`
}

// rule transforms a query or returns it unchanged
type rule struct {
	name      string
	rationale string
	apply     func(sql string) (string, bool)
}

// Optimizer applies rewrite rules and emits index suggestions. Every
// rewrite is re-validated; a rule whose output fails validation is
// discarded for that query.
type Optimizer struct {
	validator *validate.Validator
	rules     []rule
}

// New creates an optimizer sharing the pipeline's validator
func New(validator *validate.Validator) *Optimizer {
	return &Optimizer{
		validator: validator,
		rules: []rule{
			{
				name:      "add-limit",
				rationale: "unbounded result sets are truncated at the row cap; an explicit LIMIT keeps the query cheap",
				apply:     addLimit,
			},
			{
				name:      "push-down-distinct",
				rationale: "DISTINCT on an already unique key column does nothing but force a sort",
				apply:     dropDistinctOnId,
			},
		},
	}
}

var (
	limitRe    = regexp.MustCompile(`(?i)\blimit\s+\d+`)
	aggOnlyRe  = regexp.MustCompile(`(?is)^\s*select\s+(count|sum|avg|min|max)\s*\(`)
	distinctRe = regexp.MustCompile(`(?is)^(\s*select\s+)distinct\s+(id\s+|id,)`)
	whereColRe = regexp.MustCompile(`(?i)\b(?:where|and|or|on)\s+(?:([a-zA-Z_]\w*)\.)?([a-zA-Z_]\w*)\s*(?:=|<|>|<=|>=|like|ilike|in|between)`)
	orderColRe = regexp.MustCompile(`(?i)\border\s+by\s+(?:([a-zA-Z_]\w*)\.)?([a-zA-Z_]\w*)`)
	tableRe    = regexp.MustCompile(`(?i)\b(?:from|join)\s+([a-zA-Z_]\w*)(?:\s+(?:as\s+)?([a-zA-Z_]\w*))?`)

	notInSubqueryRe = regexp.MustCompile(`(?is)\bnot\s+in\s*\(\s*select\b`)
	commaJoinRe     = regexp.MustCompile(`(?is)\bfrom\s+[a-zA-Z_]\w*(?:\s+(?:as\s+)?[a-zA-Z_]\w*)?\s*,\s*[a-zA-Z_]\w*`)
	funcOnColumnRe  = regexp.MustCompile(`(?i)\b(?:where|and|or)\s+(?:lower|upper|trim|substr|substring|cast|date|year|month|abs|round)\s*\(`)
)

// Analyze inspects sql and returns advice. The optimized query equals the
// original when no rule could improve it.
func (o *Optimizer) Analyze(sql string, catalog map[string][]string) *Advice {
	advice := &Advice{
		Original:  strings.TrimSpace(sql),
		Optimized: strings.TrimSpace(sql),
		QueryType: ClassifyQuery(sql),
	}

	for _, r := range o.rules {
		rewritten, changed := r.apply(advice.Optimized)
		if !changed {
			continue
		}

		// a rewrite that no longer validates is dropped, the rule
		// misfired on this shape
		if report := o.validator.Validate(rewritten, catalog); !report.Valid {
			continue
		}

		advice.Optimized = rewritten
		advice.Applied = append(advice.Applied, Rewrite{Rule: r.name, Rationale: r.rationale})
	}

	advice.Suggestions = o.suggest(advice.Original)
	advice.Indexes = o.suggestIndexes(advice.Original, catalog)

	return advice
}

// addLimit appends a LIMIT to unbounded non-aggregate queries
func addLimit(sql string) (string, bool) {
	if limitRe.MatchString(sql) || aggOnlyRe.MatchString(sql) {
		return sql, false
	}

	return strings.TrimRight(strings.TrimSpace(sql), ";") + " LIMIT 100", true
}

// dropDistinctOnId removes DISTINCT when the select list starts with the
// primary key column
func dropDistinctOnId(sql string) (string, bool) {
	if !distinctRe.MatchString(sql) {
		return sql, false
	}

	return distinctRe.ReplaceAllString(sql, "${1}${2}"), true
}

// suggest emits human-readable advisory notes
func (o *Optimizer) suggest(sql string) []string {
	var suggestions []string

	lower := strings.ToLower(sql)

	if strings.Contains(lower, "select *") {
		suggestions = append(suggestions, "select only the columns you need instead of SELECT *")
	}

	if strings.Contains(lower, "order by") && !limitRe.MatchString(sql) {
		suggestions = append(suggestions, "ORDER BY without LIMIT sorts the entire result; add a LIMIT if only the top rows matter")
	}

	if strings.Contains(lower, "like '%") || strings.Contains(lower, "like '%%") {
		suggestions = append(suggestions, "a leading wildcard in LIKE prevents index use; anchor the pattern if possible")
	}

	if notInSubqueryRe.MatchString(sql) {
		suggestions = append(suggestions, "NOT IN with a subquery scans the inner result per row and mishandles NULLs; prefer NOT EXISTS or a LEFT JOIN with an IS NULL filter")
	}

	if commaJoinRe.MatchString(sql) {
		suggestions = append(suggestions, "comma-separated tables in FROM produce an implicit cross join; use an explicit JOIN with an ON condition")
	}

	if funcOnColumnRe.MatchString(sql) {
		suggestions = append(suggestions, "applying a function to a column in a predicate prevents index use; compare against a transformed constant instead")
	}

	return suggestions
}

// suggestIndexes proposes indexes for columns used in filters, joins and
// ordering. Only columns that resolve to a known table are suggested.
func (o *Optimizer) suggestIndexes(sql string, catalog map[string][]string) []string {
	aliases := make(map[string]string)

	var tables []string

	for _, match := range tableRe.FindAllStringSubmatch(sql, -1) {
		table := strings.ToLower(match[1])
		if _, ok := catalog[table]; !ok {
			continue
		}

		tables = append(tables, table)
		aliases[table] = table

		if alias := strings.ToLower(match[2]); alias != "" {
			aliases[alias] = table
		}
	}

	resolve := func(qualifier, column string) (string, bool) {
		column = strings.ToLower(column)

		if qualifier != "" {
			table, ok := aliases[strings.ToLower(qualifier)]
			if !ok {
				return "", false
			}

			return table, contains(catalog[table], column)
		}

		for _, table := range tables {
			if contains(catalog[table], column) {
				return table, true
			}
		}

		return "", false
	}

	seen := make(map[string]bool)

	var indexes []string

	collect := func(matches [][]string) {
		for _, match := range matches {
			table, ok := resolve(match[1], match[2])
			if !ok {
				continue
			}

			column := strings.ToLower(match[2])
			if column == "id" {
				continue
			}

			stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)", table, column, table, column)
			if !seen[stmt] {
				seen[stmt] = true

				indexes = append(indexes, stmt)
			}
		}
	}

	collect(whereColRe.FindAllStringSubmatch(sql, -1))
	collect(orderColRe.FindAllStringSubmatch(sql, -1))

	sort.Strings(indexes)

	return indexes
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if strings.EqualFold(item, want) {
			return true
		}
	}

	return false
}

// typeCatalog holds general optimization advice per query shape
var typeCatalog = map[string][]string{
	"aggregation": {
		"use GROUP BY with aggregate functions (SUM, AVG, COUNT)",
		"filter grouped results with HAVING instead of a wrapping query",
		"use window functions for running totals or rankings",
	},
	"join": {
		"ensure join columns are indexed",
		"join smaller tables first",
		"prefer INNER JOIN over LEFT JOIN when unmatched rows are not needed",
	},
	"filtering": {
		"add indexes on WHERE clause columns",
		"use IN() instead of chains of OR conditions",
		"place the most selective filters first",
		"prefer EXISTS over IN for subqueries",
	},
	"sorting": {
		"create composite indexes for ORDER BY columns",
		"limit results before sorting when possible",
		"pair ORDER BY with a LIMIT",
		"avoid sorting on calculated expressions",
	},
}

// TypeSuggestions returns the general suggestion catalog for a query type.
// The second return is false for an unknown type.
func TypeSuggestions(queryType string) ([]string, bool) {
	suggestions, ok := typeCatalog[strings.ToLower(queryType)]
	if !ok {
		return nil, false
	}

	out := make([]string, len(suggestions))
	copy(out, suggestions)

	return out, true
}

// QueryTypes lists the known catalog types, sorted
func QueryTypes() []string {
	types := make([]string, 0, len(typeCatalog))
	for t := range typeCatalog {
		types = append(types, t)
	}

	sort.Strings(types)

	return types
}

// ClassifyQuery names the dominant shape of a statement. Aggregation wins
// over joins, joins over sorting, sorting over filtering.
func ClassifyQuery(sql string) string {
	lower := strings.ToLower(sql)

	switch {
	case strings.Contains(lower, "group by") || aggOnlyRe.MatchString(sql):
		return "aggregation"
	case strings.Contains(lower, " join "):
		return "join"
	case strings.Contains(lower, "order by"):
		return "sorting"
	case strings.Contains(lower, "where"):
		return "filtering"
	default:
		return "simple"
	}
}
