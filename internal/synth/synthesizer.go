package synth

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sqlball/sqlball/internal/errors"
	"github.com/sqlball/sqlball/internal/llm"
	"github.com/sqlball/sqlball/internal/logging"
	"github.com/sqlball/sqlball/internal/schema"
	"github.com/sqlball/sqlball/internal/vocab"
)

// ContextBundle is everything the synthesizer needs to produce SQL:
// the ranked schema documents, both forms of the question, and what the
// terminology mapper recognized in it.
type ContextBundle struct {
	Documents          []schema.Document
	RawQuestion        string
	NormalizedQuestion string
	HintTables         []string // tables implied by recognized terminology
	TeamNames          []string // canonical club names the question refers to
	Hints              vocab.Hints
}

// Result is a candidate query plus metadata about how it was produced.
// Confidence is informational only and never gates execution.
type Result struct {
	SQL        string
	Confidence float64
	Fallback   bool
}

// Synthesizer turns a context bundle into a candidate SQL query
type Synthesizer struct {
	generator     llm.Generator
	maxTokens     int
	charBudget    int
	fallbackLimit int
	logger        *logging.Logger
}

// NewSynthesizer creates a synthesizer backed by the given generator.
// charBudget bounds prompt size; lowest-ranked schema documents are
// dropped first when the bundle does not fit. fallbackLimit caps the
// rows of the template fallback query.
func NewSynthesizer(generator llm.Generator, maxTokens, charBudget, fallbackLimit int) *Synthesizer {
	if maxTokens <= 0 {
		maxTokens = 1000
	}

	if charBudget <= 0 {
		charBudget = 6000
	}

	if fallbackLimit <= 0 {
		fallbackLimit = 10
	}

	return &Synthesizer{
		generator:     generator,
		maxTokens:     maxTokens,
		charBudget:    charBudget,
		fallbackLimit: fallbackLimit,
		logger:        logging.GetLogger(),
	}
}

// Synthesize produces a candidate SQL query for the bundle. feedback, when
// non-empty, carries validator or runtime errors from a prior attempt and
// is included in the prompt so the model can correct its output.
func (s *Synthesizer) Synthesize(ctx context.Context, bundle ContextBundle, feedback string) (*Result, error) {
	prompt := s.buildPrompt(bundle, feedback)

	raw, err := s.generator.Generate(ctx, prompt, s.maxTokens)
	if err != nil {
		if fallback := s.templateFallback(bundle); fallback != nil {
			s.logger.WithError(err).Warnf("LLM unavailable, using template fallback")
			return fallback, nil
		}

		return nil, errors.Wrap(err, errors.ErrTypeSynthesis, "query synthesis failed")
	}

	sql := ExtractSQL(raw)
	if sql == "" {
		return nil, errors.New(errors.ErrTypeSynthesis, "model response contained no SQL statement")
	}

	return &Result{
		SQL:        sql,
		Confidence: scoreConfidence(sql, bundle.RawQuestion),
	}, nil
}

// buildPrompt assembles the synthesis prompt within the character budget.
// Schema documents are appended in rank order and the tail is dropped
// when the budget would be exceeded.
func (s *Synthesizer) buildPrompt(bundle ContextBundle, feedback string) string {
	var sb strings.Builder

	sb.WriteString(`You are an expert at converting natural language questions into DuckDB SQL queries over a football analytics database.

Rules:
1. Respond with a single SELECT statement and nothing else.
2. Only reference tables and columns listed in the schema context below.
3. Use appropriate WHERE clauses, JOINs, GROUP BY and ORDER BY as needed.
4. Always include a LIMIT clause unless the question asks for a single aggregate value.
5. Never modify data.

Schema context:
`)

	guidance := hintGuidance(bundle.Hints)
	if len(bundle.TeamNames) > 0 {
		guidance = append(guidance,
			fmt.Sprintf("The question refers to these clubs: %s.", strings.Join(bundle.TeamNames, ", ")))
	}

	guidanceLen := 0
	for _, line := range guidance {
		guidanceLen += len(line) + 3
	}

	fixed := sb.Len() + len(bundle.NormalizedQuestion) + len(feedback) + guidanceLen + 200

	budget := s.charBudget - fixed
	for _, doc := range bundle.Documents {
		entry := formatDocument(doc)
		if len(entry) > budget {
			break
		}

		sb.WriteString(entry)

		budget -= len(entry)
	}

	if len(guidance) > 0 {
		sb.WriteString("\nGuidance:\n")

		for _, line := range guidance {
			sb.WriteString("- ")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	if feedback != "" {
		sb.WriteString("\nA previous attempt failed. Fix this problem:\n")
		sb.WriteString(feedback)
		sb.WriteString("\n")
	}

	sb.WriteString("\nQuestion: ")
	sb.WriteString(bundle.NormalizedQuestion)
	sb.WriteString("\nSQL:")

	return sb.String()
}

// hintGuidance turns extracted context hints into prompt guidance lines
func hintGuidance(hints vocab.Hints) []string {
	var lines []string

	if hints.OrderDesc {
		lines = append(lines, "The question asks for a ranking; order results descending by the relevant metric.")
	}

	if hints.NeedsGrouping {
		lines = append(lines, "The question aggregates values; use GROUP BY over the grouping columns.")
	}

	if hints.Gameweek > 0 {
		lines = append(lines, fmt.Sprintf("Filter matches to gameweek %d.", hints.Gameweek))
	}

	if hints.DefaultLimit > 0 {
		lines = append(lines, fmt.Sprintf("When the question names no row count, limit results to %d rows.", hints.DefaultLimit))
	}

	return lines
}

func formatDocument(doc schema.Document) string {
	var sb strings.Builder

	if doc.Column == "" {
		sb.WriteString(fmt.Sprintf("Table %s: %s\n", doc.Table, doc.Description))
	} else {
		sb.WriteString(fmt.Sprintf("  %s.%s (%s): %s\n", doc.Table, doc.Column, doc.DataType, doc.Description))
	}

	if len(doc.Aliases) > 0 {
		sb.WriteString(fmt.Sprintf("    also known as: %s\n", strings.Join(doc.Aliases, ", ")))
	}

	return sb.String()
}

// templateFallback builds a trivial browse query when the question narrows
// to exactly one table. Recognized terminology decides first; the retrieved
// documents are only consulted when the terminology named no table at all.
// Returns nil when no safe guess exists.
func (s *Synthesizer) templateFallback(bundle ContextBundle) *Result {
	table := ""

	switch len(bundle.HintTables) {
	case 1:
		table = bundle.HintTables[0]
	case 0:
		seen := make(map[string]bool)
		for _, doc := range bundle.Documents {
			seen[doc.Table] = true
		}

		if len(seen) == 1 {
			for name := range seen {
				table = name
			}
		}
	}

	if table == "" {
		return nil
	}

	return &Result{
		SQL:        fmt.Sprintf("SELECT * FROM %s LIMIT %d", table, s.fallbackLimit),
		Confidence: 0.2,
		Fallback:   true,
	}
}

var (
	fenceRe    = regexp.MustCompile("(?s)```(?:sql)?\\s*(.*?)```")
	selectRe   = regexp.MustCompile(`(?is)\b(SELECT|WITH)\b.*`)
	hedgeWords = []string{"maybe", "roughly", "approximately", "something like", "possibly", "i think"}
)

// ExtractSQL pulls the SQL statement out of a model response. Fenced code
// blocks win over prose; otherwise the text from the first SELECT or WITH
// keyword onward is taken. Trailing semicolons and prose after the first
// statement terminator are stripped.
func ExtractSQL(raw string) string {
	text := strings.TrimSpace(raw)

	if match := fenceRe.FindStringSubmatch(text); match != nil {
		text = strings.TrimSpace(match[1])
	}

	match := selectRe.FindString(text)
	if match == "" {
		return ""
	}

	// cut at the first statement terminator so trailing prose is dropped
	if idx := strings.Index(match, ";"); idx >= 0 {
		match = match[:idx]
	}

	return strings.TrimSpace(match)
}

// scoreConfidence estimates how likely the query answers the question.
// Structural complexity and hedging language in the question lower it.
func scoreConfidence(sql, question string) float64 {
	confidence := 1.0

	upper := strings.ToUpper(sql)

	joins := strings.Count(upper, " JOIN ")
	if joins > 1 {
		confidence -= 0.15 * float64(joins-1)
	}

	if nested := strings.Count(upper, "(SELECT"); nested > 0 {
		confidence -= 0.1 * float64(nested)
	}

	lowerQ := strings.ToLower(question)
	for _, hedge := range hedgeWords {
		if strings.Contains(lowerQ, hedge) {
			confidence -= 0.1
			break
		}
	}

	if confidence < 0.1 {
		confidence = 0.1
	}

	return confidence
}
