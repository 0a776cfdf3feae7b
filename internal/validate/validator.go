// Package validate is the single safety gate between generated SQL and
// the database. Nothing executes without passing it first.
package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Kind classifies a validation failure
type Kind string

// Validation failure kinds
const (
	KindInjection          Kind = "injection"
	KindForbiddenOperation Kind = "forbidden-operation"
	KindUnknownTable       Kind = "unknown-table"
	KindUnknownColumn      Kind = "unknown-column"
	KindAmbiguousColumn    Kind = "ambiguous-column"
	KindAggregateMisuse    Kind = "aggregate-misuse"
	KindParseError         Kind = "parse-error"
)

// Issue is a single validation failure
type Issue struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Kind, i.Message)
}

// Report is the outcome of validating one statement. Warnings are
// advisory and never block execution.
type Report struct {
	Valid            bool     `json:"valid"`
	Errors           []Issue  `json:"errors,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
	ReferencedTables []string `json:"referenced_tables,omitempty"`
}

// Feedback renders the errors as a correction hint for resynthesis
func (r *Report) Feedback() string {
	if len(r.Errors) == 0 {
		return ""
	}

	parts := make([]string, len(r.Errors))
	for i, issue := range r.Errors {
		parts[i] = issue.String()
	}

	return strings.Join(parts, "; ")
}

// Validator checks generated SQL against the safety rules and the live
// table catalog. It is stateless and safe for concurrent use.
type Validator struct{}

// New creates a validator
func New() *Validator {
	return &Validator{}
}

var (
	// forbidden statement keywords, matched anywhere in the raw text so
	// occurrences hidden in comments or string literals are still caught
	forbiddenRe = regexp.MustCompile(`(?i)\b(drop|delete|insert|update|truncate|alter|grant|revoke|execute|exec)\b`)

	unionRe     = regexp.MustCompile(`(?i)\bunion\s+(all\s+)?select\b`)
	tautologyRe = regexp.MustCompile(`(?i)\b(or|and)\s+(?:(\d+)\s*=\s*(\d+)|'([^']*)'\s*=\s*'([^']*)'|"([^"]*)"\s*=\s*"([^"]*)")`)

	cteRe       = regexp.MustCompile(`(?i)(?:\bwith|,)\s+([a-zA-Z_]\w*)\s+as\s*\(`)
	tableRefRe  = regexp.MustCompile(`(?i)\b(?:from|join)\s+([a-zA-Z_]\w*)(?:\s+(?:as\s+)?([a-zA-Z_]\w*))?`)
	qualifiedRe = regexp.MustCompile(`\b([a-zA-Z_]\w*)\.([a-zA-Z_]\w*)`)
	identRe     = regexp.MustCompile(`\b[a-zA-Z_]\w*\b`)
	funcCallRe  = regexp.MustCompile(`\b([a-zA-Z_]\w*)\s*\(`)

	selectListRe = regexp.MustCompile(`(?is)^\s*select\s+(?:distinct\s+)?(.*?)\s+from\b`)
	groupByRe    = regexp.MustCompile(`(?is)\bgroup\s+by\s+(.*?)(?:\border\s+by\b|\bhaving\b|\blimit\b|$)`)
	aggregateRe  = regexp.MustCompile(`(?i)\b(count|sum|avg|min|max)\s*\(`)
)

// sqlKeywords are tokens never treated as column references
var sqlKeywords = map[string]bool{
	"select": true, "from": true, "where": true, "group": true, "by": true,
	"order": true, "having": true, "limit": true, "offset": true,
	"join": true, "inner": true, "left": true, "right": true, "full": true,
	"outer": true, "cross": true, "on": true, "as": true, "and": true,
	"or": true, "not": true, "in": true, "is": true, "null": true,
	"like": true, "ilike": true, "between": true, "case": true, "when": true,
	"then": true, "else": true, "end": true, "distinct": true, "union": true,
	"all": true, "with": true, "asc": true, "desc": true, "exists": true,
	"true": true, "false": true, "interval": true, "using": true,
}

// Validate checks sql against the catalog of known tables and columns.
// The returned report carries every failure found, not just the first.
func (v *Validator) Validate(sql string, catalog map[string][]string) *Report {
	report := &Report{}

	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql), ";"))
	if trimmed == "" {
		report.addError(KindParseError, "statement is empty")
		return report.finish()
	}

	// forbidden keywords are checked on the raw text so they cannot hide
	// inside comments or string literals
	if match := forbiddenRe.FindString(trimmed); match != "" {
		report.addError(KindForbiddenOperation,
			fmt.Sprintf("statement contains forbidden keyword %q", strings.ToUpper(match)))
	}

	sanitized := stripLiteralsAndComments(trimmed)

	v.checkShape(sanitized, report)
	v.checkInjection(trimmed, sanitized, report)

	aliases, unchecked := v.checkTables(sanitized, catalog, report)
	v.checkColumns(sanitized, aliases, unchecked, catalog, report)
	v.checkAggregates(sanitized, report)
	v.checkWarnings(sanitized, report)

	return report.finish()
}

func (r *Report) addError(kind Kind, message string) {
	r.Errors = append(r.Errors, Issue{Kind: kind, Message: message})
}

func (r *Report) addWarning(message string) {
	r.Warnings = append(r.Warnings, message)
}

func (r *Report) finish() *Report {
	r.Valid = len(r.Errors) == 0
	return r
}

// checkShape verifies the statement is a single read-only query
func (v *Validator) checkShape(sanitized string, report *Report) {
	lower := strings.ToLower(strings.TrimSpace(sanitized))

	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		report.addError(KindParseError, "only SELECT statements are allowed")
	}

	if strings.Count(sanitized, "(") != strings.Count(sanitized, ")") {
		report.addError(KindParseError, "unbalanced parentheses")
	}

	if strings.Count(sanitized, "'")%2 != 0 {
		report.addError(KindParseError, "unterminated string literal")
	}
}

// checkInjection looks for chaining, tautologies and UNION exfiltration.
// These checks run independently of the forbidden keyword scan.
func (v *Validator) checkInjection(raw, sanitized string, report *Report) {
	if idx := strings.Index(sanitized, ";"); idx >= 0 {
		if strings.TrimSpace(sanitized[idx+1:]) != "" {
			report.addError(KindInjection, "multiple statements are not allowed")
		}
	}

	for _, match := range tautologyRe.FindAllStringSubmatch(raw, -1) {
		flagged := false

		pairs := [][2]string{{match[2], match[3]}, {match[4], match[5]}, {match[6], match[7]}}
		for _, pair := range pairs {
			literal := pair[0] != "" || pair[1] != "" ||
				strings.Contains(match[0], "''") || strings.Contains(match[0], `""`)
			if literal && pair[0] == pair[1] {
				report.addError(KindInjection,
					fmt.Sprintf("tautological condition %q", strings.TrimSpace(match[0])))

				flagged = true

				break
			}
		}

		if flagged {
			break
		}
	}

	if unionRe.MatchString(sanitized) {
		report.addError(KindInjection, "UNION SELECT is not allowed")
	}
}

// checkTables cross-references every FROM and JOIN target against the
// catalog and returns the alias map for column resolution. CTE names are
// legal targets but their columns cannot be checked, so they come back in
// the unchecked set.
func (v *Validator) checkTables(sanitized string, catalog map[string][]string, report *Report) (map[string]string, map[string]bool) {
	aliases := make(map[string]string) // alias or table name -> table name
	unchecked := make(map[string]bool)

	cteNames := make(map[string]bool)
	for _, match := range cteRe.FindAllStringSubmatch(sanitized, -1) {
		cteNames[strings.ToLower(match[1])] = true
	}

	referenced := make(map[string]bool)

	for _, match := range tableRefRe.FindAllStringSubmatch(sanitized, -1) {
		table := strings.ToLower(match[1])

		if _, ok := catalog[table]; !ok {
			if !cteNames[table] {
				report.addError(KindUnknownTable, fmt.Sprintf("unknown table %q", table))
				continue
			}

			unchecked[table] = true
		} else {
			referenced[table] = true
		}

		aliases[table] = table

		if alias := strings.ToLower(match[2]); alias != "" && !sqlKeywords[alias] {
			aliases[alias] = table
		}
	}

	for table := range referenced {
		report.ReferencedTables = append(report.ReferencedTables, table)
	}

	sort.Strings(report.ReferencedTables)

	return aliases, unchecked
}

// checkColumns verifies every column reference against the catalog.
// Qualified references resolve through the alias map; unqualified ones
// must exist in exactly one referenced table.
func (v *Validator) checkColumns(sanitized string, aliases map[string]string, unchecked map[string]bool, catalog map[string][]string, report *Report) {
	if len(aliases) == 0 {
		return
	}

	columnsOf := func(table string) map[string]bool {
		set := make(map[string]bool)
		for _, col := range catalog[table] {
			set[strings.ToLower(col)] = true
		}

		return set
	}

	remaining := sanitized

	for _, match := range qualifiedRe.FindAllStringSubmatch(sanitized, -1) {
		qualifier := strings.ToLower(match[1])
		column := strings.ToLower(match[2])

		table, ok := aliases[qualifier]
		if !ok {
			report.addError(KindUnknownTable, fmt.Sprintf("unknown table or alias %q", qualifier))
			continue
		}

		if unchecked[table] {
			continue
		}

		if column != "*" && !columnsOf(table)[column] {
			report.addError(KindUnknownColumn,
				fmt.Sprintf("unknown column %q in table %q", column, table))
		}
	}

	remaining = qualifiedRe.ReplaceAllString(remaining, " ")
	remaining = funcCallRe.ReplaceAllString(remaining, " (")
	remaining = tableRefRe.ReplaceAllString(remaining, " ")

	referenced := make([]string, 0, len(aliases))
	seen := make(map[string]bool)

	for _, table := range aliases {
		if !seen[table] && !unchecked[table] {
			seen[table] = true

			referenced = append(referenced, table)
		}
	}

	sort.Strings(referenced)

	reported := make(map[string]bool)

	for _, token := range identRe.FindAllString(remaining, -1) {
		word := strings.ToLower(token)

		if sqlKeywords[word] || aliases[word] != "" || reported[word] {
			continue
		}

		if word[0] >= '0' && word[0] <= '9' {
			continue
		}

		var homes []string
		for _, table := range referenced {
			if columnsOf(table)[word] {
				homes = append(homes, table)
			}
		}

		switch len(homes) {
		case 0:
			// tokens that are not columns anywhere are treated as output
			// aliases unless they look like a stray reference
			continue
		case 1:
			// resolved
		default:
			reported[word] = true
			report.addError(KindAmbiguousColumn,
				fmt.Sprintf("column %q exists in tables %s and must be qualified",
					word, strings.Join(homes, ", ")))
		}
	}

	if len(unchecked) == 0 {
		v.checkUnknownSelectColumns(sanitized, aliases, columnsOf, referenced, report)
	}
}

// checkUnknownSelectColumns flags bare select-list items that match no
// referenced table. Output aliases introduced with AS are exempt.
func (v *Validator) checkUnknownSelectColumns(sanitized string, aliases map[string]string, columnsOf func(string) map[string]bool, referenced []string, report *Report) {
	match := selectListRe.FindStringSubmatch(sanitized)
	if match == nil {
		return
	}

	for _, item := range splitTopLevel(match[1]) {
		item = strings.TrimSpace(item)
		if item == "" || item == "*" {
			continue
		}

		// drop an output alias
		if idx := asIndex(item); idx >= 0 {
			item = strings.TrimSpace(item[:idx])
		}

		// only bare identifiers are checked; expressions were already
		// covered by the token scan
		if !identRe.MatchString(item) || identRe.FindString(item) != item {
			continue
		}

		word := strings.ToLower(item)
		if sqlKeywords[word] || aliases[word] != "" {
			continue
		}

		found := false
		for _, table := range referenced {
			if columnsOf(table)[word] {
				found = true
				break
			}
		}

		if !found {
			report.addError(KindUnknownColumn, fmt.Sprintf("unknown column %q", word))
		}
	}
}

// checkAggregates enforces GROUP BY consistency for plain queries.
// Statements starting with WITH are skipped; clause boundaries inside
// CTE bodies cannot be located reliably without a full parser.
func (v *Validator) checkAggregates(sanitized string, report *Report) {
	lower := strings.ToLower(strings.TrimSpace(sanitized))
	if strings.HasPrefix(lower, "with") {
		return
	}

	match := selectListRe.FindStringSubmatch(sanitized)
	if match == nil {
		return
	}

	items := splitTopLevel(match[1])

	var bare []string

	hasAggregate := false

	for _, item := range items {
		item = strings.TrimSpace(item)

		if aggregateRe.MatchString(item) {
			hasAggregate = true
			continue
		}

		if idx := asIndex(item); idx >= 0 {
			item = strings.TrimSpace(item[:idx])
		}

		if bareColRe.MatchString(item) {
			bare = append(bare, strings.ToLower(stripQualifier(item)))
		}
	}

	if !hasAggregate || len(bare) == 0 {
		return
	}

	groupMatch := groupByRe.FindStringSubmatch(sanitized)
	if groupMatch == nil {
		report.addError(KindAggregateMisuse,
			"select list mixes aggregates and plain columns without GROUP BY")
		return
	}

	grouped := make(map[string]bool)
	for _, col := range splitTopLevel(groupMatch[1]) {
		grouped[strings.ToLower(stripQualifier(strings.TrimSpace(col)))] = true
	}

	for _, col := range bare {
		if !grouped[col] {
			report.addError(KindAggregateMisuse,
				fmt.Sprintf("column %q must appear in GROUP BY", col))
		}
	}
}

// checkWarnings emits advisory notes that never block execution
func (v *Validator) checkWarnings(sanitized string, report *Report) {
	lower := strings.ToLower(sanitized)

	if strings.Contains(lower, "select *") {
		report.addWarning("SELECT * returns every column; list the columns you need")
	}

	if !strings.Contains(lower, "limit") && !aggregateRe.MatchString(sanitized) {
		report.addWarning("no LIMIT clause; large result sets will be truncated at the row cap")
	}
}

// stripLiteralsAndComments blanks string literals, line comments and
// block comments so structural checks see only the statement skeleton.
func stripLiteralsAndComments(sql string) string {
	var sb strings.Builder

	runes := []rune(sql)
	for i := 0; i < len(runes); i++ {
		switch {
		case runes[i] == '\'':
			sb.WriteRune('\'')
			i++

			for i < len(runes) {
				if runes[i] == '\'' {
					// doubled quote is an escaped quote inside the literal
					if i+1 < len(runes) && runes[i+1] == '\'' {
						i += 2
						continue
					}

					break
				}

				i++
			}

			if i < len(runes) {
				sb.WriteRune('\'')
			}
		case runes[i] == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}

			sb.WriteRune(' ')
		case runes[i] == '/' && i+1 < len(runes) && runes[i+1] == '*':
			i += 2
			for i+1 < len(runes) && !(runes[i] == '*' && runes[i+1] == '/') {
				i++
			}

			i++

			sb.WriteRune(' ')
		default:
			sb.WriteRune(runes[i])
		}
	}

	return sb.String()
}

// splitTopLevel splits a clause on commas outside parentheses
func splitTopLevel(clause string) []string {
	var parts []string

	depth := 0
	start := 0

	for i, r := range clause {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, clause[start:i])
				start = i + 1
			}
		}
	}

	parts = append(parts, clause[start:])

	return parts
}

var (
	asRe      = regexp.MustCompile(`(?i)\s+as\s+[a-zA-Z_]\w*\s*$`)
	bareColRe = regexp.MustCompile(`^[a-zA-Z_]\w*(\.[a-zA-Z_]\w*)?$`)
)

// asIndex returns the start of a trailing AS alias, or -1
func asIndex(item string) int {
	loc := asRe.FindStringIndex(item)
	if loc == nil {
		return -1
	}

	return loc[0]
}

// stripQualifier drops a leading table or alias qualifier
func stripQualifier(item string) string {
	if idx := strings.LastIndex(item, "."); idx >= 0 {
		return item[idx+1:]
	}

	return item
}
