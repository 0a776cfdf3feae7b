package vocab

import (
	"regexp"
	"sort"
	"strings"
)

// hintMarker separates the original question from appended schema hints.
// Its presence makes Normalize a fixed point.
const hintMarker = " [schema hints:"

// Mapping describes a single domain phrase rewrite
type Mapping struct {
	Hint  string // canonical schema-aligned hint, e.g. "position = 'FWD'"
	Table string // table most likely involved, empty when ambiguous
}

// Hints carries contextual processing hints extracted from a question
type Hints struct {
	NeedsSeason   bool
	DefaultLimit  int
	OrderDesc     bool
	Gameweek      int // 0 when not mentioned
	NeedsGrouping bool
}

// Mapper rewrites domain-specific football phrases into canonical
// schema-aligned hints. It is a pure function of (question, mapping):
// no network, no state.
type Mapper struct {
	phrases map[string]Mapping
}

var gameweekRe = regexp.MustCompile(`gameweek (\d+)`)

// NewMapper returns a mapper loaded with the default football vocabulary
func NewMapper() *Mapper {
	return NewMapperWithPhrases(defaultPhrases())
}

// NewMapperWithPhrases returns a mapper using a custom phrase table
func NewMapperWithPhrases(phrases map[string]Mapping) *Mapper {
	return &Mapper{phrases: phrases}
}

// defaultPhrases is the built-in football vocabulary: positions, team
// groups, statistical concepts, time periods and performance metrics.
func defaultPhrases() map[string]Mapping {
	phrases := map[string]Mapping{
		// Positions
		"goalkeeper": {Hint: "position = 'GK'", Table: "players"},
		"keeper":     {Hint: "position = 'GK'", Table: "players"},
		"defender":   {Hint: "position = 'DEF'", Table: "players"},
		"midfielder": {Hint: "position = 'MID'", Table: "players"},
		"striker":    {Hint: "position = 'FWD'", Table: "players"},
		"forward":    {Hint: "position = 'FWD'", Table: "players"},
		"attacker":   {Hint: "position = 'FWD'", Table: "players"},
		"winger":     {Hint: "position IN ('MID', 'FWD')", Table: "players"},

		// Statistical concepts
		"clean sheet":       {Hint: "goals_conceded = 0", Table: "player_stats"},
		"hat trick":         {Hint: "goals_scored >= 3", Table: "player_stats"},
		"hattrick":          {Hint: "goals_scored >= 3", Table: "player_stats"},
		"brace":             {Hint: "goals_scored = 2", Table: "player_stats"},
		"goal contribution": {Hint: "(goals_scored + assists)", Table: "player_stats"},
		"goal involvement":  {Hint: "(goals_scored + assists)", Table: "player_stats"},
		"total goals":       {Hint: "(home_score + away_score)", Table: "matches"},

		// Team groups
		"big six": {
			Hint:  "team IN ('Arsenal', 'Chelsea', 'Liverpool', 'Man City', 'Man Utd', 'Tottenham')",
			Table: "teams",
		},
		"manchester clubs": {Hint: "team IN ('Man City', 'Man Utd')", Table: "teams"},
		"north london":     {Hint: "team IN ('Arsenal', 'Tottenham')", Table: "teams"},
		"merseyside":       {Hint: "team IN ('Liverpool', 'Everton')", Table: "teams"},

		// Time periods
		"this season": {Hint: "season = '2024-2025'"},
		"last season": {Hint: "season = '2023-2024'"},

		// Performance metrics
		"top scorer":   {Hint: "ORDER BY goals_scored DESC", Table: "player_stats"},
		"top scorers":  {Hint: "ORDER BY goals_scored DESC", Table: "player_stats"},
		"golden boot":  {Hint: "ORDER BY goals_scored DESC LIMIT 1", Table: "player_stats"},
		"most assists": {Hint: "ORDER BY assists DESC", Table: "player_stats"},
		"best form":    {Hint: "ORDER BY form DESC", Table: "player_stats"},
		"highest xg":   {Hint: "ORDER BY expected_goals DESC", Table: "player_stats"},
	}

	return phrases
}

// Mappings returns the phrase -> hint pairs found in the question,
// matched case-insensitively against the original text only.
func (m *Mapper) Mappings(question string) map[string]string {
	original := stripHints(question)
	lower := strings.ToLower(original)

	found := make(map[string]string)

	for phrase, mapping := range m.phrases {
		if strings.Contains(lower, phrase) {
			found[phrase] = mapping.Hint
		}
	}

	return found
}

// teamAliases maps common ways of naming a club to its canonical name
// as stored in the teams table.
var teamAliases = map[string]string{
	"arsenal":           "Arsenal",
	"gunners":           "Arsenal",
	"chelsea":           "Chelsea",
	"liverpool":         "Liverpool",
	"man city":          "Man City",
	"manchester city":   "Man City",
	"man utd":           "Man Utd",
	"man united":        "Man Utd",
	"manchester united": "Man Utd",
	"tottenham":         "Tottenham",
	"spurs":             "Tottenham",
	"everton":           "Everton",
	"toffees":           "Everton",
	"newcastle":         "Newcastle",
	"magpies":           "Newcastle",
}

// teamGroups expands a group nickname to its member clubs
var teamGroups = map[string][]string{
	"big six":          {"Arsenal", "Chelsea", "Liverpool", "Man City", "Man Utd", "Tottenham"},
	"manchester clubs": {"Man City", "Man Utd"},
	"north london":     {"Arsenal", "Tottenham"},
	"merseyside":       {"Liverpool", "Everton"},
}

// TeamNames returns the canonical club names the question refers to,
// expanding group nicknames, sorted for determinism.
func (m *Mapper) TeamNames(question string) []string {
	lower := strings.ToLower(stripHints(question))

	seen := make(map[string]bool)

	for alias, name := range teamAliases {
		if strings.Contains(lower, alias) {
			seen[name] = true
		}
	}

	for group, members := range teamGroups {
		if strings.Contains(lower, group) {
			for _, name := range members {
				seen[name] = true
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Tables returns the distinct tables implied by phrases in the question,
// sorted for determinism.
func (m *Mapper) Tables(question string) []string {
	lower := strings.ToLower(stripHints(question))

	seen := make(map[string]bool)

	for phrase, mapping := range m.phrases {
		if mapping.Table != "" && strings.Contains(lower, phrase) {
			seen[mapping.Table] = true
		}
	}

	tables := make([]string, 0, len(seen))
	for table := range seen {
		tables = append(tables, table)
	}

	sort.Strings(tables)

	return tables
}

// Normalize appends canonical schema hints to the question. The original
// text is always preserved and hints are never removed. Normalizing an
// already-normalized question returns it unchanged (idempotence).
func (m *Mapper) Normalize(question string) string {
	if strings.Contains(question, hintMarker) {
		return question
	}

	mappings := m.Mappings(question)
	if len(mappings) == 0 {
		return question
	}

	phrases := make([]string, 0, len(mappings))
	for phrase := range mappings {
		phrases = append(phrases, phrase)
	}

	sort.Strings(phrases)

	var sb strings.Builder

	sb.WriteString(question)
	sb.WriteString(hintMarker)

	for i, phrase := range phrases {
		if i > 0 {
			sb.WriteString(";")
		}

		sb.WriteString(" ")
		sb.WriteString(phrase)
		sb.WriteString(" -> ")
		sb.WriteString(mappings[phrase])
	}

	sb.WriteString("]")

	return sb.String()
}

// ContextHints extracts processing hints for the pipeline
func (m *Mapper) ContextHints(question string) Hints {
	lower := strings.ToLower(stripHints(question))

	hints := Hints{
		NeedsSeason:  true,
		DefaultLimit: 10,
	}

	for _, word := range []string{"top", "best", "most", "highest"} {
		if strings.Contains(lower, word) {
			hints.OrderDesc = true
			break
		}
	}

	for _, word := range []string{"total", "sum", "average", "count"} {
		if strings.Contains(lower, word) {
			hints.NeedsGrouping = true
			break
		}
	}

	if match := gameweekRe.FindStringSubmatch(lower); match != nil {
		gw := 0
		for _, c := range match[1] {
			gw = gw*10 + int(c-'0')
		}

		hints.Gameweek = gw
	}

	return hints
}

// stripHints returns the question without a previously appended hint block
func stripHints(question string) string {
	if idx := strings.Index(question, hintMarker); idx >= 0 {
		return question[:idx]
	}

	return question
}
