package storage

import "github.com/sqlball/sqlball/internal/schema"

// tableAnnotations describes each core table for schema context retrieval
var tableAnnotations = map[string]schema.Document{
	"teams": {
		Table:       "teams",
		Description: "football clubs with their short name, stadium and founding year",
		Aliases:     []string{"clubs", "sides", "squads"},
		RelatedTo:   []string{"players", "matches"},
	},
	"players": {
		Table:       "players",
		Description: "player roster with position, team and nationality",
		Aliases:     []string{"footballers", "squad members"},
		RelatedTo:   []string{"teams", "player_stats"},
	},
	"matches": {
		Table:       "matches",
		Description: "match results with home and away teams, scores, season and gameweek",
		Aliases:     []string{"games", "fixtures", "results"},
		RelatedTo:   []string{"teams"},
	},
	"player_stats": {
		Table:       "player_stats",
		Description: "per-season player statistics covering goals, assists, minutes and form",
		Aliases:     []string{"statistics", "performance", "stats"},
		RelatedTo:   []string{"players"},
	},
}

// columnAnnotations maps table.column to description and aliases
var columnAnnotations = map[string]schema.Document{
	"teams.name":        {Description: "full club name", Aliases: []string{"club", "team name"}},
	"teams.short_name":  {Description: "three letter club code"},
	"teams.stadium":     {Description: "home ground of the club", Aliases: []string{"ground", "home venue"}},
	"teams.founded":     {Description: "year the club was founded"},
	"players.name":      {Description: "player full name"},
	"players.position":  {Description: "playing position code GK, DEF, MID or FWD", Aliases: []string{"role", "goalkeeper", "defender", "midfielder", "striker", "forward"}},
	"players.team":      {Description: "club the player belongs to"},
	"players.nation":    {Description: "player nationality", Aliases: []string{"country", "nationality"}},
	"players.age":       {Description: "player age in years"},
	"matches.home_team": {Description: "club playing at home"},
	"matches.away_team": {Description: "club playing away"},
	"matches.home_score": {
		Description: "goals scored by the home team",
		Aliases:     []string{"home goals"},
	},
	"matches.away_score": {
		Description: "goals scored by the away team",
		Aliases:     []string{"away goals"},
	},
	"matches.season":   {Description: "season label such as 2024-2025"},
	"matches.gameweek": {Description: "round number within the season", Aliases: []string{"round", "matchday"}},
	"matches.played_at": {
		Description: "kickoff date of the match",
		Aliases:     []string{"date", "kickoff"},
	},
	"player_stats.player_id":      {Description: "player the statistics belong to"},
	"player_stats.season":         {Description: "season label the statistics cover"},
	"player_stats.goals_scored":   {Description: "goals scored across the season", Aliases: []string{"goals", "scored"}},
	"player_stats.assists":        {Description: "assists provided across the season"},
	"player_stats.minutes":        {Description: "minutes played across the season", Aliases: []string{"playing time"}},
	"player_stats.goals_conceded": {Description: "goals conceded while on the pitch", Aliases: []string{"conceded"}},
	"player_stats.expected_goals": {Description: "expected goals accumulated over the season", Aliases: []string{"xg"}},
	"player_stats.form":           {Description: "recent form rating between 0 and 10"},
}

func tableDocument(table string) schema.Document {
	if doc, ok := tableAnnotations[table]; ok {
		return doc
	}

	return schema.Document{Table: table, Description: "database table " + table}
}

func columnDocument(table, column, dataType string) schema.Document {
	doc, ok := columnAnnotations[table+"."+column]
	if !ok {
		doc = schema.Document{Description: "column " + column + " of " + table}
	}

	doc.Table = table
	doc.Column = column
	doc.DataType = dataType

	return doc
}
