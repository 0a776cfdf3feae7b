package storage

import (
	"context"

	"github.com/sqlball/sqlball/internal/errors"
)

// Seed loads a small sample dataset when the store is empty. Existing data
// is left untouched.
func (s *Store) Seed(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM teams").Scan(&count); err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to check seed state")
	}

	if count > 0 {
		return nil
	}

	statements := []string{
		`INSERT INTO teams (id, name, short_name, stadium, founded) VALUES
			(1, 'Arsenal', 'ARS', 'Emirates Stadium', 1886),
			(2, 'Chelsea', 'CHE', 'Stamford Bridge', 1905),
			(3, 'Liverpool', 'LIV', 'Anfield', 1892),
			(4, 'Man City', 'MCI', 'Etihad Stadium', 1880),
			(5, 'Man Utd', 'MUN', 'Old Trafford', 1878),
			(6, 'Tottenham', 'TOT', 'Tottenham Hotspur Stadium', 1882),
			(7, 'Everton', 'EVE', 'Goodison Park', 1878),
			(8, 'Newcastle', 'NEW', 'St James'' Park', 1892)`,

		`INSERT INTO players (id, name, position, team, nation, age) VALUES
			(1, 'Bukayo Saka', 'FWD', 'Arsenal', 'England', 23),
			(2, 'Martin Odegaard', 'MID', 'Arsenal', 'Norway', 26),
			(3, 'David Raya', 'GK', 'Arsenal', 'Spain', 29),
			(4, 'Cole Palmer', 'MID', 'Chelsea', 'England', 23),
			(5, 'Mohamed Salah', 'FWD', 'Liverpool', 'Egypt', 32),
			(6, 'Virgil van Dijk', 'DEF', 'Liverpool', 'Netherlands', 33),
			(7, 'Erling Haaland', 'FWD', 'Man City', 'Norway', 24),
			(8, 'Rodri', 'MID', 'Man City', 'Spain', 28),
			(9, 'Bruno Fernandes', 'MID', 'Man Utd', 'Portugal', 30),
			(10, 'Son Heung-min', 'FWD', 'Tottenham', 'South Korea', 32),
			(11, 'Alexander Isak', 'FWD', 'Newcastle', 'Sweden', 25),
			(12, 'Jordan Pickford', 'GK', 'Everton', 'England', 31)`,

		`INSERT INTO matches (id, home_team, away_team, home_score, away_score, season, gameweek, played_at) VALUES
			(1, 'Arsenal', 'Chelsea', 3, 1, '2024-2025', 1, DATE '2024-08-17'),
			(2, 'Liverpool', 'Man Utd', 4, 2, '2024-2025', 1, DATE '2024-08-18'),
			(3, 'Man City', 'Tottenham', 2, 2, '2024-2025', 2, DATE '2024-08-24'),
			(4, 'Everton', 'Newcastle', 0, 3, '2024-2025', 2, DATE '2024-08-25'),
			(5, 'Chelsea', 'Liverpool', 1, 1, '2024-2025', 3, DATE '2024-08-31'),
			(6, 'Tottenham', 'Arsenal', 2, 3, '2024-2025', 3, DATE '2024-09-01'),
			(7, 'Man Utd', 'Man City', 0, 2, '2024-2025', 4, DATE '2024-09-14'),
			(8, 'Newcastle', 'Liverpool', 3, 3, '2024-2025', 4, DATE '2024-09-15')`,

		`INSERT INTO player_stats (player_id, season, goals_scored, assists, minutes, goals_conceded, expected_goals, form) VALUES
			(1, '2024-2025', 12, 9, 2700, 0, 10.4, 7.8),
			(2, '2024-2025', 8, 10, 2610, 0, 6.2, 7.2),
			(3, '2024-2025', 0, 0, 2880, 24, 0.0, 6.9),
			(4, '2024-2025', 15, 8, 2790, 0, 13.1, 8.1),
			(5, '2024-2025', 22, 13, 2850, 0, 19.7, 8.9),
			(6, '2024-2025', 3, 1, 2880, 28, 2.1, 7.5),
			(7, '2024-2025', 27, 4, 2700, 0, 24.9, 9.1),
			(8, '2024-2025', 5, 7, 2520, 0, 3.8, 7.7),
			(9, '2024-2025', 9, 9, 2880, 0, 8.6, 7.0),
			(10, '2024-2025', 14, 7, 2610, 0, 12.3, 7.4),
			(11, '2024-2025', 19, 5, 2560, 0, 17.2, 8.3),
			(12, '2024-2025', 0, 0, 2880, 38, 0.0, 6.2)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, errors.ErrTypeDatabase, "failed to seed sample data")
		}
	}

	return nil
}
