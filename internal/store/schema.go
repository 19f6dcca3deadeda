package store

import (
	"context"
	"fmt"
	"strings"
)

// schema uses types both sqlite and postgres accept. Timestamps are ISO 8601
// text so ordering and comparison are lexicographic on either engine.
const schema = `
CREATE TABLE IF NOT EXISTS players (
	id TEXT PRIMARY KEY,
	name TEXT,
	team TEXT,
	position TEXT,
	sport TEXT,
	external_id TEXT
);

CREATE TABLE IF NOT EXISTS games (
	id TEXT PRIMARY KEY,
	sport TEXT,
	home_team TEXT,
	away_team TEXT,
	start_time TEXT,
	status TEXT
);

CREATE TABLE IF NOT EXISTS player_game_stats (
	player_id TEXT NOT NULL,
	game_id TEXT NOT NULL,
	date TEXT NOT NULL,
	opponent TEXT,
	home BOOLEAN,
	minutes_played DOUBLE PRECISION,
	points DOUBLE PRECISION,
	rebounds DOUBLE PRECISION,
	assists DOUBLE PRECISION,
	three_pointers_made DOUBLE PRECISION,
	steals DOUBLE PRECISION,
	blocks DOUBLE PRECISION,
	turnovers DOUBLE PRECISION,
	headshots DOUBLE PRECISION,
	first_kills DOUBLE PRECISION,
	passing_yards DOUBLE PRECISION,
	rushing_yards DOUBLE PRECISION,
	receptions DOUBLE PRECISION,
	receiving_yards DOUBLE PRECISION,
	passing_touchdowns DOUBLE PRECISION,
	rushing_touchdowns DOUBLE PRECISION,
	UNIQUE (player_id, game_id)
);

CREATE INDEX IF NOT EXISTS idx_stats_player_date ON player_game_stats(player_id, date);
CREATE INDEX IF NOT EXISTS idx_stats_opponent_date ON player_game_stats(opponent, date);

CREATE TABLE IF NOT EXISTS player_prop_odds (
	id TEXT PRIMARY KEY,
	player_id TEXT NOT NULL,
	game_id TEXT NOT NULL,
	prop_type TEXT NOT NULL,
	line DOUBLE PRECISION,
	over_price INTEGER,
	under_price INTEGER,
	book TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_prop_odds_created ON player_prop_odds(created_at);

CREATE TABLE IF NOT EXISTS player_injuries (
	id TEXT PRIMARY KEY,
	player_id TEXT NOT NULL,
	status TEXT,
	severity TEXT,
	impact_percentage DOUBLE PRECISION,
	injury_type TEXT,
	notes TEXT,
	reported_date TEXT
);

CREATE TABLE IF NOT EXISTS dfs_lines (
	id TEXT PRIMARY KEY,
	player_id TEXT NOT NULL,
	game_id TEXT NOT NULL,
	prop_type TEXT NOT NULL,
	source TEXT NOT NULL,
	line DOUBLE PRECISION,
	scraped_at TEXT
);

CREATE TABLE IF NOT EXISTS odds_snapshots (
	id TEXT PRIMARY KEY,
	game_id TEXT NOT NULL,
	market_type TEXT NOT NULL,
	market_label TEXT,
	line DOUBLE PRECISION,
	price INTEGER,
	book TEXT,
	created_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_odds_game_market ON odds_snapshots(game_id, market_type, created_at);

CREATE TABLE IF NOT EXISTS player_projection_snapshots (
	player_id TEXT NOT NULL,
	game_id TEXT NOT NULL,
	prop_type TEXT NOT NULL,
	sport TEXT,
	opponent TEXT,
	is_home BOOLEAN,
	projected_line DOUBLE PRECISION,
	confidence DOUBLE PRECISION,
	baseline_source TEXT,
	book_line DOUBLE PRECISION,
	factors TEXT,
	sample_size INTEGER,
	injury_status TEXT,
	rest_days INTEGER,
	source_prop_id TEXT,
	model_version TEXT,
	snapshot_at TEXT,
	UNIQUE (player_id, game_id, prop_type)
);

CREATE TABLE IF NOT EXISTS prop_feed_snapshots (
	prop_id TEXT,
	player_id TEXT NOT NULL,
	game_id TEXT NOT NULL,
	prop_type TEXT NOT NULL,
	line DOUBLE PRECISION NOT NULL,
	book TEXT NOT NULL,
	sport TEXT,
	player_name TEXT,
	team TEXT,
	opponent TEXT,
	is_home BOOLEAN,
	over_price INTEGER,
	under_price INTEGER,
	projection_line DOUBLE PRECISION,
	projection_confidence DOUBLE PRECISION,
	projection_baseline TEXT,
	projection_book_line DOUBLE PRECISION,
	edge DOUBLE PRECISION,
	edge_side TEXT,
	edge_prob DOUBLE PRECISION,
	ev_odds INTEGER,
	hitrate_over_pct DOUBLE PRECISION,
	hitrate_under_pct DOUBLE PRECISION,
	hitrate_games INTEGER,
	dfs_line DOUBLE PRECISION,
	context_summary TEXT,
	metadata TEXT,
	source_prop_created_at TEXT,
	snapshot_at TEXT,
	UNIQUE (player_id, game_id, prop_type, line, book)
);
`

// EnsureSchema creates the input and snapshot tables if they do not exist.
func (s *SQL) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating tables: %w", err)
		}
	}
	return nil
}
