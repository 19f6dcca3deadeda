package internal

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prop-engine/internal/cache"
	"prop-engine/internal/model"
	"prop-engine/internal/repo"
	"prop-engine/internal/snapshot"
	"prop-engine/internal/store"
)

var now = time.Date(2026, 1, 9, 18, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *store.SQL {
	t.Helper()
	s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "props.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, model.TablePlayers, []store.Row{
		{"id": "p1", "name": "Jalen Ray", "team": "Boston", "position": "G", "sport": "NBA"},
		{"id": "p2", "name": "Marcus Dale", "team": "Boston", "position": "F", "sport": "NBA"},
	}, []string{"id"}))
	require.NoError(t, s.Upsert(ctx, model.TableGames, []store.Row{
		{"id": "g1", "sport": "NBA", "home_team": "Boston", "away_team": "Miami", "start_time": "2026-01-10T00:30:00Z"},
	}, []string{"id"}))

	var stats []store.Row
	days := []string{"2026-01-08", "2026-01-06", "2026-01-04", "2026-01-02", "2025-12-31"}
	for i, day := range days {
		opp := "Denver"
		if i%2 == 0 {
			opp = "Miami"
		}
		stats = append(stats, store.Row{
			"player_id": "p1", "game_id": "h" + day, "date": day, "opponent": opp,
			"home": i%2 == 0, "minutes_played": 34.0,
			"points":   []float64{30, 25, 28, 22, 31}[i],
			"rebounds": []float64{6, 8, 5, 7, 9}[i],
			"assists":  []float64{4, 5, 6, 3, 2}[i],
		})
	}
	require.NoError(t, s.Upsert(ctx, model.TableGameStats, stats, []string{"player_id", "game_id"}))

	require.NoError(t, s.Upsert(ctx, model.TableInjuries, []store.Row{
		{"id": "i1", "player_id": "p2", "status": "active", "severity": "out", "reported_date": "2026-01-08"},
	}, []string{"id"}))

	require.NoError(t, s.Upsert(ctx, model.TablePropQuotes, []store.Row{
		{"id": "q1", "player_id": "p1", "game_id": "g1", "prop_type": "points", "line": 27.5, "over_price": -110, "under_price": -110, "book": "fanduel", "created_at": "2026-01-09T10:00:00Z"},
		{"id": "q2", "player_id": "p1", "game_id": "g1", "prop_type": "points", "line": 26.5, "over_price": -115, "under_price": -105, "book": "Bovada", "created_at": "2026-01-09T09:00:00Z"},
		{"id": "q3", "player_id": "p1", "game_id": "g1", "prop_type": "rebounds", "line": 6.5, "over_price": -120, "under_price": 100, "book": "fanduel", "created_at": "2026-01-09T09:30:00Z"},
		{"id": "q4", "player_id": "p1", "game_id": "g1", "prop_type": "pra", "line": 40.5, "over_price": -110, "under_price": -110, "book": "fanduel", "created_at": "2026-01-09T09:30:00Z"},
	}, []string{"id"}))

	require.NoError(t, s.Upsert(ctx, model.TableDFSLines, []store.Row{
		{"id": "d1", "player_id": "p1", "game_id": "g1", "prop_type": "points", "source": "prizepicks", "line": 28.0, "scraped_at": "2026-01-09T08:00:00Z"},
	}, []string{"id"}))
}

func newBuilder(s store.Store) *snapshot.Builder {
	r := repo.New(s, cache.New(func() time.Time { return now }), repo.DefaultChunks(), nil)
	return snapshot.New(r, snapshot.DefaultConfig(), func() time.Time { return now }, nil)
}

// TestSnapshotPipeline runs both jobs against sqlite and reads the rows back.
func TestSnapshotPipeline(t *testing.T) {
	s := openStore(t)
	seed(t, s)
	ctx := context.Background()

	projections, err := newBuilder(s).BuildProjections(ctx, snapshot.Options{Hours: 48})
	require.NoError(t, err)
	assert.Equal(t, 4, projections.Scanned)
	assert.Equal(t, 3, projections.Unique)
	assert.Equal(t, 3, projections.Written)

	rows, err := s.Select(ctx, store.Query{
		Table:   model.TableProjectionSnapshots,
		Filters: []store.Filter{store.Eq("prop_type", "points")},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 26.5, *rows[0].Float("book_line"), "reference book line anchors the projection")
	assert.Equal(t, "Miami", rows[0].String("opponent"))
	assert.Equal(t, true, *rows[0].Bool("is_home"))
	assert.Equal(t, 2, *rows[0].Int("rest_days"))

	var factors map[string]any
	require.NoError(t, json.Unmarshal([]byte(rows[0].String("factors")), &factors))
	assert.NotEmpty(t, factors)

	feed, err := newBuilder(s).BuildFeed(ctx, snapshot.Options{Hours: 48})
	require.NoError(t, err)
	assert.Equal(t, 4, feed.Unique)
	assert.Equal(t, 4, feed.Written)

	rows, err = s.Select(ctx, store.Query{
		Table: model.TablePropFeedSnapshots,
		Filters: []store.Filter{
			store.Eq("prop_type", "points"),
			store.Eq("book", "fanduel"),
		},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "Jalen Ray", row.String("player_name"))
	assert.Equal(t, 28.0, *row.Float("dfs_line"))
	assert.NotNil(t, row.Float("projection_line"))
	assert.Contains(t, row.String("context_summary"), "OUT: Marcus Dale")
	assert.Equal(t, 5, *row.Int("hitrate_games"))

	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(row.String("metadata")), &meta))
	assert.Contains(t, meta, "sparkline_values")
}

// TestSnapshotPipelineIdempotent re-runs both jobs and checks no rows are added.
func TestSnapshotPipelineIdempotent(t *testing.T) {
	s := openStore(t)
	seed(t, s)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := newBuilder(s).BuildProjections(ctx, snapshot.Options{Hours: 48})
		require.NoError(t, err)
		_, err = newBuilder(s).BuildFeed(ctx, snapshot.Options{Hours: 48})
		require.NoError(t, err)
	}

	projections, err := s.Select(ctx, store.Query{Table: model.TableProjectionSnapshots})
	require.NoError(t, err)
	assert.Len(t, projections, 3)

	feed, err := s.Select(ctx, store.Query{Table: model.TablePropFeedSnapshots})
	require.NoError(t, err)
	assert.Len(t, feed, 4)
}
