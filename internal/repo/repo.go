// Package repo reads and writes the engine's records through a store.Store.
// Lookups are cached for the life of one Repo, batched lookups are chunked to
// bound request size, and rows that cannot be decoded are skipped.
package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"prop-engine/internal/cache"
	"prop-engine/internal/model"
	"prop-engine/internal/outcome"
	"prop-engine/internal/store"
)

// Chunks bounds how many ids go into one request.
type Chunks struct {
	Players     int
	Games       int
	Stats       int
	Projections int
	Upsert      int
}

// DefaultChunks returns the chunk sizes used by the snapshot jobs.
func DefaultChunks() Chunks {
	return Chunks{
		Players:     200,
		Games:       200,
		Stats:       25,
		Projections: 50,
		Upsert:      100,
	}
}

// Repo is scoped to one batch run. Cached slices are shared and must not be
// modified by callers.
type Repo struct {
	store  store.Store
	cache  *cache.TTL
	chunks Chunks
	logger *zap.Logger
}

// New creates a Repo. A nil cache disables caching.
func New(s store.Store, c *cache.TTL, chunks Chunks, logger *zap.Logger) *Repo {
	if c == nil {
		c = cache.New(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{store: s, cache: c, chunks: chunks, logger: logger}
}

// Ping checks the store is reachable.
func (r *Repo) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// Chunk splits ids into slices of at most size.
func Chunk[T any](ids []T, size int) [][]T {
	if size <= 0 {
		size = len(ids)
	}
	var out [][]T
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}

// uniqueSorted drops empty and duplicate ids.
func uniqueSorted(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (r *Repo) selectStats(ctx context.Context, q store.Query) ([]model.GameStatRecord, error) {
	q.Table = model.TableGameStats
	if q.OrderBy == "" {
		q.OrderBy, q.Desc = "date", true
	}
	rows, err := r.store.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]model.GameStatRecord, 0, len(rows))
	for _, row := range rows {
		if s, ok := decodeStat(row); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// RecentQuotes returns quotes observed at or after since, newest first.
func (r *Repo) RecentQuotes(ctx context.Context, since time.Time, limit int) ([]model.PropQuote, error) {
	rows, err := r.store.Select(ctx, store.Query{
		Table:   model.TablePropQuotes,
		Filters: []store.Filter{store.Gte("created_at", since.UTC().Format(time.RFC3339))},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching recent quotes: %w", err)
	}
	quotes := make([]model.PropQuote, 0, len(rows))
	for _, row := range rows {
		q, ok := decodeQuote(row)
		if !ok {
			r.logger.Debug("skipping undecodable quote", zap.String("id", row.String("id")))
			continue
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// PlayersByID loads players in chunks. A failed chunk is logged and skipped.
func (r *Repo) PlayersByID(ctx context.Context, ids []string) map[string]model.Player {
	ids = uniqueSorted(ids)
	key := cache.Key("players", strings.Join(ids, ","))
	players, _ := cache.Fetch(r.cache, key, cache.Long, func() (map[string]model.Player, error) {
		out := make(map[string]model.Player, len(ids))
		for _, chunk := range Chunk(ids, r.chunks.Players) {
			rows, err := r.store.Select(ctx, store.Query{
				Table:   model.TablePlayers,
				Filters: []store.Filter{store.In("id", chunk)},
			})
			if err != nil {
				r.logger.Warn("player chunk failed", zap.Int("ids", len(chunk)), zap.Error(err))
				continue
			}
			for _, row := range rows {
				if p, ok := decodePlayer(row); ok {
					out[p.ID] = p
				}
			}
		}
		return out, nil
	})
	return players
}

// GamesByID loads games in chunks. A failed chunk is logged and skipped.
func (r *Repo) GamesByID(ctx context.Context, ids []string) map[string]model.Game {
	ids = uniqueSorted(ids)
	key := cache.Key("games", strings.Join(ids, ","))
	games, _ := cache.Fetch(r.cache, key, cache.Medium, func() (map[string]model.Game, error) {
		out := make(map[string]model.Game, len(ids))
		for _, chunk := range Chunk(ids, r.chunks.Games) {
			rows, err := r.store.Select(ctx, store.Query{
				Table:   model.TableGames,
				Filters: []store.Filter{store.In("id", chunk)},
			})
			if err != nil {
				r.logger.Warn("game chunk failed", zap.Int("ids", len(chunk)), zap.Error(err))
				continue
			}
			for _, row := range rows {
				if g, ok := decodeGame(row); ok {
					out[g.ID] = g
				}
			}
		}
		return out, nil
	})
	return games
}

// RecentStatsByPlayer loads up to perPlayer recent games for each player,
// newest first. Each chunk requests perPlayer*len(chunk) rows, so a player
// with a long log in a busy chunk can crowd out others.
func (r *Repo) RecentStatsByPlayer(ctx context.Context, ids []string, perPlayer int) map[string][]model.GameStatRecord {
	ids = uniqueSorted(ids)
	key := cache.Key("player_stats", strings.Join(ids, ","), strconv.Itoa(perPlayer))
	byPlayer, _ := cache.Fetch(r.cache, key, cache.Short, func() (map[string][]model.GameStatRecord, error) {
		out := make(map[string][]model.GameStatRecord, len(ids))
		for _, chunk := range Chunk(ids, r.chunks.Stats) {
			records, err := r.selectStats(ctx, store.Query{
				Filters: []store.Filter{store.In("player_id", chunk)},
				Limit:   perPlayer * len(chunk),
			})
			if err != nil {
				r.logger.Warn("stats chunk failed", zap.Int("ids", len(chunk)), zap.Error(err))
				continue
			}
			for _, s := range records {
				if len(out[s.PlayerID]) < perPlayer {
					out[s.PlayerID] = append(out[s.PlayerID], s)
				}
			}
		}
		return out, nil
	})
	return byPlayer
}

// ProjectionSnapshots loads stored projections for the given players,
// restricted to the given games and prop types when those are non-empty.
// Only player ids go into the request; games and prop types are filtered
// after the read so request size stays bounded by the chunk.
func (r *Repo) ProjectionSnapshots(ctx context.Context, playerIDs, gameIDs, propTypes []string) map[model.ProjectionKey]model.ProjectionSnapshot {
	playerIDs = uniqueSorted(playerIDs)
	gameIDs = uniqueSorted(gameIDs)
	propTypes = uniqueSorted(propTypes)
	key := cache.Key("projection_snapshots", strings.Join(playerIDs, ","), strings.Join(gameIDs, ","), strings.Join(propTypes, ","))

	wantGame, wantProp := set(gameIDs), set(propTypes)
	snaps, _ := cache.Fetch(r.cache, key, cache.Short, func() (map[model.ProjectionKey]model.ProjectionSnapshot, error) {
		out := make(map[model.ProjectionKey]model.ProjectionSnapshot)
		for _, chunk := range Chunk(playerIDs, r.chunks.Projections) {
			rows, err := r.store.Select(ctx, store.Query{
				Table:   model.TableProjectionSnapshots,
				Filters: []store.Filter{store.In("player_id", chunk)},
			})
			if err != nil {
				r.logger.Warn("projection snapshot chunk failed", zap.Int("ids", len(chunk)), zap.Error(err))
				continue
			}
			for _, row := range rows {
				p, ok := decodeProjectionSnapshot(row)
				if !ok {
					continue
				}
				if (len(wantGame) > 0 && !wantGame[p.GameID]) || (len(wantProp) > 0 && !wantProp[p.PropType]) {
					continue
				}
				out[p.Key()] = p
			}
		}
		return out, nil
	})
	return snaps
}

func set(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}

// ReferenceLine returns the most recent line for the prop from the first book
// in priority order that has one.
func (r *Repo) ReferenceLine(ctx context.Context, playerID, gameID, propType string, books []string) (outcome.Of[float64], error) {
	for _, book := range books {
		rows, err := r.store.Select(ctx, store.Query{
			Table:   model.TablePropQuotes,
			Columns: []string{"line"},
			Filters: []store.Filter{
				store.Eq("player_id", playerID),
				store.Eq("game_id", gameID),
				store.Eq("prop_type", propType),
				store.Eq("book", book),
			},
			OrderBy: "created_at",
			Desc:    true,
			Limit:   1,
		})
		if err != nil {
			return outcome.Unavailable[float64]("lookup failed"), fmt.Errorf("reference line from %s: %w", book, err)
		}
		if len(rows) > 0 {
			if line := rows[0].Float("line"); line != nil {
				return outcome.Value(*line), nil
			}
		}
	}
	return outcome.Unavailable[float64]("no reference book line"), nil
}

// DFSLine returns the most recent scraped daily-fantasy line from the first
// source in order that has one.
func (r *Repo) DFSLine(ctx context.Context, playerID, gameID, propType string, sources []string) (outcome.Of[float64], error) {
	for _, src := range sources {
		rows, err := r.store.Select(ctx, store.Query{
			Table:   model.TableDFSLines,
			Columns: []string{"line"},
			Filters: []store.Filter{
				store.Eq("player_id", playerID),
				store.Eq("game_id", gameID),
				store.Eq("prop_type", propType),
				store.Eq("source", src),
			},
			OrderBy: "scraped_at",
			Desc:    true,
			Limit:   1,
		})
		if err != nil {
			return outcome.Unavailable[float64]("lookup failed"), fmt.Errorf("dfs line from %s: %w", src, err)
		}
		if len(rows) > 0 {
			if line := rows[0].Float("line"); line != nil {
				return outcome.Value(*line), nil
			}
		}
	}
	return outcome.Unavailable[float64]("no scraped dfs line"), nil
}

// Spreads returns the newest point-spread quotes for a game, newest first.
func (r *Repo) Spreads(ctx context.Context, gameID string, limit int) ([]model.SpreadQuote, error) {
	key := cache.Key("spreads", gameID, strconv.Itoa(limit))
	return cache.Fetch(r.cache, key, cache.Medium, func() ([]model.SpreadQuote, error) {
		rows, err := r.store.Select(ctx, store.Query{
			Table:   model.TableOddsSnapshots,
			Columns: []string{"game_id", "market_label", "line", "created_at"},
			Filters: []store.Filter{store.Eq("game_id", gameID), store.Eq("market_type", model.MarketSpreads)},
			OrderBy: "created_at",
			Desc:    true,
			Limit:   limit,
		})
		if err != nil {
			return nil, fmt.Errorf("spreads for %s: %w", gameID, err)
		}
		out := make([]model.SpreadQuote, 0, len(rows))
		for _, row := range rows {
			out = append(out, model.SpreadQuote{
				GameID:      row.String("game_id"),
				MarketLabel: row.String("market_label"),
				Line:        row.Float("line"),
				ObservedAt:  row.String("created_at"),
			})
		}
		return out, nil
	})
}

// UpsertProjectionSnapshots writes snapshots in chunks keyed on
// (player_id, game_id, prop_type). Failed chunks are reported in the error;
// written counts the rows in chunks that succeeded.
func (r *Repo) UpsertProjectionSnapshots(ctx context.Context, snaps []model.ProjectionSnapshot) (int, error) {
	rows := make([]store.Row, len(snaps))
	for i, s := range snaps {
		rows[i] = encodeProjectionSnapshot(s)
	}
	return r.upsert(ctx, model.TableProjectionSnapshots, rows, []string{"player_id", "game_id", "prop_type"})
}

// UpsertFeedSnapshots writes feed rows in chunks keyed on
// (player_id, game_id, prop_type, line, book).
func (r *Repo) UpsertFeedSnapshots(ctx context.Context, feed []model.PropFeedSnapshot) (int, error) {
	rows := make([]store.Row, len(feed))
	for i, f := range feed {
		rows[i] = encodeFeedSnapshot(f)
	}
	return r.upsert(ctx, model.TablePropFeedSnapshots, rows, []string{"player_id", "game_id", "prop_type", "line", "book"})
}

func (r *Repo) upsert(ctx context.Context, table string, rows []store.Row, conflict []string) (int, error) {
	written := 0
	var errs []error
	for _, chunk := range Chunk(rows, r.chunks.Upsert) {
		if err := r.store.Upsert(ctx, table, chunk, conflict); err != nil {
			r.logger.Warn("upsert chunk failed", zap.String("table", table), zap.Int("rows", len(chunk)), zap.Error(err))
			errs = append(errs, err)
			if store.IsUnavailable(err) || ctx.Err() != nil {
				break
			}
			continue
		}
		written += len(chunk)
	}
	return written, errors.Join(errs...)
}
