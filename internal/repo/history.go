package repo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"prop-engine/internal/cache"
	"prop-engine/internal/model"
	"prop-engine/internal/outcome"
	"prop-engine/internal/store"
)

const dateLayout = "2006-01-02"

// RecentStats returns the player's most recent games, newest first.
func (r *Repo) RecentStats(ctx context.Context, playerID string, limit int) ([]model.GameStatRecord, error) {
	key := cache.Key("recent_stats", playerID, strconv.Itoa(limit))
	return cache.Fetch(r.cache, key, cache.Short, func() ([]model.GameStatRecord, error) {
		return r.selectStats(ctx, store.Query{
			Filters: []store.Filter{store.Eq("player_id", playerID)},
			Limit:   limit,
		})
	})
}

// RecentPlayedStats is RecentStats restricted to games with minutes logged.
func (r *Repo) RecentPlayedStats(ctx context.Context, playerID string, limit int) ([]model.GameStatRecord, error) {
	key := cache.Key("played_stats", playerID, strconv.Itoa(limit))
	return cache.Fetch(r.cache, key, cache.Short, func() ([]model.GameStatRecord, error) {
		return r.selectStats(ctx, store.Query{
			Filters: []store.Filter{store.Eq("player_id", playerID), store.Gt("minutes_played", 0.0)},
			Limit:   limit,
		})
	})
}

// StatsAgainst returns the player's games against opponent, newest first.
func (r *Repo) StatsAgainst(ctx context.Context, playerID, opponent string, limit int) ([]model.GameStatRecord, error) {
	key := cache.Key("stats_vs", playerID, opponent, strconv.Itoa(limit))
	return cache.Fetch(r.cache, key, cache.Short, func() ([]model.GameStatRecord, error) {
		return r.selectStats(ctx, store.Query{
			Filters: []store.Filter{store.Eq("player_id", playerID), store.Eq("opponent", opponent)},
			Limit:   limit,
		})
	})
}

// StatsAtVenue returns the player's home or away games, newest first.
func (r *Repo) StatsAtVenue(ctx context.Context, playerID string, home bool, limit int) ([]model.GameStatRecord, error) {
	key := cache.Key("stats_venue", playerID, strconv.FormatBool(home), strconv.Itoa(limit))
	return cache.Fetch(r.cache, key, cache.Short, func() ([]model.GameStatRecord, error) {
		return r.selectStats(ctx, store.Query{
			Filters: []store.Filter{store.Eq("player_id", playerID), store.Eq("home", home)},
			Limit:   limit,
		})
	})
}

// OpponentGames returns the most recent stat lines any player recorded
// against opponent.
func (r *Repo) OpponentGames(ctx context.Context, opponent string, limit int) ([]model.GameStatRecord, error) {
	key := cache.Key("opponent_games", opponent, strconv.Itoa(limit))
	return cache.Fetch(r.cache, key, cache.Short, func() ([]model.GameStatRecord, error) {
		return r.selectStats(ctx, store.Query{
			Filters: []store.Filter{store.Eq("opponent", opponent)},
			Limit:   limit,
		})
	})
}

// StatsSince returns the player's games on or after since, newest first.
func (r *Repo) StatsSince(ctx context.Context, playerID string, since time.Time) ([]model.GameStatRecord, error) {
	day := since.UTC().Format(dateLayout)
	key := cache.Key("stats_since", playerID, day)
	return cache.Fetch(r.cache, key, cache.Short, func() ([]model.GameStatRecord, error) {
		return r.selectStats(ctx, store.Query{
			Filters: []store.Filter{store.Eq("player_id", playerID), store.Gte("date", day)},
		})
	})
}

// PreviousGameDate returns the date of the player's last game strictly before
// the calendar day of before.
func (r *Repo) PreviousGameDate(ctx context.Context, playerID string, before time.Time) (outcome.Of[time.Time], error) {
	records, err := r.selectStats(ctx, store.Query{
		Filters: []store.Filter{store.Eq("player_id", playerID), store.Lt("date", before.UTC().Format(dateLayout))},
		Limit:   1,
	})
	if err != nil {
		return outcome.Unavailable[time.Time]("lookup failed"), fmt.Errorf("previous game for %s: %w", playerID, err)
	}
	if len(records) == 0 {
		return outcome.Unavailable[time.Time]("no previous game"), nil
	}
	day, ok := records[0].Day()
	if !ok {
		return outcome.Unavailable[time.Time]("unparseable game date"), nil
	}
	return outcome.Value(day), nil
}

// LatestInjury returns the player's most recently reported active injury.
func (r *Repo) LatestInjury(ctx context.Context, playerID string) (outcome.Of[model.InjuryRecord], error) {
	rows, err := r.store.Select(ctx, store.Query{
		Table:   model.TableInjuries,
		Filters: []store.Filter{store.Eq("player_id", playerID), store.Eq("status", "active")},
		OrderBy: "reported_date",
		Desc:    true,
		Limit:   1,
	})
	if err != nil {
		return outcome.Unavailable[model.InjuryRecord]("lookup failed"), fmt.Errorf("injury for %s: %w", playerID, err)
	}
	for _, row := range rows {
		if inj, ok := decodeInjury(row); ok {
			return outcome.Value(inj), nil
		}
	}
	return outcome.Unavailable[model.InjuryRecord]("no active injury"), nil
}

// Player returns one player.
func (r *Repo) Player(ctx context.Context, id string) (outcome.Of[model.Player], error) {
	if p, ok := r.PlayersByID(ctx, []string{id})[id]; ok {
		return outcome.Value(p), nil
	}
	return outcome.Unavailable[model.Player]("unknown player"), nil
}

// Game returns one game.
func (r *Repo) Game(ctx context.Context, id string) (outcome.Of[model.Game], error) {
	if g, ok := r.GamesByID(ctx, []string{id})[id]; ok {
		return outcome.Value(g), nil
	}
	return outcome.Unavailable[model.Game]("unknown game"), nil
}

// ActiveInjuries returns active injuries of players on team.
func (r *Repo) ActiveInjuries(ctx context.Context, team string) ([]model.PlayerInjury, error) {
	injuries, err := cache.Fetch(r.cache, "active_injuries", cache.Short, func() ([]model.InjuryRecord, error) {
		rows, err := r.store.Select(ctx, store.Query{
			Table:   model.TableInjuries,
			Filters: []store.Filter{store.Eq("status", "active")},
			OrderBy: "reported_date",
			Desc:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("active injuries: %w", err)
		}
		out := make([]model.InjuryRecord, 0, len(rows))
		for _, row := range rows {
			if inj, ok := decodeInjury(row); ok {
				out = append(out, inj)
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(injuries))
	for i, inj := range injuries {
		ids[i] = inj.PlayerID
	}
	players := r.PlayersByID(ctx, ids)

	var out []model.PlayerInjury
	for _, inj := range injuries {
		p, ok := players[inj.PlayerID]
		if ok && model.SameTeam(p.Team, team) {
			out = append(out, model.PlayerInjury{Player: p, Injury: inj})
		}
	}
	return out, nil
}

// Teammates returns the other players on team.
func (r *Repo) Teammates(ctx context.Context, team, excludePlayerID string) ([]model.Player, error) {
	key := cache.Key("teammates", team, excludePlayerID)
	return cache.Fetch(r.cache, key, cache.Long, func() ([]model.Player, error) {
		rows, err := r.store.Select(ctx, store.Query{
			Table:   model.TablePlayers,
			Filters: []store.Filter{store.Eq("team", team), store.Neq("id", excludePlayerID)},
			OrderBy: "id",
		})
		if err != nil {
			return nil, fmt.Errorf("teammates of %s: %w", excludePlayerID, err)
		}
		out := make([]model.Player, 0, len(rows))
		for _, row := range rows {
			if p, ok := decodePlayer(row); ok {
				out = append(out, p)
			}
		}
		return out, nil
	})
}
