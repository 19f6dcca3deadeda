package repo

import (
	"prop-engine/internal/model"
	"prop-engine/internal/store"
)

func decodePlayer(r store.Row) (model.Player, bool) {
	p := model.Player{
		ID:          r.String("id"),
		Name:        r.String("name"),
		Team:        r.String("team"),
		Position:    r.String("position"),
		Sport:       r.String("sport"),
		ExternalRef: r.String("external_id"),
	}
	return p, p.ID != ""
}

func decodeGame(r store.Row) (model.Game, bool) {
	g := model.Game{
		ID:        r.String("id"),
		Sport:     r.String("sport"),
		HomeTeam:  r.String("home_team"),
		AwayTeam:  r.String("away_team"),
		StartTime: r.String("start_time"),
		Status:    r.String("status"),
	}
	return g, g.ID != ""
}

func decodeStat(r store.Row) (model.GameStatRecord, bool) {
	s := model.GameStatRecord{
		PlayerID:          r.String("player_id"),
		GameID:            r.String("game_id"),
		Date:              r.String("date"),
		Opponent:          r.String("opponent"),
		MinutesPlayed:     r.Float("minutes_played"),
		Points:            r.Float("points"),
		Rebounds:          r.Float("rebounds"),
		Assists:           r.Float("assists"),
		ThreePointersMade: r.Float("three_pointers_made"),
		Steals:            r.Float("steals"),
		Blocks:            r.Float("blocks"),
		Turnovers:         r.Float("turnovers"),
		Headshots:         r.Float("headshots"),
		FirstKills:        r.Float("first_kills"),
		PassingYards:      r.Float("passing_yards"),
		RushingYards:      r.Float("rushing_yards"),
		Receptions:        r.Float("receptions"),
		ReceivingYards:    r.Float("receiving_yards"),
		PassingTouchdowns: r.Float("passing_touchdowns"),
		RushingTouchdowns: r.Float("rushing_touchdowns"),
	}
	if home := r.Bool("home"); home != nil {
		s.Home = *home
	}
	return s, s.PlayerID != "" && s.Date != ""
}

func decodeQuote(r store.Row) (model.PropQuote, bool) {
	q := model.PropQuote{
		ID:         r.String("id"),
		PlayerID:   r.String("player_id"),
		GameID:     r.String("game_id"),
		PropType:   r.String("prop_type"),
		Line:       r.Float("line"),
		OverPrice:  r.Int("over_price"),
		UnderPrice: r.Int("under_price"),
		Book:       r.String("book"),
		ObservedAt: r.String("created_at"),
	}
	return q, q.PlayerID != "" && q.GameID != "" && q.PropType != ""
}

func decodeInjury(r store.Row) (model.InjuryRecord, bool) {
	i := model.InjuryRecord{
		PlayerID:         r.String("player_id"),
		Status:           r.String("status"),
		Severity:         r.String("severity"),
		ImpactPercentage: r.Float("impact_percentage"),
		InjuryType:       r.String("injury_type"),
		Notes:            r.String("notes"),
		ReportedDate:     r.String("reported_date"),
	}
	return i, i.PlayerID != ""
}

func decodeProjectionSnapshot(r store.Row) (model.ProjectionSnapshot, bool) {
	p := model.ProjectionSnapshot{
		PlayerID:       r.String("player_id"),
		GameID:         r.String("game_id"),
		Sport:          r.String("sport"),
		PropType:       r.String("prop_type"),
		IsHome:         r.Bool("is_home"),
		BaselineSource: r.String("baseline_source"),
		BookLine:       r.Float("book_line"),
		FactorsJSON:    r.String("factors"),
		InjuryStatus:   r.String("injury_status"),
		RestDays:       r.Int("rest_days"),
		SourcePropID:   r.String("source_prop_id"),
		SnapshotAt:     r.String("snapshot_at"),
	}
	if opp := r.String("opponent"); opp != "" {
		p.Opponent = &opp
	}
	if v := r.Float("projected_line"); v != nil {
		p.ProjectedLine = *v
	} else {
		return p, false
	}
	if v := r.Float("confidence"); v != nil {
		p.Confidence = *v
	}
	if v := r.Int("sample_size"); v != nil {
		p.SampleSize = *v
	}
	return p, p.PlayerID != "" && p.GameID != "" && p.PropType != ""
}

func encodeProjectionSnapshot(p model.ProjectionSnapshot) store.Row {
	return store.Row{
		"player_id":       p.PlayerID,
		"game_id":         p.GameID,
		"prop_type":       p.PropType,
		"sport":           p.Sport,
		"opponent":        p.Opponent,
		"is_home":         p.IsHome,
		"projected_line":  p.ProjectedLine,
		"confidence":      p.Confidence,
		"baseline_source": p.BaselineSource,
		"book_line":       p.BookLine,
		"factors":         p.FactorsJSON,
		"sample_size":     p.SampleSize,
		"injury_status":   p.InjuryStatus,
		"rest_days":       p.RestDays,
		"source_prop_id":  p.SourcePropID,
		"model_version":   model.SnapshotVersion,
		"snapshot_at":     p.SnapshotAt,
	}
}

func encodeFeedSnapshot(f model.PropFeedSnapshot) store.Row {
	return store.Row{
		"prop_id":                f.PropID,
		"player_id":              f.PlayerID,
		"game_id":                f.GameID,
		"prop_type":              f.PropType,
		"line":                   f.Line,
		"book":                   f.Book,
		"sport":                  f.Sport,
		"player_name":            f.PlayerName,
		"team":                   f.Team,
		"opponent":               f.Opponent,
		"is_home":                f.IsHome,
		"over_price":             f.OverPrice,
		"under_price":            f.UnderPrice,
		"projection_line":        f.ProjectionLine,
		"projection_confidence":  f.ProjectionConfidence,
		"projection_baseline":    f.ProjectionBaseline,
		"projection_book_line":   f.ProjectionBookLine,
		"edge":                   f.Edge,
		"edge_side":              f.EdgeSide,
		"edge_prob":              f.EdgeProb,
		"ev_odds":                f.EVOdds,
		"hitrate_over_pct":       f.HitRateOverPct,
		"hitrate_under_pct":      f.HitRateUnderPct,
		"hitrate_games":          f.HitRateGames,
		"dfs_line":               f.DFSLine,
		"context_summary":        f.ContextSummary,
		"metadata":               f.MetadataJSON,
		"source_prop_created_at": f.SourceQuoteObserved,
		"snapshot_at":            f.SnapshotAt,
	}
}
