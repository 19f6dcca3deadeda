package insight

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"prop-engine/internal/mathutil"
	"prop-engine/internal/model"
	"prop-engine/internal/outcome"
	"prop-engine/internal/stats"
)

// Line flags.
const (
	LineInflated   = "inflated"
	LineDiscounted = "discounted"
)

// MatchupHistory is the player's record against the opponent.
type MatchupHistory struct {
	Opponent string
	Games    []model.GameStatRecord
	Average  outcome.Of[float64]
	Sampled  int // games behind Average; games missing the stat are left out
}

// VenueSplits are plain averages at home and away over recent played games.
type VenueSplits struct {
	HomeAvg   float64 `json:"home_avg"`
	HomeGames int     `json:"home_games"`
	AwayAvg   float64 `json:"away_avg"`
	AwayGames int     `json:"away_games"`
}

// LineContext compares the book line with the recent average.
type LineContext struct {
	Line      float64 `json:"line"`
	RecentAvg float64 `json:"recent_avg"`
	Games     int     `json:"games"`
	Flag      string  `json:"flag,omitempty"` // inflated, discounted or empty
}

// RestGap is the time since the player's last recorded game.
type RestGap struct {
	LastGame  time.Time `json:"last_game"`
	Days      int       `json:"days"`
	Returning bool      `json:"returning"`
}

func (a *Analyzer) matchup(ctx context.Context, log *zap.Logger, playerID, opponent string, cat stats.Category) outcome.Of[MatchupHistory] {
	games, err := a.src.StatsAgainst(ctx, playerID, opponent, a.cfg.MatchupHistoryLimit)
	if err != nil {
		log.Warn("matchup history unavailable", zap.String("opponent", opponent), zap.Error(err))
		return outcome.Unavailable[MatchupHistory]("matchup lookup failed")
	}
	m := MatchupHistory{Opponent: opponent, Games: games, Average: outcome.Unavailable[float64]("no games against opponent")}
	if values := stats.Values(games, cat); len(values) > 0 {
		m.Average = outcome.Value(mathutil.Mean(values))
		m.Sampled = len(values)
	}
	return outcome.Value(m)
}

func (a *Analyzer) venueSplits(ctx context.Context, log *zap.Logger, playerID string, cat stats.Category) outcome.Of[VenueSplits] {
	games, err := a.src.RecentPlayedStats(ctx, playerID, a.cfg.VenueWindow)
	if err != nil {
		log.Warn("venue splits unavailable", zap.Error(err))
		return outcome.Unavailable[VenueSplits]("split lookup failed")
	}
	var home, away []float64
	for _, g := range games {
		v, ok := stats.Value(g, cat).Get()
		if !ok {
			continue
		}
		if g.Home {
			home = append(home, v)
		} else {
			away = append(away, v)
		}
	}
	return outcome.Value(VenueSplits{
		HomeAvg:   mathutil.Round(mathutil.Mean(home), 1),
		HomeGames: len(home),
		AwayAvg:   mathutil.Round(mathutil.Mean(away), 1),
		AwayGames: len(away),
	})
}

func (a *Analyzer) lineContext(ctx context.Context, log *zap.Logger, playerID string, cat stats.Category, line outcome.Of[float64]) outcome.Of[LineContext] {
	l, ok := line.Get()
	if !ok {
		return outcome.Unavailable[LineContext]("no line")
	}
	games, err := a.src.RecentStats(ctx, playerID, a.cfg.LineWindow)
	if err != nil {
		log.Warn("line context unavailable", zap.Error(err))
		return outcome.Unavailable[LineContext]("stat lookup failed")
	}
	values := stats.Values(games, cat)
	if len(values) == 0 {
		return outcome.Unavailable[LineContext]("no recent values")
	}

	lc := LineContext{Line: l, RecentAvg: mathutil.Mean(values), Games: len(values)}
	switch {
	case l > lc.RecentAvg*a.cfg.LineInflatedRatio:
		lc.Flag = LineInflated
	case l < lc.RecentAvg*a.cfg.LineDiscountedRatio:
		lc.Flag = LineDiscounted
	}
	return outcome.Value(lc)
}

// restGap measures from the game start, or from now when the start is unknown.
func (a *Analyzer) restGap(ctx context.Context, log *zap.Logger, playerID string, gameStart outcome.Of[time.Time]) outcome.Of[RestGap] {
	last, err := a.src.RecentStats(ctx, playerID, 1)
	if err != nil {
		log.Warn("last game lookup failed", zap.Error(err))
		return outcome.Unavailable[RestGap]("stat lookup failed")
	}
	if len(last) == 0 {
		return outcome.Unavailable[RestGap]("no games on record")
	}
	day, ok := last[0].Day()
	if !ok {
		return outcome.Unavailable[RestGap]("unparseable game date")
	}
	ref := gameStart.OrElse(a.now())
	days := int(ref.Sub(day).Hours() / 24)
	return outcome.Value(RestGap{LastGame: day, Days: days, Returning: days > a.cfg.ReturnGapDays})
}

// Summary separator and the text used when nothing stands out.
const (
	SummarySeparator = " | "
	NoContext        = "No significant context"
)

func summarize(c Context) string {
	var parts []string

	if injured, ok := c.TeammateInjuries.Get(); ok {
		var out []string
		for _, inj := range injured {
			if strings.EqualFold(inj.Injury.Severity, "out") && inj.Player.Name != "" {
				out = append(out, inj.Player.Name)
			}
		}
		if len(out) > 0 {
			parts = append(parts, "OUT: "+strings.Join(out, ", "))
		}
	}

	if u, ok := c.Usage.Get(); ok && u.AdjustmentPct != 0 {
		direction := "increase"
		if u.AdjustmentPct < 0 {
			direction = "decrease"
		}
		parts = append(parts, fmt.Sprintf("Projected %.0f%% %s (%.1f -> %.1f)", math.Abs(u.AdjustmentPct), direction, u.BaselineAvg, u.AdjustedAvg))
	}

	if m, ok := c.Matchup.Get(); ok {
		if avg, ok := m.Average.Get(); ok {
			parts = append(parts, fmt.Sprintf("Avg vs %s: %.1f (%d gms)", m.Opponent, avg, m.Sampled))
		}
	}

	if lc, ok := c.Line.Get(); ok {
		switch lc.Flag {
		case LineInflated:
			parts = append(parts, fmt.Sprintf("Line inflated: %g (Avg: %.1f)", lc.Line, lc.RecentAvg))
		case LineDiscounted:
			parts = append(parts, fmt.Sprintf("Line discounted: %g (Avg: %.1f)", lc.Line, lc.RecentAvg))
		}
	}

	if gap, ok := c.RestGap.Get(); ok && gap.Returning {
		parts = append(parts, fmt.Sprintf("Returning from %d days rest", gap.Days))
	}

	if b, ok := c.Blowout.Get(); ok && b.Flagged {
		if b.Favorite {
			parts = append(parts, fmt.Sprintf("High spread (%.1f): Favorites may rest in 4th quarter", math.Abs(b.Spread)))
		} else {
			parts = append(parts, fmt.Sprintf("High spread (%.1f): Underdog may see extended minutes", math.Abs(b.Spread)))
		}
	}

	if len(parts) == 0 {
		return NoContext
	}
	return strings.Join(parts, SummarySeparator)
}

// Blowout is a lopsided spread on the player's game.
type Blowout struct {
	Spread   float64 `json:"spread"` // the player's team line
	Favorite bool    `json:"favorite"`
	Flagged  bool    `json:"flagged"` // |spread| at or above the blowout threshold
}

// blowout reads the player's team spread. Quotes labelled with the player's
// team win; otherwise the newest quote is taken as the home team's line.
func (a *Analyzer) blowout(ctx context.Context, log *zap.Logger, g model.Game, isHome bool) outcome.Of[Blowout] {
	if !sportIn(g.Sport, a.cfg.BlowoutSports) {
		return outcome.Unavailable[Blowout]("no blowout check for sport")
	}
	quotes, err := a.src.Spreads(ctx, g.ID, a.cfg.SpreadQuotes)
	if err != nil {
		log.Warn("spread lookup failed", zap.Error(err))
		return outcome.Unavailable[Blowout]("spread lookup failed")
	}

	team := g.AwayTeam
	if isHome {
		team = g.HomeTeam
	}
	var line *float64
	for _, q := range quotes {
		if q.Line != nil && model.SameTeam(q.MarketLabel, team) {
			line = q.Line
			break
		}
	}
	if line == nil {
		for _, q := range quotes {
			if q.Line != nil {
				v := *q.Line
				if !isHome {
					v = -v
				}
				line = &v
				break
			}
		}
	}
	if line == nil {
		return outcome.Unavailable[Blowout]("no spread quoted")
	}

	return outcome.Value(Blowout{
		Spread:   *line,
		Favorite: *line < 0,
		Flagged:  math.Abs(*line) >= a.cfg.BlowoutSpread,
	})
}

func sportIn(sport string, sports []string) bool {
	for _, s := range sports {
		if strings.EqualFold(s, sport) {
			return true
		}
	}
	return false
}
