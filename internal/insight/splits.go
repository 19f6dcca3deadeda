package insight

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"prop-engine/internal/mathutil"
	"prop-engine/internal/model"
	"prop-engine/internal/outcome"
	"prop-engine/internal/stats"
)

// Split compares a player's output in games with and without a teammate.
type Split struct {
	WithAvg      float64 `json:"with_avg"`
	WithGames    int     `json:"with_games"`
	WithoutAvg   float64 `json:"without_avg"`
	WithoutGames int     `json:"without_games"`
	ImpactPct    float64 `json:"impact_pct"` // change without the teammate, relative to with
	Sufficient   bool    `json:"sample_size_sufficient"`
}

// UsagePrediction is the expected shift in output from injured teammates.
type UsagePrediction struct {
	BaselineAvg   float64 `json:"baseline_avg"`
	AdjustedAvg   float64 `json:"adjusted_avg"`
	AdjustmentPct float64 `json:"adjustment_pct"`
	Confidence    string  `json:"confidence"` // low, medium, high
	Reasoning     string  `json:"reasoning"`
}

// TeammateImpact is a teammate whose absence moves the player's numbers.
type TeammateImpact struct {
	TeammateID       string         `json:"teammate_id"`
	TeammateName     string         `json:"teammate_name"`
	TeammatePosition string         `json:"teammate_position"`
	Category         stats.Category `json:"-"`
	PropType         string         `json:"prop_type"`
	Split
}

// splitter caches the player's recent log and teammates' appearance dates for
// the duration of one analysis.
type splitter struct {
	a        *Analyzer
	playerID string
	since    time.Time

	own       []model.GameStatRecord
	ownLoaded bool
	played    map[string]map[string]bool
}

func newSplitter(a *Analyzer, playerID string) *splitter {
	return &splitter{
		a:        a,
		playerID: playerID,
		since:    a.now().AddDate(0, 0, -a.cfg.SplitLookbackDays),
		played:   make(map[string]map[string]bool),
	}
}

func (s *splitter) split(ctx context.Context, teammateID string, cat stats.Category) (Split, error) {
	if !s.ownLoaded {
		own, err := s.a.src.StatsSince(ctx, s.playerID, s.since)
		if err != nil {
			return Split{}, fmt.Errorf("player stats: %w", err)
		}
		s.own, s.ownLoaded = own, true
	}

	dates, ok := s.played[teammateID]
	if !ok {
		games, err := s.a.src.StatsSince(ctx, teammateID, s.since)
		if err != nil {
			return Split{}, fmt.Errorf("teammate %s stats: %w", teammateID, err)
		}
		dates = make(map[string]bool, len(games))
		for _, g := range games {
			if g.MinutesPlayed != nil && *g.MinutesPlayed > 0 {
				dates[g.Date] = true
			}
		}
		s.played[teammateID] = dates
	}

	var with, without []float64
	for _, g := range s.own {
		if !g.Played() {
			continue
		}
		v, ok := stats.Value(g, cat).Get()
		if !ok {
			continue
		}
		if dates[g.Date] {
			with = append(with, v)
		} else {
			without = append(without, v)
		}
	}

	sp := Split{
		WithAvg:      mathutil.Round(mathutil.Mean(with), 1),
		WithGames:    len(with),
		WithoutAvg:   mathutil.Round(mathutil.Mean(without), 1),
		WithoutGames: len(without),
		Sufficient:   len(with) >= s.a.cfg.SplitMinGames && len(without) >= s.a.cfg.SplitMinGames,
	}
	if w := mathutil.Mean(with); w > 0 {
		sp.ImpactPct = mathutil.Round((mathutil.Mean(without)-w)/w*100, 1)
	}
	return sp, nil
}

func (a *Analyzer) usage(ctx context.Context, log *zap.Logger, s *splitter, cat stats.Category, injured []model.PlayerInjury) outcome.Of[UsagePrediction] {
	recent, err := a.src.RecentPlayedStats(ctx, s.playerID, a.cfg.UsageBaselineGames)
	if err != nil {
		log.Warn("usage baseline unavailable", zap.Error(err))
		return outcome.Unavailable[UsagePrediction]("baseline lookup failed")
	}
	if len(recent) == 0 {
		return outcome.Unavailable[UsagePrediction]("no recent games")
	}
	baseline := mathutil.Mean(stats.Values(recent, cat))

	total := 0.0
	var reasons []string
	for _, inj := range injured {
		if inj.Player.ID == "" {
			continue
		}
		sp, err := s.split(ctx, inj.Player.ID, cat)
		if err != nil {
			log.Warn("teammate split failed", zap.String("teammate_id", inj.Player.ID), zap.Error(err))
			continue
		}
		if !sp.Sufficient || math.Abs(sp.ImpactPct) <= a.cfg.UsageImpactPct {
			continue
		}
		total += sp.ImpactPct
		name := inj.Player.Name
		if name == "" {
			name = "Teammate"
		}
		reasons = append(reasons, fmt.Sprintf("%s OUT: %+.0f%% impact", name, sp.ImpactPct))
	}

	u := UsagePrediction{
		BaselineAvg:   mathutil.Round(baseline, 1),
		AdjustedAvg:   mathutil.Round(baseline*(1+total/100), 1),
		AdjustmentPct: mathutil.Round(total, 1),
	}
	switch {
	case total == 0:
		u.Confidence = "low"
		u.Reasoning = "No significant historical impact from injuries"
	case math.Abs(total) < a.cfg.UsageHighPct:
		u.Confidence = "medium"
		u.Reasoning = strings.Join(reasons, "; ")
	default:
		u.Confidence = "high"
		u.Reasoning = strings.Join(reasons, "; ")
	}
	return outcome.Value(u)
}

func (a *Analyzer) keyTeammates(ctx context.Context, log *zap.Logger, s *splitter, p model.Player) outcome.Of[[]TeammateImpact] {
	if p.Team == "" {
		return outcome.Unavailable[[]TeammateImpact]("player has no team")
	}
	teammates, err := a.src.Teammates(ctx, p.Team, p.ID)
	if err != nil {
		log.Warn("teammate lookup failed", zap.Error(err))
		return outcome.Unavailable[[]TeammateImpact]("teammate lookup failed")
	}

	var impacts []TeammateImpact
	for _, cat := range a.cfg.KeyCategories {
		for _, tm := range teammates {
			sp, err := s.split(ctx, tm.ID, cat)
			if err != nil {
				log.Warn("teammate split failed", zap.String("teammate_id", tm.ID), zap.Error(err))
				continue
			}
			if !sp.Sufficient || math.Abs(sp.ImpactPct) <= a.cfg.KeyTeammatePct {
				continue
			}
			impacts = append(impacts, TeammateImpact{
				TeammateID:       tm.ID,
				TeammateName:     tm.Name,
				TeammatePosition: tm.Position,
				Category:         cat,
				PropType:         cat.String(),
				Split:            sp,
			})
		}
	}
	sort.SliceStable(impacts, func(i, j int) bool {
		return math.Abs(impacts[i].ImpactPct) > math.Abs(impacts[j].ImpactPct)
	})
	return outcome.Value(impacts)
}
