package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"prop-engine/internal/snapshot"
	"prop-engine/internal/stats"
)

// Tuning holds the model constants that can be overridden from a YAML file.
// Keys left out of the file keep their defaults.
type Tuning struct {
	Projection struct {
		SampleWindow         int     `yaml:"sample_window"`
		BaselineRecency      float64 `yaml:"baseline_recency"`
		MatchupRecency       float64 `yaml:"matchup_recency"`
		ConfidenceFullSample int     `yaml:"confidence_full_sample"`
	} `yaml:"projection"`

	Adjust struct {
		DefenseMin      float64            `yaml:"defense_min"`
		DefenseMax      float64            `yaml:"defense_max"`
		DefenseMinGames int                `yaml:"defense_min_games"`
		LeagueAverages  map[string]float64 `yaml:"league_averages"`
		SeverityImpact  map[string]float64 `yaml:"severity_impact"`
		RestMultipliers []float64          `yaml:"rest_multipliers"`
	} `yaml:"adjust"`

	Edge struct {
		Smoothing     float64 `yaml:"smoothing"`
		KellyFraction float64 `yaml:"kelly_fraction"`
	} `yaml:"edge"`

	Insight struct {
		SplitMinGames       int     `yaml:"split_min_games"`
		UsageImpactPct      float64 `yaml:"usage_impact_pct"`
		KeyTeammatePct      float64 `yaml:"key_teammate_pct"`
		LineInflatedRatio   float64 `yaml:"line_inflated_ratio"`
		LineDiscountedRatio float64 `yaml:"line_discounted_ratio"`
		ReturnGapDays       int     `yaml:"return_gap_days"`
	} `yaml:"insight"`

	Feed struct {
		StatsPerPlayer int      `yaml:"stats_per_player"`
		SparklineGames int      `yaml:"sparkline_games"`
		DFSSources     []string `yaml:"dfs_sources"`
	} `yaml:"feed"`
}

// DefaultTuning mirrors snapshot.DefaultConfig.
func DefaultTuning() Tuning {
	return TuningFrom(snapshot.DefaultConfig())
}

// TuningFrom extracts the tunable values from a job configuration.
func TuningFrom(c snapshot.Config) Tuning {
	var t Tuning
	p := c.Projection
	t.Projection.SampleWindow = p.SampleWindow
	t.Projection.BaselineRecency = p.BaselineRecency
	t.Projection.MatchupRecency = p.MatchupRecency
	t.Projection.ConfidenceFullSample = p.ConfidenceFullSample

	a := p.Adjust
	t.Adjust.DefenseMin = a.DefenseMin
	t.Adjust.DefenseMax = a.DefenseMax
	t.Adjust.DefenseMinGames = a.DefenseMinGames
	t.Adjust.LeagueAverages = copyMap(a.LeagueAverages)
	t.Adjust.SeverityImpact = copyMap(a.SeverityImpact)
	t.Adjust.RestMultipliers = append([]float64(nil), a.RestMultipliers[:]...)

	t.Edge.Smoothing = c.Edge.Smoothing
	t.Edge.KellyFraction = c.Edge.KellyFraction

	i := c.Insight
	t.Insight.SplitMinGames = i.SplitMinGames
	t.Insight.UsageImpactPct = i.UsageImpactPct
	t.Insight.KeyTeammatePct = i.KeyTeammatePct
	t.Insight.LineInflatedRatio = i.LineInflatedRatio
	t.Insight.LineDiscountedRatio = i.LineDiscountedRatio
	t.Insight.ReturnGapDays = i.ReturnGapDays

	t.Feed.StatsPerPlayer = c.StatsPerPlayer
	t.Feed.SparklineGames = c.SparklineGames
	t.Feed.DFSSources = append([]string(nil), c.DFSSources...)
	return t
}

// LoadTuning reads a tuning file over the defaults. An empty path returns the defaults.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read tuning file: %w", err)
	}
	if err := ParseTuning(data, &t); err != nil {
		return t, fmt.Errorf("tuning file %s: %w", path, err)
	}
	return t, nil
}

// ParseTuning decodes YAML over t and validates the result.
func ParseTuning(data []byte, t *Tuning) error {
	if err := yaml.Unmarshal(data, t); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	return t.Validate()
}

// Validate checks the tuning values are usable.
func (t Tuning) Validate() error {
	if t.Projection.SampleWindow <= 0 {
		return fmt.Errorf("projection.sample_window must be positive, got %d", t.Projection.SampleWindow)
	}
	if t.Projection.BaselineRecency < 0 || t.Projection.MatchupRecency < 0 {
		return fmt.Errorf("recency weights must be non-negative")
	}
	if t.Projection.ConfidenceFullSample <= 0 {
		return fmt.Errorf("projection.confidence_full_sample must be positive, got %d", t.Projection.ConfidenceFullSample)
	}
	if t.Adjust.DefenseMin <= 0 || t.Adjust.DefenseMin > t.Adjust.DefenseMax {
		return fmt.Errorf("adjust.defense_min must be positive and at most defense_max, got %f..%f", t.Adjust.DefenseMin, t.Adjust.DefenseMax)
	}
	if len(t.Adjust.RestMultipliers) != 4 {
		return fmt.Errorf("adjust.rest_multipliers needs 4 values (0, 1, 2, 3+ days), got %d", len(t.Adjust.RestMultipliers))
	}
	for name := range t.Adjust.LeagueAverages {
		if _, err := stats.ParseCategory(name); err != nil {
			return fmt.Errorf("adjust.league_averages: %w", err)
		}
	}
	if t.Edge.Smoothing <= 0 {
		return fmt.Errorf("edge.smoothing must be positive, got %f", t.Edge.Smoothing)
	}
	if t.Edge.KellyFraction <= 0 || t.Edge.KellyFraction > 1 {
		return fmt.Errorf("edge.kelly_fraction must be between 0 and 1, got %f", t.Edge.KellyFraction)
	}
	if t.Insight.LineDiscountedRatio >= t.Insight.LineInflatedRatio {
		return fmt.Errorf("insight.line_discounted_ratio must be below line_inflated_ratio")
	}
	if t.Feed.StatsPerPlayer <= 0 {
		return fmt.Errorf("feed.stats_per_player must be positive, got %d", t.Feed.StatsPerPlayer)
	}
	return nil
}

// Apply writes the tuning values into a job configuration.
func (t Tuning) Apply(c *snapshot.Config) {
	p := &c.Projection
	p.SampleWindow = t.Projection.SampleWindow
	p.BaselineRecency = t.Projection.BaselineRecency
	p.MatchupRecency = t.Projection.MatchupRecency
	p.ConfidenceFullSample = t.Projection.ConfidenceFullSample

	a := &p.Adjust
	a.DefenseMin = t.Adjust.DefenseMin
	a.DefenseMax = t.Adjust.DefenseMax
	a.DefenseMinGames = t.Adjust.DefenseMinGames
	a.LeagueAverages = copyMap(t.Adjust.LeagueAverages)
	a.SeverityImpact = copyMap(t.Adjust.SeverityImpact)
	copy(a.RestMultipliers[:], t.Adjust.RestMultipliers)

	c.Edge.Smoothing = t.Edge.Smoothing
	c.Edge.KellyFraction = t.Edge.KellyFraction

	i := &c.Insight
	i.SplitMinGames = t.Insight.SplitMinGames
	i.UsageImpactPct = t.Insight.UsageImpactPct
	i.KeyTeammatePct = t.Insight.KeyTeammatePct
	i.LineInflatedRatio = t.Insight.LineInflatedRatio
	i.LineDiscountedRatio = t.Insight.LineDiscountedRatio
	i.ReturnGapDays = t.Insight.ReturnGapDays

	c.StatsPerPlayer = t.Feed.StatsPerPlayer
	c.SparklineGames = t.Feed.SparklineGames
	if len(t.Feed.DFSSources) > 0 {
		c.DFSSources = append([]string(nil), t.Feed.DFSSources...)
	}
}

// JobConfig builds the snapshot job configuration from the environment and tuning.
func JobConfig(cfg Config, t Tuning) snapshot.Config {
	c := snapshot.DefaultConfig()
	t.Apply(&c)
	c.ReferenceBooks = append([]string(nil), cfg.ReferenceBooks...)
	c.FeedContext = cfg.FeedContext
	c.KeyTeammates = cfg.FeedContext && cfg.KeyTeammates
	return c
}

func copyMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
