package stats

import (
	"errors"
	"fmt"
	"strings"

	"prop-engine/internal/model"
	"prop-engine/internal/outcome"
)

// ErrUnknownCategory is returned by ParseCategory for names outside the table.
var ErrUnknownCategory = errors.New("unknown prop category")

// Category is a prop market's statistic.
type Category int

const (
	Points Category = iota + 1
	Rebounds
	Assists
	Threes
	Steals
	Blocks
	Turnovers
	PointsReboundsAssists
	PointsRebounds
	PointsAssists
	ReboundsAssists

	Kills
	Deaths
	Headshots
	FirstKills

	PassingYards
	RushingYards
	Receptions
	ReceivingYards
	PassingTouchdowns
	RushingTouchdowns
)

// Family groups categories by the sport their stat columns belong to.
type Family string

const (
	Basketball Family = "basketball"
	Esports    Family = "esports"
	Football   Family = "football"
)

type field func(model.GameStatRecord) *float64

type categoryInfo struct {
	name    string
	family  Family
	aliases []string
	fields  []field // more than one field means a composite that sums
}

func points(r model.GameStatRecord) *float64   { return r.Points }
func rebounds(r model.GameStatRecord) *float64 { return r.Rebounds }
func assists(r model.GameStatRecord) *float64  { return r.Assists }

var categories = map[Category]categoryInfo{
	Points:    {name: "points", family: Basketball, fields: []field{points}},
	Rebounds:  {name: "rebounds", family: Basketball, fields: []field{rebounds}},
	Assists:   {name: "assists", family: Basketball, fields: []field{assists}},
	Threes:    {name: "threes", family: Basketball, fields: []field{func(r model.GameStatRecord) *float64 { return r.ThreePointersMade }}},
	Steals:    {name: "steals", family: Basketball, fields: []field{func(r model.GameStatRecord) *float64 { return r.Steals }}},
	Blocks:    {name: "blocks", family: Basketball, fields: []field{func(r model.GameStatRecord) *float64 { return r.Blocks }}},
	Turnovers: {name: "turnovers", family: Basketball, fields: []field{func(r model.GameStatRecord) *float64 { return r.Turnovers }}},

	PointsReboundsAssists: {name: "pra", family: Basketball, aliases: []string{"points+rebounds+assists"}, fields: []field{points, rebounds, assists}},
	PointsRebounds:        {name: "pr", family: Basketball, aliases: []string{"points+rebounds"}, fields: []field{points, rebounds}},
	PointsAssists:         {name: "pa", family: Basketball, aliases: []string{"points+assists"}, fields: []field{points, assists}},
	ReboundsAssists:       {name: "ra", family: Basketball, aliases: []string{"rebounds+assists"}, fields: []field{rebounds, assists}},

	// Esports kills and deaths share the points and rebounds columns.
	Kills:      {name: "kills", family: Esports, fields: []field{points}},
	Deaths:     {name: "deaths", family: Esports, fields: []field{rebounds}},
	Headshots:  {name: "headshots", family: Esports, fields: []field{func(r model.GameStatRecord) *float64 { return r.Headshots }}},
	FirstKills: {name: "first_kills", family: Esports, fields: []field{func(r model.GameStatRecord) *float64 { return r.FirstKills }}},

	PassingYards:      {name: "pass_yds", family: Football, fields: []field{func(r model.GameStatRecord) *float64 { return r.PassingYards }}},
	RushingYards:      {name: "rush_yds", family: Football, fields: []field{func(r model.GameStatRecord) *float64 { return r.RushingYards }}},
	Receptions:        {name: "receptions", family: Football, fields: []field{func(r model.GameStatRecord) *float64 { return r.Receptions }}},
	ReceivingYards:    {name: "reception_yds", family: Football, fields: []field{func(r model.GameStatRecord) *float64 { return r.ReceivingYards }}},
	PassingTouchdowns: {name: "pass_tds", family: Football, fields: []field{func(r model.GameStatRecord) *float64 { return r.PassingTouchdowns }}},
	RushingTouchdowns: {name: "rush_tds", family: Football, fields: []field{func(r model.GameStatRecord) *float64 { return r.RushingTouchdowns }}},
}

var byName = func() map[string]Category {
	m := make(map[string]Category)
	for c, info := range categories {
		m[info.name] = c
		for _, a := range info.aliases {
			m[a] = c
		}
	}
	return m
}()

// ParseCategory maps a stored prop type name to its Category.
func ParseCategory(name string) (Category, error) {
	c, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
	}
	return c, nil
}

// String returns the canonical stored name.
func (c Category) String() string {
	if info, ok := categories[c]; ok {
		return info.name
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// Family returns the sport family the category belongs to.
func (c Category) Family() Family {
	return categories[c].family
}

// Composite reports whether the category sums several stat columns.
func (c Category) Composite() bool {
	return len(categories[c].fields) > 1
}

// Value extracts the category's value from one game record.
//
// Composite categories treat missing parts as zero. Simple categories are
// unavailable when the column was not recorded.
func Value(r model.GameStatRecord, c Category) outcome.Of[float64] {
	info, ok := categories[c]
	if !ok {
		return outcome.Unavailable[float64]("unknown category")
	}
	if len(info.fields) == 1 {
		return outcome.FromPtr(info.fields[0](r), info.name+" not recorded")
	}
	sum := 0.0
	for _, f := range info.fields {
		if v := f(r); v != nil {
			sum += *v
		}
	}
	return outcome.Value(sum)
}

// Values extracts the category from each record, dropping records without it.
// Order is preserved.
func Values(records []model.GameStatRecord, c Category) []float64 {
	values := make([]float64, 0, len(records))
	for _, r := range records {
		if v, ok := Value(r, c).Get(); ok {
			values = append(values, v)
		}
	}
	return values
}
