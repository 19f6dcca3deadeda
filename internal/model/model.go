package model

import (
	"strings"
	"time"
)

// Table names in the external store.
const (
	TablePlayers             = "players"
	TableGames               = "games"
	TableGameStats           = "player_game_stats"
	TablePropQuotes          = "player_prop_odds"
	TableInjuries            = "player_injuries"
	TableProjectionSnapshots = "player_projection_snapshots"
	TablePropFeedSnapshots   = "prop_feed_snapshots"
	TableDFSLines            = "dfs_lines"
	TableOddsSnapshots       = "odds_snapshots"
)

// MarketSpreads is the odds_snapshots market type for point spreads.
const MarketSpreads = "spreads"

// Sport families used when filtering quotes.
const (
	SportEsports = "Esports"
)

// EsportsTitles are the player sports grouped under the Esports filter.
var EsportsTitles = []string{"CS2", "LoL", "Dota2", "Valorant"}

// MatchesSport reports whether a player's sport passes the requested filter.
// An empty filter matches everything.
func MatchesSport(filter, playerSport string) bool {
	if filter == "" {
		return true
	}
	if filter == SportEsports {
		for _, s := range EsportsTitles {
			if s == playerSport {
				return true
			}
		}
		return false
	}
	return filter == playerSport
}

// Player identity and current team assignment.
type Player struct {
	ID          string
	Name        string
	Team        string
	Position    string
	Sport       string
	ExternalRef string
}

// Game is a scheduled or played fixture.
type Game struct {
	ID        string
	Sport     string
	HomeTeam  string
	AwayTeam  string
	StartTime string // ISO 8601 as stored
	Status    string
}

// Start parses StartTime. The second return is false when it is missing or malformed.
func (g Game) Start() (time.Time, bool) {
	return ParseTimestamp(g.StartTime)
}

// GameStatRecord is one player's box score line for one game.
// Nil fields were not recorded for that game.
type GameStatRecord struct {
	PlayerID      string
	GameID        string
	Date          string // YYYY-MM-DD
	Opponent      string
	Home          bool
	MinutesPlayed *float64

	Points            *float64 // esports kills are stored here
	Rebounds          *float64 // esports deaths are stored here
	Assists           *float64
	ThreePointersMade *float64
	Steals            *float64
	Blocks            *float64
	Turnovers         *float64
	Headshots         *float64
	FirstKills        *float64

	PassingYards      *float64
	RushingYards      *float64
	Receptions        *float64
	ReceivingYards    *float64
	PassingTouchdowns *float64
	RushingTouchdowns *float64
}

// Played reports whether the player logged minutes. Records without a minutes
// value count as played.
func (r GameStatRecord) Played() bool {
	return r.MinutesPlayed == nil || *r.MinutesPlayed > 0
}

// Day parses Date. The second return is false when it is missing or malformed.
func (r GameStatRecord) Day() (time.Time, bool) {
	return ParseTimestamp(r.Date)
}

// PropQuote is one sportsbook observation of a player prop.
type PropQuote struct {
	ID         string
	PlayerID   string
	GameID     string
	PropType   string
	Line       *float64
	OverPrice  *int
	UnderPrice *int
	Book       string
	ObservedAt string // ISO 8601; compared lexicographically
}

// InjuryRecord is a reported injury for a player.
type InjuryRecord struct {
	PlayerID         string
	Status           string // "active" while the injury is current
	Severity         string // out, doubtful, questionable, probable
	ImpactPercentage *float64
	InjuryType       string
	Notes            string
	ReportedDate     string
}

// Active reports whether the record describes a current injury.
func (i InjuryRecord) Active() bool {
	return strings.EqualFold(i.Status, "active")
}

// ParseTimestamp accepts RFC 3339 timestamps (with or without fractional
// seconds or a trailing Z) and plain dates.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// PlayerInjury is an injury joined with the player it belongs to.
type PlayerInjury struct {
	Player Player
	Injury InjuryRecord
}

// DFSLine is a line scraped from a daily fantasy app.
type DFSLine struct {
	PlayerID  string
	GameID    string
	PropType  string
	Source    string // prizepicks, underdog
	Line      *float64
	ScrapedAt string
}

// SpreadQuote is a game-level point spread. MarketLabel names the team the
// line belongs to; a negative line means that team is favoured.
type SpreadQuote struct {
	GameID      string
	MarketLabel string
	Line        *float64
	ObservedAt  string
}

// SameTeam compares team names ignoring case and surrounding space.
func SameTeam(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}

// ResolveMatchup finds the opponent of team in g and whether team is at home.
// When team matches neither side the player is assumed to be at home and the
// away team is the opponent. ok is false only when the game names no teams.
func ResolveMatchup(team string, g Game) (opponent string, isHome bool, ok bool) {
	switch {
	case SameTeam(team, g.HomeTeam):
		return g.AwayTeam, true, g.AwayTeam != ""
	case SameTeam(team, g.AwayTeam):
		return g.HomeTeam, false, g.HomeTeam != ""
	case g.AwayTeam != "":
		return g.AwayTeam, true, true
	case g.HomeTeam != "":
		return g.HomeTeam, false, true
	}
	return "", false, false
}
