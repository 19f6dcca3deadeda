package model

// SnapshotVersion is written with every projection snapshot row.
const SnapshotVersion = "v1"

// Baseline source tags.
const (
	BaselineBookLine      = "book-line"
	BaselinePlayerAverage = "player-average"
)

// ProjectionSnapshot is the stored projection for (player, game, prop type).
type ProjectionSnapshot struct {
	PlayerID       string
	GameID         string
	Sport          string
	PropType       string
	Opponent       *string
	IsHome         *bool
	ProjectedLine  float64
	Confidence     float64
	BaselineSource string
	BookLine       *float64
	FactorsJSON    string
	SampleSize     int
	InjuryStatus   string
	RestDays       *int
	SourcePropID   string
	SnapshotAt     string
}

// ProjectionKey is the natural key of a ProjectionSnapshot.
type ProjectionKey struct {
	PlayerID string
	GameID   string
	PropType string
}

// Key returns the snapshot's natural key.
func (p ProjectionSnapshot) Key() ProjectionKey {
	return ProjectionKey{PlayerID: p.PlayerID, GameID: p.GameID, PropType: p.PropType}
}

// PropFeedSnapshot is the denormalized feed row for one quoted line at one book.
type PropFeedSnapshot struct {
	PropID     string
	PlayerID   string
	GameID     string
	Sport      string
	PlayerName string
	Team       string
	Opponent   *string
	IsHome     *bool
	PropType   string
	Line       float64
	OverPrice  *int
	UnderPrice *int
	Book       string

	ProjectionLine       *float64
	ProjectionConfidence *float64
	ProjectionBaseline   *string
	ProjectionBookLine   *float64

	Edge     *float64
	EdgeSide *string
	EdgeProb *float64
	EVOdds   *int

	HitRateOverPct  *float64
	HitRateUnderPct *float64
	HitRateGames    *int

	DFSLine        *float64
	ContextSummary *string

	MetadataJSON        string
	SourceQuoteObserved string
	SnapshotAt          string
}

// FeedKey is the natural key of a PropFeedSnapshot.
type FeedKey struct {
	PlayerID string
	GameID   string
	PropType string
	Line     float64
	Book     string
}

// Key returns the feed row's natural key.
func (f PropFeedSnapshot) Key() FeedKey {
	return FeedKey{PlayerID: f.PlayerID, GameID: f.GameID, PropType: f.PropType, Line: f.Line, Book: f.Book}
}
