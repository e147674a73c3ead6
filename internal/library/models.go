package library

import "time"

// Path identifies a candidate game folder inside an owning library.
// Identity is (Library, Dir); ID is a storage detail.
type Path struct {
	ID        int64
	Library   string
	Platform  string
	Dir       string
	CreatedAt time.Time
}

// Key is the comparable identity of a Path, usable as a map key.
type Key struct {
	Library string
	Dir     string
}

// Key returns the path's identity.
func (p Path) Key() Key {
	return Key{Library: p.Library, Dir: p.Dir}
}

// Equal reports whether two paths refer to the same folder in the same library.
func (p Path) Equal(other Path) bool {
	return p.Key() == other.Key()
}

// Game is a confirmed game record for a library path.
type Game struct {
	ID             int64
	PathID         int64
	Name           string
	Description    string
	ReleaseDate    string
	CriticScore    *float64
	UserScore      *float64
	Genres         []string
	ThumbnailURL   string
	PosterURL      string
	ScreenshotURLs []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProviderRecord captures one provider's data for a confirmed game.
type ProviderRecord struct {
	GameID         int64
	Provider       string
	ProviderGameID string
	SiteURL        string
	DataJSON       string
	UpdatedAt      time.Time
}

// SyncOutcome classifies how a path left a sync run.
type SyncOutcome string

const (
	OutcomeMatched   SyncOutcome = "matched"
	OutcomeSkipped   SyncOutcome = "skipped"
	OutcomeExcluded  SyncOutcome = "excluded"
	OutcomeCancelled SyncOutcome = "cancelled"
	OutcomeFailed    SyncOutcome = "failed"
)

// SyncResult is one per-path audit row written at the end of a sync run.
type SyncResult struct {
	ID        int64
	RunID     string
	Library   string
	Dir       string
	Outcome   SyncOutcome
	Detail    string
	CreatedAt time.Time
}

// Stats aggregates store counts for status output.
type Stats struct {
	Paths      int
	Games      int
	Excluded   int
	SyncRuns   int
	LastSyncAt *time.Time
}

// DatabaseHealth captures diagnostic information about the library database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	IntegrityCheck   bool
	TotalPaths       int
	Error            string
}
