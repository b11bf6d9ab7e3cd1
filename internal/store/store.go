// Package store narrows persistence to the capability set the tournament
// core consumes. The gorm implementation is the production backend; the
// memory implementation backs scheduler and updater tests.
package store

import (
	"errors"

	"ugi-arena/internal/models"
)

// Store errors
var (
	ErrEngineNotFound = errors.New("engine not found")
)

// EngineStats is the scheduling view of an engine row
type EngineStats struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Rating      int    `json:"rating"`
	GamesPlayed int    `json:"games_played"`
}

// PairKey identifies an unordered engine pair; A < B always
type PairKey struct {
	A, B int
}

// NewPairKey normalizes the pair ordering
func NewPairKey(id1, id2 int) PairKey {
	if id1 > id2 {
		id1, id2 = id2, id1
	}
	return PairKey{A: id1, B: id2}
}

// Store is the persistence capability set consumed by the core
type Store interface {
	// AddEngine creates an engine row, or returns the existing id on a
	// name collision without touching the row.
	AddEngine(name string, rating int, description string) (int, error)
	// UpdateEngineInfo overwrites rating and description for load-config
	// --replace. Counters are untouched.
	UpdateEngineInfo(id int, rating int, description string) error
	GetEngine(id int) (*models.Engine, error)
	GetEngineByName(name string) (*models.Engine, error)
	ListEngines() ([]models.Engine, error)
	GetEnginesForScheduling() ([]EngineStats, error)
	// GetRecentGames returns games played within the last N hours,
	// oldest first.
	GetRecentGames(hours int) ([]models.Game, error)
	// GetPairGameCounts returns cumulative game counts per unordered pair.
	GetPairGameCounts() (map[PairKey]int, error)
	// GetGames returns the most recent games, newest first.
	GetGames(limit int) ([]models.Game, error)
	// Begin opens a transaction for the Elo updater.
	Begin() (Tx, error)
}

// Tx is the transactional slice of Store used by the Elo updater. Ratings
// read through it are locked until Commit or Rollback.
type Tx interface {
	ReadRating(id int) (int, error)
	InsertGame(game *models.Game) error
	// UpdateEngine sets the new rating and bumps the W/L/D and
	// games_played counters by the given deltas.
	UpdateEngine(id int, newRating int, wins, losses, draws, gamesPlayed int) error
	Commit() error
	Rollback() error
}
