package store

import (
	"fmt"
	"time"

	"ugi-arena/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store on a GORM connection
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AddEngine creates an engine row or returns the existing id on name collision
func (s *GormStore) AddEngine(name string, rating int, description string) (int, error) {
	var existing models.Engine
	err := s.db.Where("name = ?", name).First(&existing).Error
	if err == nil {
		return existing.ID, nil
	}
	if err != gorm.ErrRecordNotFound {
		return 0, fmt.Errorf("failed to look up engine %s: %w", name, err)
	}

	engine := models.Engine{
		Name:        name,
		Description: description,
		Rating:      rating,
	}
	if err := s.db.Create(&engine).Error; err != nil {
		return 0, fmt.Errorf("failed to create engine %s: %w", name, err)
	}
	return engine.ID, nil
}

// UpdateEngineInfo overwrites rating and description, leaving counters alone
func (s *GormStore) UpdateEngineInfo(id int, rating int, description string) error {
	result := s.db.Model(&models.Engine{}).Where("id = ?", id).
		Updates(map[string]any{"rating": rating, "description": description})
	if result.Error != nil {
		return fmt.Errorf("failed to update engine %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrEngineNotFound
	}
	return nil
}

// GetEngine retrieves one engine by id
func (s *GormStore) GetEngine(id int) (*models.Engine, error) {
	var engine models.Engine
	if err := s.db.First(&engine, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrEngineNotFound
		}
		return nil, fmt.Errorf("failed to get engine %d: %w", id, err)
	}
	return &engine, nil
}

// GetEngineByName retrieves one engine by its unique name
func (s *GormStore) GetEngineByName(name string) (*models.Engine, error) {
	var engine models.Engine
	if err := s.db.First(&engine, "name = ?", name).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrEngineNotFound
		}
		return nil, fmt.Errorf("failed to get engine %s: %w", name, err)
	}
	return &engine, nil
}

// ListEngines returns all engines ordered by rating descending
func (s *GormStore) ListEngines() ([]models.Engine, error) {
	var engines []models.Engine
	if err := s.db.Order("rating DESC, id ASC").Find(&engines).Error; err != nil {
		return nil, fmt.Errorf("failed to list engines: %w", err)
	}
	return engines, nil
}

// GetEnginesForScheduling returns the scheduling view of all engines
func (s *GormStore) GetEnginesForScheduling() ([]EngineStats, error) {
	var stats []EngineStats
	err := s.db.Model(&models.Engine{}).
		Select("id, name, rating, games_played").
		Order("id ASC").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read engine stats: %w", err)
	}
	return stats, nil
}

// GetRecentGames returns games from the last N hours, oldest first
func (s *GormStore) GetRecentGames(hours int) ([]models.Game, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	var games []models.Game
	err := s.db.Where("played_at >= ?", cutoff).
		Order("played_at ASC").
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read recent games: %w", err)
	}
	return games, nil
}

// GetPairGameCounts returns cumulative game counts per unordered pair
func (s *GormStore) GetPairGameCounts() (map[PairKey]int, error) {
	type pairCount struct {
		Engine1ID int
		Engine2ID int
		N         int
	}
	var rows []pairCount
	err := s.db.Model(&models.Game{}).
		Select("engine1_id, engine2_id, COUNT(*) AS n").
		Group("engine1_id, engine2_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read pair counts: %w", err)
	}

	// Fold the bidirectional storage into unordered keys
	counts := make(map[PairKey]int, len(rows))
	for _, r := range rows {
		counts[NewPairKey(r.Engine1ID, r.Engine2ID)] += r.N
	}
	return counts, nil
}

// GetGames returns the most recent games, newest first
func (s *GormStore) GetGames(limit int) ([]models.Game, error) {
	var games []models.Game
	q := s.db.Order("played_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&games).Error; err != nil {
		return nil, fmt.Errorf("failed to read games: %w", err)
	}
	return games, nil
}

// Begin opens a transaction for the Elo updater
func (s *GormStore) Begin() (Tx, error) {
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	return &gormTx{tx: tx}, nil
}

type gormTx struct {
	tx *gorm.DB
}

// ReadRating reads the current rating with a row lock where the dialect
// supports it (sqlite in tests does not)
func (t *gormTx) ReadRating(id int) (int, error) {
	q := t.tx
	if t.tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var engine models.Engine
	if err := q.First(&engine, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, ErrEngineNotFound
		}
		return 0, fmt.Errorf("failed to lock engine %d: %w", id, err)
	}
	return engine.Rating, nil
}

func (t *gormTx) InsertGame(game *models.Game) error {
	if err := t.tx.Create(game).Error; err != nil {
		return fmt.Errorf("failed to insert game: %w", err)
	}
	return nil
}

func (t *gormTx) UpdateEngine(id int, newRating int, wins, losses, draws, gamesPlayed int) error {
	result := t.tx.Model(&models.Engine{}).Where("id = ?", id).Updates(map[string]any{
		"rating":       newRating,
		"wins":         gorm.Expr("wins + ?", wins),
		"losses":       gorm.Expr("losses + ?", losses),
		"draws":        gorm.Expr("draws + ?", draws),
		"games_played": gorm.Expr("games_played + ?", gamesPlayed),
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update engine %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrEngineNotFound
	}
	return nil
}

func (t *gormTx) Commit() error {
	return t.tx.Commit().Error
}

func (t *gormTx) Rollback() error {
	return t.tx.Rollback().Error
}
