package store

import (
	"testing"
	"time"

	"ugi-arena/internal/models"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?mode=memory"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Engine{}, &models.Game{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func addTestEngine(t *testing.T, s *GormStore, name string, rating int) int {
	id, err := s.AddEngine(name, rating, "test engine")
	if err != nil {
		t.Fatalf("Failed to add engine %s: %v", name, err)
	}
	return id
}

func insertTestGame(t *testing.T, s *GormStore, e1, e2 int, playedAt time.Time) {
	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Failed to begin tx: %v", err)
	}
	err = tx.InsertGame(&models.Game{
		ID:                  uuid.New().String(),
		Engine1ID:           e1,
		Engine2ID:           e2,
		Engine1RatingBefore: 1500,
		Engine2RatingBefore: 1500,
		Engine1Color:        models.ColorWhite,
		Engine2Color:        models.ColorBlack,
		PlayedAt:            playedAt,
	})
	if err != nil {
		t.Fatalf("Failed to insert game: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}
}

func TestAddEngineIdempotent(t *testing.T) {
	s := NewGormStore(setupTestDB(t))

	id1 := addTestEngine(t, s, "alpha", 1500)
	id2 := addTestEngine(t, s, "alpha", 1700)

	if id1 != id2 {
		t.Errorf("Expected same id on name collision, got %d and %d", id1, id2)
	}

	// The collision must not overwrite the original rating
	engine, err := s.GetEngine(id1)
	if err != nil {
		t.Fatalf("Failed to get engine: %v", err)
	}
	if engine.Rating != 1500 {
		t.Errorf("Expected rating 1500, got %d", engine.Rating)
	}
}

func TestUpdateEngineInfo(t *testing.T) {
	s := NewGormStore(setupTestDB(t))
	id := addTestEngine(t, s, "alpha", 1500)

	if err := s.UpdateEngineInfo(id, 1650, "updated"); err != nil {
		t.Fatalf("UpdateEngineInfo failed: %v", err)
	}
	engine, _ := s.GetEngine(id)
	if engine.Rating != 1650 || engine.Description != "updated" {
		t.Errorf("Update not applied: rating=%d description=%q", engine.Rating, engine.Description)
	}

	if err := s.UpdateEngineInfo(999, 1500, ""); err != ErrEngineNotFound {
		t.Errorf("Expected ErrEngineNotFound, got %v", err)
	}
}

func TestGetPairGameCountsBidirectional(t *testing.T) {
	s := NewGormStore(setupTestDB(t))
	a := addTestEngine(t, s, "alpha", 1500)
	b := addTestEngine(t, s, "beta", 1500)
	c := addTestEngine(t, s, "gamma", 1500)

	now := time.Now().UTC()
	// Stored in both orientations; counts must fold together
	insertTestGame(t, s, a, b, now)
	insertTestGame(t, s, b, a, now)
	insertTestGame(t, s, a, c, now)

	counts, err := s.GetPairGameCounts()
	if err != nil {
		t.Fatalf("GetPairGameCounts failed: %v", err)
	}
	if counts[NewPairKey(a, b)] != 2 {
		t.Errorf("Expected 2 games for pair (a,b), got %d", counts[NewPairKey(a, b)])
	}
	if counts[NewPairKey(c, a)] != 1 {
		t.Errorf("Expected 1 game for pair (a,c), got %d", counts[NewPairKey(c, a)])
	}
	if counts[NewPairKey(b, c)] != 0 {
		t.Errorf("Expected 0 games for pair (b,c), got %d", counts[NewPairKey(b, c)])
	}
}

func TestGetRecentGamesWindow(t *testing.T) {
	s := NewGormStore(setupTestDB(t))
	a := addTestEngine(t, s, "alpha", 1500)
	b := addTestEngine(t, s, "beta", 1500)

	now := time.Now().UTC()
	insertTestGame(t, s, a, b, now.Add(-48*time.Hour))
	insertTestGame(t, s, a, b, now.Add(-1*time.Hour))
	insertTestGame(t, s, a, b, now.Add(-10*time.Minute))

	recent, err := s.GetRecentGames(24)
	if err != nil {
		t.Fatalf("GetRecentGames failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Expected 2 recent games, got %d", len(recent))
	}
	// Oldest first
	if !recent[0].PlayedAt.Before(recent[1].PlayedAt) {
		t.Error("Expected recent games ordered oldest first")
	}
}

func TestTransactionCommitVisible(t *testing.T) {
	s := NewGormStore(setupTestDB(t))
	a := addTestEngine(t, s, "alpha", 1500)
	b := addTestEngine(t, s, "beta", 1500)

	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	r, err := tx.ReadRating(a)
	if err != nil {
		t.Fatalf("ReadRating failed: %v", err)
	}
	if r != 1500 {
		t.Errorf("Expected rating 1500, got %d", r)
	}
	err = tx.InsertGame(&models.Game{
		ID: uuid.New().String(), Engine1ID: a, Engine2ID: b,
		Engine1RatingBefore: 1500, Engine2RatingBefore: 1500,
		Engine1Color: models.ColorWhite, Engine2Color: models.ColorBlack,
	})
	if err != nil {
		t.Fatalf("InsertGame failed: %v", err)
	}
	if err := tx.UpdateEngine(a, 1516, 1, 0, 0, 1); err != nil {
		t.Fatalf("UpdateEngine failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	engine, _ := s.GetEngine(a)
	if engine.Rating != 1516 || engine.Wins != 1 || engine.GamesPlayed != 1 {
		t.Errorf("Counters not applied: %+v", engine)
	}
	games, _ := s.GetGames(0)
	if len(games) != 1 {
		t.Errorf("Expected 1 game, got %d", len(games))
	}
}

// TestTransactionRollback verifies nothing from an aborted match set is
// observable
func TestTransactionRollback(t *testing.T) {
	s := NewGormStore(setupTestDB(t))
	a := addTestEngine(t, s, "alpha", 1500)
	b := addTestEngine(t, s, "beta", 1500)

	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	err = tx.InsertGame(&models.Game{
		ID: uuid.New().String(), Engine1ID: a, Engine2ID: b,
		Engine1RatingBefore: 1500, Engine2RatingBefore: 1500,
		Engine1Color: models.ColorWhite, Engine2Color: models.ColorBlack,
	})
	if err != nil {
		t.Fatalf("InsertGame failed: %v", err)
	}
	if err := tx.UpdateEngine(a, 1532, 1, 0, 0, 1); err != nil {
		t.Fatalf("UpdateEngine failed: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	games, _ := s.GetGames(0)
	if len(games) != 0 {
		t.Errorf("Expected no games after rollback, got %d", len(games))
	}
	engine, _ := s.GetEngine(a)
	if engine.Rating != 1500 || engine.GamesPlayed != 0 {
		t.Errorf("Engine mutated despite rollback: %+v", engine)
	}
}

func TestListEnginesOrderedByRating(t *testing.T) {
	s := NewGormStore(setupTestDB(t))
	addTestEngine(t, s, "weak", 1200)
	addTestEngine(t, s, "strong", 1800)
	addTestEngine(t, s, "middle", 1500)

	engines, err := s.ListEngines()
	if err != nil {
		t.Fatalf("ListEngines failed: %v", err)
	}
	if len(engines) != 3 {
		t.Fatalf("Expected 3 engines, got %d", len(engines))
	}
	if engines[0].Name != "strong" || engines[2].Name != "weak" {
		t.Errorf("Unexpected order: %s, %s, %s", engines[0].Name, engines[1].Name, engines[2].Name)
	}
}
