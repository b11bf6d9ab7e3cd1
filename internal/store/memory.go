package store

import (
	"sort"
	"sync"
	"time"

	"ugi-arena/internal/models"
)

// MemoryStore is an in-memory Store used by tests and by play-game runs
// against no database. Transactions are simulated by staging writes and
// applying them on Commit under the store mutex.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int
	engines map[int]*models.Engine
	games   []models.Game
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:  1,
		engines: make(map[int]*models.Engine),
	}
}

func (s *MemoryStore) AddEngine(name string, rating int, description string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.engines {
		if e.Name == name {
			return e.ID, nil
		}
	}
	id := s.nextID
	s.nextID++
	s.engines[id] = &models.Engine{
		ID:          id,
		Name:        name,
		Description: description,
		Rating:      rating,
		CreatedAt:   time.Now().UTC(),
	}
	return id, nil
}

func (s *MemoryStore) UpdateEngineInfo(id int, rating int, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.engines[id]
	if !ok {
		return ErrEngineNotFound
	}
	e.Rating = rating
	e.Description = description
	return nil
}

func (s *MemoryStore) GetEngine(id int) (*models.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.engines[id]
	if !ok {
		return nil, ErrEngineNotFound
	}
	out := *e
	return &out, nil
}

func (s *MemoryStore) GetEngineByName(name string) (*models.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.engines {
		if e.Name == name {
			out := *e
			return &out, nil
		}
	}
	return nil, ErrEngineNotFound
}

func (s *MemoryStore) ListEngines() ([]models.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	engines := make([]models.Engine, 0, len(s.engines))
	for _, e := range s.engines {
		engines = append(engines, *e)
	}
	sort.Slice(engines, func(i, j int) bool {
		if engines[i].Rating != engines[j].Rating {
			return engines[i].Rating > engines[j].Rating
		}
		return engines[i].ID < engines[j].ID
	})
	return engines, nil
}

func (s *MemoryStore) GetEnginesForScheduling() ([]EngineStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := make([]EngineStats, 0, len(s.engines))
	for _, e := range s.engines {
		stats = append(stats, EngineStats{
			ID:          e.ID,
			Name:        e.Name,
			Rating:      e.Rating,
			GamesPlayed: e.GamesPlayed,
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].ID < stats[j].ID })
	return stats, nil
}

func (s *MemoryStore) GetRecentGames(hours int) ([]models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	var games []models.Game
	for _, g := range s.games {
		if !g.PlayedAt.Before(cutoff) {
			games = append(games, g)
		}
	}
	sort.Slice(games, func(i, j int) bool { return games[i].PlayedAt.Before(games[j].PlayedAt) })
	return games, nil
}

func (s *MemoryStore) GetPairGameCounts() (map[PairKey]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[PairKey]int)
	for _, g := range s.games {
		counts[NewPairKey(g.Engine1ID, g.Engine2ID)]++
	}
	return counts, nil
}

func (s *MemoryStore) GetGames(limit int) ([]models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	games := make([]models.Game, len(s.games))
	copy(games, s.games)
	sort.Slice(games, func(i, j int) bool { return games[i].PlayedAt.After(games[j].PlayedAt) })
	if limit > 0 && len(games) > limit {
		games = games[:limit]
	}
	return games, nil
}

func (s *MemoryStore) Begin() (Tx, error) {
	s.mu.Lock()
	return &memoryTx{store: s}, nil
}

// memoryTx holds the store mutex for its whole lifetime, which gives the
// same isolation the row locks give in Postgres.
type memoryTx struct {
	store   *MemoryStore
	games   []models.Game
	updates []engineUpdate
	done    bool
}

type engineUpdate struct {
	id                          int
	rating                      int
	wins, losses, draws, played int
}

func (t *memoryTx) ReadRating(id int) (int, error) {
	e, ok := t.store.engines[id]
	if !ok {
		return 0, ErrEngineNotFound
	}
	return e.Rating, nil
}

func (t *memoryTx) InsertGame(game *models.Game) error {
	if game.PlayedAt.IsZero() {
		game.PlayedAt = time.Now().UTC()
	}
	t.games = append(t.games, *game)
	return nil
}

func (t *memoryTx) UpdateEngine(id int, newRating int, wins, losses, draws, gamesPlayed int) error {
	if _, ok := t.store.engines[id]; !ok {
		return ErrEngineNotFound
	}
	t.updates = append(t.updates, engineUpdate{
		id: id, rating: newRating,
		wins: wins, losses: losses, draws: draws, played: gamesPlayed,
	})
	return nil
}

func (t *memoryTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.games = append(t.store.games, t.games...)
	for _, u := range t.updates {
		e := t.store.engines[u.id]
		e.Rating = u.rating
		e.Wins += u.wins
		e.Losses += u.losses
		e.Draws += u.draws
		e.GamesPlayed += u.played
	}
	t.store.mu.Unlock()
	return nil
}

func (t *memoryTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}
