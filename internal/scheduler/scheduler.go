// Package scheduler runs the continuous tournament: it keeps a bounded
// set of match sets in flight, picking each next pair by weighted
// sampling over pairing informativeness.
package scheduler

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"ugi-arena/internal/config"
	"ugi-arena/internal/events"
	"ugi-arena/internal/match"
	"ugi-arena/internal/rating"
	"ugi-arena/internal/store"
)

const (
	// idleWait is how long to sleep when no pair is currently eligible
	idleWait = 5 * time.Second

	// updateRetries and updateBackoff govern re-running a failed rating
	// transaction; the games themselves are never replayed.
	updateRetries = 3
	updateBackoff = 1 * time.Second
)

// Status is a snapshot of the running tournament for the API surface
type Status struct {
	InFlight          int   `json:"in_flight"`
	MatchSetsFinished int64 `json:"match_sets_finished"`
	GamesPlayed       int64 `json:"games_played"`
}

// Scheduler owns the tournament loop
type Scheduler struct {
	store   store.Store
	cfg     *config.Config
	runner  *match.Runner
	updater *rating.Updater
	hub     *events.Hub

	concurrency  int
	maxMatchSets int // 0 means unlimited
	maxPairs     int // 0 means unlimited distinct pairs
	idle         time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand

	inFlight          atomic.Int32
	matchSetsFinished atomic.Int64
	gamesPlayed       atomic.Int64
}

// New creates a scheduler. Concurrency comes from the tournament config.
func New(st store.Store, cfg *config.Config, runner *match.Runner, updater *rating.Updater, hub *events.Hub) *Scheduler {
	return &Scheduler{
		store:       st,
		cfg:         cfg,
		runner:      runner,
		updater:     updater,
		hub:         hub,
		concurrency: cfg.Tournament.Concurrency,
		idle:        idleWait,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetLimits bounds the run: rounds caps launched match sets, pairs caps
// distinct pairings. Zero means unlimited.
func (s *Scheduler) SetLimits(rounds, pairs int) {
	s.maxMatchSets = rounds
	s.maxPairs = pairs
}

// SetIdleWait overrides the no-candidate sleep; tests shrink it
func (s *Scheduler) SetIdleWait(d time.Duration) {
	s.idle = d
}

// Status reports the current loop counters
func (s *Scheduler) Status() Status {
	return Status{
		InFlight:          int(s.inFlight.Load()),
		MatchSetsFinished: s.matchSetsFinished.Load(),
		GamesPlayed:       s.gamesPlayed.Load(),
	}
}

type picked struct {
	engine1  match.EngineSlot
	engine2  match.EngineSlot
	matchSet config.MatchSet
}

// Run drives the tournament until the context is cancelled or the round
// limit is reached. Cancellation drains: in-flight match sets complete
// and their ratings are committed before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	engineConfigs := make(map[string]config.EngineConfig)
	for _, ec := range s.cfg.EnabledEngines() {
		engineConfigs[ec.Name] = ec
	}

	results := make(chan *match.Result)
	playedPairs := make(map[store.PairKey]bool)
	launched := 0

	log.Printf("[SCHEDULER] starting with concurrency %d", s.concurrency)
	for {
		// Fill free slots while we are allowed to launch
		for ctx.Err() == nil &&
			int(s.inFlight.Load()) < s.concurrency &&
			(s.maxMatchSets == 0 || launched < s.maxMatchSets) {
			pick, err := s.pickPair(engineConfigs, playedPairs)
			if err != nil {
				log.Printf("[SCHEDULER] failed to pick pair: %v", err)
				break
			}
			if pick == nil {
				break
			}
			playedPairs[store.NewPairKey(pick.engine1.ID, pick.engine2.ID)] = true
			launched++
			s.inFlight.Add(1)
			log.Printf("[SCHEDULER] launching match set %s: %s vs %s",
				pick.matchSet.Name, pick.engine1.Config.Name, pick.engine2.Config.Name)
			go func(p *picked) {
				results <- s.runner.Run(p.engine1, p.engine2, p.matchSet)
			}(pick)
		}

		if s.inFlight.Load() == 0 {
			if ctx.Err() != nil {
				log.Println("[SCHEDULER] drained, shutting down")
				return nil
			}
			if s.maxMatchSets > 0 && launched >= s.maxMatchSets {
				log.Printf("[SCHEDULER] round limit reached after %d match sets", launched)
				return nil
			}
			// No eligible pair right now; retry after a pause
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.idle):
				continue
			}
		}

		// Wait for any completion. This also runs during shutdown so
		// in-flight match sets drain rather than being cancelled.
		result := <-results
		s.inFlight.Add(-1)
		s.handleResult(result)
	}
}

// handleResult commits a finished match set, retrying the transaction on
// persistence errors. Individual failures never stop the tournament.
func (s *Scheduler) handleResult(result *match.Result) {
	s.matchSetsFinished.Add(1)
	s.gamesPlayed.Add(int64(len(result.Games)))

	var delta1, delta2 int
	var err error
	for attempt := 1; attempt <= updateRetries; attempt++ {
		delta1, delta2, err = s.updater.ApplyMatchSet(result)
		if err == nil {
			break
		}
		log.Printf("[SCHEDULER] rating update failed (attempt %d/%d): %v",
			attempt, updateRetries, err)
		if attempt < updateRetries {
			time.Sleep(time.Duration(attempt) * updateBackoff)
		}
	}
	if err != nil {
		log.Printf("[SCHEDULER] dropping match set %s result after %d attempts",
			result.MatchSetName, updateRetries)
		return
	}

	if s.hub != nil {
		for _, g := range result.Games {
			s.hub.Publish(events.TypeGameFinished, map[string]any{
				"engine1_id":        result.Engine1ID,
				"engine2_id":        result.Engine2ID,
				"result":            g.Result,
				"engine1_color":     g.Engine1Color,
				"starting_position": g.StartingPosition,
				"moves":             len(g.Moves),
			})
		}
		s.hub.Publish(events.TypeMatchSetFinished, map[string]any{
			"match_set":     result.MatchSetName,
			"engine1_id":    result.Engine1ID,
			"engine2_id":    result.Engine2ID,
			"engine1_score": result.Engine1Score,
			"engine2_score": result.Engine2Score,
			"games":         len(result.Games),
			"completed":     result.Completed,
		})
		s.hub.Publish(events.TypeRatingsUpdated, map[string]any{
			"engine1_id":    result.Engine1ID,
			"engine2_id":    result.Engine2ID,
			"engine1_delta": delta1,
			"engine2_delta": delta2,
		})
	}
}

// pickPair re-reads engine stats and selects the next pairing by
// weighted sampling over the shortlist. Returns nil when no pair is
// eligible.
func (s *Scheduler) pickPair(engineConfigs map[string]config.EngineConfig, playedPairs map[store.PairKey]bool) (*picked, error) {
	stats, err := s.store.GetEnginesForScheduling()
	if err != nil {
		return nil, err
	}

	// Only engines we can actually launch are candidates
	launchable := stats[:0:0]
	for _, e := range stats {
		if _, ok := engineConfigs[e.Name]; ok {
			launchable = append(launchable, e)
		}
	}
	if len(launchable) < 2 {
		return nil, nil
	}

	pairCounts, err := s.store.GetPairGameCounts()
	if err != nil {
		return nil, err
	}
	recent, err := s.store.GetRecentGames(s.cfg.Tournament.VolatilityHours)
	if err != nil {
		return nil, err
	}

	ranked := rankPairs(launchable, pairCounts, recent)
	if s.maxPairs > 0 && len(playedPairs) >= s.maxPairs {
		kept := ranked[:0:0]
		for _, c := range ranked {
			if playedPairs[store.NewPairKey(c.Engine1.ID, c.Engine2.ID)] {
				kept = append(kept, c)
			}
		}
		ranked = kept
	}
	pool := shortlist(ranked)
	if len(pool) == 0 {
		return nil, nil
	}

	choice := s.sample(pool)
	return &picked{
		engine1:  match.EngineSlot{ID: choice.Engine1.ID, Config: engineConfigs[choice.Engine1.Name]},
		engine2:  match.EngineSlot{ID: choice.Engine2.ID, Config: engineConfigs[choice.Engine2.Name]},
		matchSet: s.cfg.SelectMatchSet(),
	}, nil
}

// sample draws one candidate with probability proportional to weight
func (s *Scheduler) sample(pool []Candidate) Candidate {
	var total float64
	for _, c := range pool {
		total += c.Weight
	}
	s.rngMu.Lock()
	r := s.rng.Float64() * total
	s.rngMu.Unlock()
	for _, c := range pool {
		r -= c.Weight
		if r < 0 {
			return c
		}
	}
	return pool[len(pool)-1]
}
