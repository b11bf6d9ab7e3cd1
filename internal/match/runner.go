// Package match plays a full match set between one engine pair: every
// starting position with both color assignments, sequentially.
package match

import (
	"fmt"
	"log"
	"time"

	"ugi-arena/internal/config"
	"ugi-arena/internal/game"
	"ugi-arena/internal/models"
	"ugi-arena/internal/ugi"
)

// interGameSettle avoids protocol races while engines are restarted
// between games
const interGameSettle = 1 * time.Second

// SessionFactory launches and handshakes one engine session
type SessionFactory func(cfg config.EngineConfig) (game.Session, error)

// NewUGISessionFactory returns the production factory: spawn the process
// and run the UGI handshake with the engine's configured options merged
// with the per-game overrides, override winning.
func NewUGISessionFactory(handshakeTimeout time.Duration, overrides map[string]string) SessionFactory {
	return func(cfg config.EngineConfig) (game.Session, error) {
		session, err := ugi.Start(cfg)
		if err != nil {
			return nil, err
		}
		if err := session.Handshake(handshakeTimeout, cfg.MergedOptionStrings(overrides)); err != nil {
			session.Shutdown()
			return nil, err
		}
		return session, nil
	}
}

// EngineSlot joins a persistent engine id to its launch configuration
type EngineSlot struct {
	ID     int
	Config config.EngineConfig
}

// Result aggregates one match set between a pair of engines.
// TotalGames counts non-error games only, so Engine1Score plus
// Engine2Score always equals TotalGames.
type Result struct {
	Engine1ID    int
	Engine2ID    int
	MatchSetName string
	Games        []game.GameResult
	Engine1Score float64
	Engine2Score float64
	TotalGames   int
	Completed    bool
}

// Runner plays match sets one game at a time
type Runner struct {
	driver  *game.Driver
	factory SessionFactory
	settle  time.Duration
}

// NewRunner creates a runner around a game driver and session factory
func NewRunner(driver *game.Driver, factory SessionFactory) *Runner {
	return &Runner{
		driver:  driver,
		factory: factory,
		settle:  interGameSettle,
	}
}

// SetSettleDelay overrides the inter-game delay; tests shrink it
func (r *Runner) SetSettleDelay(d time.Duration) {
	r.settle = d
}

// Run plays the whole match set. Games are strictly sequential; each
// position is played twice with engine1's color swapped. The result is
// always returned, with Completed=false if any game ended in error.
func (r *Runner) Run(e1, e2 EngineSlot, ms config.MatchSet) *Result {
	result := &Result{
		Engine1ID:    e1.ID,
		Engine2ID:    e2.ID,
		MatchSetName: ms.Name,
		Completed:    true,
	}

	rounds := ms.GamesPerPosition / 2
	if rounds < 1 {
		rounds = 1
	}

	first := true
	for _, sp := range ms.StartingPositions {
		for round := 0; round < rounds; round++ {
			for _, color := range []string{models.ColorWhite, models.ColorBlack} {
				if !first {
					time.Sleep(r.settle)
				}
				first = false
				gameResult := r.playOne(e1, e2, sp, color)
				gameResult.MatchSetName = ms.Name
				result.Record(gameResult)
			}
		}
	}

	log.Printf("[MATCH] %s: %s %.1f - %.1f %s (%d games, completed=%v)",
		ms.Name, e1.Config.Name, result.Engine1Score,
		result.Engine2Score, e2.Config.Name, len(result.Games), result.Completed)
	return result
}

// playOne launches both sessions and drives a single game. A launch
// failure becomes an error game rather than aborting the match set.
func (r *Runner) playOne(e1, e2 EngineSlot, sp config.StartingPosition, engine1Color string) game.GameResult {
	s1, err := r.factory(e1.Config)
	if err != nil {
		return errorGame(sp, engine1Color, fmt.Sprintf("failed to start %s: %v", e1.Config.Name, err))
	}
	s2, err := r.factory(e2.Config)
	if err != nil {
		s1.Shutdown()
		return errorGame(sp, engine1Color, fmt.Sprintf("failed to start %s: %v", e2.Config.Name, err))
	}
	return r.driver.Play(s1, s2, sp, engine1Color)
}

func errorGame(sp config.StartingPosition, engine1Color, reason string) game.GameResult {
	return game.GameResult{
		Result:           game.ResultError,
		Reason:           reason,
		Engine1Color:     engine1Color,
		StartingPosition: sp.Name,
	}
}

// Record folds one game into the aggregate score
func (m *Result) Record(g game.GameResult) {
	m.Games = append(m.Games, g)
	switch g.Result {
	case game.ResultWin:
		m.Engine1Score++
		m.TotalGames++
	case game.ResultLoss:
		m.Engine2Score++
		m.TotalGames++
	case game.ResultDraw:
		m.Engine1Score += 0.5
		m.Engine2Score += 0.5
		m.TotalGames++
	case game.ResultError:
		m.Completed = false
	}
}
