package rating

import (
	"fmt"
	"log"

	"ugi-arena/internal/game"
	"ugi-arena/internal/match"
	"ugi-arena/internal/models"
	"ugi-arena/internal/store"

	"github.com/google/uuid"
)

// Updater persists match-set results and applies the aggregate Elo change
type Updater struct {
	store store.Store
	k     int
}

// NewUpdater creates an updater with the given K-factor
func NewUpdater(st store.Store, k int) *Updater {
	if k <= 0 {
		k = DefaultKFactor
	}
	return &Updater{store: st, k: k}
}

// ApplyMatchSet records every game of the result and updates both
// engines' ratings and counters, all inside one transaction. Error games
// are persisted but excluded from the score denominator. On any failure
// the transaction rolls back and nothing is visible.
func (u *Updater) ApplyMatchSet(result *match.Result) (delta1, delta2 int, err error) {
	tx, err := u.store.Begin()
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	// Ratings are read inside the transaction, before the first insert;
	// every rating_before field and the Elo computation use these values.
	r1, err := tx.ReadRating(result.Engine1ID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read rating of engine %d: %w", result.Engine1ID, err)
	}
	r2, err := tx.ReadRating(result.Engine2ID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read rating of engine %d: %w", result.Engine2ID, err)
	}

	var wins1, losses1, draws int
	for _, g := range result.Games {
		if err = tx.InsertGame(gameRow(result, g, r1, r2)); err != nil {
			return 0, 0, err
		}
		switch g.Result {
		case game.ResultWin:
			wins1++
		case game.ResultLoss:
			losses1++
		case game.ResultDraw:
			draws++
		}
	}

	n := result.TotalGames
	if n == 0 {
		// Nothing but error games: keep the rows, leave ratings alone
		err = tx.Commit()
		return 0, 0, err
	}

	e1 := Expected(r1, r2)
	a1 := result.Engine1Score / float64(n)
	a2 := result.Engine2Score / float64(n)
	delta1 = Delta(u.k, a1, e1)
	delta2 = Delta(u.k, a2, 1-e1)

	if err = tx.UpdateEngine(result.Engine1ID, r1+delta1, wins1, losses1, draws, n); err != nil {
		return 0, 0, err
	}
	if err = tx.UpdateEngine(result.Engine2ID, r2+delta2, losses1, wins1, draws, n); err != nil {
		return 0, 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, err
	}

	log.Printf("[ELO] engines %d/%d: %d%+d / %d%+d over %d games",
		result.Engine1ID, result.Engine2ID, r1, delta1, r2, delta2, n)
	return delta1, delta2, nil
}

// ApplySingleGame is the play-game path: one game treated as a one-game
// match set under the same transactional rule.
func (u *Updater) ApplySingleGame(engine1ID, engine2ID int, g game.GameResult) (int, int, error) {
	result := &match.Result{
		Engine1ID:    engine1ID,
		Engine2ID:    engine2ID,
		MatchSetName: g.MatchSetName,
		Completed:    true,
	}
	result.Record(g)
	return u.ApplyMatchSet(result)
}

// gameRow converts a driver result into the persistent game record
func gameRow(result *match.Result, g game.GameResult, r1, r2 int) *models.Game {
	row := &models.Game{
		ID:                  uuid.New().String(),
		Engine1ID:           result.Engine1ID,
		Engine2ID:           result.Engine2ID,
		Engine1RatingBefore: r1,
		Engine2RatingBefore: r2,
		Engine1Color:        g.Engine1Color,
		Engine2Color:        g.Engine2Color(),
		Moves:               g.MovesJSON(),
		DurationMs:          g.Duration.Milliseconds(),
		ErrorText:           g.Reason,
		FinalStatus:         g.FinalStatusJSON(),
		StartingPosition:    g.StartingPosition,
		MatchSetName:        g.MatchSetName,
	}
	switch g.Result {
	case game.ResultWin:
		winner := result.Engine1ID
		row.WinnerID = &winner
	case game.ResultLoss:
		winner := result.Engine2ID
		row.WinnerID = &winner
	case game.ResultDraw:
		row.IsDraw = true
	case game.ResultError:
		row.IsError = true
	}
	return row
}
