// Package game plays exactly one game between two engine sessions and
// translates the engine-reported terminal status into a result.
package game

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"ugi-arena/internal/config"
	"ugi-arena/internal/models"
	"ugi-arena/internal/ugi"
)

// Session is the slice of a UGI session the driver needs. *ugi.Session
// implements it; tests substitute scripted doubles.
type Session interface {
	Name() string
	RequestMove(timeout time.Duration) (string, error)
	ApplyMove(move string) error
	SetPosition(fen string) error
	QueryStatus(timeout time.Duration) (*ugi.GameStatus, error)
	Shutdown()
}

// Result of one game from engine1's perspective
type Result string

const (
	ResultWin   Result = "win"
	ResultLoss  Result = "loss"
	ResultDraw  Result = "draw"
	ResultError Result = "error"
)

// GameResult captures everything the updater needs to persist one game
type GameResult struct {
	Result           Result
	Reason           string
	Moves            []string
	Duration         time.Duration
	FinalStatus      *ugi.GameStatus
	Engine1Color     string
	StartingPosition string
	MatchSetName     string
}

// Engine2Color derives the opposite color assignment
func (r GameResult) Engine2Color() string {
	return models.Opposite(r.Engine1Color)
}

// MovesJSON renders the move list as a JSON array for storage
func (r GameResult) MovesJSON() string {
	data, err := json.Marshal(r.Moves)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// FinalStatusJSON renders the final status snapshot for storage
func (r GameResult) FinalStatusJSON() string {
	if r.FinalStatus == nil {
		return ""
	}
	data, err := json.Marshal(r.FinalStatus)
	if err != nil {
		return ""
	}
	return string(data)
}

// Driver plays single games under a fixed time control
type Driver struct {
	base          time.Duration
	increment     time.Duration
	moveCap       int
	statusTimeout time.Duration
	hardMoveTime  time.Duration
}

// NewDriver creates a driver from a parsed time control
func NewDriver(base, increment time.Duration, moveCap int) *Driver {
	if moveCap <= 0 {
		moveCap = config.DefaultMoveCap
	}
	return &Driver{
		base:          base,
		increment:     increment,
		moveCap:       moveCap,
		statusTimeout: ugi.DefaultStatusTimeout,
		hardMoveTime:  ugi.DefaultMoveTimeout,
	}
}

// clock tracks one side's remaining thinking time
type clock struct {
	remaining time.Duration
}

// deadline returns the budget for the next move under the hard cap
func (c *clock) deadline(hardCap time.Duration) time.Duration {
	if c.remaining < hardCap {
		return c.remaining
	}
	return hardCap
}

func (c *clock) charge(elapsed, increment time.Duration) {
	c.remaining -= elapsed
	c.remaining += increment
}

// Play runs one game. s1 belongs to engine1, s2 to engine2; engine1Color
// states which color engine1 plays. sp may carry a FEN, a move prefix or
// both (FEN applied first). Both sessions are always torn down on exit.
func (d *Driver) Play(s1, s2 Session, sp config.StartingPosition, engine1Color string) GameResult {
	start := time.Now()
	result := GameResult{
		Result:           ResultError,
		Engine1Color:     engine1Color,
		StartingPosition: sp.Name,
	}
	defer func() {
		s1.Shutdown()
		s2.Shutdown()
		result.Duration = time.Since(start)
	}()

	// Apply the alternative initial state, then replay the prefix
	if sp.FEN != "" {
		if err := s1.SetPosition(sp.FEN); err != nil {
			result.Reason = fmt.Sprintf("setup failed for %s: %v", s1.Name(), err)
			return result
		}
		if err := s2.SetPosition(sp.FEN); err != nil {
			result.Reason = fmt.Sprintf("setup failed for %s: %v", s2.Name(), err)
			return result
		}
	}
	for _, move := range sp.Moves {
		if err := s1.ApplyMove(move); err != nil {
			result.Reason = fmt.Sprintf("prefix replay failed for %s: %v", s1.Name(), err)
			return result
		}
		if err := s2.ApplyMove(move); err != nil {
			result.Reason = fmt.Sprintf("prefix replay failed for %s: %v", s2.Name(), err)
			return result
		}
	}

	// Player 1 is the white side; map each player number to the session
	// playing that color.
	owner := func(player int) Session {
		if (player == 1) == (engine1Color == models.ColorWhite) {
			return s1
		}
		return s2
	}
	clocks := map[int]*clock{
		1: {remaining: d.base},
		2: {remaining: d.base},
	}

	for {
		status, err := s1.QueryStatus(d.statusTimeout)
		result.FinalStatus = status
		if err != nil {
			result.Reason = fmt.Sprintf("status query failed: %v", err)
			return result
		}
		if !status.InProgress {
			break
		}
		if len(result.Moves) >= d.moveCap {
			result.Result = ResultDraw
			result.Reason = "move-cap"
			return result
		}

		player := status.PlayerToMove
		side := owner(player)
		ck := clocks[player]
		if ck.remaining <= 0 {
			result.Reason = fmt.Sprintf("%s ran out of time", side.Name())
			return result
		}

		thinkStart := time.Now()
		move, err := side.RequestMove(ck.deadline(d.hardMoveTime))
		if err != nil {
			result.Reason = fmt.Sprintf("%s failed to move: %v", side.Name(), err)
			return result
		}
		ck.charge(time.Since(thinkStart), d.increment)

		result.Moves = append(result.Moves, move)
		if err := s1.ApplyMove(move); err != nil {
			result.Reason = fmt.Sprintf("makemove failed for %s: %v", s1.Name(), err)
			return result
		}
		if err := s2.ApplyMove(move); err != nil {
			result.Reason = fmt.Sprintf("makemove failed for %s: %v", s2.Name(), err)
			return result
		}
	}

	result.Result, result.Reason = translateResult(result.FinalStatus, engine1Color)
	log.Printf("[GAME] %s (%s) vs %s: %s after %d moves",
		s1.Name(), engine1Color, s2.Name(), result.Result, len(result.Moves))
	return result
}

// translateResult converts per-player result tokens into engine1's result.
// Player 1 is the white side; a loss token from one player counts as a win
// claim for the other.
func translateResult(status *ugi.GameStatus, engine1Color string) (Result, string) {
	if status == nil {
		return ResultError, "no final status"
	}
	p1, p2 := status.Players[0], status.Players[1]

	player1Won := p1.Result == ugi.ResultWin || (p2.Seen && p2.Result == ugi.ResultLoss)
	player2Won := p2.Result == ugi.ResultWin || (p1.Seen && p1.Result == ugi.ResultLoss)

	switch {
	case player1Won && player2Won:
		return ResultError, "contradictory result tokens"
	case player1Won:
		if engine1Color == models.ColorWhite {
			return ResultWin, ""
		}
		return ResultLoss, ""
	case player2Won:
		if engine1Color == models.ColorWhite {
			return ResultLoss, ""
		}
		return ResultWin, ""
	default:
		// Explicit draws and ambiguous-but-finished games both land here
		return ResultDraw, ""
	}
}
