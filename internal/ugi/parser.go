package ugi

import (
	"strconv"
	"strings"
)

// PlayerResult is one player's terminal report from a status exchange
type PlayerResult struct {
	Result string `json:"result"`
	Score  string `json:"score"`
	Seen   bool   `json:"seen"`
}

// GameStatus is the game state observed from an engine. InProgress stays
// true until an explicit non-inprogress status line is seen.
type GameStatus struct {
	InProgress   bool            `json:"in_progress"`
	State        string          `json:"state"`
	PlayerToMove int             `json:"player_to_move"`
	Players      [2]PlayerResult `json:"players"` // index 0 is player 1
}

// NewGameStatus returns the default status before any line is parsed
func NewGameStatus() *GameStatus {
	return &GameStatus{InProgress: true, PlayerToMove: 1}
}

// BothResultsSeen reports whether both players' result tokens arrived
func (g *GameStatus) BothResultsSeen() bool {
	return g.Players[0].Seen && g.Players[1].Seen
}

// Result tokens reported by engines
const (
	ResultWin  = "win"
	ResultLoss = "loss"
	ResultDraw = "draw"
)

// normalizeLine strips trailing whitespace and filters comment lines.
// It returns ok=false for lines the protocol says to ignore entirely.
func normalizeLine(raw string) (string, bool) {
	line := strings.TrimRight(raw, " \t\r\n")
	if line == "" || strings.HasPrefix(line, "#") {
		return "", false
	}
	return line, true
}

// parseBestMove extracts the move token from a "bestmove <move> [...]" line
func parseBestMove(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "bestmove" {
		return "", false
	}
	return fields[1], true
}

// applyStatusLine folds one line of a status exchange into the status.
// Recognized forms:
//
//	status <state> playertomove <n>
//	info player <n> result <r> score <s>
//
// Anything else is informational and ignored.
func (g *GameStatus) applyStatusLine(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "status":
		if len(fields) < 2 {
			return
		}
		g.State = fields[1]
		g.InProgress = fields[1] == "inprogress"
		for i := 2; i+1 < len(fields); i += 2 {
			if fields[i] == "playertomove" {
				if n, err := strconv.Atoi(fields[i+1]); err == nil && (n == 1 || n == 2) {
					g.PlayerToMove = n
				}
			}
		}
	case "info":
		if len(fields) < 3 || fields[1] != "player" {
			return
		}
		n, err := strconv.Atoi(fields[2])
		if err != nil || n < 1 || n > 2 {
			return
		}
		player := &g.Players[n-1]
		for i := 3; i+1 < len(fields); i += 2 {
			switch fields[i] {
			case "result":
				player.Result = fields[i+1]
				player.Seen = true
			case "score":
				player.Score = fields[i+1]
			}
		}
	}
}
