package match

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ugi-arena/internal/config"
	"ugi-arena/internal/game"
	"ugi-arena/internal/models"
	"ugi-arena/internal/ugi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedSession immediately reports a finished game won by player 1 (the
// white side)
type fixedSession struct {
	name string
}

func (s *fixedSession) Name() string                                  { return s.name }
func (s *fixedSession) RequestMove(time.Duration) (string, error)     { return "", ugi.ErrMoveTimeout }
func (s *fixedSession) ApplyMove(string) error                        { return nil }
func (s *fixedSession) SetPosition(string) error                      { return nil }
func (s *fixedSession) Shutdown()                                     {}
func (s *fixedSession) QueryStatus(time.Duration) (*ugi.GameStatus, error) {
	status := &ugi.GameStatus{State: "finished", PlayerToMove: 1}
	status.Players[0] = ugi.PlayerResult{Result: ugi.ResultWin, Seen: true}
	status.Players[1] = ugi.PlayerResult{Result: ugi.ResultLoss, Seen: true}
	return status, nil
}

func whiteWinsFactory() SessionFactory {
	return func(cfg config.EngineConfig) (game.Session, error) {
		return &fixedSession{name: cfg.Name}, nil
	}
}

func testRunner(factory SessionFactory) *Runner {
	runner := NewRunner(game.NewDriver(30*time.Second, 0, 500), factory)
	runner.SetSettleDelay(0)
	return runner
}

func slots() (EngineSlot, EngineSlot) {
	return EngineSlot{ID: 1, Config: config.EngineConfig{Name: "alpha"}},
		EngineSlot{ID: 2, Config: config.EngineConfig{Name: "beta"}}
}

func matchSet(positions ...string) config.MatchSet {
	ms := config.MatchSet{Name: "test-set", GamesPerPosition: 2}
	for _, p := range positions {
		ms.StartingPositions = append(ms.StartingPositions, config.StartingPosition{Name: p})
	}
	return ms
}

func TestRunColorBalance(t *testing.T) {
	e1, e2 := slots()
	runner := testRunner(whiteWinsFactory())

	result := runner.Run(e1, e2, matchSet("p1", "p2", "p3"))

	require.Len(t, result.Games, 6)
	white, black := 0, 0
	perPosition := make(map[string]map[string]int)
	for _, g := range result.Games {
		if g.Engine1Color == models.ColorWhite {
			white++
		} else {
			black++
		}
		if perPosition[g.StartingPosition] == nil {
			perPosition[g.StartingPosition] = make(map[string]int)
		}
		perPosition[g.StartingPosition][g.Engine1Color]++
	}
	// Engine1 plays each color exactly once per position
	assert.Equal(t, 3, white)
	assert.Equal(t, 3, black)
	for pos, colors := range perPosition {
		assert.Equal(t, 1, colors[models.ColorWhite], "position %s", pos)
		assert.Equal(t, 1, colors[models.ColorBlack], "position %s", pos)
	}
}

func TestRunScoringWhiteAlwaysWins(t *testing.T) {
	e1, e2 := slots()
	runner := testRunner(whiteWinsFactory())

	result := runner.Run(e1, e2, matchSet("p1"))

	// Engine1 wins as white, loses as black: 1-1
	require.Len(t, result.Games, 2)
	assert.Equal(t, 1.0, result.Engine1Score)
	assert.Equal(t, 1.0, result.Engine2Score)
	assert.Equal(t, 2, result.TotalGames)
	assert.True(t, result.Completed)
	assert.Equal(t, result.Engine1Score+result.Engine2Score, float64(result.TotalGames))
}

func TestRunLaunchFailureBecomesErrorGame(t *testing.T) {
	e1, e2 := slots()
	calls := 0
	factory := func(cfg config.EngineConfig) (game.Session, error) {
		calls++
		// Second game: engine1's process fails to start
		if calls == 3 {
			return nil, errors.New("spawn failed")
		}
		return &fixedSession{name: cfg.Name}, nil
	}
	runner := testRunner(factory)

	result := runner.Run(e1, e2, matchSet("p1"))

	require.Len(t, result.Games, 2)
	assert.False(t, result.Completed)
	assert.Equal(t, 1, result.TotalGames)
	assert.Equal(t, game.ResultError, result.Games[1].Result)
	assert.Contains(t, result.Games[1].Reason, "alpha")
	// The error game contributes to neither score
	assert.Equal(t, 1.0, result.Engine1Score)
	assert.Equal(t, 0.0, result.Engine2Score)
}

// The mock engine refuses readyok until the overridden Hash value
// arrives, so the handshake only succeeds if the override won the merge.
func TestUGISessionFactoryAppliesOverrides(t *testing.T) {
	script := `#!/bin/sh
seen=0
while IFS= read -r line; do
  case "$line" in
    ugi) echo "ugiok" ;;
    "setoption name Hash value 256") seen=1 ;;
    isready) [ "$seen" = "1" ] && echo "readyok" ;;
    quit) exit 0 ;;
  esac
done
`
	path := filepath.Join(t.TempDir(), "mock-engine.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	cfg := config.EngineConfig{
		Name:       "mock",
		Executable: path,
		Enabled:    true,
		Options:    map[string]any{"Hash": float64(128)},
	}

	factory := NewUGISessionFactory(2*time.Second, map[string]string{"Hash": "256"})
	session, err := factory(cfg)
	require.NoError(t, err)
	session.Shutdown()

	// Without the override the static Hash=128 is sent and the engine
	// never reports ready.
	staticOnly := NewUGISessionFactory(500*time.Millisecond, nil)
	_, err = staticOnly(cfg)
	require.ErrorIs(t, err, ugi.ErrHandshakeTimeout)
}

func TestRunMatchSetNameStamped(t *testing.T) {
	e1, e2 := slots()
	runner := testRunner(whiteWinsFactory())

	result := runner.Run(e1, e2, matchSet("p1"))
	for _, g := range result.Games {
		assert.Equal(t, "test-set", g.MatchSetName)
	}
}
