package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"ugi-arena/internal/config"
	"ugi-arena/internal/events"
	"ugi-arena/internal/game"
	"ugi-arena/internal/match"
	"ugi-arena/internal/rating"
	"ugi-arena/internal/store"
	"ugi-arena/internal/ugi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSession finishes every game as a draw after a short hold so the
// scheduler keeps several match sets in flight at once
type stubSession struct {
	name string
	hold time.Duration
}

func (s *stubSession) Name() string                              { return s.name }
func (s *stubSession) RequestMove(time.Duration) (string, error) { return "", ugi.ErrMoveTimeout }
func (s *stubSession) ApplyMove(string) error                    { return nil }
func (s *stubSession) SetPosition(string) error                  { return nil }
func (s *stubSession) Shutdown()                                 {}
func (s *stubSession) QueryStatus(time.Duration) (*ugi.GameStatus, error) {
	if s.hold > 0 {
		time.Sleep(s.hold)
	}
	status := &ugi.GameStatus{State: "finished", PlayerToMove: 1}
	status.Players[0] = ugi.PlayerResult{Result: ugi.ResultDraw, Seen: true}
	status.Players[1] = ugi.PlayerResult{Result: ugi.ResultDraw, Seen: true}
	return status, nil
}

type testFixture struct {
	store     *store.MemoryStore
	sched     *Scheduler
	active    atomic.Int32
	maxActive atomic.Int32
}

// newFixture wires a scheduler over the in-memory store with the given
// engine names, all launchable via a stub session factory.
func newFixture(t *testing.T, concurrency int, hold time.Duration, names ...string) *testFixture {
	t.Helper()
	f := &testFixture{store: store.NewMemoryStore()}

	cfg := &config.Config{}
	cfg.Tournament.Concurrency = concurrency
	cfg.Tournament.VolatilityHours = 24
	cfg.Tournament.MatchSets = []config.MatchSet{{
		Name:              "sched-set",
		GamesPerPosition:  2,
		StartingPositions: []config.StartingPosition{{Name: "initial"}},
	}}
	for _, name := range names {
		cfg.Engines = append(cfg.Engines, config.EngineConfig{
			Name: name, Executable: "/bin/true", Enabled: true,
		})
		if _, err := f.store.AddEngine(name, 1500, ""); err != nil {
			t.Fatalf("Failed to add engine %s: %v", name, err)
		}
	}

	factory := func(ec config.EngineConfig) (game.Session, error) {
		n := f.active.Add(1)
		for {
			max := f.maxActive.Load()
			if n <= max || f.maxActive.CompareAndSwap(max, n) {
				break
			}
		}
		return &trackedSession{stubSession: stubSession{name: ec.Name, hold: hold}, fixture: f}, nil
	}
	runner := match.NewRunner(game.NewDriver(time.Second, 0, 10), factory)
	runner.SetSettleDelay(0)

	f.sched = New(f.store, cfg, runner, rating.NewUpdater(f.store, 32), events.NewHub())
	f.sched.SetIdleWait(10 * time.Millisecond)
	return f
}

type trackedSession struct {
	stubSession
	fixture *testFixture
}

func (s *trackedSession) Shutdown() { s.fixture.active.Add(-1) }

func TestRunRoundLimit(t *testing.T) {
	f := newFixture(t, 2, 0, "alpha", "beta", "gamma")
	f.sched.SetLimits(3, 0)

	err := f.sched.Run(context.Background())
	require.NoError(t, err)

	status := f.sched.Status()
	assert.Equal(t, int64(3), status.MatchSetsFinished)
	assert.Equal(t, 0, status.InFlight)

	// Every match set plays its full two games and all are persisted
	games, err := f.store.GetGames(0)
	require.NoError(t, err)
	assert.Len(t, games, 6)
}

func TestRunNeverPairsEngineWithItself(t *testing.T) {
	f := newFixture(t, 2, 0, "alpha", "beta", "gamma", "delta")
	f.sched.SetLimits(8, 0)

	require.NoError(t, f.sched.Run(context.Background()))

	games, err := f.store.GetGames(0)
	require.NoError(t, err)
	require.NotEmpty(t, games)
	for _, g := range games {
		assert.NotEqual(t, g.Engine1ID, g.Engine2ID)
	}
}

func TestRunRespectsConcurrency(t *testing.T) {
	f := newFixture(t, 2, 20*time.Millisecond, "alpha", "beta", "gamma", "delta")
	f.sched.SetLimits(6, 0)

	require.NoError(t, f.sched.Run(context.Background()))

	// Each in-flight game holds two sessions; with at most two match
	// sets in flight the peak is four.
	assert.LessOrEqual(t, f.maxActive.Load(), int32(4))
	assert.Equal(t, int64(6), f.sched.Status().MatchSetsFinished)
}

func TestRunDrainsOnCancel(t *testing.T) {
	f := newFixture(t, 2, 30*time.Millisecond, "alpha", "beta", "gamma")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.sched.Run(ctx) }()

	// Let a couple of match sets launch, then ask for shutdown
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Scheduler did not drain after cancellation")
	}

	// In-flight work finished and was committed rather than abandoned
	status := f.sched.Status()
	assert.Equal(t, 0, status.InFlight)
	assert.Zero(t, f.active.Load())
	games, err := f.store.GetGames(0)
	require.NoError(t, err)
	assert.Len(t, games, int(status.MatchSetsFinished)*2)
}

func TestRunPairLimit(t *testing.T) {
	f := newFixture(t, 1, 0, "alpha", "beta", "gamma")
	f.sched.SetLimits(4, 1)

	require.NoError(t, f.sched.Run(context.Background()))

	games, err := f.store.GetGames(0)
	require.NoError(t, err)
	require.NotEmpty(t, games)
	pairs := make(map[store.PairKey]bool)
	for _, g := range games {
		pairs[store.NewPairKey(g.Engine1ID, g.Engine2ID)] = true
	}
	assert.Len(t, pairs, 1)
}

func TestRunReturnsWhenNoEnginesLaunchable(t *testing.T) {
	f := newFixture(t, 2, 0, "alpha") // one engine cannot be paired
	f.sched.SetLimits(1, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, f.sched.Run(ctx))
	assert.Equal(t, int64(0), f.sched.Status().MatchSetsFinished)
}
