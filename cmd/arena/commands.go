package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ugi-arena/internal/config"
	"ugi-arena/internal/events"
	"ugi-arena/internal/game"
	"ugi-arena/internal/match"
	"ugi-arena/internal/models"
	"ugi-arena/internal/rating"
	"ugi-arena/internal/scheduler"
	"ugi-arena/internal/server"
	"ugi-arena/internal/store"
	"ugi-arena/internal/ugi"
)

const (
	timeFormat   = "2006-01-02 15:04:05"
	timeRounding = time.Millisecond
)

func cmdInitDB() error {
	if _, err := connect(); err != nil {
		return err
	}
	fmt.Println("Database initialized")
	return nil
}

func cmdLoadConfig(args []string) error {
	fs := flag.NewFlagSet("load-config", flag.ExitOnError)
	file := fs.String("file", config.Path(), "configuration file path")
	replace := fs.Bool("replace", false, "update rating and description of existing engines")
	fs.Parse(args)

	cfg, err := config.Load(*file)
	if err != nil {
		return err
	}

	database, err := connect()
	if err != nil {
		return err
	}
	st := store.NewGormStore(database.DB)

	loaded := 0
	for _, ec := range cfg.EnabledEngines() {
		existing, err := st.GetEngineByName(ec.Name)
		if err == nil {
			if *replace {
				if err := st.UpdateEngineInfo(existing.ID, ec.InitialRating, ec.Description); err != nil {
					return err
				}
				log.Printf("[LOADER] updated engine %s (id %d)", ec.Name, existing.ID)
			} else {
				log.Printf("[LOADER] engine %s already registered (id %d)", ec.Name, existing.ID)
			}
			continue
		}
		if err != store.ErrEngineNotFound {
			return err
		}
		id, err := st.AddEngine(ec.Name, ec.InitialRating, ec.Description)
		if err != nil {
			return err
		}
		log.Printf("[LOADER] registered engine %s (id %d, rating %d)", ec.Name, id, ec.InitialRating)
		loaded++
	}
	fmt.Printf("Loaded %d new engine(s) from %s\n", loaded, *file)
	return nil
}

func cmdRunTournament(args []string) error {
	fs := flag.NewFlagSet("run-tournament", flag.ExitOnError)
	rounds := fs.Int("rounds", 0, "stop after N match sets (0 = run until signalled)")
	pairs := fs.Int("pairs", 0, "cap the number of distinct engine pairs (0 = unlimited)")
	concurrency := fs.Int("concurrency", 0, "concurrent match sets (overrides config)")
	timeControl := fs.String("time-control", "", "base+increment in seconds (overrides config)")
	apiAddr := fs.String("api", "", "serve the HTTP API on this address (overrides config)")
	fs.Parse(args)

	cfg, err := config.Load(config.Path())
	if err != nil {
		return err
	}
	if *concurrency > 0 {
		cfg.Tournament.Concurrency = *concurrency
	}
	if *timeControl != "" {
		cfg.Tournament.TimeControl = *timeControl
	}
	if *apiAddr != "" {
		cfg.API.Listen = *apiAddr
	}
	if len(cfg.EnabledEngines()) < 2 {
		return fmt.Errorf("need at least two enabled engines, have %d", len(cfg.EnabledEngines()))
	}

	database, err := connect()
	if err != nil {
		return err
	}
	st := store.NewGormStore(database.DB)

	// Make sure every configured engine has a row before pairing starts
	for _, ec := range cfg.EnabledEngines() {
		if _, err := st.AddEngine(ec.Name, ec.InitialRating, ec.Description); err != nil {
			return err
		}
	}

	base, increment, err := config.ParseTimeControl(cfg.Tournament.TimeControl)
	if err != nil {
		return err
	}

	driver := game.NewDriver(base, increment, cfg.Tournament.MoveCap)
	runner := match.NewRunner(driver, match.NewUGISessionFactory(ugi.DefaultHandshakeTimeout, nil))
	hub := events.NewHub()
	updater := rating.NewUpdater(st, cfg.Tournament.KFactor)
	sched := scheduler.New(st, cfg, runner, updater, hub)
	sched.SetLimits(*rounds, *pairs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.API.Listen != "" {
		api := server.New(st, hub, sched)
		go func() {
			if err := api.Run(ctx, cfg.API.Listen); err != nil {
				log.Printf("[API] server stopped: %v", err)
			}
		}()
	}

	log.Printf("[ARENA] tournament %q starting (time control %s)",
		cfg.Tournament.Name, cfg.Tournament.TimeControl)
	return sched.Run(ctx)
}

func cmdPlayGame(args []string) error {
	fs := flag.NewFlagSet("play-game", flag.ExitOnError)
	engine1ID := fs.Int("engine1", 0, "id of the engine playing white")
	engine2ID := fs.Int("engine2", 0, "id of the engine playing black")
	timeControl := fs.String("time-control", "", "base+increment in seconds (overrides config)")
	options := make(map[string]string)
	fs.Func("option", "engine option as NAME=VALUE, wins over configured options (repeatable)", func(v string) error {
		name, value, ok := strings.Cut(v, "=")
		if !ok || name == "" {
			return fmt.Errorf("expected NAME=VALUE, got %q", v)
		}
		options[name] = value
		return nil
	})
	fs.Parse(args)

	if *engine1ID <= 0 || *engine2ID <= 0 {
		return fmt.Errorf("both --engine1 and --engine2 are required")
	}
	if *engine1ID == *engine2ID {
		return fmt.Errorf("an engine cannot play itself")
	}

	cfg, err := config.Load(config.Path())
	if err != nil {
		return err
	}
	if *timeControl != "" {
		cfg.Tournament.TimeControl = *timeControl
	}

	database, err := connect()
	if err != nil {
		return err
	}
	st := store.NewGormStore(database.DB)

	e1, err := st.GetEngine(*engine1ID)
	if err != nil {
		return fmt.Errorf("engine %d: %w", *engine1ID, err)
	}
	e2, err := st.GetEngine(*engine2ID)
	if err != nil {
		return fmt.Errorf("engine %d: %w", *engine2ID, err)
	}

	configsByName := make(map[string]config.EngineConfig)
	for _, ec := range cfg.EnabledEngines() {
		configsByName[ec.Name] = ec
	}
	ec1, ok := configsByName[e1.Name]
	if !ok {
		return fmt.Errorf("no enabled configuration for engine %s", e1.Name)
	}
	ec2, ok := configsByName[e2.Name]
	if !ok {
		return fmt.Errorf("no enabled configuration for engine %s", e2.Name)
	}

	base, increment, err := config.ParseTimeControl(cfg.Tournament.TimeControl)
	if err != nil {
		return err
	}
	driver := game.NewDriver(base, increment, cfg.Tournament.MoveCap)
	factory := match.NewUGISessionFactory(ugi.DefaultHandshakeTimeout, options)

	s1, err := factory(ec1)
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", e1.Name, err)
	}
	s2, err := factory(ec2)
	if err != nil {
		s1.Shutdown()
		return fmt.Errorf("failed to start %s: %w", e2.Name, err)
	}

	sp := cfg.SelectMatchSet().StartingPositions[0]
	result := driver.Play(s1, s2, sp, models.ColorWhite)

	updater := rating.NewUpdater(st, cfg.Tournament.KFactor)
	delta1, delta2, err := updater.ApplySingleGame(e1.ID, e2.ID, result)
	if err != nil {
		return err
	}

	fmt.Printf("%s vs %s: %s in %d moves (%s)\n",
		e1.Name, e2.Name, result.Result, len(result.Moves), result.Duration.Round(timeRounding))
	fmt.Printf("Rating change: %s %+d, %s %+d\n", e1.Name, delta1, e2.Name, delta2)
	return nil
}

func cmdRankings(args []string) error {
	fs := flag.NewFlagSet("rankings", flag.ExitOnError)
	limit := fs.Int("limit", 0, "show at most N engines")
	detailed := fs.Bool("detailed", false, "include win/loss/draw counts")
	fs.Parse(args)

	database, err := connect()
	if err != nil {
		return err
	}
	st := store.NewGormStore(database.DB)

	engines, err := st.ListEngines()
	if err != nil {
		return err
	}
	if *limit > 0 && len(engines) > *limit {
		engines = engines[:*limit]
	}

	if *detailed {
		fmt.Printf("%-4s %-24s %6s %6s %5s %5s %5s\n", "#", "Engine", "Rating", "Games", "W", "L", "D")
		for i, e := range engines {
			fmt.Printf("%-4d %-24s %6d %6d %5d %5d %5d\n",
				i+1, e.Name, e.Rating, e.GamesPlayed, e.Wins, e.Losses, e.Draws)
		}
	} else {
		fmt.Printf("%-4s %-24s %6s\n", "#", "Engine", "Rating")
		for i, e := range engines {
			fmt.Printf("%-4d %-24s %6d\n", i+1, e.Name, e.Rating)
		}
	}
	return nil
}

func cmdListEngines() error {
	database, err := connect()
	if err != nil {
		return err
	}
	st := store.NewGormStore(database.DB)

	engines, err := st.ListEngines()
	if err != nil {
		return err
	}
	for _, e := range engines {
		fmt.Printf("%d\t%s\trating=%d games=%d\t%s\n",
			e.ID, e.Name, e.Rating, e.GamesPlayed, e.Description)
	}
	if len(engines) == 0 {
		fmt.Println("No engines registered; run load-config first")
	}
	return nil
}

func cmdTestDB() error {
	database, err := connect()
	if err != nil {
		return err
	}
	st := store.NewGormStore(database.DB)

	engines, err := st.ListEngines()
	if err != nil {
		return err
	}
	games, err := st.GetGames(1)
	if err != nil {
		return err
	}
	fmt.Printf("Database OK: %d engine(s), most recent game: ", len(engines))
	if len(games) == 0 {
		fmt.Println("none")
	} else {
		fmt.Println(games[0].PlayedAt.Format(timeFormat))
	}
	return nil
}

func cmdServeAPI(args []string) error {
	fs := flag.NewFlagSet("serve-api", flag.ExitOnError)
	listen := fs.String("listen", ":8080", "listen address")
	fs.Parse(args)

	database, err := connect()
	if err != nil {
		return err
	}
	st := store.NewGormStore(database.DB)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := server.New(st, events.NewHub(), nil)
	return api.Run(ctx, *listen)
}
