// Command arena runs a continuous tournament among UGI engines: it pairs
// engines by rating informativeness, plays balanced match sets through
// child processes and maintains Elo ratings in PostgreSQL.
package main

import (
	"fmt"
	"os"

	"ugi-arena/internal/config"
	"ugi-arena/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	// Best effort; the environment may be set directly
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "init-db":
		err = cmdInitDB()
	case "load-config":
		err = cmdLoadConfig(args)
	case "run-tournament":
		err = cmdRunTournament(args)
	case "play-game":
		err = cmdPlayGame(args)
	case "rankings":
		err = cmdRankings(args)
	case "list-engines":
		err = cmdListEngines()
	case "test-db":
		err = cmdTestDB()
	case "serve-api":
		err = cmdServeAPI(args)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", command)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: arena <command> [flags]

Commands:
  init-db                         bootstrap the database schema
  load-config [--file P] [--replace]
                                  register engines from the config file
  run-tournament [--rounds N] [--pairs N] [--concurrency N]
                 [--time-control S] [--api ADDR]
                                  run the continuous tournament
  play-game --engine1 ID --engine2 ID [--time-control S]
            [--option NAME=VALUE]
                                  play a single game between two engines
  rankings [--limit N] [--detailed]
                                  show the rating table
  list-engines                    list registered engines
  test-db                         check database connectivity
  serve-api [--listen ADDR]       serve the read-only HTTP API

Environment:
  ENGINES_CONFIG                  config file path (default engines.json)
  DB_HOST DB_PORT DB_NAME DB_USER DB_PASSWORD
                                  database connection`)
}

// dbConfigFromEnv reads the standard database connection variables
func dbConfigFromEnv() db.Config {
	return db.Config{
		Host:     config.GetEnv("DB_HOST", "localhost"),
		Port:     config.GetEnv("DB_PORT", "5432"),
		User:     config.GetEnv("DB_USER", "postgres"),
		Password: config.GetEnv("DB_PASSWORD", ""),
		DBName:   config.GetEnv("DB_NAME", "ugi_arena"),
	}
}

func connect() (*db.DB, error) {
	return db.New(dbConfigFromEnv())
}
