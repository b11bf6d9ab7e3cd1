package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default knobs used when the config document leaves them unset
const (
	DefaultTimeControl     = "30+0"
	DefaultConcurrency     = 2
	DefaultKFactor         = 32
	DefaultVolatilityHours = 24
	DefaultMoveCap         = 500
	DefaultInitialRating   = 1500
	DefaultConfigPath      = "engines.json"
)

// Config is the single structured configuration document
type Config struct {
	Tournament Tournament     `json:"tournament"`
	Engines    []EngineConfig `json:"engines"`
	API        APIConfig      `json:"api"`
}

// Tournament holds tournament-wide settings
type Tournament struct {
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	TimeControl     string     `json:"timeControl"`
	Rounds          int        `json:"rounds,omitempty"`
	GamesPerPair    int        `json:"gamesPerPair,omitempty"`
	Concurrency     int        `json:"concurrency,omitempty"`
	DefaultMatchSet string     `json:"defaultMatchSet,omitempty"`
	KFactor         int        `json:"kFactor,omitempty"`
	VolatilityHours int        `json:"volatilityHours,omitempty"`
	MoveCap         int        `json:"moveCap,omitempty"`
	MatchSets       []MatchSet `json:"matchSets,omitempty"`
}

// EngineConfig describes how to launch one engine process
type EngineConfig struct {
	Name             string            `json:"name"`
	Executable       string            `json:"executable"`
	WorkingDirectory string            `json:"workingDirectory,omitempty"`
	Arguments        []string          `json:"arguments,omitempty"`
	InitialRating    int               `json:"initialRating,omitempty"`
	Enabled          bool              `json:"enabled"`
	Description      string            `json:"description,omitempty"`
	Options          map[string]any    `json:"options,omitempty"`
	Env              map[string]string `json:"env,omitempty"`
}

// MatchSet is a bundle of starting positions played with both color
// assignments per position
type MatchSet struct {
	Name              string             `json:"name"`
	Description       string             `json:"description,omitempty"`
	GamesPerPosition  int                `json:"gamesPerPosition"`
	StartingPositions []StartingPosition `json:"startingPositions"`
}

// StartingPosition describes a position to start games from. If FEN is
// set it is applied first and Moves are replayed after it.
type StartingPosition struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Moves       []string `json:"moves,omitempty"`
	FEN         string   `json:"fen,omitempty"`
}

// APIConfig controls the optional read-only HTTP surface
type APIConfig struct {
	Listen string `json:"listen,omitempty"`
}

// GetEnv returns an environment variable value or a fallback
func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// Path returns the configuration file path, honoring ENGINES_CONFIG
func Path() string {
	return GetEnv("ENGINES_CONFIG", DefaultConfigPath)
}

// Load reads and validates the configuration document. A missing file is
// not an error: the arena starts with no engines and the loader logs once.
// Invalid JSON is fatal to the caller.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[CONFIG] %s not found, starting with no engines", path)
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Tournament.TimeControl == "" {
		c.Tournament.TimeControl = DefaultTimeControl
	}
	if c.Tournament.Concurrency <= 0 {
		c.Tournament.Concurrency = DefaultConcurrency
	}
	if c.Tournament.KFactor <= 0 {
		c.Tournament.KFactor = DefaultKFactor
	}
	if c.Tournament.VolatilityHours <= 0 {
		c.Tournament.VolatilityHours = DefaultVolatilityHours
	}
	if c.Tournament.MoveCap <= 0 {
		c.Tournament.MoveCap = DefaultMoveCap
	}
	for i := range c.Engines {
		if c.Engines[i].InitialRating <= 0 {
			c.Engines[i].InitialRating = DefaultInitialRating
		}
	}
	for i := range c.Tournament.MatchSets {
		if c.Tournament.MatchSets[i].GamesPerPosition == 0 {
			c.Tournament.MatchSets[i].GamesPerPosition = 2
		}
	}
}

func (c *Config) validate() error {
	if _, _, err := ParseTimeControl(c.Tournament.TimeControl); err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, e := range c.Engines {
		if e.Name == "" {
			return ErrEngineNameRequired
		}
		if seen[e.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateEngineName, e.Name)
		}
		seen[e.Name] = true
		if e.Enabled && e.Executable == "" {
			return fmt.Errorf("%w: %s", ErrExecutableRequired, e.Name)
		}
	}
	for _, ms := range c.Tournament.MatchSets {
		if ms.Name == "" {
			return ErrMatchSetNameRequired
		}
		if ms.GamesPerPosition%2 != 0 {
			return fmt.Errorf("%w: %s has gamesPerPosition=%d", ErrOddGamesPerPosition, ms.Name, ms.GamesPerPosition)
		}
		if len(ms.StartingPositions) == 0 {
			return fmt.Errorf("%w: %s", ErrNoStartingPositions, ms.Name)
		}
	}
	return nil
}

// EnabledEngines returns the engines the loader should register
func (c *Config) EnabledEngines() []EngineConfig {
	enabled := make([]EngineConfig, 0, len(c.Engines))
	for _, e := range c.Engines {
		if e.Enabled {
			enabled = append(enabled, e)
		}
	}
	return enabled
}

// SelectMatchSet picks the match set to play: the one named by
// tournament.defaultMatchSet, else the first configured one, else a
// synthetic single-position set with no move prefix.
func (c *Config) SelectMatchSet() MatchSet {
	if c.Tournament.DefaultMatchSet != "" {
		for _, ms := range c.Tournament.MatchSets {
			if ms.Name == c.Tournament.DefaultMatchSet {
				return ms
			}
		}
	}
	if len(c.Tournament.MatchSets) > 0 {
		return c.Tournament.MatchSets[0]
	}
	return MatchSet{
		Name:             "default",
		GamesPerPosition: 2,
		StartingPositions: []StartingPosition{
			{Name: "initial"},
		},
	}
}

// OptionStrings normalizes the free-form option map to string values in
// deterministic form for the setoption exchange. Known numeric options
// (Hash, Threads, NNCacheSize) keep integer formatting.
func (e EngineConfig) OptionStrings() map[string]string {
	out := make(map[string]string, len(e.Options))
	for k, v := range e.Options {
		switch val := v.(type) {
		case string:
			out[k] = val
		case bool:
			out[k] = strconv.FormatBool(val)
		case float64:
			if val == float64(int64(val)) {
				out[k] = strconv.FormatInt(int64(val), 10)
			} else {
				out[k] = strconv.FormatFloat(val, 'f', -1, 64)
			}
		default:
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	return out
}

// MergedOptionStrings overlays per-game overrides on the engine's static
// options. An override wins over a static value of the same name.
func (e EngineConfig) MergedOptionStrings(overrides map[string]string) map[string]string {
	out := e.OptionStrings()
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// ParseTimeControl parses a "base+increment" string, both in seconds
func ParseTimeControl(tc string) (base, increment time.Duration, err error) {
	parts := strings.SplitN(strings.TrimSpace(tc), "+", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeControl, tc)
	}
	baseSec, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || baseSec <= 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeControl, tc)
	}
	incSec, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || incSec < 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeControl, tc)
	}
	return time.Duration(baseSec * float64(time.Second)), time.Duration(incSec * float64(time.Second)), nil
}
