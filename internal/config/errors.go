package config

import "errors"

// Configuration errors
var (
	ErrInvalidJSON          = errors.New("configuration is not valid JSON")
	ErrInvalidTimeControl   = errors.New("time control must be base+increment in seconds")
	ErrEngineNameRequired   = errors.New("engine name is required")
	ErrDuplicateEngineName  = errors.New("duplicate engine name")
	ErrExecutableRequired   = errors.New("enabled engine needs an executable")
	ErrMatchSetNameRequired = errors.New("match set name is required")
	ErrOddGamesPerPosition  = errors.New("gamesPerPosition must be even")
	ErrNoStartingPositions  = errors.New("match set needs at least one starting position")
)
