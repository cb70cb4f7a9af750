package match

import (
	"errors"
	"fmt"
	"slices"
)

const (
	// RandomAlgorithm is the built-in naive random player.
	RandomAlgorithm = "gat-random"

	// DefaultName1 is the display name of the first player.
	DefaultName1 = "p1"
	// DefaultName2 is the display name of the second player.
	DefaultName2 = "p2"

	// DefaultLogLevel is the INFO severity.
	DefaultLogLevel = 20
)

// LogLevels are the accepted engine log levels, most severe first.
var LogLevels = []int{50, 40, 30, 20, 10} //nolint:gochecknoglobals // Closed set shared with the CLI.

var (
	// ErrEmptyAlgorithm is returned when an algorithm path is blank.
	ErrEmptyAlgorithm = errors.New("algorithm path is empty")
	// ErrInvalidLogLevel is returned for a level outside LogLevels.
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// Algorithm is one submitted player program.
type Algorithm struct {
	// Path is a file path or a built-in name such as RandomAlgorithm.
	Path string
	// Language is explicit; empty lets the engine infer it from the file extension.
	Language string
}

// LaunchConfig is the validated input for a single match.
type LaunchConfig struct {
	// MatchID correlates launcher logs with engine output.
	MatchID string
	// Game is the registry entry selected on the command line.
	Game Game
	// Algorithm1 plays as the first player.
	Algorithm1 Algorithm
	// Algorithm2 plays as the second player.
	Algorithm2 Algorithm
	// Name1 is the display name of the first player.
	Name1 string
	// Name2 is the display name of the second player.
	Name2 string
	// LogLevel is the numeric engine log level.
	LogLevel int
	// PlayerLog asks the engine to keep per-player log files.
	PlayerLog bool
	// Replay publishes the match after it ends.
	Replay bool
	// DisableAutoUpdate skips the self-update before the match.
	DisableAutoUpdate bool
	// Seed makes the match deterministic; nil lets the engine pick one.
	Seed *int64
}

// ApplyDefaults fills the optional fields left empty.
func (c *LaunchConfig) ApplyDefaults() {
	if c.Algorithm2.Path == "" {
		c.Algorithm2.Path = RandomAlgorithm
	}

	if c.Name1 == "" {
		c.Name1 = DefaultName1
	}

	if c.Name2 == "" {
		c.Name2 = DefaultName2
	}

	if c.LogLevel == 0 {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate checks the configuration against the registries.
func (c *LaunchConfig) Validate(games *GameRegistry, languages *LanguageRegistry) error {
	if _, err := games.Lookup(c.Game.Name); err != nil {
		return err
	}

	for i, algorithm := range []Algorithm{c.Algorithm1, c.Algorithm2} {
		if algorithm.Path == "" {
			return fmt.Errorf("algorithm%d: %w", i+1, ErrEmptyAlgorithm)
		}

		if err := languages.Validate(algorithm.Language); err != nil {
			return fmt.Errorf("language%d: %w", i+1, err)
		}
	}

	if !slices.Contains(LogLevels, c.LogLevel) {
		return fmt.Errorf("%w %d (choose from %v)", ErrInvalidLogLevel, c.LogLevel, LogLevels)
	}

	return nil
}
