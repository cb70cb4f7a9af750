package match

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrUnknownGame is returned for a game name outside the registry.
	ErrUnknownGame = errors.New("unknown game")
	// ErrUnknownLanguage is returned for a language outside the registry.
	ErrUnknownLanguage = errors.New("unknown language")
)

// Game describes a game the engine knows how to play.
type Game struct {
	// Name is the identifier used on the command line and on the wire.
	Name string
	// Description is shown in the command help.
	Description string
}

// GameRegistry maps game names to games. It is built once and never mutated.
type GameRegistry struct {
	games map[string]Game
	names []string
}

// NewGameRegistry builds a registry from games. Later duplicates replace earlier ones.
func NewGameRegistry(games ...Game) *GameRegistry {
	registry := &GameRegistry{
		games: make(map[string]Game, len(games)),
	}

	for _, game := range games {
		if _, seen := registry.games[game.Name]; !seen {
			registry.names = append(registry.names, game.Name)
		}

		registry.games[game.Name] = game
	}

	slices.Sort(registry.names)

	return registry
}

// DefaultGames returns the games shipped with the engine.
func DefaultGames() *GameRegistry {
	return NewGameRegistry(
		Game{
			Name:        "Truco",
			Description: "Two-player Truco (Brazilian trick-taking card game)",
		},
	)
}

// Lookup returns the game registered under name. Names are case-sensitive.
func (r *GameRegistry) Lookup(name string) (Game, error) {
	game, ok := r.games[name]
	if !ok {
		return Game{}, fmt.Errorf("%w %q (choose from %s)", ErrUnknownGame, name, strings.Join(r.names, ", "))
	}

	return game, nil
}

// Names returns the registered game names in sorted order.
func (r *GameRegistry) Names() []string {
	return slices.Clone(r.names)
}

// LanguageRegistry is the closed set of explicit language identifiers.
type LanguageRegistry struct {
	names []string
}

// NewLanguageRegistry builds a registry from language identifiers.
func NewLanguageRegistry(languages ...string) *LanguageRegistry {
	names := slices.Clone(languages)
	slices.Sort(names)

	return &LanguageRegistry{
		names: slices.Compact(names),
	}
}

// DefaultLanguages returns the language versions the engine sandboxes support.
func DefaultLanguages() *LanguageRegistry {
	return NewLanguageRegistry(
		"python", "python2", "python3", "pypy",
		"ruby", "java", "javascript", "coffeescript",
	)
}

// Validate accepts an empty language (inferred by the engine) or a registered one.
func (r *LanguageRegistry) Validate(language string) error {
	if language == "" {
		return nil
	}

	if _, found := slices.BinarySearch(r.names, language); found {
		return nil
	}

	return fmt.Errorf("%w %q (choose from %s)", ErrUnknownLanguage, language, strings.Join(r.names, ", "))
}

// Names returns the registered languages in sorted order.
func (r *LanguageRegistry) Names() []string {
	return slices.Clone(r.names)
}
