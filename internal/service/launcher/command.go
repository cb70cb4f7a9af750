package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/oshokin/gat-runner/internal/console"
	"github.com/oshokin/gat-runner/internal/domain/match"
	"github.com/oshokin/gat-runner/internal/logger"
	"github.com/oshokin/gat-runner/internal/service/replay"
	"github.com/oshokin/gat-runner/internal/service/updater"
	"github.com/oshokin/gat-runner/internal/version"
)

// ErrUsage marks invalid command line input.
var ErrUsage = errors.New("invalid arguments")

// Engine plays a match.
type Engine interface {
	Run(ctx context.Context, cfg *match.LaunchConfig) (*match.Result, error)
}

// Updater brings the installation up to date. It never fails.
type Updater interface {
	AutoUpdate(ctx context.Context, current string) *updater.Report
}

// Publisher hands a finished match to the replay service.
type Publisher interface {
	Publish(ctx context.Context, game, players, commands string) error
}

// Dependencies are the collaborators of a Launcher.
type Dependencies struct {
	Games     *match.GameRegistry
	Languages *match.LanguageRegistry
	Engine    Engine
	// Updater may be nil, which disables auto-update.
	Updater Updater
	// Publisher may be nil only when replays are never requested.
	Publisher Publisher
	// Out receives the user-facing lines; os.Stdout by default.
	Out io.Writer
	// Version is compared with the manifest; version.Short() by default.
	Version string
}

// Launcher runs matches with a fixed set of collaborators.
type Launcher struct {
	deps Dependencies
}

// New creates a Launcher, filling unset registries, output and version with defaults.
func New(deps Dependencies) *Launcher {
	if deps.Games == nil {
		deps.Games = match.DefaultGames()
	}

	if deps.Languages == nil {
		deps.Languages = match.DefaultLanguages()
	}

	if deps.Out == nil {
		deps.Out = os.Stdout
	}

	if deps.Version == "" {
		deps.Version = version.Short()
	}

	return &Launcher{deps: deps}
}

// Games returns the supported games.
func (l *Launcher) Games() *match.GameRegistry {
	return l.deps.Games
}

// Languages returns the supported explicit languages.
func (l *Launcher) Languages() *match.LanguageRegistry {
	return l.deps.Languages
}

// Out returns where user-facing lines are written.
func (l *Launcher) Out() io.Writer {
	return l.deps.Out
}

// Banner prints the launcher name and version.
func (l *Launcher) Banner() {
	console.Printf(l.deps.Out, console.Yellow, "%s - GAT Runner (%s)", console.Beer, l.deps.Version)
}

// AutoUpdate updates the installation unless rawArgs ask not to.
// It looks at the raw arguments so that malformed flags do not prevent an update.
func (l *Launcher) AutoUpdate(ctx context.Context, rawArgs []string) {
	if DisableAutoUpdateRequested(rawArgs) {
		logger.Debug(ctx, "Auto-update disabled")
		return
	}

	if l.deps.Updater == nil {
		return
	}

	report := l.deps.Updater.AutoUpdate(ctx, l.deps.Version)
	if report == nil {
		return
	}

	switch {
	case len(report.Failed) > 0:
		logger.WarnKV(ctx, "Auto-update finished with errors",
			"updated", len(report.Updated), "failed", len(report.Failed))
	case len(report.Updated) > 0:
		logger.InfoKV(ctx, "Auto-update finished", "updated", len(report.Updated))
	}
}

// Prepare fills defaults, assigns a match ID and validates cfg.
// Validation failures wrap ErrUsage.
func (l *Launcher) Prepare(cfg *match.LaunchConfig) error {
	cfg.ApplyDefaults()

	if cfg.MatchID == "" {
		cfg.MatchID = uuid.NewString()
	}

	if err := cfg.Validate(l.deps.Games, l.deps.Languages); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	game, err := l.deps.Games.Lookup(cfg.Game.Name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	cfg.Game = game

	return nil
}

// Run plays the match described by a prepared cfg, reports it and publishes the replay.
// Engine and publish failures are returned; publishing happens after the report is printed.
func (l *Launcher) Run(ctx context.Context, cfg *match.LaunchConfig) error {
	ctx = logger.WithKV(ctx, "match_id", cfg.MatchID)

	console.Printf(l.deps.Out, console.Blue, "::: %s", cfg.Game.Name)

	logger.DebugKV(ctx, "Running match",
		"algorithm1", cfg.Algorithm1.Path, "algorithm2", cfg.Algorithm2.Path, "seed", seedString(cfg.Seed))

	result, err := l.deps.Engine.Run(ctx, cfg)
	if err != nil {
		return fmt.Errorf("run match: %w", err)
	}

	l.report(cfg, result)

	if cfg.Replay {
		if err = l.publish(ctx, cfg, result); err != nil {
			return err
		}
	}

	console.Printf(l.deps.Out, console.Yellow, "%s cheers!", console.Beer)

	return nil
}

func (l *Launcher) report(cfg *match.LaunchConfig, result *match.Result) {
	console.Printf(l.deps.Out, console.Cyan, "[Final Result] %s", result.Summary)

	if len(result.Players) == 0 {
		return
	}

	seats := []match.Algorithm{cfg.Algorithm1, cfg.Algorithm2}
	rows := make([][]any, 0, len(result.Players))

	for i, player := range result.Players {
		algorithm, language := player.Algorithm, player.Language

		if i < len(seats) {
			if algorithm == "" {
				algorithm = seats[i].Path
			}

			if language == "" {
				language = seats[i].Language
			}
		}

		rows = append(rows, []any{i + 1, player.Name, algorithm, language})
	}

	_, _ = fmt.Fprintln(l.deps.Out, console.Table([]string{"#", "Player", "Algorithm", "Language"}, rows))
}

func (l *Launcher) publish(ctx context.Context, cfg *match.LaunchConfig, result *match.Result) error {
	if l.deps.Publisher == nil {
		return fmt.Errorf("%w: no replay publisher configured", replay.ErrPublish)
	}

	commands, err := replay.EncodeCommands(result.Commands)
	if err != nil {
		return fmt.Errorf("%w: %w", replay.ErrPublish, err)
	}

	return l.deps.Publisher.Publish(ctx, cfg.Game.Name, replay.EncodePlayers(result.Players), commands)
}

// DisableAutoUpdateRequested reports whether args carry -d or --disable_auto_update.
// Arguments after "--" are positional and ignored.
func DisableAutoUpdateRequested(args []string) bool {
	for _, arg := range args {
		if arg == "--" {
			return false
		}

		if arg == "-d" || arg == "--disable_auto_update" {
			return true
		}

		if value, found := strings.CutPrefix(arg, "--disable_auto_update="); found {
			if disabled, err := strconv.ParseBool(value); err == nil && disabled {
				return true
			}
		}
	}

	return false
}

func seedString(seed *int64) string {
	if seed == nil {
		return "random"
	}

	return strconv.FormatInt(*seed, 10)
}
