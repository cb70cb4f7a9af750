package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/gat-runner/internal/config"
	"github.com/oshokin/gat-runner/internal/domain/match"
	"github.com/oshokin/gat-runner/internal/logger"
	"github.com/oshokin/gat-runner/internal/service/common"
	"github.com/oshokin/gat-runner/internal/service/engine"
	"github.com/oshokin/gat-runner/internal/service/launcher"
	"github.com/oshokin/gat-runner/internal/service/replay"
	"github.com/oshokin/gat-runner/internal/service/updater"
	"github.com/oshokin/gat-runner/internal/version"
)

const examples = `  gat-runner Truco gat-random gat-random
  gat-runner Truco /path/to/your/algorithm gat-random
  gat-runner Truco /path/to/your/algorithm /path/to/your/algorithm
  gat-runner Truco gat-random gat-random -n1 Player1 -n2 Player2
  gat-runner Truco gat-random gat-random -n1 Player1 -n2 Player2 -ll 20
  gat-runner Truco gat-random gat-random -n1 Player1 -n2 Player2 -ll 20 -s 123`

// NewRootCommand builds the gat-runner command for app.
func NewRootCommand(app *launcher.Launcher) *cobra.Command {
	var (
		cfg               match.LaunchConfig
		disableAutoUpdate bool
		seed              int64
	)

	rootCmd := &cobra.Command{
		Use:   "gat-runner <game> <algorithm1> [algorithm2]",
		Short: "Run a GAT match between two algorithms",
		Long: fmt.Sprintf(`Run a match of a two-player game between two algorithms and show the result.

Games: %s
Languages: %s

algorithm2 defaults to %q, a naive random player shipped with the engine.
Without --language1/--language2 the language is inferred from the file extension.`,
			strings.Join(app.Games().Names(), ", "),
			strings.Join(app.Languages().Names(), ", "),
			match.RandomAlgorithm),
		Example: examples,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.RangeArgs(2, 3)(cmd, args); err != nil {
				return fmt.Errorf("%w: %w", launcher.ErrUsage, err)
			}

			return nil
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return app.Games().Names(), cobra.ShellCompDirectiveNoFileComp
			}

			return nil, cobra.ShellCompDirectiveDefault
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			cfg.Game = match.Game{Name: args[0]}
			cfg.Algorithm1.Path = args[1]

			if len(args) > 2 {
				cfg.Algorithm2.Path = args[2]
			}

			if cmd.Flags().Changed("seed") {
				cfg.Seed = &seed
			}

			cfg.DisableAutoUpdate = disableAutoUpdate

			return app.Prepare(&cfg)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Past validation, failures are not usage errors.
			cmd.SilenceUsage = true

			if level, ok := logger.FromNumericLevel(cfg.LogLevel); ok {
				logger.SetLevel(level)
			}

			return app.Run(cmd.Context(), &cfg)
		},
	}

	flags := rootCmd.Flags()
	flags.BoolVarP(&disableAutoUpdate, "disable_auto_update", "d", false, "disable auto-update")
	flags.Int64VarP(&seed, "seed", "s", 0, "random seed of the game; a random one is used when omitted")
	flags.StringVar(&cfg.Algorithm1.Language, "language1", "",
		"language of algorithm 1 (-l1); inferred from the file extension when omitted")
	flags.StringVar(&cfg.Algorithm2.Language, "language2", "", "same as --language1, for algorithm 2 (-l2)")
	flags.StringVar(&cfg.Name1, "name1", match.DefaultName1, "name of player 1 (-n1)")
	flags.StringVar(&cfg.Name2, "name2", match.DefaultName2, "name of player 2 (-n2)")
	flags.IntVar(&cfg.LogLevel, "loglevel", match.DefaultLogLevel,
		fmt.Sprintf("log level, one of %v (-ll)", match.LogLevels))
	flags.BoolVar(&cfg.PlayerLog, "player_log", false, "save the logs of each player in a separate file (-pl)")
	flags.BoolVar(&cfg.Replay, "replay", true, "publish the replay and open it in the browser (--no-replay disables)")

	version.AttachCobraVersionCommand(rootCmd)

	return rootCmd
}

// Run prints the banner, updates the installation unless disabled and plays the match in args.
func Run(ctx context.Context, app *launcher.Launcher, args []string) error {
	app.Banner()
	app.AutoUpdate(ctx, args)

	rootCmd := NewRootCommand(app)
	rootCmd.SetOut(app.Out())
	rootCmd.SetArgs(NormalizeArgs(args))

	return rootCmd.ExecuteContext(ctx)
}

// Execute runs the gat-runner CLI and exits with non-zero status on error.
func Execute() {
	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	err := execute(ctx)

	stop()

	if err != nil {
		os.Exit(1)
	}
}

func execute(ctx context.Context) error {
	ctx = logger.WithName(ctx, "gat-runner")

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	executableDir := filepath.Dir(executable)

	workingDir, err := os.Getwd()
	if err != nil {
		workingDir = executableDir
	}

	settings, err := config.Discover(executableDir, workingDir)
	if err != nil {
		logger.ErrorKV(ctx, "Unable to load settings", "error", err)
		return err
	}

	client := common.NewClient(common.WithCallTimeout(settings.Timeout))

	logger.DebugKV(ctx, "Settings loaded",
		"manifest_url", settings.ManifestURL,
		"replay_url", settings.ReplayURL,
		"engine_path", settings.EnginePath,
		"timeout", client.Timeout())

	app := launcher.New(launcher.Dependencies{
		Games:     match.DefaultGames(),
		Languages: match.DefaultLanguages(),
		Engine:    engine.NewProcessEngine(engine.ResolvePath(settings.EnginePath, executableDir)),
		Updater: updater.New(client, updater.Options{
			ManifestURL:     settings.ManifestURL,
			DownloadBaseURL: settings.DownloadBaseURL,
			ExecutablePath:  executable,
		}),
		Publisher: replay.NewPublisher(client, settings.ReplayURL),
	})

	return Run(ctx, app, os.Args[1:])
}
