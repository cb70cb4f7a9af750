package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/gat-runner/internal/logger"
	"github.com/oshokin/gat-runner/internal/service/packager"
	"github.com/oshokin/gat-runner/internal/version"
)

var errInvalidLogLevel = errors.New("invalid log level")

var (
	// logLevel is the zap level name used by the packager logs.
	logLevel string
	// versionNumber overrides the release version written to the manifest.
	versionNumber string
	// outputPath of the manifest file.
	outputPath string

	// rootCmd represents the base command for preparing the version manifest.
	rootCmd = &cobra.Command{
		Use:   "gat-packager [archives-folder] [download-base-url]",
		Short: "Prepare the version manifest for a launcher release",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%w %q", errInvalidLogLevel, logLevel)
			}

			logger.SetLevel(level)

			cmd.SilenceUsage = true

			options := &packager.Options{
				ArchivesDir:     args[0],
				DownloadBaseURL: args[1],
				VersionNumber:   versionNumber,
				OutputPath:      outputPath,
				Out:             cmd.OutOrStdout(),
			}

			_, err := packager.Run(ctx, options)

			return err
		},
	}
)

// Execute runs the gat-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&versionNumber, "version-number", "n", "", "release version (defaults to the packager's own version)")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "log level: debug, info, warn or error")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "manifest path (defaults to <archives-folder>/latest-version)")
}
