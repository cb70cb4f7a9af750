package packager

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/gat-runner/internal/config"
	"github.com/oshokin/gat-runner/internal/console"
	"github.com/oshokin/gat-runner/internal/logger"
	"github.com/oshokin/gat-runner/internal/service/updater"
	"github.com/oshokin/gat-runner/internal/version"
)

// DefaultManifestFilename matches the path of the default manifest URL.
const DefaultManifestFilename = "latest-version"

var (
	errNoArchives       = errors.New("no release archives found")
	errVersionNotPadded = errors.New("version must be zero-padded, e.g. 01.02.00")
	errEmptyDownloadURL = errors.New("download base URL is empty")
)

// paddedVersion is the only shape that compares correctly as plain text.
var paddedVersion = regexp.MustCompile(`^\d{2}\.\d{2}\.\d{2}([-+][0-9A-Za-z.]+)?$`)

// Options contains inputs for the packager entry point.
type Options struct {
	// ArchivesDir holds the gat-runner-<platform>.zip files.
	ArchivesDir string
	// DownloadBaseURL is where the archives and the manifest will be uploaded.
	DownloadBaseURL string
	// VersionNumber is the release version; version.Short() when empty.
	VersionNumber string
	// OutputPath is the manifest file; <ArchivesDir>/latest-version when empty.
	OutputPath string
	// Out receives the upload summary; os.Stdout when nil.
	Out io.Writer
}

// Run writes the manifest and the settings file for the archives in opts.ArchivesDir.
func Run(ctx context.Context, opts *Options) (*updater.Manifest, error) {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "gat-packager")

	if err := applyDefaults(opts); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Preparing version manifest", "version", opts.VersionNumber, "folder", opts.ArchivesDir)

	manifest, err := describe(opts)
	if err != nil {
		return nil, fmt.Errorf("describe release: %w", err)
	}

	contents, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, err
	}

	if err = os.WriteFile(opts.OutputPath, contents, config.DefaultFilePermissions); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	settingsPath := filepath.Join(opts.ArchivesDir, config.DefaultConfigFilename)
	settings := config.Default()
	settings.ManifestURL = updater.JoinURL(opts.DownloadBaseURL, filepath.Base(opts.OutputPath))
	settings.DownloadBaseURL = opts.DownloadBaseURL

	if err = config.Save(settingsPath, settings); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}

	printNextSteps(opts, manifest, settingsPath)
	logger.Info(ctx, "Packager completed successfully")

	return manifest, nil
}

func applyDefaults(opts *Options) error {
	if opts.DownloadBaseURL == "" {
		return errEmptyDownloadURL
	}

	if opts.ArchivesDir == "" {
		opts.ArchivesDir = "."
	}

	if opts.VersionNumber == "" {
		opts.VersionNumber = version.Short()
	}

	if !paddedVersion.MatchString(opts.VersionNumber) {
		return fmt.Errorf("%q: %w", opts.VersionNumber, errVersionNotPadded)
	}

	if opts.OutputPath == "" {
		opts.OutputPath = filepath.Join(opts.ArchivesDir, DefaultManifestFilename)
	}

	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	return nil
}

// describe checksums every platform archive present in the folder.
func describe(opts *Options) (*updater.Manifest, error) {
	manifest := &updater.Manifest{
		Version:   opts.VersionNumber,
		Platforms: make(map[updater.Platform][]updater.FileEntry),
	}

	for _, platform := range updater.Platforms() {
		name := updater.ArchiveName(platform)
		path := filepath.Join(opts.ArchivesDir, name)

		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}

		checksum, err := updater.GetFileChecksum(path)
		if err != nil {
			return nil, err
		}

		manifest.Platforms[platform] = []updater.FileEntry{{
			File:     name,
			URL:      updater.JoinURL(opts.DownloadBaseURL, name),
			Checksum: base64.StdEncoding.EncodeToString(checksum),
		}}
	}

	if len(manifest.Platforms) == 0 {
		return nil, fmt.Errorf("%s: %w", opts.ArchivesDir, errNoArchives)
	}

	return manifest, nil
}

// printNextSteps lists the files to upload.
func printNextSteps(opts *Options, manifest *updater.Manifest, settingsPath string) {
	rows := make([][]any, 0, len(manifest.Platforms)+1)

	for _, platform := range updater.Platforms() {
		for _, entry := range manifest.Platforms[platform] {
			rows = append(rows, []any{platform, entry.File, entry.URL})
		}
	}

	rows = append(rows, []any{"", filepath.Base(opts.OutputPath),
		updater.JoinURL(opts.DownloadBaseURL, filepath.Base(opts.OutputPath))})

	console.Printf(opts.Out, console.Green, "Release %s is ready. Upload the following files:", manifest.Version)
	_, _ = fmt.Fprintln(opts.Out, console.Table([]string{"Platform", "File", "URL"}, rows))
	console.Printf(opts.Out, console.Green, "Ship %s inside the archives to point launchers at this release.", settingsPath)
}
