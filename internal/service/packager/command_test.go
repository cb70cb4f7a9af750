package packager

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/gat-runner/internal/config"
	"github.com/oshokin/gat-runner/internal/service/updater"
)

// TestRun_WritesManifest describes the archives present in the folder.
func TestRun_WritesManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	linux := []byte("linux archive")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "gat-runner-linux.zip"), linux, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gat-runner-windows.zip"), []byte("windows archive"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	var out bytes.Buffer

	manifest, err := Run(context.Background(), &Options{
		ArchivesDir:     dir,
		DownloadBaseURL: "https://downloads.example.com/gat-runner/",
		VersionNumber:   "01.04.00",
		Out:             &out,
	})
	require.NoError(t, err)
	require.Len(t, manifest.Platforms, 2)

	data, err := os.ReadFile(filepath.Join(dir, DefaultManifestFilename))
	require.NoError(t, err)

	parsed, err := updater.ParseManifest(data)
	require.NoError(t, err)
	require.Equal(t, manifest, parsed)

	sum := sha512.Sum512(linux)
	require.Equal(t, []updater.FileEntry{{
		File:     "gat-runner-linux.zip",
		URL:      "https://downloads.example.com/gat-runner/gat-runner-linux.zip",
		Checksum: base64.StdEncoding.EncodeToString(sum[:]),
	}}, parsed.Platforms[updater.PlatformLinux])
	require.Empty(t, parsed.Platforms[updater.PlatformMac])

	settings, err := config.Load(filepath.Join(dir, config.DefaultConfigFilename))
	require.NoError(t, err)
	require.Equal(t, "https://downloads.example.com/gat-runner/latest-version", settings.ManifestURL)
	require.Equal(t, "https://downloads.example.com/gat-runner/", settings.DownloadBaseURL)

	require.Contains(t, out.String(), "Release 01.04.00 is ready")
	require.Contains(t, out.String(), "gat-runner-windows.zip")
}

// TestRun_Errors rejects unpadded versions and empty folders.
func TestRun_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := Run(context.Background(), &Options{ArchivesDir: dir, VersionNumber: "01.00.00"})
	require.ErrorIs(t, err, errEmptyDownloadURL)

	_, err = Run(context.Background(), &Options{
		ArchivesDir:     dir,
		DownloadBaseURL: "https://downloads.example.com/",
		VersionNumber:   "1.10.0",
	})
	require.ErrorIs(t, err, errVersionNotPadded)

	_, err = Run(context.Background(), &Options{
		ArchivesDir:     dir,
		DownloadBaseURL: "https://downloads.example.com/",
		VersionNumber:   "01.10.00",
		Out:             &bytes.Buffer{},
	})
	require.ErrorIs(t, err, errNoArchives)
	require.NoFileExists(t, filepath.Join(dir, DefaultManifestFilename))
}
