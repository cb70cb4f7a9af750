package integration

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/gat-runner/internal/service/common"
	"github.com/oshokin/gat-runner/internal/service/packager"
	"github.com/oshokin/gat-runner/internal/service/updater"
)

// writeArchive stores a release archive with files under the gat-runner folder.
func writeArchive(t *testing.T, path string, files map[string]string) {
	t.Helper()

	var buffer bytes.Buffer

	writer := zip.NewWriter(&buffer)

	for name, content := range files {
		header := &zip.FileHeader{Name: "gat-runner/" + name, Method: zip.Deflate}
		header.SetMode(0o755)

		entry, err := writer.CreateHeader(header)
		require.NoError(t, err)

		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())
	require.NoError(t, os.WriteFile(path, buffer.Bytes(), 0o600))
}

// TestRelease_PackagedArchiveIsApplied packages a release, serves it and lets the updater install it.
func TestRelease_PackagedArchiveIsApplied(t *testing.T) {
	platform, err := updater.DetectPlatform()
	if err != nil {
		t.Skip(err)
	}

	releaseDir := t.TempDir()
	writeArchive(t, filepath.Join(releaseDir, updater.ArchiveName(platform)), map[string]string{
		"gat-runner": "launcher 01.01.00",
		"gat-engine": "engine 01.01.00",
	})

	server := httptest.NewServer(http.FileServer(http.Dir(releaseDir)))
	t.Cleanup(server.Close)

	_, err = packager.Run(context.Background(), &packager.Options{
		ArchivesDir:     releaseDir,
		DownloadBaseURL: server.URL + "/",
		VersionNumber:   "01.01.00",
		Out:             &bytes.Buffer{},
	})
	require.NoError(t, err)

	installRoot := t.TempDir()
	executable := filepath.Join(installRoot, updater.InstallMarker, "gat-runner")
	require.NoError(t, os.MkdirAll(filepath.Dir(executable), 0o755))
	require.NoError(t, os.WriteFile(executable, []byte("launcher 01.00.00"), 0o755))

	up := updater.New(common.NewClient(), updater.Options{
		ManifestURL:     server.URL + "/" + packager.DefaultManifestFilename,
		DownloadBaseURL: server.URL + "/",
		ExecutablePath:  executable,
		Processes:       func() ([]ps.Process, error) { return nil, nil },
	})

	require.True(t, up.HasNewVersion(context.Background(), "01.00.00"))

	report := up.AutoUpdate(context.Background(), "01.00.00")
	require.Empty(t, report.Failed)
	require.ElementsMatch(t, []string{
		filepath.Join("gat-runner", "gat-runner"),
		filepath.Join("gat-runner", "gat-engine"),
	}, report.Updated)

	launcher, err := os.ReadFile(executable)
	require.NoError(t, err)
	require.Equal(t, "launcher 01.01.00", string(launcher))

	engine, err := os.ReadFile(filepath.Join(installRoot, "gat-runner", "gat-engine"))
	require.NoError(t, err)
	require.Equal(t, "engine 01.01.00", string(engine))

	require.False(t, up.HasNewVersion(context.Background(), "01.01.00"))
}

// TestRelease_TamperedArchiveIsSkipped keeps the installation when the archive does not match the manifest.
func TestRelease_TamperedArchiveIsSkipped(t *testing.T) {
	platform, err := updater.DetectPlatform()
	if err != nil {
		t.Skip(err)
	}

	releaseDir := t.TempDir()
	archivePath := filepath.Join(releaseDir, updater.ArchiveName(platform))
	writeArchive(t, archivePath, map[string]string{"gat-runner": "launcher 01.01.00"})

	server := httptest.NewServer(http.FileServer(http.Dir(releaseDir)))
	t.Cleanup(server.Close)

	_, err = packager.Run(context.Background(), &packager.Options{
		ArchivesDir:     releaseDir,
		DownloadBaseURL: server.URL,
		VersionNumber:   "01.01.00",
		Out:             &bytes.Buffer{},
	})
	require.NoError(t, err)

	// Replaced after the checksum was published.
	writeArchive(t, archivePath, map[string]string{"gat-runner": "tampered"})

	installRoot := t.TempDir()
	executable := filepath.Join(installRoot, updater.InstallMarker, "gat-runner")
	require.NoError(t, os.MkdirAll(filepath.Dir(executable), 0o755))
	require.NoError(t, os.WriteFile(executable, []byte("launcher 01.00.00"), 0o755))

	report := updater.New(common.NewClient(), updater.Options{
		ManifestURL:    server.URL + "/" + packager.DefaultManifestFilename,
		ExecutablePath: executable,
		Processes:      func() ([]ps.Process, error) { return nil, nil },
	}).AutoUpdate(context.Background(), "01.00.00")

	require.Len(t, report.Failed, 1)
	require.Empty(t, report.Updated)

	launcher, err := os.ReadFile(executable)
	require.NoError(t, err)
	require.Equal(t, "launcher 01.00.00", string(launcher))
}
