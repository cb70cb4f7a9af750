package updater

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"
)

// fakeProcess implements ps.Process.
type fakeProcess struct {
	pid        int
	executable string
}

func (p fakeProcess) Pid() int           { return p.pid }
func (p fakeProcess) PPid() int          { return 0 }
func (p fakeProcess) Executable() string { return p.executable }

func listOf(processes ...ps.Process) ProcessLister {
	return func() ([]ps.Process, error) {
		return processes, nil
	}
}

// TestPlatformFor verifies the operating system mapping.
func TestPlatformFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		goos string
		want Platform
	}{
		{goos: "linux", want: PlatformLinux},
		{goos: "darwin", want: PlatformMac},
		{goos: "windows", want: PlatformWindows},
	}

	for _, tt := range tests {
		got, err := platformFor(tt.goos)
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}

	_, err := platformFor("plan9")
	require.ErrorIs(t, err, ErrUnsupportedPlatform)

	require.Equal(t, "gat-runner-mac.zip", ArchiveName(PlatformMac))
}

// TestInstallRootFor strips the marker and rejects ambiguous locations.
func TestInstallRootFor(t *testing.T) {
	t.Parallel()

	root := filepath.Join(string(os.PathSeparator)+"opt", "games")

	got, err := installRootFor(filepath.Join(root, InstallMarker))
	require.NoError(t, err)
	require.Equal(t, root, got)

	_, err = installRootFor(root)
	require.ErrorIs(t, err, ErrAmbiguousInstallDir)

	_, err = installRootFor(filepath.Join(root, "gat-runner-linux.zip", InstallMarker))
	require.ErrorIs(t, err, ErrAmbiguousInstallDir)
}

// TestResolveInstallRoot follows symlinks to the real executable.
func TestResolveInstallRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	executable := filepath.Join(root, InstallMarker, "gat-runner")
	require.NoError(t, os.MkdirAll(filepath.Dir(executable), 0o755))
	require.NoError(t, os.WriteFile(executable, []byte("binary"), 0o755))

	link := filepath.Join(t.TempDir(), "gat-runner")
	if err := os.Symlink(executable, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	got, err := ResolveInstallRoot(link)
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = ResolveInstallRoot(filepath.Join(root, "missing"))
	require.Error(t, err)
}

// TestAcquireMarker blocks a second update until the marker is released or stale.
func TestAcquireMarker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := t.TempDir()

	release, err := acquireMarker(ctx, root)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(root, MarkerFilename))

	_, err = acquireMarker(ctx, root)
	require.ErrorIs(t, err, errUpdaterAlreadyRunning)

	release()
	require.NoFileExists(t, filepath.Join(root, MarkerFilename))

	markerPath := filepath.Join(root, MarkerFilename)
	require.NoError(t, os.WriteFile(markerPath, nil, 0o600))

	stale := time.Now().Add(-2 * markerLifetime)
	require.NoError(t, os.Chtimes(markerPath, stale, stale))

	release, err = acquireMarker(ctx, root)
	require.NoError(t, err)
	release()
}

// TestOtherInstanceRunning ignores the current process and scan failures.
func TestOtherInstanceRunning(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	require.False(t, otherInstanceRunning(ctx, listOf(
		fakeProcess{pid: os.Getpid(), executable: executableName()},
		fakeProcess{pid: 1, executable: "init"},
	)))

	require.True(t, otherInstanceRunning(ctx, listOf(
		fakeProcess{pid: os.Getpid() + 1, executable: executableName()},
	)))

	require.False(t, otherInstanceRunning(ctx, func() ([]ps.Process, error) {
		return nil, errors.New("permission denied")
	}))
}

// TestGetFileChecksum hashes with SHA512.
func TestGetFileChecksum(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("gat"), 0o600))

	checksum, err := GetFileChecksum(path)
	require.NoError(t, err)
	require.Len(t, checksum, DefaultChecksumFunction.Size())

	_, err = GetFileChecksum(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
