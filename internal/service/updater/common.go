package updater

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/gat-runner/internal/logger"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

var (
	// ErrUnsupportedPlatform is returned for an operating system without a release archive.
	ErrUnsupportedPlatform = errors.New("platform not supported")
	// ErrAmbiguousInstallDir is returned when the install root cannot be derived safely.
	ErrAmbiguousInstallDir = errors.New("install directory is ambiguous")

	errHashUnavailable       = errors.New("hash function unavailable")
	errUpdaterAlreadyRunning = errors.New("another update is in progress")
)

const (
	// MarkerFilename marks that an update is running right now to avoid parallel execution.
	MarkerFilename = "gat-runner-update-marker.bin"

	// InstallMarker is the directory the release archive unpacks into.
	InstallMarker = "gat-runner"

	// DefaultFileMode is used for extracted files that carry no permission bits.
	DefaultFileMode os.FileMode = 0o755

	// DefaultChecksumFunction is used to calculate archive and file hashes.
	DefaultChecksumFunction crypto.Hash = crypto.SHA512

	// archiveNameFormat is filled with the platform identifier.
	archiveNameFormat = "gat-runner-%s.zip"

	// markerLifetime is the period after which a stale update marker is ignored.
	markerLifetime = 2 * time.Minute
)

// Platform identifies the release archive built for an operating system.
type Platform string

// Platforms with a published archive.
const (
	PlatformLinux   Platform = "linux"
	PlatformMac     Platform = "mac"
	PlatformWindows Platform = "windows"
)

// Platforms returns every platform with a published archive.
func Platforms() []Platform {
	return []Platform{PlatformLinux, PlatformMac, PlatformWindows}
}

// DetectPlatform maps the running operating system to a Platform.
func DetectPlatform() (Platform, error) {
	return platformFor(runtime.GOOS)
}

func platformFor(goos string) (Platform, error) {
	switch strings.ToLower(goos) {
	case "linux":
		return PlatformLinux, nil
	case "darwin":
		return PlatformMac, nil
	case "windows":
		return PlatformWindows, nil
	default:
		return "", fmt.Errorf("%s: %w", goos, ErrUnsupportedPlatform)
	}
}

// ArchiveName returns the release archive name for platform.
func ArchiveName(platform Platform) string {
	return fmt.Sprintf(archiveNameFormat, platform)
}

// ResolveInstallRoot derives the directory the release archive is extracted into
// from the path of the running executable.
//
// The executable lives in <root>/gat-runner/, so the marker component is stripped.
// A path without the marker, or one that runs from inside an archive, is rejected.
func ResolveInstallRoot(executablePath string) (string, error) {
	resolved, err := filepath.EvalSymlinks(executablePath)
	if err != nil {
		return "", fmt.Errorf("resolve executable path: %w", err)
	}

	absolute, err := filepath.Abs(resolved)
	if err != nil {
		return "", fmt.Errorf("resolve executable path: %w", err)
	}

	return installRootFor(filepath.Dir(absolute))
}

func installRootFor(dir string) (string, error) {
	dir = filepath.Clean(dir)

	components := strings.FieldsFunc(dir, func(r rune) bool {
		return r == '/' || r == '\\'
	})

	if slices.ContainsFunc(components, func(component string) bool {
		return strings.EqualFold(filepath.Ext(component), ".zip")
	}) {
		return "", fmt.Errorf("%s is inside an archive: %w", dir, ErrAmbiguousInstallDir)
	}

	if filepath.Base(dir) != InstallMarker {
		return "", fmt.Errorf("%s does not end with %s: %w", dir, InstallMarker, ErrAmbiguousInstallDir)
	}

	return filepath.Dir(dir), nil
}

// GetFileChecksum returns checksum bytes for a file using DefaultChecksumFunction.
func GetFileChecksum(path string) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	if !DefaultChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := DefaultChecksumFunction.New()
	if _, err = hasher.Write(contents); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// acquireMarker creates the update marker in root and returns its release function.
// A marker older than markerLifetime is considered abandoned and replaced.
func acquireMarker(ctx context.Context, root string) (func(), error) {
	markerPath := filepath.Join(root, MarkerFilename)

	logger.Debug(ctx, "Checking for the presence of an update marker")

	fileInfo, err := os.Stat(markerPath)
	if err == nil {
		if time.Since(fileInfo.ModTime()) <= markerLifetime {
			return nil, errUpdaterAlreadyRunning
		}

		logger.Info(ctx, "The update marker is too old, removing it")

		if err = os.Remove(markerPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale marker: %w", err)
		}
	}

	marker, err := os.OpenFile(markerPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, errUpdaterAlreadyRunning
		}

		return nil, fmt.Errorf("create marker: %w", err)
	}

	if err = marker.Close(); err != nil {
		return nil, fmt.Errorf("create marker: %w", err)
	}

	return func() {
		if removeErr := os.Remove(markerPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			logger.WarnKV(ctx, "Unable to remove update marker", "path", markerPath, "error", removeErr)
		}
	}, nil
}

// ProcessLister lists running processes; ps.Processes is the default.
type ProcessLister func() ([]ps.Process, error)

// otherInstanceRunning reports whether another launcher process is alive.
// A failing scan is logged and treated as "no other instance".
func otherInstanceRunning(ctx context.Context, list ProcessLister) bool {
	processList, err := list()
	if err != nil {
		logger.WarnKV(ctx, "Unable to list running processes", "error", err)
		return false
	}

	thisProcessID := os.Getpid()
	name := executableName()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if strings.EqualFold(process.Executable(), name) {
			logger.InfoKV(ctx, "Another launcher instance is running", "pid", process.Pid())
			return true
		}
	}

	return false
}

// executableName returns the launcher file name for the current platform.
func executableName() string {
	if runtime.GOOS == "windows" {
		return InstallMarker + ".exe"
	}

	return InstallMarker
}
