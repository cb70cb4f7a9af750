package updater

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/mitchellh/go-ps"

	"github.com/oshokin/gat-runner/internal/logger"
	"github.com/oshokin/gat-runner/internal/service/common"
)

var (
	errEmptyDownload         = errors.New("downloaded archive is empty")
	errIncompleteDownload    = errors.New("downloaded archive is incomplete")
	errUnexpectedContentType = errors.New("unexpected content type")
	errChecksumMismatch      = errors.New("checksum mismatch")
	errEmptyArchive          = errors.New("archive contains no files")
	errUnsafeArchivePath     = errors.New("archive entry escapes the extraction directory")
)

// archiveContentTypes are the media types a release archive may be served with.
var archiveContentTypes = []string{ //nolint:gochecknoglobals // Read-only lookup table.
	"application/zip",
	"application/x-zip",
	"application/x-zip-compressed",
	"application/octet-stream",
	"binary/octet-stream",
}

// sniffLength is how many bytes http.DetectContentType looks at.
const sniffLength = 512

// Options configure an Updater.
type Options struct {
	// ManifestURL is where the version manifest is published.
	ManifestURL string
	// DownloadBaseURL prefixes archive names that have no explicit URL.
	DownloadBaseURL string
	// ExecutablePath overrides os.Executable when deriving the install root.
	ExecutablePath string
	// Processes overrides ps.Processes for the concurrent-instance check.
	Processes ProcessLister
}

// Updater fetches the manifest and applies release archives.
type Updater struct {
	client *common.Client
	opts   Options
}

// Report describes the outcome of an update run.
type Report struct {
	// Plan is nil when the run stopped before a manifest was available.
	Plan *Plan
	// Skipped explains why nothing was attempted; empty when archives were processed.
	Skipped string
	// Updated lists the install-root relative paths that were replaced.
	Updated []string
	// Failed maps archive names to the reason they were skipped.
	Failed map[string]error
}

// New creates an Updater using client for every request.
func New(client *common.Client, opts Options) *Updater {
	if opts.Processes == nil {
		opts.Processes = ps.Processes
	}

	return &Updater{
		client: client,
		opts:   opts,
	}
}

// AutoUpdate runs the whole best-effort update flow for the running launcher.
// It never fails; the returned report tells what happened.
func (u *Updater) AutoUpdate(ctx context.Context, current string) *Report {
	ctx = logger.WithName(ctx, "updater")

	platform, err := DetectPlatform()
	if err != nil {
		return skip(ctx, "platform", err)
	}

	installRoot, err := u.installRoot()
	if err != nil {
		return skip(ctx, "install root", err)
	}

	if otherInstanceRunning(ctx, u.opts.Processes) {
		return skip(ctx, "concurrent instance", errUpdaterAlreadyRunning)
	}

	release, err := acquireMarker(ctx, installRoot)
	if err != nil {
		return skip(ctx, "update marker", err)
	}

	defer release()

	manifest, isNewer := u.check(ctx, current)
	if manifest == nil {
		return &Report{Skipped: "version manifest unavailable"}
	}

	plan := manifest.NewPlan(current, platform, u.opts.DownloadBaseURL)
	if !isNewer {
		logger.InfoKV(ctx, "The launcher is up to date", "version", current)
		return &Report{Plan: plan, Skipped: "up to date"}
	}

	logger.InfoKV(ctx, "A new version is available",
		"current", current, "latest", manifest.Version, "install_root", installRoot)

	report := u.apply(ctx, plan, installRoot)
	report.Plan = plan

	return report
}

// Update downloads every archive in files and swaps its contents into installRoot.
// Archives that fail are skipped with a warning; the rest are still applied.
func (u *Updater) Update(ctx context.Context, files map[string]string, installRoot string) *Report {
	return u.apply(ctx, &Plan{TargetFiles: files}, installRoot)
}

func (u *Updater) apply(ctx context.Context, plan *Plan, installRoot string) *Report {
	report := &Report{
		Failed: make(map[string]error),
	}

	workDir, err := os.MkdirTemp("", "gat-runner-update-")
	if err != nil {
		logger.WarnKV(ctx, "Unable to create a temporary folder", "error", err)
		report.Skipped = "temporary folder unavailable"

		return report
	}

	defer func() {
		_ = os.RemoveAll(workDir)
	}()

	// Sorted for a stable order in logs and reports.
	names := make([]string, 0, len(plan.TargetFiles))
	for name := range plan.TargetFiles {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		archiveCtx := logger.WithKV(ctx, "archive", name)

		updated, applyErr := u.applyArchive(archiveCtx, workDir, name, plan.TargetFiles[name], plan.Checksums[name], installRoot)
		report.Updated = append(report.Updated, updated...)

		if applyErr != nil {
			logger.WarnKV(archiveCtx, "Skipping update archive", "error", applyErr)
			report.Failed[name] = applyErr

			continue
		}

		logger.InfoKV(archiveCtx, "Update archive applied", "files", len(updated))
	}

	return report
}

// applyArchive downloads, verifies and extracts one archive before touching installRoot.
func (u *Updater) applyArchive(
	ctx context.Context,
	workDir, name, location, checksum, installRoot string,
) ([]string, error) {
	archivePath := filepath.Join(workDir, filepath.Base(name))

	logger.InfoKV(ctx, "Downloading update archive", "url", location)

	if err := u.download(ctx, location, archivePath); err != nil {
		return nil, err
	}

	if checksum != "" {
		if err := verifyChecksum(archivePath, checksum); err != nil {
			return nil, err
		}
	}

	stagingDir := archivePath + ".d"

	extracted, err := extract(archivePath, stagingDir)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", name, err)
	}

	return swapFiles(ctx, stagingDir, extracted, installRoot)
}

// download saves location to target, refusing empty, truncated or non-archive bodies.
func (u *Updater) download(ctx context.Context, location, target string) error {
	response, err := u.client.Get(ctx, location)
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	output, err := os.Create(filepath.Clean(target))
	if err != nil {
		return err
	}

	written, err := io.Copy(output, response.Body)
	if closeErr := output.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("download %s: %w: %w", location, errIncompleteDownload, err)
	}

	if written == 0 {
		return fmt.Errorf("download %s: %w", location, errEmptyDownload)
	}

	if response.ContentLength > 0 && written != response.ContentLength {
		return fmt.Errorf("download %s: %w: got %d of %d bytes",
			location, errIncompleteDownload, written, response.ContentLength)
	}

	return checkContentType(response.Header.Get("Content-Type"), target)
}

// checkContentType accepts archive media types; an absent header is sniffed from the file.
func checkContentType(header, path string) error {
	if header == "" {
		sniffed, err := sniffContentType(path)
		if err != nil {
			return err
		}

		header = sniffed
	}

	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return fmt.Errorf("%w %q: %w", errUnexpectedContentType, header, err)
	}

	if !slices.Contains(archiveContentTypes, strings.ToLower(mediaType)) {
		return fmt.Errorf("%w %q", errUnexpectedContentType, mediaType)
	}

	return nil
}

func sniffContentType(path string) (string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = file.Close()
	}()

	head := make([]byte, sniffLength)

	read, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}

	return http.DetectContentType(head[:read]), nil
}

// verifyChecksum compares the archive hash with the published base64 checksum.
func verifyChecksum(path, expected string) error {
	want, err := base64.StdEncoding.DecodeString(expected)
	if err != nil {
		return fmt.Errorf("decode checksum: %w", err)
	}

	got, err := GetFileChecksum(path)
	if err != nil {
		return err
	}

	if !bytes.Equal(want, got) {
		return fmt.Errorf("%s: %w", filepath.Base(path), errChecksumMismatch)
	}

	return nil
}

// extract unpacks archivePath into dir and returns the relative paths of regular files.
func extract(archivePath, dir string) ([]string, error) {
	// Entries are checked one by one below, so insecure names are not fatal here.
	reader, err := zip.OpenReader(archivePath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, err
	}

	defer func() {
		_ = reader.Close()
	}()

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	var files []string

	for _, entry := range reader.File {
		destination := filepath.Join(root, filepath.FromSlash(entry.Name))
		if !strings.HasPrefix(destination, root+string(os.PathSeparator)) {
			return nil, fmt.Errorf("%s: %w", entry.Name, errUnsafeArchivePath)
		}

		if entry.FileInfo().IsDir() {
			if err = os.MkdirAll(destination, DefaultFileMode); err != nil {
				return nil, err
			}

			continue
		}

		if err = extractFile(entry, destination); err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name, err)
		}

		relative, _ := filepath.Rel(root, destination)
		files = append(files, relative)
	}

	if len(files) == 0 {
		return nil, errEmptyArchive
	}

	slices.Sort(files)

	return files, nil
}

func extractFile(entry *zip.File, destination string) error {
	if err := os.MkdirAll(filepath.Dir(destination), DefaultFileMode); err != nil {
		return err
	}

	source, err := entry.Open()
	if err != nil {
		return err
	}

	defer func() {
		_ = source.Close()
	}()

	output, err := os.OpenFile(destination, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fileMode(entry.Mode()))
	if err != nil {
		return err
	}

	//nolint:gosec // Archive size is bounded by the release we publish.
	if _, err = io.Copy(output, source); err != nil {
		_ = output.Close()
		return err
	}

	return output.Close()
}

// swappedFile remembers how to undo one swap until its archive is fully applied.
type swappedFile struct {
	target  string
	backup  string
	created bool
}

// swapFiles replaces every staged file under installRoot with go-update's rename swap.
// Either every file of the archive is replaced or none is: on failure the swapped files are restored.
func swapFiles(ctx context.Context, stagingDir string, files []string, installRoot string) ([]string, error) {
	swapped := make([]swappedFile, 0, len(files))

	for _, relative := range files {
		target := filepath.Join(installRoot, relative)

		logger.DebugKV(ctx, "Applying update", "file", target)

		result, err := swapFile(filepath.Join(stagingDir, relative), target)
		if err != nil {
			rollback(ctx, swapped)

			return nil, fmt.Errorf("apply %s: %w", relative, err)
		}

		swapped = append(swapped, result)
	}

	updated := make([]string, 0, len(files))

	for i, result := range swapped {
		_ = os.Remove(result.backup)

		updated = append(updated, files[i])
	}

	return updated, nil
}

// rollback undoes swaps in reverse order.
func rollback(ctx context.Context, swapped []swappedFile) {
	for i := len(swapped) - 1; i >= 0; i-- {
		entry := swapped[i]

		var err error

		if entry.created {
			err = os.Remove(entry.target)
			_ = os.Remove(entry.backup)
		} else {
			err = os.Rename(entry.backup, entry.target)
		}

		if err != nil {
			logger.ErrorKV(ctx, "Unable to restore file", "file", entry.target, "error", err)
			continue
		}

		logger.DebugKV(ctx, "Restored file", "file", entry.target)
	}
}

func swapFile(staged, target string) (swappedFile, error) {
	result := swappedFile{
		target: target,
		backup: filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+".old"),
	}

	info, err := os.Stat(staged)
	if err != nil {
		return result, err
	}

	if err = os.MkdirAll(filepath.Dir(target), DefaultFileMode); err != nil {
		return result, err
	}

	// go-update expects the target to exist.
	if _, err = os.Stat(target); errors.Is(err, os.ErrNotExist) {
		var created *os.File

		if created, err = os.Create(target); err != nil {
			return result, err
		}

		_ = created.Close()
		result.created = true
	}

	data, err := os.Open(filepath.Clean(staged))
	if err != nil {
		if result.created {
			_ = os.Remove(target)
		}

		return result, err
	}

	defer func() {
		_ = data.Close()
	}()

	options := goupdate.Options{
		TargetPath:  target,
		TargetMode:  fileMode(info.Mode()),
		OldSavePath: result.backup,
	}

	if err = goupdate.Apply(data, options); err != nil {
		if result.created {
			_ = os.Remove(target)
		}

		return result, err
	}

	return result, nil
}

func (u *Updater) installRoot() (string, error) {
	executablePath := u.opts.ExecutablePath
	if executablePath == "" {
		var err error

		if executablePath, err = os.Executable(); err != nil {
			return "", err
		}
	}

	return ResolveInstallRoot(executablePath)
}

func fileMode(mode os.FileMode) os.FileMode {
	if mode.Perm() == 0 {
		return DefaultFileMode
	}

	return mode.Perm()
}

func skip(ctx context.Context, stage string, err error) *Report {
	logger.WarnKV(ctx, "Skipping auto-update", "stage", stage, "error", err)

	return &Report{Skipped: fmt.Sprintf("%s: %v", stage, err)}
}
