package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/gat-runner/internal/logger"
	"github.com/oshokin/gat-runner/internal/service/common"
)

var (
	errEmptyManifest     = errors.New("version manifest is empty")
	errMissingVersion    = errors.New("version manifest has no version")
	errMalformedManifest = errors.New("version manifest is malformed")
	errMalformedVersion  = errors.New("version token is malformed")
)

// versionPattern accepts tokens such as 01.02.00 or 01.02.00-rc1.
var versionPattern = regexp.MustCompile(`^\d+(\.\d+)+([-+][0-9A-Za-z.]+)?$`)

// FileEntry is one downloadable archive of a release.
type FileEntry struct {
	// File is the archive name, e.g. gat-runner-linux.zip.
	File string `yaml:"file"`
	// URL is where the archive is downloaded from; empty means <download base>/<file>.
	URL string `yaml:"url,omitempty"`
	// Checksum is the optional base64-encoded SHA512 of the archive.
	Checksum string `yaml:"checksum,omitempty"`
}

// Manifest describes the latest published release.
type Manifest struct {
	// Version is the latest version token, zero-padded MM.mm.pp.
	Version string `yaml:"version"`
	// Platforms lists the archives per platform.
	Platforms map[Platform][]FileEntry `yaml:"platforms,omitempty"`
}

// Plan is what a single update run intends to do.
type Plan struct {
	CurrentVersion string
	LatestVersion  string
	// TargetFiles maps archive names to download URLs.
	TargetFiles map[string]string
	// Checksums maps archive names to their expected base64 SHA512, when published.
	Checksums map[string]string
}

// ParseManifest decodes a manifest body. A bare scalar is read as the version token.
func ParseManifest(data []byte) (*Manifest, error) {
	var document yaml.Node
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedManifest, err)
	}

	if len(document.Content) == 0 {
		return nil, errEmptyManifest
	}

	root := document.Content[0]

	var manifest Manifest

	switch root.Kind {
	case yaml.ScalarNode:
		manifest.Version = root.Value
	case yaml.MappingNode:
		if err := root.Decode(&manifest); err != nil {
			return nil, fmt.Errorf("%w: %w", errMalformedManifest, err)
		}
	default:
		return nil, fmt.Errorf("%w: unexpected yaml node kind %d", errMalformedManifest, root.Kind)
	}

	manifest.Version = strings.TrimSpace(manifest.Version)
	if manifest.Version == "" {
		return nil, errMissingVersion
	}

	if !versionPattern.MatchString(manifest.Version) {
		return nil, fmt.Errorf("%w: %q", errMalformedVersion, manifest.Version)
	}

	return &manifest, nil
}

// FilesFor maps archive names to download URLs for platform.
// A platform without entries gets the conventional gat-runner-<platform>.zip.
func (m *Manifest) FilesFor(platform Platform, downloadBase string) map[string]string {
	entries := m.entriesFor(platform)
	files := make(map[string]string, len(entries))

	for _, entry := range entries {
		location := entry.URL
		if location == "" {
			location = JoinURL(downloadBase, entry.File)
		}

		files[entry.File] = location
	}

	return files
}

// checksumsFor maps archive names to their published checksums.
func (m *Manifest) checksumsFor(platform Platform) map[string]string {
	checksums := make(map[string]string)

	for _, entry := range m.entriesFor(platform) {
		if entry.Checksum != "" {
			checksums[entry.File] = entry.Checksum
		}
	}

	return checksums
}

func (m *Manifest) entriesFor(platform Platform) []FileEntry {
	if entries := m.Platforms[platform]; len(entries) > 0 {
		return entries
	}

	return []FileEntry{{File: ArchiveName(platform)}}
}

// NewPlan derives the update plan for platform.
func (m *Manifest) NewPlan(current string, platform Platform, downloadBase string) *Plan {
	return &Plan{
		CurrentVersion: current,
		LatestVersion:  m.Version,
		TargetFiles:    m.FilesFor(platform, downloadBase),
		Checksums:      m.checksumsFor(platform),
	}
}

// IsNewer reports whether latest is ahead of current.
//
// The comparison is plain lexicographic, so versions must be zero-padded
// (01.02.00 < 01.10.00); 1.10.0 would sort before 1.9.0.
func IsNewer(current, latest string) bool {
	return current < latest
}

// FetchManifest downloads and parses the manifest at manifestURL.
func FetchManifest(ctx context.Context, client *common.Client, manifestURL string) (*Manifest, error) {
	response, err := client.Get(ctx, manifestURL)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("read version manifest: %w", err)
	}

	return ParseManifest(data)
}

// HasNewVersion reports whether the manifest announces a version newer than current.
// It never fails: an unavailable manifest means "no update".
func (u *Updater) HasNewVersion(ctx context.Context, current string) bool {
	_, isNewer := u.check(ctx, current)

	return isNewer
}

// check fetches the manifest and compares versions, logging failures as warnings.
func (u *Updater) check(ctx context.Context, current string) (*Manifest, bool) {
	manifest, err := FetchManifest(ctx, u.client, u.opts.ManifestURL)
	if err != nil {
		logger.WarnKV(ctx, "Unable to fetch the version manifest", "url", u.opts.ManifestURL, "error", err)
		return nil, false
	}

	isNewer := IsNewer(current, manifest.Version)

	logger.DebugKV(ctx, "Compared versions",
		"current", current, "latest", manifest.Version, "newer", isNewer)

	return manifest, isNewer
}

// JoinURL appends name to base, normalizing duplicate slashes.
func JoinURL(base, name string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return strings.TrimRight(base, "/") + "/" + name
	}

	baseURL.Path = path.Join(baseURL.Path, name)

	return baseURL.String()
}
