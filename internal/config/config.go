package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the remote endpoints and local paths used by the launcher.
type Config struct {
	// ManifestURL points to the version manifest checked before every match.
	ManifestURL string `yaml:"manifest_url"`
	// DownloadBaseURL is where platform archives live when the manifest lists none.
	DownloadBaseURL string `yaml:"download_base_url"`
	// ReplayURL is the endpoint rendering published replays.
	ReplayURL string `yaml:"replay_url"`
	// EnginePath is the match engine executable, resolved next to the launcher when relative.
	EnginePath string `yaml:"engine_path"`
	// Timeout bounds every HTTP request made by the launcher.
	Timeout time.Duration `yaml:"timeout"`
}

const (
	// DefaultConfigFilename is the optional settings file looked up next to the launcher.
	DefaultConfigFilename = "gat-runner-settings.yaml"

	// DefaultEnvFilename holds optional GAT_RUNNER_* overrides.
	DefaultEnvFilename = ".env"

	// DefaultManifestURL is the published version manifest.
	DefaultManifestURL = "http://s3.amazonaws.com/gat-runner/latest-version"

	// DefaultDownloadBaseURL is the bucket holding gat-runner-<platform>.zip archives.
	DefaultDownloadBaseURL = "http://s3.amazonaws.com/gat-runner/"

	// DefaultReplayURL is the replay rendering service.
	DefaultReplayURL = "http://www.gatournament.com/challenge/replay/"

	// DefaultEnginePath is the engine executable shipped in the toolset archive.
	DefaultEnginePath = "gat-engine"

	// DefaultTimeout is applied to each network request.
	DefaultTimeout = 10 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// Environment variables overriding file settings.
const (
	EnvManifestURL     = "GAT_RUNNER_MANIFEST_URL"
	EnvDownloadBaseURL = "GAT_RUNNER_DOWNLOAD_BASE_URL"
	EnvReplayURL       = "GAT_RUNNER_REPLAY_URL"
	EnvEnginePath      = "GAT_RUNNER_ENGINE_PATH"
	EnvTimeout         = "GAT_RUNNER_TIMEOUT"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidURL is returned when an endpoint is not an absolute http(s) URL.
	errInvalidURL = errors.New("invalid endpoint URL")
)

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		ManifestURL:     DefaultManifestURL,
		DownloadBaseURL: DefaultDownloadBaseURL,
		ReplayURL:       DefaultReplayURL,
		EnginePath:      DefaultEnginePath,
		Timeout:         DefaultTimeout,
	}
}

// Load reads configuration from the provided path. Missing keys keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Discover loads the first settings file found in dirs and applies environment
// overrides from the process and from a .env file in the same directories.
// Without any settings file the defaults are used.
func Discover(dirs ...string) (*Config, error) {
	cfg := Default()

	for _, dir := range dirs {
		path := filepath.Join(dir, DefaultConfigFilename)
		if _, err := os.Stat(path); err != nil {
			continue
		}

		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}

		cfg = loaded

		break
	}

	if err := ApplyEnv(cfg, environment(dirs)); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides cfg fields from GAT_RUNNER_* variables and re-validates it.
func ApplyEnv(cfg *Config, env map[string]string) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	overrides := map[string]*string{
		EnvManifestURL:     &cfg.ManifestURL,
		EnvDownloadBaseURL: &cfg.DownloadBaseURL,
		EnvReplayURL:       &cfg.ReplayURL,
		EnvEnginePath:      &cfg.EnginePath,
	}

	for key, field := range overrides {
		if value := strings.TrimSpace(env[key]); value != "" {
			*field = value
		}
	}

	if value := strings.TrimSpace(env[EnvTimeout]); value != "" {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvTimeout, err)
		}

		cfg.Timeout = timeout
	}

	return Validate(cfg)
}

// Save writes cfg to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills empty fields with defaults and checks endpoint formatting.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	defaults := Default()

	if cfg.ManifestURL == "" {
		cfg.ManifestURL = defaults.ManifestURL
	}

	if cfg.DownloadBaseURL == "" {
		cfg.DownloadBaseURL = defaults.DownloadBaseURL
	}

	if cfg.ReplayURL == "" {
		cfg.ReplayURL = defaults.ReplayURL
	}

	if cfg.EnginePath == "" {
		cfg.EnginePath = defaults.EnginePath
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}

	for name, raw := range map[string]string{
		"manifest_url":      cfg.ManifestURL,
		"download_base_url": cfg.DownloadBaseURL,
		"replay_url":        cfg.ReplayURL,
	} {
		if err := validateURL(raw); err != nil {
			return fmt.Errorf("%s %q: %w", name, raw, err)
		}
	}

	return nil
}

func validateURL(raw string) error {
	parsed, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidURL, err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", errInvalidURL, parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("%w: missing host", errInvalidURL)
	}

	return nil
}

// environment merges .env files found in dirs with the process environment.
// Process variables win over file values.
func environment(dirs []string) map[string]string {
	env := make(map[string]string)

	for i := len(dirs) - 1; i >= 0; i-- {
		values, err := godotenv.Read(filepath.Join(dirs[i], DefaultEnvFilename))
		if err != nil {
			continue
		}

		for key, value := range values {
			env[key] = value
		}
	}

	for _, key := range []string{EnvManifestURL, EnvDownloadBaseURL, EnvReplayURL, EnvEnginePath, EnvTimeout} {
		if value, ok := os.LookupEnv(key); ok {
			env[key] = value
		}
	}

	return env
}
