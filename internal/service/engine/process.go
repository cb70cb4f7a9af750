package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/oshokin/gat-runner/internal/domain/match"
	"github.com/oshokin/gat-runner/internal/logger"
)

// ErrEngine wraps every failure reported by the match engine.
var ErrEngine = errors.New("match engine failed")

// stderrTail is how much of the engine stderr is kept for error messages.
const stderrTail = 4 << 10

// ProcessEngine plays matches by executing the engine binary.
type ProcessEngine struct {
	path   string
	stderr io.Writer
}

// Option configures a ProcessEngine.
type Option func(*ProcessEngine)

// WithStderr sets where the engine log is copied to.
func WithStderr(w io.Writer) Option {
	return func(e *ProcessEngine) {
		if w != nil {
			e.stderr = w
		}
	}
}

// NewProcessEngine creates an engine running the executable at path.
func NewProcessEngine(path string, opts ...Option) *ProcessEngine {
	engine := &ProcessEngine{
		path:   path,
		stderr: os.Stderr,
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// ResolvePath returns enginePath as is when it is absolute or contains a directory.
// A bare name is looked up next to the launcher first, then in PATH.
func ResolvePath(enginePath, launcherDir string) string {
	if filepath.IsAbs(enginePath) || strings.ContainsAny(enginePath, `/\`) {
		return enginePath
	}

	name := enginePath
	if runtime.GOOS == "windows" && filepath.Ext(name) == "" {
		name += ".exe"
	}

	if launcherDir != "" {
		candidate := filepath.Join(launcherDir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}

	return enginePath
}

// Args converts cfg into the engine command line.
func Args(cfg *match.LaunchConfig) []string {
	args := []string{
		"play",
		"--game", cfg.Game.Name,
		"--match-id", cfg.MatchID,
		"--algorithm1", cfg.Algorithm1.Path,
		"--name1", cfg.Name1,
		"--algorithm2", cfg.Algorithm2.Path,
		"--name2", cfg.Name2,
		"--log-level", strconv.Itoa(cfg.LogLevel),
	}

	if cfg.Algorithm1.Language != "" {
		args = append(args, "--language1", cfg.Algorithm1.Language)
	}

	if cfg.Algorithm2.Language != "" {
		args = append(args, "--language2", cfg.Algorithm2.Language)
	}

	if cfg.Seed != nil {
		args = append(args, "--seed", strconv.FormatInt(*cfg.Seed, 10))
	}

	if cfg.PlayerLog {
		args = append(args, "--player-log")
	}

	return args
}

// Run plays one match and decodes its result.
func (e *ProcessEngine) Run(ctx context.Context, cfg *match.LaunchConfig) (*match.Result, error) {
	ctx = logger.WithName(ctx, "engine")

	args := Args(cfg)

	logger.DebugKV(ctx, "Starting match engine", "path", e.path, "args", args)

	var (
		stdout bytes.Buffer
		tail   tailBuffer
	)

	command := exec.CommandContext(ctx, e.path, args...) //nolint:gosec // The engine path comes from settings.
	command.Stdout = &stdout
	command.Stderr = io.MultiWriter(e.stderr, &tail)

	if err := command.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: exit code %d: %s", ErrEngine, exitErr.ExitCode(), tail.lastLine())
		}

		return nil, fmt.Errorf("%w: %w", ErrEngine, err)
	}

	result, err := match.DecodeResult(&stdout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngine, err)
	}

	logger.DebugKV(ctx, "Match engine finished", "players", len(result.Players), "commands", len(result.Commands))

	return result, nil
}

// tailBuffer keeps the last stderrTail bytes written to it.
type tailBuffer struct {
	data []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	if excess := len(b.data) - stderrTail; excess > 0 {
		b.data = b.data[excess:]
	}

	return len(p), nil
}

func (b *tailBuffer) lastLine() string {
	trimmed := strings.TrimSpace(string(b.data))
	if index := strings.LastIndexByte(trimmed, '\n'); index >= 0 {
		return trimmed[index+1:]
	}

	return trimmed
}
