package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/gat-runner/internal/domain/match"
)

// fakeEngine writes a shell script that records its arguments and prints output.
// Tests executing it are not parallel: a concurrent fork can hold the script open for writing.
func fakeEngine(t *testing.T, body string) (string, string) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}

	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	script := filepath.Join(dir, "gat-engine")

	content := "#!/bin/sh\nfor arg in \"$@\"; do echo \"$arg\" >> '" + argsFile + "'; done\n" + body + "\n"
	require.NoError(t, os.WriteFile(script, []byte(content), 0o755))

	return script, argsFile
}

func launchConfig() *match.LaunchConfig {
	seed := int64(123)

	cfg := &match.LaunchConfig{
		MatchID:    "5b7c3d0e-9f7e-4c1e-8d2a-3f1f1f1f1f1f",
		Game:       match.Game{Name: "Truco"},
		Algorithm1: match.Algorithm{Path: "bot.py", Language: "python3"},
		PlayerLog:  true,
		Seed:       &seed,
	}
	cfg.ApplyDefaults()

	return cfg
}

// TestArgs lists optional flags only when set.
func TestArgs(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{
		"play",
		"--game", "Truco",
		"--match-id", "5b7c3d0e-9f7e-4c1e-8d2a-3f1f1f1f1f1f",
		"--algorithm1", "bot.py",
		"--name1", "p1",
		"--algorithm2", "gat-random",
		"--name2", "p2",
		"--log-level", "20",
		"--language1", "python3",
		"--seed", "123",
		"--player-log",
	}, Args(launchConfig()))

	cfg := &match.LaunchConfig{Game: match.Game{Name: "Truco"}, Algorithm1: match.Algorithm{Path: "gat-random"}}
	cfg.ApplyDefaults()

	args := Args(cfg)
	require.NotContains(t, args, "--seed")
	require.NotContains(t, args, "--player-log")
	require.NotContains(t, args, "--language1")
}

// TestProcessEngine_Run decodes the engine stdout.
func TestProcessEngine_Run(t *testing.T) {
	script, argsFile := fakeEngine(t,
		`echo "dealing cards" >&2; echo '{"summary": "p1 won", "players": ["p1", "p2"], "commands": [{"action": "play"}]}'`)

	var stderr bytes.Buffer

	result, err := NewProcessEngine(script, WithStderr(&stderr)).Run(context.Background(), launchConfig())
	require.NoError(t, err)
	require.Equal(t, "p1 won", result.Summary)
	require.Equal(t, []match.Player{{Name: "p1"}, {Name: "p2"}}, result.Players)
	require.Len(t, result.Commands, 1)
	require.Equal(t, "dealing cards\n", stderr.String())

	recorded, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.Equal(t, strings.Join(Args(launchConfig()), "\n")+"\n", string(recorded))
}

// TestProcessEngine_Run_Failures wraps every failure in ErrEngine.
func TestProcessEngine_Run_Failures(t *testing.T) {
	script, _ := fakeEngine(t, `echo "Traceback" >&2; echo "ValueError: bad move" >&2; exit 3`)

	_, err := NewProcessEngine(script, WithStderr(&bytes.Buffer{})).Run(context.Background(), launchConfig())
	require.ErrorIs(t, err, ErrEngine)
	require.ErrorContains(t, err, "exit code 3")
	require.ErrorContains(t, err, "ValueError: bad move")

	script, _ = fakeEngine(t, `echo "not json"`)

	_, err = NewProcessEngine(script, WithStderr(&bytes.Buffer{})).Run(context.Background(), launchConfig())
	require.ErrorIs(t, err, ErrEngine)

	_, err = NewProcessEngine(filepath.Join(t.TempDir(), "missing")).Run(context.Background(), launchConfig())
	require.ErrorIs(t, err, ErrEngine)
}

// TestResolvePath prefers the engine shipped next to the launcher.
func TestResolvePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	name := "gat-engine"

	if runtime.GOOS == "windows" {
		name += ".exe"
	}

	require.Equal(t, "gat-engine", ResolvePath("gat-engine", dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o755))
	require.Equal(t, filepath.Join(dir, name), ResolvePath("gat-engine", dir))

	require.Equal(t, "./bin/engine", ResolvePath("./bin/engine", dir))
	require.Equal(t, "gat-engine", ResolvePath("gat-engine", ""))
}

// TestTailBuffer keeps only the end of long output.
func TestTailBuffer(t *testing.T) {
	t.Parallel()

	var tail tailBuffer

	_, _ = tail.Write(bytes.Repeat([]byte("x"), stderrTail))
	_, _ = tail.Write([]byte("\nlast line\n"))

	require.Len(t, tail.data, stderrTail)
	require.Equal(t, "last line", tail.lastLine())
}
