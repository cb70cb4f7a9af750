package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/browser"

	"github.com/oshokin/gat-runner/internal/console"
	"github.com/oshokin/gat-runner/internal/domain/match"
	"github.com/oshokin/gat-runner/internal/logger"
	"github.com/oshokin/gat-runner/internal/service/common"
)

// ErrPublish wraps every failure of the publish step.
var ErrPublish = errors.New("publish replay")

const (
	// acceptedContentType is what the rendering service is asked to return.
	acceptedContentType = "text/plain"

	// tempFilePattern names the rendered replay files.
	tempFilePattern = "gat-replay-*.html"
)

// Opener opens a URL in a browser.
type Opener func(location string) error

// Publisher posts matches to the rendering service.
type Publisher struct {
	client   *common.Client
	endpoint string
	out      io.Writer
	open     Opener
	tempDir  string
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithOpener replaces the default browser launcher.
func WithOpener(open Opener) Option {
	return func(p *Publisher) {
		if open != nil {
			p.open = open
		}
	}
}

// WithOutput sets where user-facing messages are printed.
func WithOutput(w io.Writer) Option {
	return func(p *Publisher) {
		if w != nil {
			p.out = w
		}
	}
}

// WithTempDir sets the directory rendered replays are written to.
func WithTempDir(dir string) Option {
	return func(p *Publisher) {
		p.tempDir = dir
	}
}

// NewPublisher creates a Publisher posting to endpoint.
func NewPublisher(client *common.Client, endpoint string, opts ...Option) *Publisher {
	publisher := &Publisher{
		client:   client,
		endpoint: endpoint,
		out:      os.Stdout,
		open:     browser.OpenURL,
	}

	for _, opt := range opts {
		opt(publisher)
	}

	return publisher
}

// Publish sends the encoded match to the rendering service and renders the answer.
// HTTP and connection failures are printed in red and returned.
func (p *Publisher) Publish(ctx context.Context, game, players, commands string) error {
	ctx = logger.WithName(ctx, "replay")

	console.Println(p.out, console.Yellow, "Opening replay in the default Web browser")

	form := url.Values{
		"game":     {game},
		"players":  {players},
		"commands": {commands},
	}

	response, err := p.client.PostForm(ctx, p.endpoint, form, acceptedContentType)
	if err != nil {
		var statusErr *common.StatusError

		switch {
		case errors.As(err, &statusErr):
			console.Println(p.out, console.Red, statusErr.Code)
		case errors.Is(err, common.ErrUnreachable):
			console.Printf(p.out, console.Red, "Can not connect to url %s", p.endpoint)
		}

		return fmt.Errorf("%w: %w", ErrPublish, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	html, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrPublish, err)
	}

	path, err := p.Render(html)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}

	logger.InfoKV(ctx, "Replay opened", "path", path)

	return nil
}

// Render writes html to a temporary file and opens it in a new browser tab.
//
// The file is flushed and closed before the browser starts. It is left on
// disk on purpose: the browser reads it after Render has returned.
func (p *Publisher) Render(html []byte) (string, error) {
	path, err := p.writeTemp(html)
	if err != nil {
		return "", err
	}

	if err = p.open(fileURL(path)); err != nil {
		return path, fmt.Errorf("open browser: %w", err)
	}

	return path, nil
}

func (p *Publisher) writeTemp(html []byte) (path string, err error) {
	file, err := os.CreateTemp(p.tempDir, tempFilePattern)
	if err != nil {
		return "", fmt.Errorf("create replay file: %w", err)
	}

	defer func() {
		if closeErr := file.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close replay file: %w", closeErr)
		}
	}()

	if _, err = file.Write(html); err != nil {
		return "", fmt.Errorf("write replay file: %w", err)
	}

	if err = file.Sync(); err != nil {
		return "", fmt.Errorf("flush replay file: %w", err)
	}

	return file.Name(), nil
}

// fileURL turns an absolute path into a file:// URL, drive letters included.
func fileURL(path string) string {
	if absolute, err := filepath.Abs(path); err == nil {
		path = absolute
	}

	slashed := filepath.ToSlash(path)
	if runtime.GOOS == "windows" && !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}

	return (&url.URL{Scheme: "file", Path: slashed}).String()
}

// EncodePlayers renders players as a JSON array of their string forms.
func EncodePlayers(players []match.Player) string {
	names := make([]string, len(players))
	for i, player := range players {
		names[i] = player.String()
	}

	// A slice of strings always marshals.
	encoded, _ := json.Marshal(names)

	return string(encoded)
}

// EncodeCommands renders the move records as a JSON array.
func EncodeCommands(commands []json.RawMessage) (string, error) {
	if commands == nil {
		commands = []json.RawMessage{}
	}

	encoded, err := json.Marshal(commands)
	if err != nil {
		return "", fmt.Errorf("encode commands: %w", err)
	}

	return string(encoded), nil
}
