package match

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// errEmptyResult is returned when the engine printed nothing.
var errEmptyResult = errors.New("engine returned an empty result")

// Player is a participant as reported by the engine.
type Player struct {
	Name      string `json:"name"`
	Algorithm string `json:"algorithm,omitempty"`
	Language  string `json:"language,omitempty"`
}

// String returns the representation used in replays.
func (p Player) String() string {
	return p.Name
}

// UnmarshalJSON accepts either a bare name or an object.
func (p *Player) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*p = Player{Name: name}
		return nil
	}

	type plain Player

	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("decode player: %w", err)
	}

	*p = Player(decoded)

	return nil
}

// Result is what the engine reports once a match is over.
type Result struct {
	// Summary is the human-readable outcome.
	Summary string `json:"summary"`
	// Players are listed in seat order.
	Players []Player `json:"players"`
	// Commands are the moves in play order, kept opaque for the replay service.
	Commands []json.RawMessage `json:"commands"`
}

// DecodeResult reads a JSON Result from r.
func DecodeResult(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errEmptyResult
	}

	var result Result
	if err = json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}

	return &result, nil
}
