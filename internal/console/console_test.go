package console

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// NO_COLOR or a dumb terminal in CI would strip the escape codes under test.
	text.EnableColors()
	os.Exit(m.Run())
}

// TestColorize keeps the message and adds escape codes around it.
func TestColorize(t *testing.T) {
	t.Parallel()

	colored := Colorize("[Final Result] p1 wins", Cyan)
	require.Contains(t, colored, "[Final Result] p1 wins")
	require.True(t, strings.HasPrefix(colored, "\x1b["))
	require.True(t, strings.HasSuffix(colored, "\x1b[0m"))
}

// TestPrintf writes exactly one line.
func TestPrintf(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	Printf(&out, Blue, "::: %s", "Truco")

	require.Contains(t, out.String(), "::: Truco")
	require.Equal(t, 1, strings.Count(out.String(), "\n"))
}

// TestTable renders the header and each row.
func TestTable(t *testing.T) {
	t.Parallel()

	rendered := Table([]string{"#", "Player"}, [][]any{{1, "p1"}, {2, "p2"}})

	for _, want := range []string{"#", "PLAYER", "p1", "p2"} {
		require.Contains(t, rendered, want)
	}
}
