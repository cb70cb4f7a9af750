package console

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Color is a foreground terminal color.
type Color = text.Color

// Colors used by the launcher messages.
const (
	Red    = text.FgRed
	Green  = text.FgGreen
	Yellow = text.FgYellow
	Blue   = text.FgBlue
	Cyan   = text.FgCyan
)

// Beer prefixes the banner and farewell lines.
const Beer = "\U0001F37A "

// Colorize wraps message in the escape sequences for color.
func Colorize(message string, color Color) string {
	return text.Colors{color}.Sprint(message)
}

// Println writes a colored line to w. Write errors are ignored: the console is best effort.
func Println(w io.Writer, color Color, a ...any) {
	_, _ = fmt.Fprintln(w, Colorize(fmt.Sprint(a...), color))
}

// Printf writes a formatted colored line to w.
func Printf(w io.Writer, color Color, format string, a ...any) {
	Println(w, color, fmt.Sprintf(format, a...))
}

// Table renders rows under header with a light box style.
func Table(header []string, rows [][]any) string {
	writer := table.NewWriter()
	writer.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(header))
	for i, column := range header {
		headerRow[i] = column
	}

	writer.AppendHeader(headerRow)

	for _, row := range rows {
		writer.AppendRow(table.Row(row))
	}

	return writer.Render()
}
