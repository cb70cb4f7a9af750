// Package console prints the user-facing lines of the launcher: colored status
// messages and the players table. Colors and tables come from go-pretty.
package console
