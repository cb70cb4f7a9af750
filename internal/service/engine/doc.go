// Package engine runs matches through the bundled gat-engine executable.
//
// The engine receives the launch configuration as flags, plays the match with
// the submitted algorithms and prints the result as JSON on stdout. Its stderr
// carries the game log and is passed through to the user.
package engine
