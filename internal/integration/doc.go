// Package integration exercises the release pipeline end to end: packaging,
// serving, updating and rendering replays.
package integration
