// Package version exposes build metadata for gat-runner.
//
// Version, Commit and BuildTime are injected via ldflags. Version doubles as the
// token compared against the remote manifest by the self-updater.
package version
