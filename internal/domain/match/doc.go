// Package match contains the launcher's domain types.
//
// It defines the immutable game and language registries that bound the CLI
// choices, the validated LaunchConfig handed to the engine, and the Result the
// engine returns.
package match
