// Package config defines the launcher settings: remote endpoints for the version
// manifest, update archives and replay rendering, the engine path and the network
// timeout.
//
// Settings come from built-in defaults, an optional YAML file next to the launcher
// and GAT_RUNNER_* environment variables (also read from a .env file).
package config
