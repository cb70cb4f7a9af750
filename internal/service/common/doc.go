// Package common holds helpers shared by several services.
//
// It provides the HTTP client used by the updater and the replay publisher:
// one fixed per-request timeout, a launcher User-Agent, and errors that separate
// unreachable hosts from bad HTTP statuses.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
