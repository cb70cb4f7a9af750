// Package updater keeps the launcher installation current.
//
// It fetches the version manifest, decides whether a newer release exists,
// downloads the platform archive to a temporary directory, extracts it and
// atomically swaps every extracted file into the install root. Every failure
// is logged and skipped: a match always runs, updated or not.
package updater
