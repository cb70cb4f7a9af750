// Package packager prepares the version manifest consumed by the updater.
//
// It looks for gat-runner-<platform>.zip archives in a release folder,
// computes their checksums, writes the manifest and the matching settings
// file, and lists what has to be uploaded.
package packager
