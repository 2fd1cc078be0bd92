// Package packager builds the release-channel manifest consumed by the updater.
//
// It scans a directory of versioned build outputs, zips directory artifacts,
// rewrites one channel section of packages.txt while preserving the others,
// and logs the files an operator has to upload to the repository.
package packager
