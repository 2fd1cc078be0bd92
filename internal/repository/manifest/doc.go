// Package manifest implements the two text records the updater lives on:
// the remote packages.txt manifest and the local installed-packages record.
//
// The manifest is a sectioned name:version listing grouped by release
// channel. The installed record is a timestamp line followed by
// name:version lines; the FileRepository reads it tolerantly (a missing
// file is an empty state) and treats write failures as hard errors, since
// losing the record silently would desynchronize state from disk.
package manifest
