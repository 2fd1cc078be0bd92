// Package config defines settings shared by the autohost binaries and provides
// helpers to load, validate and save them in YAML format.
//
// The Config type holds the package repository and buildbot endpoints, the
// install and engine directories, the release channel and the package list.
package config
