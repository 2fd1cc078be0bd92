// Package spring models the engine release domain: version ordering, build
// branches, architecture tags and the files an engine installation must carry.
//
// Version strings are ordered by their dotted numeric prefix and, when the
// prefixes tie, by the commit count embedded in development build names.
// Everything else in the package derives from that ordering: the branch a
// version belongs to, the archives that ship it and the per-version file
// thresholds.
package spring
