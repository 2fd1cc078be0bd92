// Package updater keeps the installed package set in sync with the remote
// repository.
//
// A run holds the install-directory lock end to end: it fetches the
// packages.txt manifest, computes the update plan for the configured
// release channel, downloads and extracts changed packages, swaps each
// unversioned current name to the new versioned artifact and persists the
// installed record. Partial updates are never rolled back; every failure
// class surfaces as a distinct sentinel error with a stable exit code.
package updater
