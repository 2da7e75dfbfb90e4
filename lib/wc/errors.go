// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

package wc

import "errors"

// Sentinel error kinds. Every operation that fails for one of these
// reasons wraps the sentinel with fmt.Errorf("...: %w", sentinel) so
// errors.Is still matches after wrapping.
var (
	// ErrPathNotFound indicates no node exists at the requested path.
	ErrPathNotFound = errors.New("wc: path not found")

	// ErrNotAWorkingCopy indicates ascent reached the filesystem root
	// without finding an admin subdirectory.
	ErrNotAWorkingCopy = errors.New("wc: not a working copy")

	// ErrUnsupportedFormat indicates the store's schema version is
	// below the minimum or above the maximum this build understands.
	ErrUnsupportedFormat = errors.New("wc: unsupported store format")

	// ErrUpgradeRequired indicates the store's schema version is below
	// the compiled-in version and auto-upgrade was disabled.
	ErrUpgradeRequired = errors.New("wc: upgrade required")

	// ErrCleanupRequired indicates the store was opened with
	// EnforceEmptyWorkQueue and the work queue is non-empty.
	ErrCleanupRequired = errors.New("wc: cleanup required, work queue non-empty")

	// ErrCorruptStore indicates an internal invariant was found
	// violated (e.g. an ACTUAL row with neither a BASE nor a WORKING
	// row, or an ancestor chain with no repository coordinates).
	ErrCorruptStore = errors.New("wc: corrupt store")

	// ErrLocked indicates the advisory lock on a subtree is held by
	// another actor.
	ErrLocked = errors.New("wc: already locked")

	// ErrUnexpectedStatus indicates a scanner precondition was
	// violated (e.g. scan_addition called on a node that is not in
	// the added state).
	ErrUnexpectedStatus = errors.New("wc: unexpected node status")

	// ErrBadChecksumKind indicates a pristine operation was attempted
	// with an unsupported digest kind.
	ErrBadChecksumKind = errors.New("wc: unsupported checksum kind")

	// ErrCorruptChecksum indicates a stored digest's text form failed
	// to parse.
	ErrCorruptChecksum = errors.New("wc: corrupt checksum")

	// ErrStoreIO indicates the underlying relational store reported a
	// hard I/O failure.
	ErrStoreIO = errors.New("wc: store I/O failure")

	// ErrPristineNotFound indicates a requested pristine digest has no
	// corresponding blob in the object store.
	ErrPristineNotFound = errors.New("wc: pristine not found")
)
