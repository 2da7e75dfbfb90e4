// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

package wc

import "github.com/graftvc/graft/lib/checksum"

// Presence is the per-layer state of a node row.
type Presence string

const (
	PresenceNormal      Presence = "normal"
	PresenceAbsent      Presence = "absent"
	PresenceExcluded    Presence = "excluded"
	PresenceNotPresent  Presence = "not-present"
	PresenceIncomplete  Presence = "incomplete"
	PresenceBaseDeleted Presence = "base-deleted" // WORKING only
)

// Kind is the type of filesystem object a node represents.
//
// KindSubdir is an internal legacy concession: a parent-directory stub
// pointing at a child directory that owns its own store file under a
// per-directory storage layout. graft only implements the modern
// one-store-per-WCROOT layout, so KindSubdir never appears in output
// from [DB.ReadInfo] — it is collapsed to KindDir. The constant exists
// so the schema and upgrade path can recognize the value if it is
// ever read from a store upgraded from that legacy layout.
type Kind string

const (
	KindFile    Kind = "file"
	KindDir     Kind = "dir"
	KindSymlink Kind = "symlink"
	KindSubdir  Kind = "subdir"
)

func normalizeKind(k Kind) Kind {
	if k == KindSubdir {
		return KindDir
	}
	return k
}

// Depth controls how much of a directory's subtree update/checkout
// operations should touch. It is carried on directory BASE rows.
type Depth string

const (
	DepthUnknown    Depth = ""
	DepthExclude    Depth = "exclude"
	DepthEmpty      Depth = "empty"
	DepthFiles      Depth = "files"
	DepthImmediates Depth = "immediates"
	DepthInfinity   Depth = "infinity"
)

// Status is the composite status [DB.ReadInfo] derives from the
// BASE/WORKING presence pair, per the table in the package design
// notes.
type Status string

const (
	StatusNormal           Status = "normal"
	StatusAbsent           Status = "absent"
	StatusExcluded         Status = "excluded"
	StatusNotPresent       Status = "not-present"
	StatusIncomplete       Status = "incomplete"
	StatusAdded            Status = "added"
	StatusCopied           Status = "copied"
	StatusDeleted          Status = "deleted"
	StatusObstructedAdd    Status = "obstructed-add"
	StatusObstructedDelete Status = "obstructed-delete"
	StatusObstructed       Status = "obstructed"
)

// ReposCoords identifies a repository location: the interned
// repository row plus a path relative to its root.
type ReposCoords struct {
	ReposID      int64
	RootURL      string
	UUID         string
	ReposRelpath string
}

// IsZero reports whether coords carries no repository information.
func (c ReposCoords) IsZero() bool {
	return c.ReposID == 0 && c.ReposRelpath == ""
}

// LastChange records who changed a node, to what revision, and when,
// expressed as Unix microseconds (matching the precision the store
// binds to SQLite's INTEGER column).
type LastChange struct {
	Revision int64
	Date     int64 // microseconds since Unix epoch; zero means unset
	Author   string
}

// CopyFrom records the provenance of a WORKING row created by copy or
// move.
type CopyFrom struct {
	ReposID      int64
	ReposRelpath string
	Revision     int64
	MovedHere    bool
}

// IsZero reports whether no copyfrom information is present.
func (c CopyFrom) IsZero() bool {
	return c.ReposID == 0 && c.ReposRelpath == ""
}

// LockInfo records a repository-side lock token applying to a node,
// keyed in the store by (repos_id, repos_relpath).
type LockInfo struct {
	Token   string
	Owner   string
	Comment string
	Date    int64
}

// NodeInfo is the composite, three-layer read produced by
// [DB.ReadInfo]. It joins BASE, WORKING, and ACTUAL for a single
// (wcroot, relpath) and reduces them to one status per the component
// design's status table.
type NodeInfo struct {
	Relpath  string
	Status   Status
	Kind     Kind
	Depth    Depth
	Revision int64

	// BaseShadowed is true when both a BASE and a WORKING row exist
	// for this node (WORKING overlays BASE).
	BaseShadowed bool

	// Conflicted is true if any ACTUAL conflict-marker column is
	// non-null, or a tree-conflict entry exists for this basename on
	// the parent directory's ACTUAL row.
	Conflicted bool

	Repos    ReposCoords
	CopyFrom CopyFrom

	Checksum       checksum.Checksum
	TranslatedSize int64
	SymlinkTarget  string

	LastChange LastChange

	Changelist string

	Lock *LockInfo

	// DAVCache holds opaque remote-protocol metadata cached on the
	// BASE row. Stored lz4-compressed on disk; always decompressed by
	// the time it reaches the caller.
	DAVCache []byte
}

// statusKey is the (basePresence, workingPresence, hasCopyFrom) tuple
// the composite-status lookup table is keyed on. A zero Presence
// means "row absent".
//
// obstructed is never set by [DB.ReadInfo]: it exists for callers that
// have independently learned, from [Resolver.CheckObstruction], that
// the parent WCROOT's BASE row records a file where an on-disk
// directory with its own store was found. ReadInfo operates entirely within one WCROOT's store and
// has no way to observe that; obstruction is inherently a cross-store,
// path-resolution-time concept (see CheckObstruction), not a property
// any single node row carries.
type statusKey struct {
	base       Presence
	working    Presence
	copyFrom   bool
	obstructed bool
}

// compositeStatus implements the table from the component design:
// BASE/WORKING presence (plus whether WORKING carries a copyfrom
// triple) reduces to exactly one Status value. ok is false for the
// "both rows absent" case, which callers must turn into
// ErrPathNotFound rather than a status, and for any presence
// combination the table does not list.
func compositeStatus(key statusKey) (status Status, ok bool) {
	if key.base == "" && key.working == "" {
		return "", false
	}

	if key.obstructed {
		switch key.working {
		case PresenceNormal:
			return StatusObstructedAdd, true
		case PresenceNotPresent:
			return StatusObstructedDelete, true
		case "", PresenceAbsent:
			return StatusObstructed, true
		}
	}

	if key.working == "" {
		// BASE alone: lift BASE's own presence.
		switch key.base {
		case PresenceNormal:
			return StatusNormal, true
		case PresenceAbsent:
			return StatusAbsent, true
		case PresenceExcluded:
			return StatusExcluded, true
		case PresenceNotPresent:
			return StatusNotPresent, true
		case PresenceIncomplete:
			return StatusIncomplete, true
		}
	}

	switch key.working {
	case PresenceNormal:
		if key.copyFrom {
			return StatusCopied, true
		}
		return StatusAdded, true
	case PresenceNotPresent, PresenceBaseDeleted:
		return StatusDeleted, true
	case PresenceIncomplete:
		return StatusIncomplete, true
	}

	return "", false
}
