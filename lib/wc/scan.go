// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

package wc

import "fmt"

// ScanBaseRepos ascends from relpath until it finds a BASE row with
// non-null repository coordinates, then composes that row's
// repos_relpath with the suffix accumulated during ascent. Fails with
// ErrCorruptStore if ascent reaches the WCROOT's own BASE row without
// finding repository coordinates.
func (db *DB) ScanBaseRepos(relpath string) (ReposCoords, error) {
	cursor := relpath
	var suffix []string

	for {
		base, err := db.readBaseRow(cursor)
		if err != nil {
			return ReposCoords{}, err
		}
		if base.present && base.reposID != 0 {
			coords, err := db.reposCoordsByID(base.reposID)
			if err != nil {
				return ReposCoords{}, err
			}
			coords.ReposRelpath = composeRelpath(base.reposRelpath, suffix)
			return coords, nil
		}

		if cursor == "" {
			return ReposCoords{}, fmt.Errorf("wc: scan_base_repos %s: %w", relpath, ErrCorruptStore)
		}
		suffix = append([]string{basename(cursor)}, suffix...)
		cursor = parentRelpath(cursor)
	}
}

func composeRelpath(root string, suffix []string) string {
	result := root
	for _, s := range suffix {
		result = joinRelpath(result, s)
	}
	return result
}

// AdditionInfo is the result of [DB.ScanAddition].
type AdditionInfo struct {
	Status       Status // StatusAdded or StatusCopied
	OpRootRelpath string
	Repos        ReposCoords
	CopyFrom     CopyFrom
}

// ScanAddition ascends WORKING rows starting at relpath, which must
// itself carry WORKING.presence=normal. The operation root is the
// highest ancestor still carrying a normal WORKING row; if any row
// encountered on the way up carries a copyfrom triple, the whole
// addition is classified as a copy (or move, if moved_here is set)
// rooted at the nearest such row.
func (db *DB) ScanAddition(relpath string) (AdditionInfo, error) {
	start, err := db.readWorkingRow(relpath)
	if err != nil {
		return AdditionInfo{}, err
	}
	if !start.present || start.presence != PresenceNormal {
		return AdditionInfo{}, fmt.Errorf("wc: scan_addition %s: %w", relpath, ErrUnexpectedStatus)
	}

	var copyFrom CopyFrom
	haveCopyFrom := false

	cursor := relpath
	opRoot := relpath
	var suffix []string

	for {
		working, err := db.readWorkingRow(cursor)
		if err != nil {
			return AdditionInfo{}, err
		}
		if !working.present || working.presence != PresenceNormal {
			break
		}
		opRoot = cursor

		if !haveCopyFrom && (working.copyfromReposID != 0 || working.copyfromRelpath != "") {
			copyFrom = CopyFrom{
				ReposID:      working.copyfromReposID,
				ReposRelpath: working.copyfromRelpath,
				Revision:     working.copyfromRev,
				MovedHere:    working.movedHere,
			}
			haveCopyFrom = true
		}

		if cursor == "" {
			break
		}
		parent := parentRelpath(cursor)
		if parent == cursor {
			break
		}
		suffix = append([]string{basename(cursor)}, suffix...)
		cursor = parent
	}

	repos, err := db.ScanBaseRepos(opRoot)
	if err != nil {
		return AdditionInfo{}, err
	}
	// repos coordinates are implied at relpath, not opRoot: compose
	// the suffix traversed from opRoot back down to relpath.
	traversed := relpathSuffix(opRoot, relpath)
	repos.ReposRelpath = composeRelpath(repos.ReposRelpath, traversed)

	status := StatusAdded
	if haveCopyFrom {
		status = StatusCopied
	}

	return AdditionInfo{
		Status:        status,
		OpRootRelpath: opRoot,
		Repos:         repos,
		CopyFrom:      copyFrom,
	}, nil
}

// relpathSuffix returns the path components separating ancestor from
// descendant, assuming ancestor is a prefix of descendant in the
// relpath tree.
func relpathSuffix(ancestor, descendant string) []string {
	if ancestor == descendant {
		return nil
	}
	var parts []string
	cursor := descendant
	for cursor != ancestor {
		if cursor == "" {
			return nil
		}
		parts = append([]string{basename(cursor)}, parts...)
		cursor = parentRelpath(cursor)
	}
	return parts
}

// DeletionInfo is the result of [DB.ScanDeletion].
type DeletionInfo struct {
	BaseDelRoot     string
	BaseWasReplaced bool
	MovedToRelpath  string
	WorkDelRoot     string
}

// ScanDeletion ascends rows carrying a deletion signal starting at
// relpath, whose WORKING.presence must be not-present or
// base-deleted.
func (db *DB) ScanDeletion(relpath string) (DeletionInfo, error) {
	start, err := db.readWorkingRow(relpath)
	if err != nil {
		return DeletionInfo{}, err
	}
	if !start.present || (start.presence != PresenceNotPresent && start.presence != PresenceBaseDeleted) {
		return DeletionInfo{}, fmt.Errorf("wc: scan_deletion %s: %w", relpath, ErrUnexpectedStatus)
	}

	var info DeletionInfo
	cursor := relpath
	childPresence := start.presence
	child := relpath

	for {
		base, err := db.readBaseRow(cursor)
		if err != nil {
			return DeletionInfo{}, err
		}
		working, err := db.readWorkingRow(cursor)
		if err != nil {
			return DeletionInfo{}, err
		}

		if base.present && working.present && working.presence == PresenceNormal {
			info.BaseWasReplaced = true
		}

		if working.present && working.movedTo != "" && info.MovedToRelpath == "" {
			info.MovedToRelpath = working.movedTo
			info.BaseDelRoot = cursor
		}

		if base.present && base.presence == PresenceNormal && childPresence == PresenceNotPresent && info.WorkDelRoot == "" {
			// cursor's child (the previous iteration's row) is the root
			// of a WORKING-subtree deletion: cursor itself is unchanged
			// BASE, but its child was deleted outright.
			info.WorkDelRoot = child
		}

		parent := parentRelpath(cursor)
		if parent == cursor || cursor == "" {
			if info.WorkDelRoot == "" {
				info.WorkDelRoot = cursor
			}
			if info.BaseDelRoot == "" {
				info.BaseDelRoot = cursor
			}
			break
		}

		parentWorking, err := db.readWorkingRow(parent)
		if err != nil {
			return DeletionInfo{}, err
		}
		if !parentWorking.present {
			// The walk would leave the WORKING subtree: cursor is the
			// topmost node still carrying a WORKING deletion signal.
			if info.WorkDelRoot == "" {
				info.WorkDelRoot = cursor
			}
			if info.BaseDelRoot == "" {
				info.BaseDelRoot = cursor
			}
			break
		}

		childPresence = working.presence
		child = cursor
		cursor = parent
	}

	return info, nil
}
