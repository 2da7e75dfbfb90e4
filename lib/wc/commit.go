// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

package wc

import (
	"fmt"
	"strings"

	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/graftvc/graft/lib/checksum"
)

// CommitArgs is the argument set for [DB.Commit].
type CommitArgs struct {
	Relpath       string
	NewRevision   int64
	Date          int64
	Author        string
	Checksum      checksum.Checksum // set iff the committed kind is file
	Children      []string          // set iff the committed kind is directory
	DAVCache      []byte
	KeepChangelist bool

	// Repos supplies the repository coordinates for the new BASE row.
	// The caller resolves these beforehand (inheriting from an
	// ancestor via ScanBaseRepos when the current row had none).
	Repos ReposCoords
}

// Commit composes a new BASE row for relpath from the current
// BASE/WORKING/ACTUAL triple and commits it at NewRevision, in one
// transaction:
//
//   - kind: WORKING's kind if a WORKING row exists, else BASE's.
//   - properties: ACTUAL's, else WORKING's, else BASE's — first
//     non-null wins.
//   - depth: for a directory, BASE's depth when BASE supplied the kind
//     and records one; infinity when WORKING supplied the kind (WORKING
//     rows carry no depth) or BASE records none.
//
// The WORKING row is deleted. ACTUAL is deleted too, unless
// KeepChangelist is set and a changelist exists, in which case ACTUAL
// is reset to hold only the changelist.
//
// Exactly one of Checksum or Children must be set, matching whether
// the composed kind is file or directory.
func (db *DB) Commit(args CommitArgs) error {
	return db.withTransaction(func() error {
		base, err := db.readBaseRow(args.Relpath)
		if err != nil {
			return err
		}
		working, err := db.readWorkingRow(args.Relpath)
		if err != nil {
			return err
		}
		actual, err := db.readActualRow(args.Relpath)
		if err != nil {
			return err
		}

		var kind Kind
		switch {
		case working.present:
			kind = normalizeKind(working.kind)
		case base.present:
			kind = normalizeKind(base.kind)
		default:
			return fmt.Errorf("wc: commit %s: %w", args.Relpath, ErrPathNotFound)
		}

		if kind == KindFile && args.Checksum.Kind == "" {
			return fmt.Errorf("wc: commit %s: file commit requires a checksum: %w", args.Relpath, ErrUnexpectedStatus)
		}
		if kind == KindDir && args.Checksum.Kind != "" {
			return fmt.Errorf("wc: commit %s: directory commit must not carry a checksum: %w", args.Relpath, ErrUnexpectedStatus)
		}
		if kind == KindFile && len(args.Children) > 0 {
			return fmt.Errorf("wc: commit %s: file commit must not carry children: %w", args.Relpath, ErrUnexpectedStatus)
		}

		var properties []byte
		switch {
		case actual.present && actual.properties != nil:
			properties = actual.properties
		case working.present && working.properties != nil:
			properties = working.properties
		case base.present:
			properties = base.properties
		}

		depth := DepthUnknown
		if kind == KindDir {
			depth = DepthInfinity
			if working.present {
				depth = DepthInfinity
			} else if base.present && base.depth != "" {
				depth = base.depth
			}
		}

		reposID, err := db.internRepository(args.Repos.RootURL, args.Repos.UUID)
		if err != nil {
			return err
		}

		davCache, davCacheSize, err := compressDAVCache(args.DAVCache)
		if err != nil {
			return err
		}

		write := baseRowWrite{
			presence:      PresenceNormal,
			kind:          kind,
			reposID:       reposID,
			reposRelpath:  args.Repos.ReposRelpath,
			revision:      args.NewRevision,
			depth:         depth,
			changedRev:    args.NewRevision,
			changedDate:   args.Date,
			changedAuthor: args.Author,
			properties:    properties,
			davCache:      davCache,
			davCacheSize:  davCacheSize,
		}
		if kind == KindFile {
			write.checksumText = args.Checksum.String()
			write.translatedSize = working.translatedSize
			if !working.present {
				write.translatedSize = base.translatedSize
			}
		}
		if kind == KindSymlink {
			write.symlinkTarget = working.symlinkTarget
			if !working.present {
				write.symlinkTarget = base.symlinkTarget
			}
		}

		if err := db.upsertBaseRow(args.Relpath, write); err != nil {
			return err
		}

		if kind == KindDir {
			for _, child := range args.Children {
				childRelpath := joinRelpath(args.Relpath, child)
				existing, err := db.readBaseRow(childRelpath)
				if err != nil {
					return err
				}
				if existing.present {
					continue
				}
				if err := db.upsertBaseRow(childRelpath, baseRowWrite{
					presence: PresenceIncomplete,
					kind:     KindFile,
				}); err != nil {
					return err
				}
			}
		}

		if working.present {
			err := sqlitex.Execute(db.conn, `DELETE FROM working_node WHERE wc_id = ? AND local_relpath = ?`,
				&sqlitex.ExecOptions{Args: []any{db.wcrootID, args.Relpath}})
			if err != nil {
				return fmt.Errorf("wc: clearing working_node %s: %w", args.Relpath, err)
			}
		}

		if actual.present {
			if args.KeepChangelist && actual.changelist != "" {
				err := sqlitex.Execute(db.conn,
					`UPDATE actual_node SET properties = NULL, text_conflicted = 0, props_conflicted = 0, tree_conflict_data = NULL
					 WHERE wc_id = ? AND local_relpath = ?`,
					&sqlitex.ExecOptions{Args: []any{db.wcrootID, args.Relpath}})
				if err != nil {
					return fmt.Errorf("wc: resetting actual_node %s: %w", args.Relpath, err)
				}
			} else {
				err := sqlitex.Execute(db.conn, `DELETE FROM actual_node WHERE wc_id = ? AND local_relpath = ?`,
					&sqlitex.ExecOptions{Args: []any{db.wcrootID, args.Relpath}})
				if err != nil {
					return fmt.Errorf("wc: clearing actual_node %s: %w", args.Relpath, err)
				}
			}
		}

		return nil
	})
}

// Relocate resolves or creates a repos_id for newRootURL, preserving
// the UUID from the repository row currently associated with dir.
// Repository coordinates are sparse: most BASE rows inherit repos_id
// from the nearest ancestor that sets it explicitly (ScanBaseRepos
// walks that chain), so relocating only the subtree rooted at dir
// means dir's own row must become a new explicit anchor even if it
// previously inherited from further up -- otherwise rewriting the
// ancestor's row would also relocate sibling subtrees that share it.
// Any descendant row that already carries its own explicit repos_id
// pointing at the old repository is rewritten too (a nested mount
// point). WORKING.copyfrom and lock rows always carry explicit
// coordinates (never sparse), so those are matched directly by the
// old repos_id and a repos_relpath subtree prefix.
func (db *DB) Relocate(dir string, newRootURL string) error {
	return db.withTransaction(func() error {
		repos, err := db.ScanBaseRepos(dir)
		if err != nil {
			return err
		}
		if repos.IsZero() {
			return fmt.Errorf("wc: relocate %s: %w", dir, ErrCorruptStore)
		}

		newReposID, err := db.internRepository(newRootURL, repos.UUID)
		if err != nil {
			return err
		}

		changes, err := db.execCount(
			`UPDATE base_node SET repos_id = ?, repos_relpath = ?, dav_cache = NULL, dav_cache_size = 0
			 WHERE wc_id = ? AND local_relpath = ?`,
			newReposID, repos.ReposRelpath, db.wcrootID, dir)
		if err != nil {
			return fmt.Errorf("wc: relocating base_node %s: %w", dir, err)
		}
		if changes == 0 {
			return fmt.Errorf("wc: relocate %s: %w", dir, ErrPathNotFound)
		}

		localLikePrefix := escapeLikePrefix(dir) + "/%"
		if dir == "" {
			localLikePrefix = "%"
		}
		err = sqlitex.Execute(db.conn,
			`UPDATE base_node SET repos_id = ?, dav_cache = NULL, dav_cache_size = 0
			 WHERE wc_id = ? AND repos_id = ? AND local_relpath LIKE ? ESCAPE '\'`,
			&sqlitex.ExecOptions{Args: []any{newReposID, db.wcrootID, repos.ReposID, localLikePrefix}})
		if err != nil {
			return fmt.Errorf("wc: relocating nested base_node under %s: %w", dir, err)
		}

		reposLikePrefix := escapeLikePrefix(repos.ReposRelpath) + "/%"
		if repos.ReposRelpath == "" {
			reposLikePrefix = "%"
		}

		err = sqlitex.Execute(db.conn,
			`UPDATE working_node SET copyfrom_repos_id = ?
			 WHERE wc_id = ? AND copyfrom_repos_id = ? AND (copyfrom_relpath = ? OR copyfrom_relpath LIKE ? ESCAPE '\')`,
			&sqlitex.ExecOptions{Args: []any{newReposID, db.wcrootID, repos.ReposID, repos.ReposRelpath, reposLikePrefix}})
		if err != nil {
			return fmt.Errorf("wc: relocating working_node copyfrom under %s: %w", dir, err)
		}

		err = sqlitex.Execute(db.conn,
			`UPDATE lock SET repos_id = ?
			 WHERE repos_id = ? AND (repos_relpath = ? OR repos_relpath LIKE ? ESCAPE '\')`,
			&sqlitex.ExecOptions{Args: []any{newReposID, repos.ReposID, repos.ReposRelpath, reposLikePrefix}})
		if err != nil {
			return fmt.Errorf("wc: relocating lock under %s: %w", dir, err)
		}

		return nil
	})
}

// escapeLikePrefix escapes '%', '_', and the escape byte itself
// ('\') in prefix so it matches literally inside a LIKE pattern with
// ESCAPE '\', per the escaping contract reserving that byte for
// wildcard-aware recursive queries over repos_relpath prefixes.
func escapeLikePrefix(prefix string) string {
	var b strings.Builder
	for _, r := range prefix {
		switch r {
		case '\\', '%', '_':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
