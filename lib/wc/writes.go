// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

package wc

import (
	"fmt"

	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/graftvc/graft/lib/checksum"
	"github.com/graftvc/graft/lib/codec"
)

// BaseAddFileArgs is the argument set for [DB.BaseAddFile].
type BaseAddFileArgs struct {
	Relpath      string
	ReposRelpath string
	Revision     int64
	Checksum     checksum.Checksum
	TranslatedSize int64
	ChangedRev   int64
	ChangedDate  int64
	ChangedAuthor string
	Props        map[string]any
}

// BaseAddFile inserts or replaces the BASE row for a file node.
func (db *DB) BaseAddFile(args BaseAddFileArgs) error {
	if args.Checksum.Kind == "" {
		return fmt.Errorf("wc: base_add_file %s: %w", args.Relpath, ErrBadChecksumKind)
	}
	props, err := encodeProps(args.Props)
	if err != nil {
		return err
	}
	return db.withTransaction(func() error {
		return db.upsertBaseRow(args.Relpath, baseRowWrite{
			presence:      PresenceNormal,
			kind:          KindFile,
			reposRelpath:  args.ReposRelpath,
			revision:      args.Revision,
			checksumText:  args.Checksum.String(),
			translatedSize: args.TranslatedSize,
			changedRev:    args.ChangedRev,
			changedDate:   args.ChangedDate,
			changedAuthor: args.ChangedAuthor,
			properties:    props,
		})
	})
}

// BaseAddSymlinkArgs is the argument set for [DB.BaseAddSymlink].
type BaseAddSymlinkArgs struct {
	Relpath       string
	ReposRelpath  string
	Revision      int64
	Target        string
	ChangedRev    int64
	ChangedDate   int64
	ChangedAuthor string
	Props         map[string]any
}

// BaseAddSymlink inserts or replaces the BASE row for a symlink node.
func (db *DB) BaseAddSymlink(args BaseAddSymlinkArgs) error {
	if args.Target == "" {
		return fmt.Errorf("wc: base_add_symlink %s: empty target", args.Relpath)
	}
	props, err := encodeProps(args.Props)
	if err != nil {
		return err
	}
	return db.withTransaction(func() error {
		return db.upsertBaseRow(args.Relpath, baseRowWrite{
			presence:      PresenceNormal,
			kind:          KindSymlink,
			reposRelpath:  args.ReposRelpath,
			revision:      args.Revision,
			symlinkTarget: args.Target,
			changedRev:    args.ChangedRev,
			changedDate:   args.ChangedDate,
			changedAuthor: args.ChangedAuthor,
			properties:    props,
		})
	})
}

// BaseAddDirectoryArgs is the argument set for [DB.BaseAddDirectory].
type BaseAddDirectoryArgs struct {
	Relpath       string
	ReposRelpath  string
	Revision      int64
	Depth         Depth
	Children      []string
	ChangedRev    int64
	ChangedDate   int64
	ChangedAuthor string
	Props         map[string]any
}

// BaseAddDirectory inserts or replaces the BASE row for a directory
// node and, if Children is non-empty, seeds a placeholder BASE row
// with presence=incomplete for every listed child that does not
// already have a BASE row, so the tree can be walked before full
// child data arrives.
func (db *DB) BaseAddDirectory(args BaseAddDirectoryArgs) error {
	props, err := encodeProps(args.Props)
	if err != nil {
		return err
	}
	depth := args.Depth
	if depth == "" {
		depth = DepthInfinity
	}
	return db.withTransaction(func() error {
		if err := db.upsertBaseRow(args.Relpath, baseRowWrite{
			presence:      PresenceNormal,
			kind:          KindDir,
			reposRelpath:  args.ReposRelpath,
			revision:      args.Revision,
			depth:         depth,
			changedRev:    args.ChangedRev,
			changedDate:   args.ChangedDate,
			changedAuthor: args.ChangedAuthor,
			properties:    props,
		}); err != nil {
			return err
		}

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
		return nil
	})
}

// BaseAddAbsent inserts or replaces the BASE row for a node excluded
// from the working copy (e.g. by server-side authorization), with
// presence=absent.
func (db *DB) BaseAddAbsent(relpath string, kind Kind, reposRelpath string, revision int64) error {
	return db.withTransaction(func() error {
		return db.upsertBaseRow(relpath, baseRowWrite{
			presence:     PresenceAbsent,
			kind:         kind,
			reposRelpath: reposRelpath,
			revision:     revision,
		})
	})
}

// baseRowWrite is the internal column set [DB.upsertBaseRow] writes.
// Repository id is resolved from reposRelpath's ancestor coordinates
// lazily by callers that already hold a repos_id; this package's
// verbs operate purely on repos_relpath and let [DB.ScanBaseRepos]
// (C5) do inheritance, matching the sparse-coordinates design.
type baseRowWrite struct {
	presence       Presence
	kind           Kind
	reposID        int64
	reposRelpath   string
	revision       int64
	depth          Depth
	checksumText   string
	translatedSize int64
	symlinkTarget  string
	changedRev     int64
	changedDate    int64
	changedAuthor  string
	properties     []byte
	davCache       []byte
	davCacheSize   int
}

func (db *DB) upsertBaseRow(relpath string, row baseRowWrite) error {
	var parent any
	if relpath != "" {
		parent = parentRelpath(relpath)
	}
	var reposID any
	if row.reposID != 0 {
		reposID = row.reposID
	}

	err := sqlitex.Execute(db.conn,
		`INSERT INTO base_node (
		     wc_id, local_relpath, parent_relpath, presence, kind, repos_id, repos_relpath,
		     revision, depth, checksum, translated_size, symlink_target,
		     changed_rev, changed_date, changed_author, properties, dav_cache, dav_cache_size
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (wc_id, local_relpath) DO UPDATE SET
		     presence = excluded.presence,
		     kind = excluded.kind,
		     repos_id = excluded.repos_id,
		     repos_relpath = excluded.repos_relpath,
		     revision = excluded.revision,
		     depth = excluded.depth,
		     checksum = excluded.checksum,
		     translated_size = excluded.translated_size,
		     symlink_target = excluded.symlink_target,
		     changed_rev = excluded.changed_rev,
		     changed_date = excluded.changed_date,
		     changed_author = excluded.changed_author,
		     properties = excluded.properties,
		     dav_cache = excluded.dav_cache,
		     dav_cache_size = excluded.dav_cache_size`,
		&sqlitex.ExecOptions{
			Args: []any{
				db.wcrootID, relpath, parent, string(row.presence), string(row.kind), reposID, nullableString(row.reposRelpath),
				row.revision, string(row.depth), nullableString(row.checksumText), row.translatedSize, nullableString(row.symlinkTarget),
				row.changedRev, row.changedDate, nullableString(row.changedAuthor), row.properties, row.davCache, row.davCacheSize,
			},
		})
	if err != nil {
		return fmt.Errorf("wc: writing base_node %s: %w", relpath, err)
	}
	return nil
}

// BaseRemove deletes the BASE row for relpath.
func (db *DB) BaseRemove(relpath string) error {
	return db.withTransaction(func() error {
		err := sqlitex.Execute(db.conn, `DELETE FROM base_node WHERE wc_id = ? AND local_relpath = ?`,
			&sqlitex.ExecOptions{Args: []any{db.wcrootID, relpath}})
		if err != nil {
			return fmt.Errorf("wc: removing base_node %s: %w", relpath, err)
		}
		return nil
	})
}

// SetProps upserts the ACTUAL-layer property blob for relpath.
func (db *DB) SetProps(relpath string, props map[string]any) error {
	data, err := encodeProps(props)
	if err != nil {
		return err
	}
	return db.withTransaction(func() error {
		return db.upsertActualField(relpath, "properties", data)
	})
}

// SetPristinePropsLayer selects which underlying layer
// [DB.SetPristineProps] targets.
type SetPristinePropsLayer int

const (
	LayerBase SetPristinePropsLayer = iota
	LayerWorking
)

// SetPristineProps upserts the property blob on the specified
// underlying layer. Fails with ErrPathNotFound if that layer has no
// row for relpath.
func (db *DB) SetPristineProps(relpath string, layer SetPristinePropsLayer, props map[string]any) error {
	data, err := encodeProps(props)
	if err != nil {
		return err
	}
	table := "base_node"
	if layer == LayerWorking {
		table = "working_node"
	}
	return db.withTransaction(func() error {
		changes, err := db.execCount(
			fmt.Sprintf(`UPDATE %s SET properties = ? WHERE wc_id = ? AND local_relpath = ?`, table),
			data, db.wcrootID, relpath)
		if err != nil {
			return fmt.Errorf("wc: setting pristine props on %s: %w", relpath, err)
		}
		if changes == 0 {
			return fmt.Errorf("wc: %s: %w", relpath, ErrPathNotFound)
		}
		return nil
	})
}

// SetChangelist sets or clears the ACTUAL changelist field for
// relpath. An empty changelist clears it.
func (db *DB) SetChangelist(relpath string, changelist string) error {
	return db.withTransaction(func() error {
		actual, err := db.readActualRow(relpath)
		if err != nil {
			return err
		}
		if !actual.present {
			if changelist == "" {
				return nil
			}
			return db.insertMinimalActualRow(relpath, map[string]any{"changelist": changelist})
		}
		return db.upsertActualField(relpath, "changelist", nullableString(changelist))
	})
}

// insertMinimalActualRow inserts a new ACTUAL row with only the given
// named columns set (others default/null).
func (db *DB) insertMinimalActualRow(relpath string, fields map[string]any) error {
	var parent any
	if relpath != "" {
		parent = parentRelpath(relpath)
	}
	var changelist any
	if v, ok := fields["changelist"]; ok {
		changelist = v
	}
	err := sqlitex.Execute(db.conn,
		`INSERT INTO actual_node (wc_id, local_relpath, parent_relpath, changelist) VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{db.wcrootID, relpath, parent, changelist}})
	if err != nil {
		return fmt.Errorf("wc: inserting actual_node %s: %w", relpath, err)
	}
	return nil
}

func (db *DB) upsertActualField(relpath string, column string, value any) error {
	actual, err := db.readActualRow(relpath)
	if err != nil {
		return err
	}
	if !actual.present {
		var parent any
		if relpath != "" {
			parent = parentRelpath(relpath)
		}
		err := sqlitex.Execute(db.conn,
			fmt.Sprintf(`INSERT INTO actual_node (wc_id, local_relpath, parent_relpath, %s) VALUES (?, ?, ?, ?)`, column),
			&sqlitex.ExecOptions{Args: []any{db.wcrootID, relpath, parent, value}})
		if err != nil {
			return fmt.Errorf("wc: inserting actual_node %s: %w", relpath, err)
		}
		return nil
	}
	err = sqlitex.Execute(db.conn,
		fmt.Sprintf(`UPDATE actual_node SET %s = ? WHERE wc_id = ? AND local_relpath = ?`, column),
		&sqlitex.ExecOptions{Args: []any{value, db.wcrootID, relpath}})
	if err != nil {
		return fmt.Errorf("wc: updating actual_node %s: %w", relpath, err)
	}
	return nil
}

// SetTreeConflict applies a single-entry edit to the parent
// directory's ACTUAL tree-conflict map, keyed by relpath's basename.
// Passing a nil conflict removes the entry; if the map becomes empty
// and no other ACTUAL fields are set, the row is deleted.
func (db *DB) SetTreeConflict(relpath string, conflict any) error {
	return db.withTransaction(func() error {
		parent := parentRelpath(relpath)
		name := basename(relpath)

		parentActual, err := db.readActualRow(parent)
		if err != nil {
			return err
		}

		conflicts := make(map[string]codec.RawMessage)
		if parentActual.present && len(parentActual.treeConflictData) > 0 {
			if err := codec.Unmarshal(parentActual.treeConflictData, &conflicts); err != nil {
				return fmt.Errorf("wc: decoding tree conflicts at %s: %w", parent, err)
			}
		}

		if conflict == nil {
			delete(conflicts, name)
		} else {
			encoded, err := codec.Marshal(conflict)
			if err != nil {
				return fmt.Errorf("wc: encoding tree conflict for %s: %w", relpath, err)
			}
			conflicts[name] = codec.RawMessage(encoded)
		}

		if len(conflicts) == 0 {
			if !parentActual.present {
				return nil
			}
			if err := db.upsertActualField(parent, "tree_conflict_data", nil); err != nil {
				return err
			}
			return db.deleteActualRowIfEmpty(parent)
		}

		data, err := codec.Marshal(conflicts)
		if err != nil {
			return fmt.Errorf("wc: encoding tree conflicts at %s: %w", parent, err)
		}
		return db.upsertActualField(parent, "tree_conflict_data", data)
	})
}

func (db *DB) deleteActualRowIfEmpty(relpath string) error {
	err := sqlitex.Execute(db.conn,
		`DELETE FROM actual_node WHERE wc_id = ? AND local_relpath = ? AND changelist IS NULL
		     AND text_conflicted = 0 AND props_conflicted = 0 AND properties IS NULL
		     AND (tree_conflict_data IS NULL OR length(tree_conflict_data) = 0)`,
		&sqlitex.ExecOptions{Args: []any{db.wcrootID, relpath}})
	if err != nil {
		return fmt.Errorf("wc: clearing empty actual_node %s: %w", relpath, err)
	}
	return nil
}

// MarkResolved clears the requested conflict kinds on relpath's
// ACTUAL row within a single transaction, per the atomicity decision
// recorded for this operation.
func (db *DB) MarkResolved(relpath string, text, props, tree bool) error {
	return db.withTransaction(func() error {
		if text {
			if err := db.upsertActualField(relpath, "text_conflicted", 0); err != nil {
				return err
			}
		}
		if props {
			if err := db.upsertActualField(relpath, "props_conflicted", 0); err != nil {
				return err
			}
		}
		if tree {
			if err := db.SetTreeConflict(relpath, nil); err != nil {
				return err
			}
		}
		actual, err := db.readActualRow(relpath)
		if err != nil {
			return err
		}
		if actual.present && actual.changelist == "" && !actual.textConflicted && !actual.propsConflicted && len(actual.treeConflictData) == 0 {
			return db.deleteActualRowIfEmpty(relpath)
		}
		return nil
	})
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// execCount runs a statement and returns the number of rows it
// changed, per sqlite3_changes (the count from the most recently
// completed statement on this connection).
func (db *DB) execCount(query string, args ...any) (int, error) {
	err := sqlitex.Execute(db.conn, query, &sqlitex.ExecOptions{Args: args})
	if err != nil {
		return 0, err
	}
	return db.conn.Changes(), nil
}
