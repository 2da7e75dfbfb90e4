// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

package wc

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// WCLockSet takes the advisory lock on relpath: inserts a row and, on
// uniqueness violation, fails with ErrLocked. Records the lock in the
// in-memory owned-locks set so a subsequent WCLockSet by this same
// process is distinguishable from contention with another actor.
func (db *DB) WCLockSet(relpath string) error {
	if db.ownedLocks[relpath] {
		return nil
	}
	err := db.withTransaction(func() error {
		err := sqlitex.Execute(db.conn, `INSERT INTO wc_lock (wc_id, local_relpath) VALUES (?, ?)`,
			&sqlitex.ExecOptions{Args: []any{db.wcrootID, relpath}})
		if err != nil {
			return fmt.Errorf("wc: %s: %w", relpath, ErrLocked)
		}
		return nil
	})
	if err != nil {
		return err
	}
	db.ownedLocks[relpath] = true
	return nil
}

// WCLockCheck reports whether relpath currently carries an advisory
// lock row, regardless of which process holds it.
func (db *DB) WCLockCheck(relpath string) (bool, error) {
	locked := false
	err := sqlitex.Execute(db.conn, `SELECT 1 FROM wc_lock WHERE wc_id = ? AND local_relpath = ?`,
		&sqlitex.ExecOptions{
			Args: []any{db.wcrootID, relpath},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				locked = true
				return nil
			},
		})
	if err != nil {
		return false, fmt.Errorf("wc: checking lock on %s: %w", relpath, err)
	}
	return locked, nil
}

// WCLockRemove deletes the advisory lock row for relpath and clears
// the in-memory owned bit.
func (db *DB) WCLockRemove(relpath string) error {
	err := db.withTransaction(func() error {
		err := sqlitex.Execute(db.conn, `DELETE FROM wc_lock WHERE wc_id = ? AND local_relpath = ?`,
			&sqlitex.ExecOptions{Args: []any{db.wcrootID, relpath}})
		if err != nil {
			return fmt.Errorf("wc: removing lock on %s: %w", relpath, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	delete(db.ownedLocks, relpath)
	return nil
}

// MarkLocked sets the in-memory owned bit for relpath without
// touching the store, used to reconcile with a lock row taken
// externally (e.g. by a resolve cycle that re-attaches to a lock a
// prior crashed process left behind).
func (db *DB) MarkLocked(relpath string) {
	db.ownedLocks[relpath] = true
}

// OwnLock reports whether this process believes it owns the advisory
// lock on relpath, per the in-memory bit alone (no store round trip).
func (db *DB) OwnLock(relpath string) bool {
	return db.ownedLocks[relpath]
}
