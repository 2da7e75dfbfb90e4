// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

package wc

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/graftvc/graft/lib/codec"
)

// WorkItem is a single FIFO work-queue entry: an opaque command name
// plus whatever arguments that command needs. The queue only
// guarantees an item remains visible until explicitly completed;
// executing the command is the caller's responsibility.
type WorkItem struct {
	Command string         `cbor:"command"`
	Args    map[string]any `cbor:"args,omitempty"`
}

// WQAdd appends item to the tail of the work queue.
func (db *DB) WQAdd(item WorkItem) error {
	data, err := codec.Marshal(item)
	if err != nil {
		return fmt.Errorf("wc: encoding work item: %w", err)
	}
	return db.withTransaction(func() error {
		err := sqlitex.Execute(db.conn, `INSERT INTO work_queue (work) VALUES (?)`,
			&sqlitex.ExecOptions{Args: []any{data}})
		if err != nil {
			return fmt.Errorf("wc: appending work item: %w", err)
		}
		return nil
	})
}

// WQFetch returns the head of the work queue without removing it.
// found is false if the queue is empty.
func (db *DB) WQFetch() (id int64, item WorkItem, found bool, err error) {
	var data []byte
	err = sqlitex.Execute(db.conn, `SELECT id, work FROM work_queue ORDER BY id LIMIT 1`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				id = stmt.ColumnInt64(0)
				data = cloneBlob(stmt, 1)
				found = true
				return nil
			},
		})
	if err != nil {
		return 0, WorkItem{}, false, fmt.Errorf("wc: fetching work item: %w", err)
	}
	if !found {
		return 0, WorkItem{}, false, nil
	}
	if err := codec.Unmarshal(data, &item); err != nil {
		return 0, WorkItem{}, false, fmt.Errorf("wc: decoding work item %d: %w", id, err)
	}
	return id, item, true, nil
}

// WQCompleted removes the work item with the given id. A caller loops
// WQFetch → execute → WQCompleted until WQFetch reports found=false.
func (db *DB) WQCompleted(id int64) error {
	return db.withTransaction(func() error {
		err := sqlitex.Execute(db.conn, `DELETE FROM work_queue WHERE id = ?`,
			&sqlitex.ExecOptions{Args: []any{id}})
		if err != nil {
			return fmt.Errorf("wc: completing work item %d: %w", id, err)
		}
		return nil
	})
}
