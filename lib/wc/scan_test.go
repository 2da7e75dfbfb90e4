// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

package wc

import (
	"testing"

	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/graftvc/graft/lib/checksum"
)

// insertWorkingRow writes a working_node row directly, bypassing the
// package's public API: no schedule-add/copy/move/delete verb exists
// yet to produce WORKING rows, so the scanners that walk them are
// exercised here against hand-built fixtures instead.
func insertWorkingRow(t *testing.T, db *DB, relpath string, presence Presence, kind Kind, copyfromReposID int64, copyfromRelpath string, copyfromRev int64, movedHere bool, movedTo string) {
	t.Helper()
	var parent any
	if relpath != "" {
		parent = parentRelpath(relpath)
	}
	var reposID any
	if copyfromReposID != 0 {
		reposID = copyfromReposID
	}
	err := sqlitex.Execute(db.conn,
		`INSERT INTO working_node (
		     wc_id, local_relpath, parent_relpath, presence, kind,
		     copyfrom_repos_id, copyfrom_relpath, copyfrom_rev, moved_here, moved_to
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			db.wcrootID, relpath, parent, string(presence), string(kind),
			reposID, nullableString(copyfromRelpath), copyfromRev, boolToInt(movedHere), nullableString(movedTo),
		}})
	if err != nil {
		t.Fatalf("insertWorkingRow %s: %v", relpath, err)
	}
}

func newScanTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Options{WCRootPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	if err := db.Init(InitArgs{
		RootURL:    "https://example.invalid/repo",
		UUID:       "11111111-1111-1111-1111-111111111111",
		InitialRev: 1,
	}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return db
}

func TestScanBaseReposDirectRow(t *testing.T) {
	db := newScanTestDB(t)
	coords, err := db.ScanBaseRepos("")
	if err != nil {
		t.Fatalf("ScanBaseRepos: %v", err)
	}
	if coords.RootURL != "https://example.invalid/repo" {
		t.Errorf("RootURL = %q", coords.RootURL)
	}
	if coords.ReposRelpath != "" {
		t.Errorf("ReposRelpath = %q, want empty", coords.ReposRelpath)
	}
}

func TestScanBaseReposInheritsFromAncestor(t *testing.T) {
	db := newScanTestDB(t)
	if err := db.BaseAddDirectory(BaseAddDirectoryArgs{Relpath: "trunk", Revision: 1}); err != nil {
		t.Fatalf("BaseAddDirectory: %v", err)
	}
	if err := db.upsertBaseRow("trunk/sub", baseRowWrite{presence: PresenceNormal, kind: KindDir}); err != nil {
		t.Fatalf("upsertBaseRow: %v", err)
	}

	coords, err := db.ScanBaseRepos("trunk/sub")
	if err != nil {
		t.Fatalf("ScanBaseRepos: %v", err)
	}
	if coords.RootURL != "https://example.invalid/repo" {
		t.Errorf("RootURL = %q", coords.RootURL)
	}
	if coords.ReposRelpath != "trunk/sub" {
		t.Errorf("ReposRelpath = %q, want trunk/sub", coords.ReposRelpath)
	}
}

func TestScanAdditionPlainAdd(t *testing.T) {
	db := newScanTestDB(t)
	insertWorkingRow(t, db, "new", PresenceNormal, KindFile, 0, "", 0, false, "")

	info, err := db.ScanAddition("new")
	if err != nil {
		t.Fatalf("ScanAddition: %v", err)
	}
	if info.Status != StatusAdded {
		t.Errorf("Status = %s, want added", info.Status)
	}
	if info.OpRootRelpath != "new" {
		t.Errorf("OpRootRelpath = %q, want new", info.OpRootRelpath)
	}
}

func TestScanAdditionCopy(t *testing.T) {
	db := newScanTestDB(t)
	insertWorkingRow(t, db, "copied", PresenceNormal, KindDir, 1, "trunk/orig", 5, false, "")
	insertWorkingRow(t, db, "copied/child", PresenceNormal, KindFile, 0, "", 0, false, "")

	info, err := db.ScanAddition("copied/child")
	if err != nil {
		t.Fatalf("ScanAddition: %v", err)
	}
	if info.Status != StatusCopied {
		t.Errorf("Status = %s, want copied", info.Status)
	}
	if info.OpRootRelpath != "copied" {
		t.Errorf("OpRootRelpath = %q, want copied", info.OpRootRelpath)
	}
	if info.CopyFrom.ReposRelpath != "trunk/orig" {
		t.Errorf("CopyFrom.ReposRelpath = %q, want trunk/orig", info.CopyFrom.ReposRelpath)
	}
	if info.CopyFrom.MovedHere {
		t.Errorf("CopyFrom.MovedHere = true, want false")
	}
}

func TestScanAdditionRejectsNonNormalRow(t *testing.T) {
	db := newScanTestDB(t)
	insertWorkingRow(t, db, "gone", PresenceNotPresent, KindFile, 0, "", 0, false, "")

	if _, err := db.ScanAddition("gone"); err == nil {
		t.Fatal("expected ErrUnexpectedStatus for a non-normal WORKING row")
	}
}

func TestScanDeletionBaseDeleted(t *testing.T) {
	db := newScanTestDB(t)
	cs, err := checksum.HashBytes(checksum.KindBLAKE3, []byte("x"))
	if err != nil {
		t.Fatalf("HashBytes: %v", err)
	}
	if err := db.BaseAddFile(BaseAddFileArgs{Relpath: "f", Revision: 1, Checksum: cs}); err != nil {
		t.Fatalf("BaseAddFile: %v", err)
	}
	insertWorkingRow(t, db, "f", PresenceBaseDeleted, KindFile, 0, "", 0, false, "")

	info, err := db.ScanDeletion("f")
	if err != nil {
		t.Fatalf("ScanDeletion: %v", err)
	}
	if info.BaseDelRoot != "f" {
		t.Errorf("BaseDelRoot = %q, want f", info.BaseDelRoot)
	}
}

func TestScanDeletionRejectsNormalRow(t *testing.T) {
	db := newScanTestDB(t)
	insertWorkingRow(t, db, "f", PresenceNormal, KindFile, 0, "", 0, false, "")

	if _, err := db.ScanDeletion("f"); err == nil {
		t.Fatal("expected ErrUnexpectedStatus for a normal WORKING row")
	}
}
