// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

package wc_test

import (
	"reflect"
	"testing"

	"github.com/graftvc/graft/lib/checksum"
	"github.com/graftvc/graft/lib/wc"
)

func TestBaseAddFileRequiresChecksum(t *testing.T) {
	db := newTestDB(t)
	err := db.BaseAddFile(wc.BaseAddFileArgs{Relpath: "README"})
	if err == nil {
		t.Fatal("expected ErrBadChecksumKind for missing checksum")
	}
}

func TestBaseAddFileAndReadInfo(t *testing.T) {
	db := newTestDB(t)
	cs, err := checksum.HashBytes(checksum.KindBLAKE3, []byte("hello"))
	if err != nil {
		t.Fatalf("HashBytes: %v", err)
	}

	err = db.BaseAddFile(wc.BaseAddFileArgs{
		Relpath:       "README",
		ReposRelpath:  "README",
		Revision:      1,
		Checksum:      cs,
		TranslatedSize: 5,
		ChangedRev:    1,
		ChangedAuthor: "alice",
	})
	if err != nil {
		t.Fatalf("BaseAddFile: %v", err)
	}

	info, err := db.ReadInfo("README")
	if err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
	if info.Status != wc.StatusNormal {
		t.Errorf("Status = %s, want normal", info.Status)
	}
	if info.Kind != wc.KindFile {
		t.Errorf("Kind = %s, want file", info.Kind)
	}
	if !reflect.DeepEqual(info.Checksum, cs) {
		t.Errorf("Checksum = %v, want %v", info.Checksum, cs)
	}
	if info.Revision != 1 {
		t.Errorf("Revision = %d, want 1", info.Revision)
	}
	if info.LastChange.Author != "alice" {
		t.Errorf("LastChange.Author = %q, want alice", info.LastChange.Author)
	}
}

func TestBaseAddSymlinkRequiresTarget(t *testing.T) {
	db := newTestDB(t)
	err := db.BaseAddSymlink(wc.BaseAddSymlinkArgs{Relpath: "link"})
	if err == nil {
		t.Fatal("expected error for empty symlink target")
	}
}

func TestBaseAddSymlink(t *testing.T) {
	db := newTestDB(t)
	err := db.BaseAddSymlink(wc.BaseAddSymlinkArgs{
		Relpath: "link", ReposRelpath: "link", Revision: 1, Target: "README",
	})
	if err != nil {
		t.Fatalf("BaseAddSymlink: %v", err)
	}
	info, err := db.ReadInfo("link")
	if err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
	if info.Kind != wc.KindSymlink {
		t.Errorf("Kind = %s, want symlink", info.Kind)
	}
	if info.SymlinkTarget != "README" {
		t.Errorf("SymlinkTarget = %q, want README", info.SymlinkTarget)
	}
}

func TestBaseAddDirectorySeedsPlaceholderChildren(t *testing.T) {
	db := newTestDB(t)
	err := db.BaseAddDirectory(wc.BaseAddDirectoryArgs{
		Relpath: "trunk", ReposRelpath: "trunk", Revision: 1,
		Children: []string{"a.txt", "b.txt"},
	})
	if err != nil {
		t.Fatalf("BaseAddDirectory: %v", err)
	}

	children, err := db.BaseGetChildren("trunk")
	if err != nil {
		t.Fatalf("BaseGetChildren: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("len(children) = %d, want 2", len(children))
	}

	info, err := db.ReadInfo("trunk/a.txt")
	if err != nil {
		t.Fatalf("ReadInfo placeholder child: %v", err)
	}
	if info.Status != wc.StatusIncomplete {
		t.Errorf("placeholder child Status = %s, want incomplete", info.Status)
	}
}

func TestBaseAddDirectoryDoesNotOverwriteExistingChild(t *testing.T) {
	db := newTestDB(t)
	cs, _ := checksum.HashBytes(checksum.KindBLAKE3, []byte("x"))
	if err := db.BaseAddFile(wc.BaseAddFileArgs{
		Relpath: "trunk/a.txt", ReposRelpath: "trunk/a.txt", Revision: 1, Checksum: cs,
	}); err != nil {
		t.Fatalf("BaseAddFile: %v", err)
	}
	if err := db.BaseAddDirectory(wc.BaseAddDirectoryArgs{
		Relpath: "trunk", ReposRelpath: "trunk", Revision: 1, Children: []string{"a.txt"},
	}); err != nil {
		t.Fatalf("BaseAddDirectory: %v", err)
	}

	info, err := db.ReadInfo("trunk/a.txt")
	if err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
	if info.Status != wc.StatusNormal {
		t.Errorf("existing child Status = %s, want normal (must not be downgraded to incomplete)", info.Status)
	}
	if !reflect.DeepEqual(info.Checksum, cs) {
		t.Errorf("existing child checksum overwritten")
	}
}

func TestBaseAddAbsent(t *testing.T) {
	db := newTestDB(t)
	if err := db.BaseAddAbsent("secret", wc.KindFile, "secret", 1); err != nil {
		t.Fatalf("BaseAddAbsent: %v", err)
	}
	info, err := db.ReadInfo("secret")
	if err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
	if info.Status != wc.StatusAbsent {
		t.Errorf("Status = %s, want absent", info.Status)
	}
}

func TestBaseRemove(t *testing.T) {
	db := newTestDB(t)
	cs, _ := checksum.HashBytes(checksum.KindBLAKE3, []byte("x"))
	if err := db.BaseAddFile(wc.BaseAddFileArgs{Relpath: "f", ReposRelpath: "f", Revision: 1, Checksum: cs}); err != nil {
		t.Fatalf("BaseAddFile: %v", err)
	}
	if err := db.BaseRemove("f"); err != nil {
		t.Fatalf("BaseRemove: %v", err)
	}
	if _, err := db.ReadInfo("f"); err == nil {
		t.Fatal("expected ErrPathNotFound after BaseRemove")
	}
}

func TestSetPropsRoundTrip(t *testing.T) {
	db := newTestDB(t)
	cs, _ := checksum.HashBytes(checksum.KindBLAKE3, []byte("x"))
	if err := db.BaseAddFile(wc.BaseAddFileArgs{Relpath: "f", ReposRelpath: "f", Revision: 1, Checksum: cs}); err != nil {
		t.Fatalf("BaseAddFile: %v", err)
	}

	props := map[string]any{"svn:eol-style": "native"}
	if err := db.SetProps("f", props); err != nil {
		t.Fatalf("SetProps: %v", err)
	}

	got, err := db.ReadProps("f")
	if err != nil {
		t.Fatalf("ReadProps: %v", err)
	}
	if got["svn:eol-style"] != "native" {
		t.Errorf("ReadProps = %v, want svn:eol-style=native", got)
	}
}

func TestSetPropsEmptyMapDistinctFromNil(t *testing.T) {
	db := newTestDB(t)
	cs, _ := checksum.HashBytes(checksum.KindBLAKE3, []byte("x"))
	if err := db.BaseAddFile(wc.BaseAddFileArgs{Relpath: "f", ReposRelpath: "f", Revision: 1, Checksum: cs}); err != nil {
		t.Fatalf("BaseAddFile: %v", err)
	}

	if err := db.SetProps("f", map[string]any{}); err != nil {
		t.Fatalf("SetProps: %v", err)
	}
	got, err := db.ReadProps("f")
	if err != nil {
		t.Fatalf("ReadProps: %v", err)
	}
	if got == nil {
		t.Error("ReadProps = nil, want non-nil empty map after SetProps with empty map")
	}
	if len(got) != 0 {
		t.Errorf("ReadProps = %v, want empty", got)
	}
}

func TestSetPristinePropsRequiresExistingRow(t *testing.T) {
	db := newTestDB(t)
	err := db.SetPristineProps("nope", wc.LayerBase, map[string]any{"k": "v"})
	if err == nil {
		t.Fatal("expected ErrPathNotFound")
	}
}

func TestSetChangelist(t *testing.T) {
	db := newTestDB(t)
	cs, _ := checksum.HashBytes(checksum.KindBLAKE3, []byte("x"))
	if err := db.BaseAddFile(wc.BaseAddFileArgs{Relpath: "f", ReposRelpath: "f", Revision: 1, Checksum: cs}); err != nil {
		t.Fatalf("BaseAddFile: %v", err)
	}

	if err := db.SetChangelist("f", "my-change"); err != nil {
		t.Fatalf("SetChangelist: %v", err)
	}
	info, err := db.ReadInfo("f")
	if err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
	if info.Changelist != "my-change" {
		t.Errorf("Changelist = %q, want my-change", info.Changelist)
	}

	if err := db.SetChangelist("f", ""); err != nil {
		t.Fatalf("clearing SetChangelist: %v", err)
	}
	info, err = db.ReadInfo("f")
	if err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
	if info.Changelist != "" {
		t.Errorf("Changelist = %q, want empty after clearing", info.Changelist)
	}
}

func TestSetChangelistEmptyOnAbsentActualIsNoop(t *testing.T) {
	db := newTestDB(t)
	cs, _ := checksum.HashBytes(checksum.KindBLAKE3, []byte("x"))
	if err := db.BaseAddFile(wc.BaseAddFileArgs{Relpath: "f", ReposRelpath: "f", Revision: 1, Checksum: cs}); err != nil {
		t.Fatalf("BaseAddFile: %v", err)
	}
	if err := db.SetChangelist("f", ""); err != nil {
		t.Fatalf("SetChangelist: %v", err)
	}
}

type fakeTreeConflict struct {
	Reason string `cbor:"reason"`
}

func TestSetTreeConflictAndReadConflicts(t *testing.T) {
	db := newTestDB(t)
	if err := db.BaseAddDirectory(wc.BaseAddDirectoryArgs{Relpath: "trunk", ReposRelpath: "trunk", Revision: 1, Children: []string{"victim"}}); err != nil {
		t.Fatalf("BaseAddDirectory: %v", err)
	}

	conflict := fakeTreeConflict{Reason: "local-delete-vs-remote-edit"}
	if err := db.SetTreeConflict("trunk/victim", conflict); err != nil {
		t.Fatalf("SetTreeConflict: %v", err)
	}

	entries, err := wc.ReadConflicts[fakeTreeConflict](db, "trunk/victim")
	if err != nil {
		t.Fatalf("ReadConflicts: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].Reason != conflict.Reason {
		t.Errorf("Reason = %q, want %q", entries[0].Reason, conflict.Reason)
	}

	victims, err := db.ReadConflictVictims("trunk")
	if err != nil {
		t.Fatalf("ReadConflictVictims: %v", err)
	}
	if len(victims) != 1 || victims[0] != "victim" {
		t.Errorf("ReadConflictVictims = %v, want [victim]", victims)
	}

	info, err := db.ReadInfo("trunk/victim")
	if err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
	if !info.Conflicted {
		t.Error("Conflicted = false, want true (tree-conflict entry present)")
	}

	if err := db.SetTreeConflict("trunk/victim", nil); err != nil {
		t.Fatalf("clearing SetTreeConflict: %v", err)
	}
	victims, err = db.ReadConflictVictims("trunk")
	if err != nil {
		t.Fatalf("ReadConflictVictims after clear: %v", err)
	}
	if len(victims) != 0 {
		t.Errorf("ReadConflictVictims after clear = %v, want empty", victims)
	}
}

func TestMarkResolvedClearsAllRequestedKinds(t *testing.T) {
	db := newTestDB(t)
	cs, _ := checksum.HashBytes(checksum.KindBLAKE3, []byte("x"))
	if err := db.BaseAddFile(wc.BaseAddFileArgs{Relpath: "f", ReposRelpath: "f", Revision: 1, Checksum: cs}); err != nil {
		t.Fatalf("BaseAddFile: %v", err)
	}
	if err := db.SetChangelist("f", "keepme"); err != nil {
		t.Fatalf("SetChangelist: %v", err)
	}
	if err := db.SetTreeConflict("f", fakeTreeConflict{Reason: "x"}); err != nil {
		t.Fatalf("SetTreeConflict: %v", err)
	}

	if err := db.MarkResolved("f", true, true, true); err != nil {
		t.Fatalf("MarkResolved: %v", err)
	}

	info, err := db.ReadInfo("f")
	if err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
	if info.Conflicted {
		t.Error("Conflicted = true, want false after MarkResolved clears all kinds")
	}
	if info.Changelist != "keepme" {
		t.Errorf("Changelist = %q, want keepme (MarkResolved must not clear changelist)", info.Changelist)
	}
}
