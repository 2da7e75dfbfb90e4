// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

package wc_test

import (
	"testing"

	"github.com/graftvc/graft/lib/wc"
)

func TestWorkQueueFIFOOrder(t *testing.T) {
	db := newTestDB(t)

	if err := db.WQAdd(wc.WorkItem{Command: "first"}); err != nil {
		t.Fatalf("WQAdd first: %v", err)
	}
	if err := db.WQAdd(wc.WorkItem{Command: "second", Args: map[string]any{"n": int64(2)}}); err != nil {
		t.Fatalf("WQAdd second: %v", err)
	}

	id1, item1, found, err := db.WQFetch()
	if err != nil {
		t.Fatalf("WQFetch: %v", err)
	}
	if !found || item1.Command != "first" {
		t.Fatalf("WQFetch = %+v, found=%v, want first", item1, found)
	}

	// Fetching again without completing returns the same head.
	id1Again, item1Again, found, err := db.WQFetch()
	if err != nil {
		t.Fatalf("WQFetch (repeat): %v", err)
	}
	if !found || id1Again != id1 || item1Again.Command != "first" {
		t.Fatalf("WQFetch (repeat) = %+v id=%d, want first id=%d", item1Again, id1Again, id1)
	}

	if err := db.WQCompleted(id1); err != nil {
		t.Fatalf("WQCompleted: %v", err)
	}

	_, item2, found, err := db.WQFetch()
	if err != nil {
		t.Fatalf("WQFetch after completion: %v", err)
	}
	if !found || item2.Command != "second" {
		t.Fatalf("WQFetch = %+v, found=%v, want second", item2, found)
	}
	if n, ok := item2.Args["n"].(int64); !ok || n != 2 {
		t.Errorf("item2.Args[n] = %v, want int64(2)", item2.Args["n"])
	}
}

func TestWorkQueueEmptyReportsNotFound(t *testing.T) {
	db := newTestDB(t)
	_, _, found, err := db.WQFetch()
	if err != nil {
		t.Fatalf("WQFetch: %v", err)
	}
	if found {
		t.Error("WQFetch on empty queue reported found=true")
	}
}
