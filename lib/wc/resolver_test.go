// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

package wc_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/graftvc/graft/lib/wc"
)

func TestResolverResolvesRootAndDescendant(t *testing.T) {
	root := t.TempDir()
	db, err := wc.Open(wc.Options{WCRootPath: root})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Init(wc.InitArgs{RootURL: "https://example.invalid/repo", UUID: "u", InitialRev: 1}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	sub := filepath.Join(root, "trunk", "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	r := wc.NewResolver("", wc.Options{})
	t.Cleanup(func() {
		if err := r.Close(); err != nil {
			t.Errorf("Resolver.Close: %v", err)
		}
	})

	handle, relpath, err := r.Resolve(sub)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if relpath != "trunk/sub" {
		t.Errorf("relpath = %q, want trunk/sub", relpath)
	}
	if handle.RootAbspath != root {
		t.Errorf("RootAbspath = %q, want %q", handle.RootAbspath, root)
	}
	if handle.DB == nil {
		t.Fatal("handle.DB is nil")
	}

	// A second resolution under the same subtree should hit the cache
	// and return the very same handle.
	handle2, relpath2, err := r.Resolve(filepath.Join(root, "trunk"))
	if err != nil {
		t.Fatalf("Resolve (cached): %v", err)
	}
	if relpath2 != "trunk" {
		t.Errorf("relpath2 = %q, want trunk", relpath2)
	}
	if handle2 != handle {
		t.Error("second Resolve under the same root returned a different handle")
	}
}

func TestResolverResolveRootItself(t *testing.T) {
	root := t.TempDir()
	db, err := wc.Open(wc.Options{WCRootPath: root})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Init(wc.InitArgs{RootURL: "https://example.invalid/repo", UUID: "u", InitialRev: 1}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := wc.NewResolver("", wc.Options{})
	t.Cleanup(func() {
		if err := r.Close(); err != nil {
			t.Errorf("Resolver.Close: %v", err)
		}
	})

	handle, relpath, err := r.Resolve(root)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if relpath != "" {
		t.Errorf("relpath = %q, want empty for the WCROOT itself", relpath)
	}
	if handle.RootAbspath != root {
		t.Errorf("RootAbspath = %q, want %q", handle.RootAbspath, root)
	}
}

func TestResolverNotAWorkingCopy(t *testing.T) {
	dir := t.TempDir()
	r := wc.NewResolver("", wc.Options{})
	t.Cleanup(func() {
		if err := r.Close(); err != nil {
			t.Errorf("Resolver.Close: %v", err)
		}
	})

	if _, _, err := r.Resolve(dir); err == nil {
		t.Fatal("expected ErrNotAWorkingCopy for a plain directory tree")
	}
}

func TestResolverDetectsLegacyFormatMarker(t *testing.T) {
	root := t.TempDir()
	adminDir := filepath.Join(root, ".graft")
	if err := os.MkdirAll(adminDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(adminDir, "format"), []byte("17\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r := wc.NewResolver("", wc.Options{})
	t.Cleanup(func() {
		if err := r.Close(); err != nil {
			t.Errorf("Resolver.Close: %v", err)
		}
	})

	handle, _, err := r.Resolve(root)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if handle.LegacyFormat != 17 {
		t.Errorf("LegacyFormat = %d, want 17", handle.LegacyFormat)
	}
	if handle.DB != nil {
		t.Error("DB should be nil for a legacy handle")
	}
}

func TestResolverParentOfOutermostRootFails(t *testing.T) {
	root := t.TempDir()
	db, err := wc.Open(wc.Options{WCRootPath: root})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Init(wc.InitArgs{RootURL: "https://example.invalid/repo", UUID: "u", InitialRev: 1}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := wc.NewResolver("", wc.Options{})
	t.Cleanup(func() {
		if err := r.Close(); err != nil {
			t.Errorf("Resolver.Close: %v", err)
		}
	})

	handle, _, err := r.Resolve(root)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// root's filesystem parent is not itself a working copy, so asking
	// for its parent handle must fail rather than silently ascend past
	// the outermost tracked root.
	if _, err := r.Parent(handle); err == nil {
		t.Fatal("expected an error resolving the parent of an unembedded root")
	}
}
