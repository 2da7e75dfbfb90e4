// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

package wc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// legacyFormatFileName is the marker file a pre-relational working
// copy leaves in its admin directory: a single ASCII integer giving
// the old format number. Its presence ahead of any modern store
// during ascent is what triggers an upgrade rather than a fresh open.
const legacyFormatFileName = "format"

// Handle is a resolved reference to a WCROOT, or to a not-yet-upgraded
// legacy working copy found during resolution. A zero Handle is
// never returned to callers; [Resolver.Resolve] always either
// populates one or returns an error.
type Handle struct {
	// RootAbspath is the absolute path of the WCROOT directory this
	// handle refers to.
	RootAbspath string

	// AdminDirName is the admin subdirectory name used at this root
	// (".graft" unless configured otherwise).
	AdminDirName string

	// DB is the open store for this root. Nil for a legacy handle.
	DB *DB

	// LegacyFormat is non-zero when this handle refers to a working
	// copy in the pre-relational on-disk format. DB is nil in this
	// case; the only valid operation is an upgrade.
	LegacyFormat int

	// Obstructed is true when the path that resolved to this handle's
	// relpath was expected (per the parent's BASE row) to be a file,
	// but a directory with its own admin subdirectory was found there.
	// [Resolver.Resolve] never sets it: it returns the handle of the
	// store found on disk, and obstruction is reported only by
	// [Resolver.CheckObstruction].
	Obstructed bool

	parent *Handle
}

// Resolver maps absolute filesystem paths to (root-handle, relative-
// path) pairs, caching per-directory results so repeated resolutions
// within one process are O(1) after the first ascent. Its methods
// serialize on an internal mutex; callers share one Resolver per
// process the same way they share one open DB connection per WCROOT.
type Resolver struct {
	mu sync.Mutex

	// adminDirName is the admin subdirectory name probed for during
	// ascent. Configurable so a process can open working copies that
	// do not use the default ".graft" name.
	adminDirName string

	// openOptions supplies the Logger/Clock/seal configuration Open
	// needs whenever resolution discovers a new root to open.
	openOptions Options

	// handles caches constructed handles keyed by absolute directory
	// path. Every cached handle's DB, LegacyFormat, and RootAbspath
	// fields are immutable once populated.
	handles map[string]*Handle

	// roots tracks open *DB handles by root path so two directories
	// under the same WCROOT share one connection instead of each
	// opening their own.
	roots map[string]*Handle
}

// NewResolver creates a Resolver. adminDirName defaults to ".graft"
// if empty. openOptions.WCRootPath is overwritten per discovered root
// and need not be set by the caller.
func NewResolver(adminDirName string, openOptions Options) *Resolver {
	if adminDirName == "" {
		adminDirName = ".graft"
	}
	return &Resolver{
		adminDirName: adminDirName,
		openOptions:  openOptions,
		handles:      make(map[string]*Handle),
		roots:        make(map[string]*Handle),
	}
}

// Close closes every DB this Resolver has opened. The Resolver must
// not be used afterward.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, root := range r.roots {
		if root.DB == nil {
			continue
		}
		if err := root.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.roots = make(map[string]*Handle)
	r.handles = make(map[string]*Handle)
	return firstErr
}

// Resolve maps an absolute path to its (handle, relpath) pair.
// relpath is "" when abspath is the WCROOT itself. Fails with
// ErrNotAWorkingCopy if ascent reaches the filesystem root with no
// admin subdirectory found, or with ErrUnsupportedFormat /
// ErrUpgradeRequired / ErrCorruptStore surfaced from [Open] when a
// store is found but cannot be opened.
func (r *Resolver) Resolve(abspath string) (*Handle, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(abspath)
}

func (r *Resolver) resolveLocked(abspath string) (*Handle, string, error) {
	abspath = filepath.Clean(abspath)

	// Step 2: if abspath is not a directory, peel off path components
	// as relpath suffix until we reach something that is (or until we
	// run out of components).
	var suffix []string
	dir := abspath
	for {
		info, err := os.Stat(dir)
		if err == nil && info.IsDir() {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, "", fmt.Errorf("wc: resolving %s: %w", abspath, ErrNotAWorkingCopy)
		}
		suffix = append([]string{filepath.Base(dir)}, suffix...)
		dir = parent
	}

	handle, err := r.resolveDirLocked(dir)
	if err != nil {
		return nil, "", err
	}

	// dir may lie below the root that owns it; its own position under
	// the root comes ahead of the peeled suffix.
	dirRel, err := filepath.Rel(handle.RootAbspath, dir)
	if err != nil {
		return nil, "", fmt.Errorf("wc: resolving %s: %w", abspath, err)
	}
	parts := suffix
	if dirRel != "." {
		parts = append(strings.Split(filepath.ToSlash(dirRel), "/"), suffix...)
	}
	relpath := strings.Join(parts, "/")
	return handle, relpath, nil
}

// resolveDirLocked resolves a directory abspath to the handle for its
// containing (or own) WCROOT, ascending and populating the cache as
// it goes.
func (r *Resolver) resolveDirLocked(dir string) (*Handle, error) {
	dir = filepath.Clean(dir)

	if handle, ok := r.handles[dir]; ok {
		return handle, nil
	}

	// Step 3/4/5: probe dir itself, then ascend.
	var ascended []string
	probe := dir
	for {
		adminDir := filepath.Join(probe, r.adminDirName)

		if legacyFormat, found := probeLegacyFormat(adminDir); found {
			handle := &Handle{
				RootAbspath:  probe,
				AdminDirName: r.adminDirName,
				LegacyFormat: legacyFormat,
			}
			r.populateAscendedLocked(dir, ascended, handle)
			return handle, nil
		}

		storePath := filepath.Join(adminDir, "wc.db")
		if _, err := os.Stat(storePath); err == nil {
			handle, err := r.openRootLocked(probe)
			if err != nil {
				return nil, err
			}
			r.populateAscendedLocked(dir, ascended, handle)
			return handle, nil
		}

		if cached, ok := r.handles[probe]; ok {
			r.populateAscendedLocked(dir, ascended, cached)
			return cached, nil
		}

		parent := filepath.Dir(probe)
		if parent == probe {
			return nil, fmt.Errorf("wc: resolving %s: %w", dir, ErrNotAWorkingCopy)
		}
		ascended = append(ascended, probe)
		probe = parent
	}
}

// populateAscendedLocked caches handle for dir and for every
// directory ascended through en route, so later resolutions in the
// same subtree hit the cache directly (step 6 of the algorithm).
func (r *Resolver) populateAscendedLocked(dir string, ascended []string, handle *Handle) {
	r.handles[dir] = handle
	for _, d := range ascended {
		r.handles[d] = handle
	}
}

// openRootLocked opens (or returns the already-open) *DB for a
// discovered WCROOT and wraps it in a Handle.
func (r *Resolver) openRootLocked(rootAbspath string) (*Handle, error) {
	if existing, ok := r.roots[rootAbspath]; ok {
		return existing, nil
	}

	options := r.openOptions
	options.WCRootPath = rootAbspath
	options.AdminDirName = r.adminDirName

	db, err := Open(options)
	if err != nil {
		return nil, err
	}

	handle := &Handle{
		RootAbspath:  rootAbspath,
		AdminDirName: r.adminDirName,
		DB:           db,
	}
	r.roots[rootAbspath] = handle
	return handle, nil
}

// Parent returns the cached parent handle for handle, resolving it
// if not already cached. A WCROOT at the filesystem root has no
// parent and returns ErrNotAWorkingCopy.
func (r *Resolver) Parent(handle *Handle) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if handle.parent != nil {
		return handle.parent, nil
	}

	parentAbspath := filepath.Dir(handle.RootAbspath)
	if parentAbspath == handle.RootAbspath {
		return nil, fmt.Errorf("wc: %s: %w", handle.RootAbspath, ErrNotAWorkingCopy)
	}

	parent, err := r.resolveDirLocked(parentAbspath)
	if err != nil {
		return nil, err
	}
	handle.parent = parent
	return parent, nil
}

// probeLegacyFormat reports whether adminDir holds a legacy format
// marker file, returning the format number it records.
func probeLegacyFormat(adminDir string) (int, bool) {
	data, err := os.ReadFile(filepath.Join(adminDir, legacyFormatFileName))
	if err != nil {
		return 0, false
	}
	format, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return format, true
}

// CheckObstruction consults the parent WCROOT's store to ask whether
// a file (not a directory with its own store) was expected at
// basename. If the parent's BASE row for basename records kind=file
// but a directory with its own admin subdirectory was found on disk,
// the child handle is obstructed: the caller should use the parent's
// handle with relpath=basename instead of descending into the child
// store.
//
// Returns ok=false when there is no parent handle to consult (e.g.
// handle is the outermost WCROOT) — callers should treat that as "not
// obstructed" rather than an error, since obstruction is only
// meaningful relative to an enclosing root.
func (r *Resolver) CheckObstruction(childHandle *Handle, basename string) (obstructed bool, ok bool, err error) {
	parent, err := r.Parent(childHandle)
	if err != nil {
		return false, false, nil
	}
	if parent.DB == nil {
		return false, false, nil
	}

	kind, presence, found, err := parent.DB.baseNodeKindAndPresence(basename)
	if err != nil {
		return false, false, err
	}
	if !found {
		return false, true, nil
	}
	if kind == string(KindFile) && presence == string(PresenceNormal) {
		return true, true, nil
	}
	return false, true, nil
}
