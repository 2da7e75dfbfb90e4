// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

package wc

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/graftvc/graft/lib/checksum"
	"github.com/graftvc/graft/lib/codec"
)

// baseRow and workingRow are the raw per-layer rows ReadInfo joins.
// Unexported: callers only ever see the composited NodeInfo.
type baseRow struct {
	present        bool
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

type workingRow struct {
	present            bool
	presence           Presence
	kind               Kind
	copyfromReposID    int64
	copyfromRelpath    string
	copyfromRev        int64
	movedHere          bool
	movedTo            string
	changedRev         int64
	changedDate        int64
	changedAuthor      string
	checksumText       string
	translatedSize     int64
	symlinkTarget      string
	properties         []byte
}

type actualRow struct {
	present          bool
	properties       []byte
	changelist       string
	textConflicted   bool
	propsConflicted  bool
	treeConflictData []byte
}

func (db *DB) readBaseRow(relpath string) (baseRow, error) {
	var row baseRow
	err := sqlitex.Execute(db.conn,
		`SELECT presence, kind, repos_id, repos_relpath, revision, depth, checksum,
		        translated_size, symlink_target, changed_rev, changed_date, changed_author,
		        properties, dav_cache, dav_cache_size
		 FROM base_node WHERE wc_id = ? AND local_relpath = ?`,
		&sqlitex.ExecOptions{
			Args: []any{db.wcrootID, relpath},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				row.present = true
				row.presence = Presence(stmt.ColumnText(0))
				row.kind = Kind(stmt.ColumnText(1))
				row.reposID = stmt.ColumnInt64(2)
				row.reposRelpath = stmt.ColumnText(3)
				row.revision = stmt.ColumnInt64(4)
				row.depth = Depth(stmt.ColumnText(5))
				row.checksumText = stmt.ColumnText(6)
				row.translatedSize = stmt.ColumnInt64(7)
				row.symlinkTarget = stmt.ColumnText(8)
				row.changedRev = stmt.ColumnInt64(9)
				row.changedDate = stmt.ColumnInt64(10)
				row.changedAuthor = stmt.ColumnText(11)
				row.properties = cloneBlob(stmt, 12)
				row.davCache = cloneBlob(stmt, 13)
				row.davCacheSize = stmt.ColumnInt(14)
				return nil
			},
		})
	if err != nil {
		return baseRow{}, fmt.Errorf("wc: reading base_node %s: %w", relpath, err)
	}
	return row, nil
}

func (db *DB) readWorkingRow(relpath string) (workingRow, error) {
	var row workingRow
	err := sqlitex.Execute(db.conn,
		`SELECT presence, kind, copyfrom_repos_id, copyfrom_relpath, copyfrom_rev, moved_here,
		        moved_to, changed_rev, changed_date, changed_author, checksum, translated_size,
		        symlink_target, properties
		 FROM working_node WHERE wc_id = ? AND local_relpath = ?`,
		&sqlitex.ExecOptions{
			Args: []any{db.wcrootID, relpath},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				row.present = true
				row.presence = Presence(stmt.ColumnText(0))
				row.kind = Kind(stmt.ColumnText(1))
				row.copyfromReposID = stmt.ColumnInt64(2)
				row.copyfromRelpath = stmt.ColumnText(3)
				row.copyfromRev = stmt.ColumnInt64(4)
				row.movedHere = stmt.ColumnInt(5) != 0
				row.movedTo = stmt.ColumnText(6)
				row.changedRev = stmt.ColumnInt64(7)
				row.changedDate = stmt.ColumnInt64(8)
				row.changedAuthor = stmt.ColumnText(9)
				row.checksumText = stmt.ColumnText(10)
				row.translatedSize = stmt.ColumnInt64(11)
				row.symlinkTarget = stmt.ColumnText(12)
				row.properties = cloneBlob(stmt, 13)
				return nil
			},
		})
	if err != nil {
		return workingRow{}, fmt.Errorf("wc: reading working_node %s: %w", relpath, err)
	}
	return row, nil
}

func (db *DB) readActualRow(relpath string) (actualRow, error) {
	var row actualRow
	err := sqlitex.Execute(db.conn,
		`SELECT properties, changelist, text_conflicted, props_conflicted, tree_conflict_data
		 FROM actual_node WHERE wc_id = ? AND local_relpath = ?`,
		&sqlitex.ExecOptions{
			Args: []any{db.wcrootID, relpath},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				row.present = true
				row.properties = cloneBlob(stmt, 0)
				row.changelist = stmt.ColumnText(1)
				row.textConflicted = stmt.ColumnInt(2) != 0
				row.propsConflicted = stmt.ColumnInt(3) != 0
				row.treeConflictData = cloneBlob(stmt, 4)
				return nil
			},
		})
	if err != nil {
		return actualRow{}, fmt.Errorf("wc: reading actual_node %s: %w", relpath, err)
	}
	return row, nil
}

func cloneBlob(stmt *sqlite.Stmt, col int) []byte {
	n := stmt.ColumnLen(col)
	if n == 0 {
		if stmt.ColumnType(col) == sqlite.TypeNull {
			return nil
		}
		return []byte{}
	}
	buf := make([]byte, n)
	stmt.ColumnBytes(col, buf)
	return buf
}

// parentRelpath returns the relpath one level up, and "" at the
// WCROOT itself (matching the stored parent_relpath convention: null
// at the root, set everywhere else).
func parentRelpath(relpath string) string {
	if relpath == "" {
		return ""
	}
	idx := -1
	for i := len(relpath) - 1; i >= 0; i-- {
		if relpath[i] == '/' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ""
	}
	return relpath[:idx]
}

func basename(relpath string) string {
	idx := -1
	for i := len(relpath) - 1; i >= 0; i-- {
		if relpath[i] == '/' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return relpath
	}
	return relpath[idx+1:]
}

func joinRelpath(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "/" + child
}

// ReadInfo composites the BASE, WORKING, and ACTUAL rows at relpath
// into a single NodeInfo per the status table in the package design
// notes. Fails with ErrPathNotFound if neither a BASE nor a WORKING
// row exists.
func (db *DB) ReadInfo(relpath string) (NodeInfo, error) {
	base, err := db.readBaseRow(relpath)
	if err != nil {
		return NodeInfo{}, err
	}
	working, err := db.readWorkingRow(relpath)
	if err != nil {
		return NodeInfo{}, err
	}
	actual, err := db.readActualRow(relpath)
	if err != nil {
		return NodeInfo{}, err
	}

	// key.obstructed is intentionally left false here: obstruction is
	// detected by walking into the parent WCROOT from path resolution
	// (Resolver.CheckObstruction), not from this node's own rows.
	// Callers that need an obstructed status compose it themselves from
	// CheckObstruction's result rather than through ReadInfo.
	key := statusKey{}
	if base.present {
		key.base = base.presence
	}
	if working.present {
		key.working = working.presence
		key.copyFrom = working.copyfromReposID != 0 || working.copyfromRelpath != ""
	}

	status, ok := compositeStatus(key)
	if !ok {
		return NodeInfo{}, fmt.Errorf("wc: %s: %w", relpath, ErrPathNotFound)
	}

	info := NodeInfo{
		Relpath:      relpath,
		Status:       status,
		BaseShadowed: base.present && working.present,
	}

	switch {
	case working.present:
		info.Kind = normalizeKind(working.kind)
		info.LastChange = LastChange{Revision: working.changedRev, Date: working.changedDate, Author: working.changedAuthor}
		if checksumText := working.checksumText; checksumText != "" {
			cs, err := checksum.Parse(checksumText)
			if err != nil {
				return NodeInfo{}, fmt.Errorf("wc: %s: %w", relpath, ErrCorruptChecksum)
			}
			info.Checksum = cs
		}
		info.TranslatedSize = working.translatedSize
		info.SymlinkTarget = working.symlinkTarget
		if info.Kind == KindDir {
			info.Depth = DepthInfinity
		}
		if key.copyFrom {
			info.CopyFrom = CopyFrom{
				ReposID:      working.copyfromReposID,
				ReposRelpath: working.copyfromRelpath,
				Revision:     working.copyfromRev,
				MovedHere:    working.movedHere,
			}
		}
	case base.present:
		info.Kind = normalizeKind(base.kind)
		info.Depth = base.depth
		info.Revision = base.revision
		info.LastChange = LastChange{Revision: base.changedRev, Date: base.changedDate, Author: base.changedAuthor}
		if checksumText := base.checksumText; checksumText != "" {
			cs, err := checksum.Parse(checksumText)
			if err != nil {
				return NodeInfo{}, fmt.Errorf("wc: %s: %w", relpath, ErrCorruptChecksum)
			}
			info.Checksum = cs
		}
		info.TranslatedSize = base.translatedSize
		info.SymlinkTarget = base.symlinkTarget
		if len(base.davCache) > 0 {
			davCache, err := decompressDAVCache(base.davCache, base.davCacheSize)
			if err != nil {
				return NodeInfo{}, fmt.Errorf("wc: %s: %w", relpath, err)
			}
			info.DAVCache = davCache
		}
	}

	if actual.present {
		info.Changelist = actual.changelist
		info.Conflicted = actual.textConflicted || actual.propsConflicted
	}

	if !info.Conflicted {
		hasTreeConflict, err := db.hasTreeConflictEntry(relpath)
		if err != nil {
			return NodeInfo{}, err
		}
		info.Conflicted = hasTreeConflict
	}

	if base.present {
		// Rows written by the base_add_* verbs carry repos coordinates
		// sparsely -- only the nearest ancestor that was given them
		// explicitly has a non-null repos_id, and descendants inherit by
		// ascent. ScanBaseRepos resolves both the direct case (this row
		// already has repos_id) and the inherited case in one call.
		repos, err := db.ScanBaseRepos(relpath)
		if err != nil {
			return NodeInfo{}, err
		}
		info.Repos = repos
	}

	lock, err := db.readLockForNode(relpath, info.Repos)
	if err != nil {
		return NodeInfo{}, err
	}
	info.Lock = lock

	return info, nil
}

// hasTreeConflictEntry reports whether the parent directory's ACTUAL
// row carries a tree-conflict entry keyed by this node's basename.
func (db *DB) hasTreeConflictEntry(relpath string) (bool, error) {
	if relpath == "" {
		return false, nil
	}
	parentActual, err := db.readActualRow(parentRelpath(relpath))
	if err != nil {
		return false, err
	}
	if !parentActual.present || len(parentActual.treeConflictData) == 0 {
		return false, nil
	}
	conflicts := make(map[string]codec.RawMessage)
	if err := codec.Unmarshal(parentActual.treeConflictData, &conflicts); err != nil {
		return false, fmt.Errorf("wc: decoding tree conflicts at %s: %w", parentRelpath(relpath), err)
	}
	_, ok := conflicts[basename(relpath)]
	return ok, nil
}

// ReadConflicts returns the tree-conflict entries recorded against
// relpath, decoded to the caller's type T. Returns an empty slice
// (not an error) when there is no conflict.
func ReadConflicts[T any](db *DB, relpath string) ([]T, error) {
	if relpath == "" {
		return nil, nil
	}
	parentActual, err := db.readActualRow(parentRelpath(relpath))
	if err != nil {
		return nil, err
	}
	if !parentActual.present || len(parentActual.treeConflictData) == 0 {
		return nil, nil
	}
	conflicts := make(map[string]T)
	if err := codec.Unmarshal(parentActual.treeConflictData, &conflicts); err != nil {
		return nil, fmt.Errorf("wc: decoding tree conflicts at %s: %w", parentRelpath(relpath), err)
	}
	entry, ok := conflicts[basename(relpath)]
	if !ok {
		return nil, nil
	}
	return []T{entry}, nil
}

// ReadConflictVictims returns the basenames carrying a tree-conflict
// entry on dir's ACTUAL row.
func (db *DB) ReadConflictVictims(dir string) ([]string, error) {
	actual, err := db.readActualRow(dir)
	if err != nil {
		return nil, err
	}
	if !actual.present || len(actual.treeConflictData) == 0 {
		return nil, nil
	}
	conflicts := make(map[string]codec.RawMessage)
	if err := codec.Unmarshal(actual.treeConflictData, &conflicts); err != nil {
		return nil, fmt.Errorf("wc: decoding tree conflicts at %s: %w", dir, err)
	}
	victims := make([]string, 0, len(conflicts))
	for name := range conflicts {
		victims = append(victims, name)
	}
	return victims, nil
}

// ReadProps returns the ACTUAL property blob if present, else BASE's.
func (db *DB) ReadProps(relpath string) (map[string]any, error) {
	actual, err := db.readActualRow(relpath)
	if err != nil {
		return nil, err
	}
	if actual.present && actual.properties != nil {
		return decodeProps(actual.properties)
	}

	base, err := db.readBaseRow(relpath)
	if err != nil {
		return nil, err
	}
	if base.present {
		return decodeProps(base.properties)
	}

	working, err := db.readWorkingRow(relpath)
	if err != nil {
		return nil, err
	}
	if !working.present {
		return nil, fmt.Errorf("wc: %s: %w", relpath, ErrPathNotFound)
	}
	return decodeProps(working.properties)
}

// ReadPristineProps returns WORKING's property blob if present, else
// BASE's.
func (db *DB) ReadPristineProps(relpath string) (map[string]any, error) {
	working, err := db.readWorkingRow(relpath)
	if err != nil {
		return nil, err
	}
	if working.present {
		return decodeProps(working.properties)
	}

	base, err := db.readBaseRow(relpath)
	if err != nil {
		return nil, err
	}
	if !base.present {
		return nil, fmt.Errorf("wc: %s: %w", relpath, ErrPathNotFound)
	}
	return decodeProps(base.properties)
}

func decodeProps(blob []byte) (map[string]any, error) {
	if blob == nil {
		return nil, nil
	}
	if len(blob) == 0 {
		return map[string]any{}, nil
	}
	props := make(map[string]any)
	if err := codec.Unmarshal(blob, &props); err != nil {
		return nil, fmt.Errorf("wc: decoding properties: %w", err)
	}
	return props, nil
}

func encodeProps(props map[string]any) ([]byte, error) {
	if props == nil {
		return nil, nil
	}
	if len(props) == 0 {
		return []byte{}, nil
	}
	data, err := codec.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("wc: encoding properties: %w", err)
	}
	return data, nil
}

// ReadChildren returns the union of BASE and WORKING child basenames
// directly under relpath.
func (db *DB) ReadChildren(relpath string) ([]string, error) {
	seen := make(map[string]bool)
	collect := func(table string) error {
		return sqlitex.Execute(db.conn,
			fmt.Sprintf(`SELECT local_relpath FROM %s WHERE wc_id = ? AND parent_relpath = ?`, table),
			&sqlitex.ExecOptions{
				Args: []any{db.wcrootID, relpath},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					seen[basename(stmt.ColumnText(0))] = true
					return nil
				},
			})
	}
	if err := collect("base_node"); err != nil {
		return nil, fmt.Errorf("wc: reading base children of %s: %w", relpath, err)
	}
	if err := collect("working_node"); err != nil {
		return nil, fmt.Errorf("wc: reading working children of %s: %w", relpath, err)
	}

	children := make([]string, 0, len(seen))
	for name := range seen {
		children = append(children, name)
	}
	return children, nil
}

// BaseGetChildren returns BASE-only child basenames directly under
// relpath.
func (db *DB) BaseGetChildren(relpath string) ([]string, error) {
	var children []string
	err := sqlitex.Execute(db.conn,
		`SELECT local_relpath FROM base_node WHERE wc_id = ? AND parent_relpath = ?`,
		&sqlitex.ExecOptions{
			Args: []any{db.wcrootID, relpath},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				children = append(children, basename(stmt.ColumnText(0)))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("wc: reading base children of %s: %w", relpath, err)
	}
	return children, nil
}

// baseNodeKindAndPresence is the minimal projection the resolver's
// obstruction check needs from a parent WCROOT's BASE row: just
// enough to tell "a file was expected here" from everything else,
// without pulling in a full NodeInfo composite.
func (db *DB) baseNodeKindAndPresence(relpath string) (kind, presence string, found bool, err error) {
	err = sqlitex.Execute(db.conn,
		`SELECT kind, presence FROM base_node WHERE wc_id = ? AND local_relpath = ?`,
		&sqlitex.ExecOptions{
			Args: []any{db.wcrootID, relpath},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				kind = stmt.ColumnText(0)
				presence = stmt.ColumnText(1)
				found = true
				return nil
			},
		})
	if err != nil {
		return "", "", false, fmt.Errorf("wc: reading base_node %s: %w", relpath, err)
	}
	return kind, presence, found, nil
}

// reposCoordsByID resolves a repository row's root URL and UUID.
func (db *DB) reposCoordsByID(reposID int64) (ReposCoords, error) {
	var coords ReposCoords
	found := false
	err := sqlitex.Execute(db.conn,
		`SELECT root, uuid FROM repositories WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{reposID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				coords.RootURL = stmt.ColumnText(0)
				coords.UUID = stmt.ColumnText(1)
				found = true
				return nil
			},
		})
	if err != nil {
		return ReposCoords{}, fmt.Errorf("wc: reading repositories row %d: %w", reposID, err)
	}
	if !found {
		return ReposCoords{}, fmt.Errorf("wc: repositories row %d missing: %w", reposID, ErrCorruptStore)
	}
	coords.ReposID = reposID
	return coords, nil
}

// internRepository finds or creates the interned repositories row for
// (rootURL, uuid), returning its id.
func (db *DB) internRepository(rootURL, uuid string) (int64, error) {
	var id int64
	found := false
	err := sqlitex.Execute(db.conn,
		`SELECT id FROM repositories WHERE root = ? AND uuid = ?`,
		&sqlitex.ExecOptions{
			Args: []any{rootURL, uuid},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				id = stmt.ColumnInt64(0)
				found = true
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("wc: looking up repository %s: %w", rootURL, err)
	}
	if found {
		return id, nil
	}

	err = sqlitex.Execute(db.conn,
		`INSERT INTO repositories (root, uuid) VALUES (?, ?)`,
		&sqlitex.ExecOptions{Args: []any{rootURL, uuid}})
	if err != nil {
		return 0, fmt.Errorf("wc: interning repository %s: %w", rootURL, err)
	}
	id = db.conn.LastInsertRowID()
	return id, nil
}

// readLockForNode returns the repository-side lock for a node, keyed
// by (repos_id, repos_relpath), or nil if none is recorded or the
// node has no resolved repository coordinates.
func (db *DB) readLockForNode(relpath string, repos ReposCoords) (*LockInfo, error) {
	if repos.IsZero() {
		return nil, nil
	}
	var lock LockInfo
	found := false
	err := sqlitex.Execute(db.conn,
		`SELECT lock_token, lock_owner, lock_comment, lock_date FROM lock WHERE repos_id = ? AND repos_relpath = ?`,
		&sqlitex.ExecOptions{
			Args: []any{repos.ReposID, repos.ReposRelpath},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				lock.Token = stmt.ColumnText(0)
				lock.Owner = stmt.ColumnText(1)
				lock.Comment = stmt.ColumnText(2)
				lock.Date = stmt.ColumnInt64(3)
				found = true
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("wc: reading lock for %s: %w", relpath, err)
	}
	if !found {
		return nil, nil
	}
	return &lock, nil
}
