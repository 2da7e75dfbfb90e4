// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

package wc

// schemaVersion is the schema version this build understands. Stored
// in PRAGMA user_version. A store opened with a lower version is
// upgraded in place (if auto-upgrade is enabled) by applying
// upgradeScripts in order; a store with a higher version fails with
// ErrUnsupportedFormat.
const schemaVersion = 1

// minSupportedSchemaVersion is the oldest version upgradeScripts can
// bring forward. A store below this version fails with
// ErrUnsupportedFormat rather than attempting an upgrade.
const minSupportedSchemaVersion = 1

// schemaDDL creates every table at the current schema version. Applied
// once, on a freshly created (user_version = 0) database.
const schemaDDL = `
CREATE TABLE wcroot (
    id INTEGER PRIMARY KEY,
    local_abspath TEXT UNIQUE
);

CREATE TABLE repositories (
    id INTEGER PRIMARY KEY,
    root TEXT NOT NULL,
    uuid TEXT NOT NULL,
    UNIQUE (root, uuid)
);

CREATE TABLE base_node (
    wc_id INTEGER NOT NULL REFERENCES wcroot (id),
    local_relpath TEXT NOT NULL,
    parent_relpath TEXT,
    presence TEXT NOT NULL,
    kind TEXT NOT NULL,
    repos_id INTEGER REFERENCES repositories (id),
    repos_relpath TEXT,
    revision INTEGER NOT NULL DEFAULT 0,
    depth TEXT,
    checksum TEXT,
    translated_size INTEGER,
    symlink_target TEXT,
    changed_rev INTEGER,
    changed_date INTEGER,
    changed_author TEXT,
    properties BLOB,
    dav_cache BLOB,
    dav_cache_size INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (wc_id, local_relpath)
);
CREATE INDEX base_node_parent ON base_node (wc_id, parent_relpath);

CREATE TABLE working_node (
    wc_id INTEGER NOT NULL REFERENCES wcroot (id),
    local_relpath TEXT NOT NULL,
    parent_relpath TEXT,
    presence TEXT NOT NULL,
    kind TEXT NOT NULL,
    copyfrom_repos_id INTEGER REFERENCES repositories (id),
    copyfrom_relpath TEXT,
    copyfrom_rev INTEGER,
    moved_here INTEGER NOT NULL DEFAULT 0,
    moved_to TEXT,
    changed_rev INTEGER,
    changed_date INTEGER,
    changed_author TEXT,
    checksum TEXT,
    translated_size INTEGER,
    symlink_target TEXT,
    properties BLOB,
    PRIMARY KEY (wc_id, local_relpath)
);
CREATE INDEX working_node_parent ON working_node (wc_id, parent_relpath);

CREATE TABLE actual_node (
    wc_id INTEGER NOT NULL REFERENCES wcroot (id),
    local_relpath TEXT NOT NULL,
    parent_relpath TEXT,
    properties BLOB,
    changelist TEXT,
    text_conflicted INTEGER NOT NULL DEFAULT 0,
    props_conflicted INTEGER NOT NULL DEFAULT 0,
    tree_conflict_data BLOB,
    PRIMARY KEY (wc_id, local_relpath)
);
CREATE INDEX actual_node_changelist ON actual_node (wc_id, changelist);

CREATE TABLE pristine (
    wc_id INTEGER NOT NULL REFERENCES wcroot (id),
    checksum TEXT NOT NULL,
    size INTEGER NOT NULL,
    compressed_size INTEGER NOT NULL,
    compression TEXT NOT NULL,
    encrypted INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (wc_id, checksum)
);

CREATE TABLE lock (
    repos_id INTEGER NOT NULL REFERENCES repositories (id),
    repos_relpath TEXT NOT NULL,
    lock_token TEXT NOT NULL,
    lock_owner TEXT,
    lock_comment TEXT,
    lock_date INTEGER,
    PRIMARY KEY (repos_id, repos_relpath)
);

CREATE TABLE wc_lock (
    wc_id INTEGER NOT NULL REFERENCES wcroot (id),
    local_relpath TEXT NOT NULL,
    PRIMARY KEY (wc_id, local_relpath)
);

CREATE TABLE work_queue (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    work BLOB NOT NULL
);
`

// upgradeScripts maps a target schema version to the SQL that brings
// a store at (target-1) forward to target. Applied in ascending
// version order starting from the store's current PRAGMA user_version
// + 1. There are none yet since schemaVersion is 1 — the first
// upgrade script lands here the day schemaVersion becomes 2.
var upgradeScripts = map[int]string{}
