// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

package wc

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/graftvc/graft/lib/clock"
	"github.com/graftvc/graft/lib/secret"
	"github.com/graftvc/graft/lib/sqlitepool"
)

// Options configures [Open].
type Options struct {
	// WCRootPath is the absolute path to the working-copy root
	// directory (the directory containing the admin subdirectory).
	// Required.
	WCRootPath string

	// AdminDirName is the name of the administrative subdirectory.
	// Default: ".graft".
	AdminDirName string

	// Logger receives structured operational messages. Defaults to a
	// discard handler.
	Logger *slog.Logger

	// Clock is kept on the open DB handle; no operation of this
	// package reads it. Defaults to clock.Real().
	Clock clock.Clock

	// AutoUpgrade applies schema upgrade scripts when the on-disk
	// version is older than schemaVersion. If false, Open fails with
	// ErrUpgradeRequired instead.
	AutoUpgrade bool

	// EnforceEmptyWorkQueue fails Open with ErrCleanupRequired if the
	// work queue is non-empty.
	EnforceEmptyWorkQueue bool

	// SealRecipients, if non-empty, causes newly installed pristine
	// blobs to be age-encrypted to these public keys.
	SealRecipients []string

	// SealPrivateKey decrypts pristine blobs on read. Required only
	// when reading a store that has encrypted pristines. The DB does
	// not take ownership — the caller closes it.
	SealPrivateKey *secret.Buffer
}

// DB is an open handle to one WCROOT's relational store. Wraps a
// single *sqlite.Conn — the component design calls for one connection
// per open WCROOT, shared by all callers through C3's handle cache,
// rather than a pool. DB is NOT safe for concurrent use by multiple
// goroutines; callers that need concurrent access to the same WCROOT
// must serialize through a single owning goroutine or open separate
// DB handles (the store's own file locking then serializes writers).
type DB struct {
	pool *sqlitepool.Pool
	conn *sqlite.Conn

	wcrootID int64
	rootPath string
	adminDir string

	logger *slog.Logger
	clock  clock.Clock

	sealRecipients []string
	sealPrivateKey *secret.Buffer

	// ownedLocks remembers which advisory locks this process itself
	// holds on this WCROOT, distinguishing a refused lock_set from
	// re-acquiring a lock we already hold.
	ownedLocks map[string]bool
}

// Open opens or creates the store for a WCROOT at opts.WCRootPath. The
// admin subdirectory (and its pristine/tmp children) is created if
// absent. The returned DB must be closed with [DB.Close].
func Open(opts Options) (*DB, error) {
	if opts.WCRootPath == "" {
		return nil, fmt.Errorf("wc: WCRootPath is required")
	}

	adminDirName := opts.AdminDirName
	if adminDirName == "" {
		adminDirName = ".graft"
	}
	adminDir := filepath.Join(opts.WCRootPath, adminDirName)

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}

	for _, dir := range []string{adminDir, filepath.Join(adminDir, "pristine"), filepath.Join(adminDir, "tmp")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("wc: creating %s: %w", dir, err)
		}
	}

	storePath := filepath.Join(adminDir, "wc.db")

	// A WCROOT's store is opened once per process and shared by every
	// caller: a pool of size 1 gets graft's standard pragmas from
	// sqlitepool for free without reimplementing them here, while
	// keeping the single-connection semantics this package's verbs
	// assume.
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     storePath,
		PoolSize: 1,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("wc: opening %s: %w: %w", storePath, err, ErrStoreIO)
	}

	conn, err := pool.Take(context.Background())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("wc: opening %s: %w: %w", storePath, err, ErrStoreIO)
	}

	db := &DB{
		pool:           pool,
		conn:           conn,
		rootPath:       opts.WCRootPath,
		adminDir:       adminDir,
		logger:         logger,
		clock:          clk,
		sealRecipients: opts.SealRecipients,
		sealPrivateKey: opts.SealPrivateKey,
		ownedLocks:     make(map[string]bool),
	}

	if err := db.openSchema(opts.AutoUpgrade); err != nil {
		db.Close()
		return nil, err
	}

	if err := db.loadWCRootID(); err != nil {
		db.Close()
		return nil, err
	}

	if opts.EnforceEmptyWorkQueue {
		empty, err := db.workQueueEmpty()
		if err != nil {
			db.Close()
			return nil, err
		}
		if !empty {
			db.Close()
			return nil, fmt.Errorf("wc: %s: %w", storePath, ErrCleanupRequired)
		}
	}

	logger.Info("wc store opened", "path", storePath, "wcroot_id", db.wcrootID)
	return db, nil
}

// Close returns the connection to its pool and closes the pool.
// Idempotent.
func (db *DB) Close() error {
	if db.pool == nil {
		return nil
	}
	if db.conn != nil {
		db.pool.Put(db.conn)
		db.conn = nil
	}
	err := db.pool.Close()
	db.pool = nil
	if err != nil {
		return fmt.Errorf("wc: closing store: %w", err)
	}
	return nil
}

// RootPath returns the WCROOT's absolute filesystem path.
func (db *DB) RootPath() string { return db.rootPath }

// AdminDir returns the absolute path to the administrative
// subdirectory.
func (db *DB) AdminDir() string { return db.adminDir }

func (db *DB) userVersion() (int, error) {
	var version int
	err := sqlitex.ExecuteTransient(db.conn, "PRAGMA user_version", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			version = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("wc: reading schema version: %w", err)
	}
	return version, nil
}

func (db *DB) setUserVersion(version int) error {
	stmt := fmt.Sprintf("PRAGMA user_version=%d", version)
	if err := sqlitex.ExecuteTransient(db.conn, stmt, nil); err != nil {
		return fmt.Errorf("wc: setting schema version: %w", err)
	}
	return nil
}

func (db *DB) openSchema(autoUpgrade bool) error {
	version, err := db.userVersion()
	if err != nil {
		return err
	}

	if version == 0 {
		if err := sqlitex.ExecuteScript(db.conn, schemaDDL, nil); err != nil {
			return fmt.Errorf("wc: creating schema: %w", err)
		}
		if err := sqlitex.Execute(db.conn, "INSERT INTO wcroot (local_abspath) VALUES (NULL)", nil); err != nil {
			return fmt.Errorf("wc: seeding wcroot row: %w", err)
		}
		return db.setUserVersion(schemaVersion)
	}

	if version > schemaVersion {
		return fmt.Errorf("wc: store schema version %d, this build understands up to %d: %w",
			version, schemaVersion, ErrUnsupportedFormat)
	}

	if version < minSupportedSchemaVersion {
		return fmt.Errorf("wc: store schema version %d is below minimum supported %d: %w",
			version, minSupportedSchemaVersion, ErrUnsupportedFormat)
	}

	if version < schemaVersion {
		if !autoUpgrade {
			return fmt.Errorf("wc: store schema version %d, current is %d: %w",
				version, schemaVersion, ErrUpgradeRequired)
		}
		if err := db.runUpgrades(version); err != nil {
			return err
		}
	}

	return nil
}

func (db *DB) runUpgrades(fromVersion int) error {
	for target := fromVersion + 1; target <= schemaVersion; target++ {
		script, ok := upgradeScripts[target]
		if !ok {
			return fmt.Errorf("wc: no upgrade script to reach version %d: %w", target, ErrUnsupportedFormat)
		}
		if err := db.withTransaction(func() error {
			if err := sqlitex.ExecuteScript(db.conn, script, nil); err != nil {
				return fmt.Errorf("upgrading to version %d: %w", target, err)
			}
			return db.setUserVersion(target)
		}); err != nil {
			return err
		}
		db.logger.Info("wc schema upgraded", "version", target)
	}
	return nil
}

func (db *DB) loadWCRootID() error {
	var id int64
	found := false
	err := sqlitex.Execute(db.conn, "SELECT id FROM wcroot ORDER BY id LIMIT 1", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			id = stmt.ColumnInt64(0)
			found = true
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("wc: reading wcroot row: %w", err)
	}
	if !found {
		return fmt.Errorf("wc: no wcroot row present: %w", ErrCorruptStore)
	}
	db.wcrootID = id
	return nil
}

func (db *DB) workQueueEmpty() (bool, error) {
	empty := true
	err := sqlitex.Execute(db.conn, "SELECT 1 FROM work_queue LIMIT 1", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			empty = false
			return nil
		},
	})
	if err != nil {
		return false, fmt.Errorf("wc: checking work queue: %w", err)
	}
	return empty, nil
}

// withTransaction runs fn inside a savepoint-based transaction
// (sqlitex.Save), which commits on success and rolls back if fn
// returns an error. Savepoints nest, so a verb implemented by calling
// other verbs composes safely.
func (db *DB) withTransaction(fn func() error) (err error) {
	release := sqlitex.Save(db.conn)
	defer release(&err)
	err = fn()
	return err
}
