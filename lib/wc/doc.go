// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

// Package wc implements graft's working-copy metadata store: the
// three-layer (BASE/WORKING/ACTUAL) node model, the content-addressed
// pristine object store, the path resolver and root cache, the
// upward-scanning provenance walks, commit/relocate, the work queue,
// and the advisory lock.
//
// A WCROOT is a directory holding an administrative subdirectory
// (".graft" by default) with a SQLite store file, a pristine object
// directory, and a temp directory. [Open] opens or creates the store
// for one WCROOT and returns a [DB] handle; every other operation in
// this package is a method on DB or takes one as an argument.
//
// The three layers are composited by [DB.ReadInfo] into a single
// status per node, following the table in the package's design
// notes: BASE alone yields the base's own presence; WORKING alone
// (no copyfrom) is an add; WORKING with a copyfrom triple is a copy
// or move; WORKING layered over BASE is a replace, delete, or
// incomplete node depending on WORKING's presence.
//
// Every mutating verb (the base_*, op_*, set_*, wq_*, wclock_*
// functions) runs inside a single transaction via [DB.withTransaction],
// built on sqlitex.Save so nested verb calls compose safely.
package wc
