// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

package wc

// InitArgs is the argument set for [DB.Init].
type InitArgs struct {
	ReposRelpath string
	RootURL      string
	UUID         string
	InitialRev   int64
	Depth        Depth
}

// Init seeds the WCROOT's own BASE row: a directory at relpath "" with
// the given repository coordinates, initial revision, and depth. This
// is the first write made to a freshly [Open]ed store before any
// checkout content lands.
func (db *DB) Init(args InitArgs) error {
	depth := args.Depth
	if depth == "" {
		depth = DepthInfinity
	}
	return db.withTransaction(func() error {
		reposID, err := db.internRepository(args.RootURL, args.UUID)
		if err != nil {
			return err
		}
		return db.upsertBaseRow("", baseRowWrite{
			presence:     PresenceNormal,
			kind:         KindDir,
			reposID:      reposID,
			reposRelpath: args.ReposRelpath,
			revision:     args.InitialRev,
			depth:        depth,
		})
	})
}
